package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/kiwi-insure/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

type globalSearchParams struct {
	Q string `query:"q" validate:"required"`
}

type localSearchParams struct {
	Q      string `query:"q"`
	Entity string `query:"entity" validate:"required"`
}

// GlobalSearchHandler serves GET /search/global?q=.
func GlobalSearchHandler(c echo.Context) error {
	params := new(globalSearchParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid query"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Missing query parameter q"})
	}

	app := c.(*middleware.AppContext).App
	res, err := app.Search.GlobalSearch(c.Request().Context(), params.Q)
	if err != nil {
		status, body := failure("Global search", err)
		return c.JSON(status, body)
	}
	return c.JSON(http.StatusOK, res)
}

// LocalSearchHandler serves GET /search/local?q=&entity=.
func LocalSearchHandler(c echo.Context) error {
	params := new(localSearchParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid query"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Missing query parameter entity"})
	}

	app := c.(*middleware.AppContext).App
	res, err := app.Search.LocalSearch(c.Request().Context(), params.Q, params.Entity)
	if err != nil {
		status, body := failure("Local search", err)
		return c.JSON(status, body)
	}
	return c.JSON(http.StatusOK, res)
}
