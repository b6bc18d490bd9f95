package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/kiwi-insure/internal/server/middleware"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/common"

	"github.com/labstack/echo/v4"
)

type recommendationsResponse struct {
	UserID          string                  `json:"user_id"`
	Recommendations []common.Recommendation `json:"recommendations"`
}

// GetRecommendationsHandler lists insurance products for a user. Users may
// only read their own recommendations unless they hold
// recommendation.view:all.
func GetRecommendationsHandler(c echo.Context) error {
	userID := c.Param("id")
	ac := c.(*middleware.AppContext)
	if !middleware.CanViewUser(ac.User, userID) {
		return c.JSON(http.StatusForbidden, errorResponse{Message: "Forbidden"})
	}

	recs, err := ac.App.Graph.GetInsuranceRecommendations(c.Request().Context(), userID)
	if err != nil {
		status, body := failure("Loading recommendations", err)
		return c.JSON(status, body)
	}
	return c.JSON(http.StatusOK, recommendationsResponse{UserID: userID, Recommendations: nonNil(recs)})
}
