package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/kiwi-insure/internal/server/middleware"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/common"

	"github.com/labstack/echo/v4"
)

type analyzeClaimBody struct {
	Text string `json:"text" validate:"required"`
}

type analyzeClaimResponse struct {
	Message       string                `json:"message"`
	ClaimID       string                `json:"claim_id,omitempty"`
	Claimants     []common.Entity       `json:"claimants"`
	Locations     []common.Entity       `json:"locations"`
	Risks         []common.Entity       `json:"risks"`
	Coverages     []common.Entity       `json:"coverages"`
	Relationships []common.Relationship `json:"relationships"`
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// AnalyzeClaimHandler extracts and stores the parties of an insurance claim.
func AnalyzeClaimHandler(c echo.Context) error {
	data := new(analyzeClaimBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid request body", Error: err.Error()})
	}

	app := c.(*middleware.AppContext).App
	a, err := app.Graph.AnalyzeInsuranceClaim(c.Request().Context(), data.Text)
	if err != nil {
		status, body := failure("Analysing claim", err)
		return c.JSON(status, body)
	}

	return c.JSON(http.StatusOK, analyzeClaimResponse{
		Message:       "Claim analysed",
		ClaimID:       a.ClaimID,
		Claimants:     nonNil(a.Claimants),
		Locations:     nonNil(a.Locations),
		Risks:         nonNil(a.Risks),
		Coverages:     nonNil(a.Coverages),
		Relationships: nonNil(a.Relationships),
	})
}
