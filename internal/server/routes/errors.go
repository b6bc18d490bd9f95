package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/kiwi-insure/pkg/graph"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/logger"
)

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// statusFor maps pipeline errors onto HTTP status codes.
func statusFor(err error) int {
	var cerr *graph.ChunkingConfigurationError
	var perr *graph.ExtractionParseError
	switch {
	case errors.As(err, &cerr):
		return http.StatusBadRequest
	case errors.As(err, &perr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func failure(op string, err error) (int, errorResponse) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("[Server] "+op+" failed", "err", err)
		return status, errorResponse{Message: "Internal server error"}
	}
	return status, errorResponse{Message: op + " failed", Error: err.Error()}
}
