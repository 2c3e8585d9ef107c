package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"busline/internal/repository"
	"busline/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
// 4xx means a precondition failed and nothing was mutated; 5xx is reserved
// for unexpected storage or provider failures.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrUnknownReference):
		return http.StatusNotFound

	// Validation errors
	case errors.Is(err, service.ErrInvalidUserID),
		errors.Is(err, service.ErrInvalidTripID),
		errors.Is(err, service.ErrInvalidBookingID),
		errors.Is(err, service.ErrInvalidSeatSelection),
		errors.Is(err, service.ErrSeatCountMismatch),
		errors.Is(err, service.ErrInvalidStatus):
		return http.StatusBadRequest

	// Precondition failures on shared state
	case errors.Is(err, repository.ErrInsufficientCapacity),
		errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict

	// Authorization at the booking boundary
	case errors.Is(err, service.ErrNotAllowed):
		return http.StatusForbidden

	// External provider trouble
	case errors.Is(err, service.ErrPaymentProvider):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}
