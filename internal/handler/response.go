package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"delivery/internal/repository"
	"delivery/internal/service"
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
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrOrderNotAvailable):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidCustomerID),
		errors.Is(err, service.ErrInvalidOrderID),
		errors.Is(err, service.ErrInvalidDriverID),
		errors.Is(err, service.ErrInvalidPickupLocation),
		errors.Is(err, service.ErrInvalidDropLocation),
		errors.Is(err, service.ErrInvalidStopLocation),
		errors.Is(err, service.ErrInvalidVehicleTier),
		errors.Is(err, service.ErrInvalidPaymentMethod),
		errors.Is(err, service.ErrInvalidRating),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrPromoNotEligible):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrOrderTaken),
		errors.Is(err, service.ErrOrderNotDelivered):
		return http.StatusConflict

	// Forbidden/Business rule errors
	case errors.Is(err, service.ErrUnauthorized),
		errors.Is(err, service.ErrDriverNotEligible),
		errors.Is(err, service.ErrInvalidSignature):
		return http.StatusForbidden

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
