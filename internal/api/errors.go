// Package api provides HTTP handlers for the API.
package api

import (
	"errors"
	"net/http"

	"github.com/quillwiki/growthtasks/internal/service"
	"github.com/quillwiki/growthtasks/internal/store"
	"github.com/quillwiki/growthtasks/internal/suggester"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status
// codes based on the error type. This prevents leaking internal error
// types or messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Forbidden
	case errors.Is(err, service.ErrUserBlocked):
		return http.StatusForbidden

	// Not found errors
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, service.ErrAlreadySubmitted),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, service.ErrInvalidSubmission),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, suggester.ErrUnknownTaskType):
		return http.StatusBadRequest

	// Feature disabled by configuration
	case errors.Is(err, service.ErrTaskTypeNotConfigured),
		errors.Is(err, suggester.ErrNoTaskTypes):
		return http.StatusNotImplemented

	// Write attempted during a database failover
	case errors.Is(err, store.ErrReadOnly):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal
// details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, service.ErrUserBlocked):
		return "You are blocked from performing this action"

	case errors.Is(err, store.ErrRecommendationNotFound):
		return "No recommendation available for this page"

	case errors.Is(err, store.ErrPageNotFound):
		return "Page not found"

	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	case errors.Is(err, service.ErrAlreadySubmitted):
		return "This recommendation has already been submitted"

	case errors.Is(err, service.ErrInvalidSubmission):
		return "Submission does not match the stored recommendation"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request data"

	case errors.Is(err, suggester.ErrUnknownTaskType):
		return "Unknown task type"

	case errors.Is(err, suggester.ErrNoTaskTypes):
		return "No task types are configured"

	case errors.Is(err, service.ErrTaskTypeNotConfigured):
		return "Link recommendations are not configured"

	case errors.Is(err, store.ErrReadOnly):
		return "The service is temporarily read-only, try again later"

	default:
		return "An unexpected error occurred"
	}
}
