package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lumenlearn/lumen-api/internal/delivery"
	"github.com/lumenlearn/lumen-api/internal/domain"
	"github.com/lumenlearn/lumen-api/internal/queue"
	"github.com/lumenlearn/lumen-api/internal/service/auth"
	"github.com/lumenlearn/lumen-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid):
		return http.StatusUnauthorized

	// Not found errors
	case errors.Is(err, queue.ErrJobNotFound),
		errors.Is(err, queue.ErrUnknownQueue),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, queue.ErrJobTerminal),
		errors.Is(err, queue.ErrJobNotFailed),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, queue.ErrUnknownJobType),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, delivery.ErrMissingMessageID),
		errors.Is(err, delivery.ErrUnknownEventType):
		return http.StatusBadRequest

	// Webhook events that reference a delivery in the wrong state
	case errors.Is(err, delivery.ErrNotCompleted),
		errors.Is(err, delivery.ErrInvalidTransition):
		return http.StatusUnprocessableEntity

	// Shutdown in progress
	case errors.Is(err, queue.ErrManagerClosed):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid):
		return "Invalid token"

	case errors.Is(err, queue.ErrJobNotFound):
		return "Job not found"

	case errors.Is(err, queue.ErrUnknownQueue):
		return "Unknown queue"

	case errors.Is(err, queue.ErrUnknownJobType):
		return "Unknown job type"

	case errors.Is(err, queue.ErrJobTerminal):
		return "Job already finished"

	case errors.Is(err, queue.ErrJobNotFailed):
		return "Job is not in a failed state"

	case errors.Is(err, queue.ErrManagerClosed):
		return "Service is shutting down"

	case errors.Is(err, delivery.ErrMissingMessageID):
		return "Event is missing a message id"

	case errors.Is(err, delivery.ErrUnknownEventType):
		return "Unknown event type"

	case errors.Is(err, delivery.ErrNotCompleted),
		errors.Is(err, delivery.ErrInvalidTransition):
		return "Event conflicts with delivery state"

	case errors.Is(err, store.ErrDuplicate):
		return "Resource already exists"

	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	// Validator messages look like:
	// "Key: 'EnqueueRequest.QueueName' Error:Field validation for 'QueueName' failed on the 'required' tag"
	if strings.Contains(errMsg, "Field validation") {
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}

				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "email":
		return "invalid email format"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	case "gte", "gt":
		return "too small"
	case "lte", "lt":
		return "too large"
	default:
		return "validation failed"
	}
}
