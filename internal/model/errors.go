package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for common cases.
// Use errors.Is() to check against these.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrTimeout         = errors.New("timeout")
	ErrNetwork         = errors.New("network failure")
	ErrUpstreamError   = errors.New("upstream error")
	ErrRateLimited     = errors.New("rate limited")
)

// APIError represents a structured error for API responses.
// Implements error interface and supports unwrapping.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"` // HTTP status, not serialized
	Err        error  `json:"-"` // Wrapped error, not serialized
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a 404 error for missing resources.
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
		Err:        ErrNotFound,
	}
}

// NewValidationError creates a 400 error for invalid input.
// The message is shown to shoppers as-is.
func NewValidationError(field, message string) *APIError {
	return &APIError{
		Code:       "VALIDATION_ERROR",
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        fmt.Errorf("%w: %s", ErrInvalidRequest, field),
	}
}

// NewUnauthenticatedError signals that the operation needs a logged-in user.
// Clients are expected to redirect to login.
func NewUnauthenticatedError(reason string) *APIError {
	return &APIError{
		Code:       "UNAUTHENTICATED",
		Message:    reason,
		StatusCode: http.StatusUnauthorized,
		Err:        ErrUnauthenticated,
	}
}

// NewTimeoutError creates a 504 error for calls that exceeded the upstream deadline.
func NewTimeoutError(operation string) *APIError {
	return &APIError{
		Code:       "TIMEOUT",
		Message:    fmt.Sprintf("%s timed out", operation),
		StatusCode: http.StatusGatewayTimeout,
		Err:        ErrTimeout,
	}
}

// NewNetworkError creates a 502 error for transport failures.
func NewNetworkError(message string, err error) *APIError {
	return &APIError{
		Code:       "NETWORK_FAILURE",
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Err:        fmt.Errorf("%w: %v", ErrNetwork, err),
	}
}

// NewUpstreamError creates an error for a non-2xx upstream response.
// Client errors keep their status, server errors surface as 502.
func NewUpstreamError(status int, message string) *APIError {
	code := http.StatusBadGateway
	if status >= 400 && status < 500 {
		code = status
	}
	return &APIError{
		Code:       "API_ERROR",
		Message:    message,
		StatusCode: code,
		Err:        fmt.Errorf("%w: status %d", ErrUpstreamError, status),
	}
}

// NewRateLimitError creates a 429 error for rate limiting.
func NewRateLimitError(message string) *APIError {
	return &APIError{
		Code:       "RATE_LIMITED",
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
		Err:        ErrRateLimited,
	}
}

// NewInternalError creates a 500 error for unexpected failures.
func NewInternalError(err error) *APIError {
	return &APIError{
		Code:       "INTERNAL_ERROR",
		Message:    "an internal error occurred",
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// KindOf returns a short label for err, used in logs and metric labels.
func KindOf(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidRequest):
		return "validation"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrUpstreamError):
		return "api"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}
