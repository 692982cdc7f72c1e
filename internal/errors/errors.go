// Package errors provides structured error types for the assistant core.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrMissingCredentials = errors.New("model credentials not configured")
	ErrAuthExpired        = errors.New("calendar authorization expired")
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrTimeout            = errors.New("operation timed out")
	ErrRateLimit          = errors.New("rate limit exceeded")
	ErrUnavailable        = errors.New("service unavailable")
)

// APIError represents an error from an external API call.
type APIError struct {
	Service    string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s API error (status %d): %s: %v", e.Service, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// NewAPIError creates a new API error.
func NewAPIError(service string, statusCode int, message string) *APIError {
	return &APIError{Service: service, StatusCode: statusCode, Message: message}
}

// IsAuthError returns true if the error means the caller's credentials were
// rejected or have expired (401-class responses).
func IsAuthError(err error) bool {
	if errors.Is(err, ErrAuthExpired) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 401 || apiErr.StatusCode == 403
	}
	return false
}

// IsRetryable returns true if the error is likely transient and worth retrying.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimit) || errors.Is(err, ErrUnavailable)
}
