package provider

import (
	"errors"
	"fmt"
)

// Common errors returned by search providers.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("paper not found")

	// ErrRateLimited indicates the provider rejected the request with 429.
	ErrRateLimited = errors.New("provider rate limit exceeded")

	// ErrAuthError indicates a missing or invalid API key.
	ErrAuthError = errors.New("provider authentication error")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error communicating with provider")

	// ErrInvalidResponse indicates an unexpected provider response.
	ErrInvalidResponse = errors.New("invalid provider response")
)

// APIError represents an HTTP-level error from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s API error (status %d)", e.Provider, e.StatusCode)
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404
	}
	return false
}

// isRetryable reports whether a failed request is worth retrying with
// backoff. Auth failures, 4xx responses, and rate limits are not.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsRateLimited(err) || errors.Is(err, ErrAuthError) || IsNotFound(err) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return errors.Is(err, ErrNetworkError)
}
