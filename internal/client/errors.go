package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrUnavailable indicates the server has no table loaded (HTTP 503).
	ErrUnavailable = errors.New("embedding service unavailable")

	// ErrRateLimited indicates the server rejected the request (HTTP 429).
	ErrRateLimited = errors.New("embedding service rate limit exceeded")

	// ErrBadRequest indicates the server rejected the input (HTTP 400).
	ErrBadRequest = errors.New("bad request")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error communicating with embedding service")
)

// APIError represents a non-2xx response.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("embedding service error (status %d): %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("embedding service error (status %d)", e.StatusCode)
}

// Unwrap maps well-known statuses onto the sentinel errors.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case 400:
		return ErrBadRequest
	case 429:
		return ErrRateLimited
	case 503:
		return ErrUnavailable
	}
	return nil
}
