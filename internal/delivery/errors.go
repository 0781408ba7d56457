package delivery

import (
	"errors"
	"fmt"
)

// ErrGroupNotFound is returned when the backend does not know a group label.
var ErrGroupNotFound = errors.New("group not found")

// ErrReleased is the failure a transfer reports after Release aborted it.
var ErrReleased = errors.New("transfer released")

// NetworkError represents failures talking to the backend, including non-2xx
// responses and connection errors.
type NetworkError struct {
	Operation  string // The operation that failed (e.g., "fetch_catalog", "fetch_bundle")
	StatusCode int    // HTTP status code, if applicable (0 for non-HTTP errors)
	Message    string // Error message from the backend or network layer
	Err        error  // Underlying error, if any
}

func (e *NetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("network error during %s (HTTP %d): %s", e.Operation, e.StatusCode, e.Message)
	}

	return fmt.Sprintf("network error during %s: %s", e.Operation, e.Message)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// CatalogError represents a catalog that could not be decoded or is inconsistent.
type CatalogError struct {
	Source string // Where the catalog came from
	Reason string // Human-readable explanation
	Err    error  // Underlying error, if any
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("invalid catalog from %s: %s", e.Source, e.Reason)
}

func (e *CatalogError) Unwrap() error {
	return e.Err
}

// AuthenticationError represents authentication and authorization failures
// including 401 Unauthorized and 403 Forbidden responses.
type AuthenticationError struct {
	Operation string // The operation that required authentication
	Err       error  // Underlying error, if any
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed during %s", e.Operation)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}
