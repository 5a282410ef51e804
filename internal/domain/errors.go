package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for domain operations
var (
	// ErrNotFound indicates the requested entity does not exist
	ErrNotFound = errors.New("entity not found")

	// ErrServerOffline indicates the backend is unreachable
	ErrServerOffline = errors.New("backend is unreachable")

	// ErrAuthFailed indicates the bearer token was missing or rejected
	ErrAuthFailed = errors.New("authentication token is invalid")

	// ErrVersionConflict indicates an update carried a stale version counter
	ErrVersionConflict = errors.New("entity was modified by someone else")
)

// CodeVersionConflict is the structured code the backend sends with a 409.
const CodeVersionConflict = "VERSION_CONFLICT"

// NetworkError is a transport failure: the request never produced a response.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Is lets callers test any transport failure against ErrServerOffline.
func (e *NetworkError) Is(target error) bool { return target == ErrServerOffline }

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status code: %d", e.Status)
	}
	return e.Message
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrVersionConflict:
		return e.Code == CodeVersionConflict || e.Status == http.StatusConflict
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrAuthFailed:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	}
	return false
}

// ValidationError is a client-side rejection of an input; it never reaches
// the cache layer.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
