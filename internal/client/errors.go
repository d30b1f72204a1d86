// ABOUTME: Error types returned by the API client
// ABOUTME: APIError carries the operation, status code, and server detail message

package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized matches any APIError with status 401.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound matches any APIError with status 404.
	ErrNotFound = errors.New("not found")
	// ErrNoToken is returned for authenticated operations when no session token exists.
	ErrNoToken = errors.New("no access token")
	// ErrInvalidResponse wraps responses that fail schema validation.
	ErrInvalidResponse = errors.New("invalid response")
	// ErrInvalidID is returned before any request when an ID would not stay
	// a single path segment.
	ErrInvalidID = errors.New("invalid id")
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Op         string
	StatusCode int
	// Detail is the server's detail message, or the operation's generic
	// failure message when the server sent none.
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Detail, e.StatusCode)
}

// Is lets errors.Is match status sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// Message returns the text shown to users for err: the server detail for API
// errors, the plain error text otherwise.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return err.Error()
}
