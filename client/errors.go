package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuthenticationRequired is returned after the session could not be
	// refreshed. The session has already been logged out when it surfaces.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrRateLimited matches every 429 response. It is never retried here.
	ErrRateLimited = errors.New("too many requests, please try again shortly")
	ErrNetwork     = errors.New("network error, check your connection")
	// ErrTimeout also matches ErrNetwork.
	ErrTimeout = errors.New("request timed out")
)

// HTTPError is a non-2xx response. Message is the body's "message" field,
// or the status text when there is none.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

// Is makes a 429 HTTPError match ErrRateLimited.
func (e *HTTPError) Is(target error) bool {
	return target == ErrRateLimited && e.Status == http.StatusTooManyRequests
}
