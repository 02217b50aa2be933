package hue

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for Hue bridge operations.
//
//	if errors.Is(err, hue.ErrRateLimited) {
//	    // the bridge answered 429
//	}
var (
	// ErrNotConfigured indicates the bridge address or app key is missing.
	ErrNotConfigured = errors.New("hue: bridge address or app key not configured")

	// ErrRateLimited indicates the bridge rejected a request with HTTP 429.
	ErrRateLimited = errors.New("hue: rate limited")

	// ErrUnexpectedStatus indicates any other non-2xx response.
	ErrUnexpectedStatus = errors.New("hue: unexpected status")

	// ErrRequestFailed indicates the request never produced a response.
	ErrRequestFailed = errors.New("hue: request failed")

	// ErrMalformedFrame indicates an event stream line that is not valid JSON.
	ErrMalformedFrame = errors.New("hue: malformed event frame")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.StatusCode == http.StatusTooManyRequests {
		return "hue: rate limited (429)"
	}
	return fmt.Sprintf("hue: status %d: %s", e.StatusCode, e.Body)
}

// Unwrap lets errors.Is match ErrRateLimited or ErrUnexpectedStatus.
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	return ErrUnexpectedStatus
}
