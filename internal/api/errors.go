package api

import (
	"fmt"
	"time"

	"github.com/wanicli/wani/internal/wanidata"
)

// TransportError means no usable response was obtained: connection
// failure, timeout, or a truncated body. Retryable on the next run.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AuthError means the token was rejected. Fatal for the whole run: every
// other request would fail the same way.
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("HTTP %d: unauthorized; check that the access token is correct and has not expired", e.Status)
}

// RateLimitError means the server throttled the request. Scoped to the
// resource class being fetched; other classes may still proceed. Limit is
// nil when the server omitted the RateLimit-* headers.
type RateLimitError struct {
	Limit *wanidata.RateLimit
}

func (e *RateLimitError) Error() string {
	if e.Limit != nil {
		return fmt.Sprintf("rate limit exceeded; resets at %s",
			time.Unix(e.Limit.Reset, 0).UTC().Format(time.RFC3339))
	}
	return "rate limit exceeded"
}

// HTTPError is any other non-success status.
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP status code %d", e.Status)
}
