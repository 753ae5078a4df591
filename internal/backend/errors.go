package backend

import (
	"fmt"
	"net/http"
	"time"
)

// Machine codes attached to errors this package synthesizes itself.
// Codes parsed from backend error bodies pass through verbatim.
const (
	CodePluginError  = "PLUGIN_ERROR"
	CodeUnknownError = "UNKNOWN_ERROR"
	CodeNetworkError = "NETWORK_ERROR"
)

const genericFailureMessage = "The music service is temporarily unavailable. Please try again in a moment."

// Error is the single failure type surfaced by this package. Every failure,
// whether a transport fault, a non-2xx response, or a foreign error, is
// classified into an *Error exactly once and never re-wrapped.
type Error struct {
	Message       string
	Status        int
	Code          string
	CorrelationID string

	// retryAfter carries the backend-declared retry interval for rate-limited
	// responses; retryAfterSet distinguishes a declared zero from no header.
	// Scheduling hints only, not part of the error's identity.
	retryAfter    time.Duration
	retryAfterSet bool
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend %s (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("backend HTTP %d: %s", e.Status, e.Message)
}

// IsClientError reports whether the error represents a request the backend
// rejected as malformed, forbidden, or targeting a missing entity. Client
// errors are never retried.
func (e *Error) IsClientError() bool {
	return e.Status >= 400 && e.Status <= 499
}

func (e *Error) IsServerError() bool {
	return e.Status >= 500
}

func (e *Error) IsAuthError() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

func (e *Error) IsRateLimited() bool {
	return e.Status == http.StatusTooManyRequests
}

// DisplayMessage returns text safe to show to the calling agent. Auth and
// server failures collapse to a fixed generic sentence so internal detail
// never leaks; rate-limit and other client failures carry the backend's own
// message, which is authored for display.
func (e *Error) DisplayMessage() string {
	if e.IsRateLimited() {
		return e.Message
	}
	if e.IsAuthError() || e.IsServerError() {
		return genericFailureMessage
	}
	return e.Message
}

// Wrap classifies an arbitrary error into an *Error. Wrapping is idempotent:
// an already-classified error is returned unchanged, so no failure is ever
// double-wrapped on its way up the stack.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	if be, ok := err.(*Error); ok {
		return be
	}
	return &Error{
		Message: err.Error(),
		Status:  http.StatusInternalServerError,
		Code:    CodePluginError,
	}
}

// retryable is the single policy decision the retry loop consults. Rate
// limiting, server faults, and transport faults qualify; every other client
// error fails fast because the request shape itself is wrong.
func retryable(e *Error) bool {
	return e.IsRateLimited() || e.IsServerError() || e.Code == CodeNetworkError
}
