// Package transcribe talks to the remote speech backend: one retried
// transcribe-and-translate call and a single-shot liveness probe.
package transcribe

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the three user-facing failure categories plus caller errors.
var (
	// ErrInvalidAudio indicates the caller supplied no usable audio; no request was made.
	ErrInvalidAudio = errors.New("invalid audio handle")

	// ErrNetworkUnreachable indicates the backend could not be reached.
	ErrNetworkUnreachable = errors.New("backend unreachable")

	// ErrTimeout indicates the backend did not answer within the request timeout.
	ErrTimeout = errors.New("backend timed out")

	// ErrServer indicates the backend answered with a non-2xx status or an unreadable body.
	ErrServer = errors.New("backend server error")
)

// NetworkError is returned when the transport failed before any response arrived.
type NetworkError struct {
	BaseURL string
	Err     error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("Cannot reach backend at %s. Please ensure:\n"+
		"1. The backend is running\n"+
		"2. This device has network connectivity\n"+
		"3. The configured backend URL is correct (currently: %s)", e.BaseURL, e.BaseURL)
}

// Unwrap returns ErrNetworkUnreachable.
func (e *NetworkError) Unwrap() error {
	return ErrNetworkUnreachable
}

// TimeoutError is returned when one attempt exceeded the request timeout.
type TimeoutError struct {
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Backend is taking too long to respond (no answer after %s). "+
		"The server may be overloaded or the recording may be too large.", e.Timeout)
}

// Unwrap returns ErrTimeout.
func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}

// APIError represents a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("Server error %d: %s", e.StatusCode, e.Body)
}

// Unwrap returns ErrServer.
func (e *APIError) Unwrap() error {
	return ErrServer
}

// IsClientError reports whether the backend rejected the request itself.
func (e *APIError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// Category names the user-facing class of err, used for logs and metrics.
func Category(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidAudio):
		return "invalid_audio"
	case errors.Is(err, ErrNetworkUnreachable):
		return "network"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrServer):
		return "server"
	default:
		return "other"
	}
}
