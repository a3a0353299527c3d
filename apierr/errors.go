// Package apierr defines the error taxonomy surfaced by the request gateway
// and session layer. Callers branch on error kind with errors.Is/errors.As
// rather than inspecting raw HTTP statuses.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoRefreshToken     = errors.New("no refresh token available")
	ErrSessionExpired     = errors.New("session expired")
	ErrNotAuthenticated   = errors.New("not authenticated")
)

// AuthenticationError is an unrecoverable 401: invalid credentials, a failed
// refresh, or a repeat 401 after a successful refresh. By the time one of
// these reaches calling code the session has already been logged out.
type AuthenticationError struct {
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// PermissionError is a 403: the caller is authenticated but not authorized
// for the resource. Never mutates session state and is never retried.
type PermissionError struct {
	Method string
	Path   string
}

func (e *PermissionError) Error() string {
	if e.Method == "" && e.Path == "" {
		return "permission denied"
	}
	return fmt.Sprintf("permission denied: %s %s", e.Method, e.Path)
}

// HTTPError carries any other non-2xx response. Transient statuses are
// retried by the gateway before one of these surfaces.
type HTTPError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// Temporary reports whether the status is in the transient, retryable set.
func (e *HTTPError) Temporary() bool { return RetryableStatus(e.StatusCode) }

var retryableStatuses = map[int]bool{
	http.StatusRequestTimeout:        true,
	http.StatusRequestEntityTooLarge: true,
	http.StatusTooManyRequests:       true,
	http.StatusInternalServerError:   true,
	http.StatusBadGateway:            true,
	http.StatusServiceUnavailable:    true,
	http.StatusGatewayTimeout:        true,
}

// RetryableStatus reports whether a status code is worth retrying with
// backoff. 401 and 403 are deliberately excluded: they are handled by the
// refresh and permission paths, never by the retry loop.
func RetryableStatus(code int) bool {
	return retryableStatuses[code]
}

// IsRetryable reports whether err wraps a transient HTTP failure.
func IsRetryable(err error) bool {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Temporary()
	}
	return false
}

// IsAuthentication reports whether err is an unrecoverable authentication
// failure. The session is already anonymous when this returns true.
func IsAuthentication(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}

// IsPermission reports whether err is a 403 denial.
func IsPermission(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}
