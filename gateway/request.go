package gateway

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

// Request describes one outbound call. Body is a byte slice rather than a
// reader so the gateway can replay the request after a token refresh or a
// transient failure.
type Request struct {
	Method      string
	Path        string // resolved against the configured base URL
	Query       url.Values
	Header      http.Header
	Body        []byte
	ContentType string

	// RequiresAuth attaches the stored bearer token and enables the
	// refresh-and-retry path on 401.
	RequiresAuth bool

	// AuthEndpoint marks the login/refresh calls themselves. Their responses
	// pass through with no status mapping, so a 401 from the refresh endpoint
	// can never trigger another refresh.
	AuthEndpoint bool

	// RetryNonIdempotent opts a write into the transient retry loop. By
	// default only GET, HEAD and OPTIONS are replayed on 5xx/429/408/413,
	// since a retried write may be applied twice.
	RetryNonIdempotent bool
}

func (r Request) retryable() bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return r.RetryNonIdempotent
}

// Response is the materialized backend reply. The body has been fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errors.Wrap(err, "decode response body")
	}
	return nil
}
