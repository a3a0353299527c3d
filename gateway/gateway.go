// Package gateway is the single path through which the client talks to the
// backend. It attaches the bearer credential, retries transient failures
// with backoff, and on session expiry coordinates one refresh-and-replay
// attempt before surfacing a typed error.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/cartomap/cartomap-client/apierr"
	"github.com/cartomap/cartomap-client/internal/config"
	"github.com/cartomap/cartomap-client/tokenstore"
)

// SessionProvider is the gateway's view of the session layer: it can demand
// a refreshed access token and force a logout. The concrete session manager
// satisfies it; the gateway never imports the session package, which keeps
// the dependency between the two one-directional.
type SessionProvider interface {
	// EnsureRefreshed returns a freshly refreshed access token, collapsing
	// concurrent demand into a single refresh call. On failure the session
	// has already been logged out.
	EnsureRefreshed(ctx context.Context) (string, error)

	// Logout synchronously clears the session. Idempotent.
	Logout()
}

// Gateway wraps every outbound call to the backend.
type Gateway struct {
	baseURL    string
	client     *http.Client
	store      tokenstore.Store
	session    SessionProvider
	maxRetries int
	retryBase  time.Duration
	retryMax   time.Duration
	log        zerolog.Logger
	metrics    *Metrics
}

// Option modifies a Gateway.
type Option func(*Gateway)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) { g.client = client }
}

// WithLogger sets the gateway's logger. Defaults to a no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(g *Gateway) { g.log = log }
}

// WithMetrics enables prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// New creates a Gateway. The session provider is supplied at construction
// time; passing nil is only valid for callers that never issue authenticated
// requests.
func New(cfg config.Config, store tokenstore.Store, session SessionProvider, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL:    cfg.GetBaseURL(),
		client:     &http.Client{Timeout: cfg.GetRequestTimeout()},
		store:      store,
		session:    session,
		maxRetries: cfg.GetMaxRetries(),
		retryBase:  cfg.GetRetryBaseDelay(),
		retryMax:   cfg.GetRetryMaxDelay(),
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Do sends one request and maps the outcome onto the apierr taxonomy.
// Authenticated requests that come back 401 trigger exactly one refresh and
// one replay; a second 401 is a hard authentication failure and logs the
// session out.
func (g *Gateway) Do(ctx context.Context, req Request) (*Response, error) {
	reqID := uuid.NewString()

	token := ""
	if req.RequiresAuth {
		token = g.store.Get().AccessToken
	}

	resp, err := g.send(ctx, req, reqID, token)
	if err != nil {
		return nil, err
	}

	if req.AuthEndpoint {
		// Login/refresh responses pass through untouched: their failures are
		// classified by the auth API client and must never re-enter the
		// refresh path.
		g.count(req.Method, resp.StatusCode)
		return resp, nil
	}

	if resp.StatusCode == http.StatusUnauthorized && req.RequiresAuth {
		g.log.Debug().Str("request_id", reqID).Str("path", req.Path).Msg("access token rejected, refreshing")
		if g.metrics != nil {
			g.metrics.RefreshTriggers.Inc()
		}

		newToken, err := g.session.EnsureRefreshed(ctx)
		if err != nil {
			g.countAuthFailure()
			return nil, err
		}

		retry, err := g.send(ctx, req, reqID, newToken)
		if err != nil {
			return nil, err
		}
		if retry.StatusCode == http.StatusUnauthorized {
			// The backend rejected a token it just issued. Retrying further
			// only amplifies load; drop the session instead.
			g.session.Logout()
			g.countAuthFailure()
			return nil, &apierr.AuthenticationError{Reason: fmt.Sprintf("%s %s unauthorized after token refresh", req.Method, req.Path)}
		}
		return g.finish(req, retry)
	}

	return g.finish(req, resp)
}

// GetJSON issues an authenticated GET and decodes the 2xx body into out.
func (g *Gateway) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := g.Do(ctx, Request{
		Method:       http.MethodGet,
		Path:         path,
		Query:        query,
		RequiresAuth: true,
	})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.JSON(out)
}

// PostJSON issues an authenticated POST with a JSON body and decodes the 2xx
// body into out when non-nil.
func (g *Gateway) PostJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "encode request body")
	}
	resp, err := g.Do(ctx, Request{
		Method:       http.MethodPost,
		Path:         path,
		Body:         body,
		ContentType:  "application/json",
		RequiresAuth: true,
	})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.JSON(out)
}

func (g *Gateway) finish(req Request, resp *Response) (*Response, error) {
	g.count(req.Method, resp.StatusCode)
	switch {
	case resp.OK():
		return resp, nil
	case resp.StatusCode == http.StatusForbidden:
		// Authenticated but not authorized. Session state stays untouched.
		return nil, &apierr.PermissionError{Method: req.Method, Path: req.Path}
	default:
		return nil, &apierr.HTTPError{
			StatusCode: resp.StatusCode,
			Method:     req.Method,
			Path:       req.Path,
			Body:       snippet(resp.Body),
		}
	}
}

// send performs the request, replaying transient failures with exponential
// backoff for retryable requests. When retries are exhausted on a transient
// status the last response is returned for the caller to map; transport
// errors surface wrapped.
func (g *Gateway) send(ctx context.Context, req Request, reqID, token string) (*Response, error) {
	var last *Response

	operation := func() error {
		resp, err := g.roundTrip(ctx, req, reqID, token)
		if err != nil {
			if !req.retryable() {
				return backoff.Permanent(err)
			}
			g.noteRetry(req, reqID, err.Error())
			return err
		}
		last = resp
		if apierr.RetryableStatus(resp.StatusCode) && req.retryable() {
			g.noteRetry(req, reqID, strconv.Itoa(resp.StatusCode))
			return errors.Errorf("transient status %d", resp.StatusCode)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = g.retryBase
	bo.MaxInterval = g.retryMax

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(g.maxRetries)), ctx))
	if err != nil {
		if last != nil {
			return last, nil
		}
		return nil, errors.Wrapf(err, "%s %s", req.Method, req.Path)
	}
	return last, nil
}

func (g *Gateway) roundTrip(ctx context.Context, req Request, reqID, token string) (*Response, error) {
	u := g.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	httpReq.Header.Set("X-Request-ID", reqID)
	if req.RequiresAuth && token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (g *Gateway) noteRetry(req Request, reqID, cause string) {
	g.log.Warn().Str("request_id", reqID).Str("path", req.Path).Str("cause", cause).Msg("retrying request")
	if g.metrics != nil {
		g.metrics.Retries.Inc()
	}
}

func (g *Gateway) count(method string, status int) {
	if g.metrics != nil {
		g.metrics.Requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	}
}

func (g *Gateway) countAuthFailure() {
	if g.metrics != nil {
		g.metrics.AuthFailures.Inc()
	}
}

func snippet(body []byte) string {
	const max = 256
	if len(body) > max {
		body = body[:max]
	}
	return string(body)
}
