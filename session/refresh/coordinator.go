// Package refresh collapses concurrent token-refresh demand into a single
// network call. Any number of requests can hit a 401 at once; exactly one
// redemption of the refresh token reaches the backend, and every caller
// shares its outcome.
package refresh

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/cartomap/cartomap-client/apierr"
	"github.com/cartomap/cartomap-client/authapi"
)

// API is the slice of the auth client the coordinator needs.
type API interface {
	Refresh(ctx context.Context, refreshToken string) (authapi.TokenPair, error)
}

// TokenSink receives refresh outcomes. The session manager satisfies it.
// SetTokens must persist before EnsureRefreshed returns, so a caller that
// replays its request immediately observes the new token; Logout must run
// before any waiter observes a failure.
type TokenSink interface {
	RefreshToken() string
	SetTokens(pair authapi.TokenPair) error
	Logout()
}

// Coordinator guarantees at most one in-flight refresh at a time.
type Coordinator struct {
	api   API
	sink  TokenSink
	group singleflight.Group
	log   zerolog.Logger
}

// Option modifies a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(api API, sink TokenSink, opts ...Option) *Coordinator {
	c := &Coordinator{api: api, sink: sink, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnsureRefreshed performs one refresh, or attaches to the refresh already
// in flight. The check for an in-flight attempt and the start of a new one
// are a single step under singleflight's lock; two near-simultaneous 401s
// can never both redeem the refresh token.
func (c *Coordinator) EnsureRefreshed(ctx context.Context) (authapi.TokenPair, error) {
	v, err, shared := c.group.Do("refresh", func() (any, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		return authapi.TokenPair{}, err
	}
	if shared {
		c.log.Debug().Msg("attached to in-flight token refresh")
	}
	return v.(authapi.TokenPair), nil
}

func (c *Coordinator) refresh(ctx context.Context) (authapi.TokenPair, error) {
	refreshToken := c.sink.RefreshToken()
	if refreshToken == "" {
		c.sink.Logout()
		return authapi.TokenPair{}, &apierr.AuthenticationError{Reason: "no refresh token", Err: apierr.ErrNoRefreshToken}
	}

	c.log.Debug().Msg("refreshing tokens")

	// A cancelled caller or a concurrent logout must not abort a flight
	// whose outcome other callers share.
	pair, err := c.api.Refresh(context.WithoutCancel(ctx), refreshToken)
	if err != nil {
		c.sink.Logout()
		if apierr.IsAuthentication(err) {
			return authapi.TokenPair{}, err
		}
		return authapi.TokenPair{}, &apierr.AuthenticationError{Reason: "token refresh failed", Err: err}
	}

	if pair.RefreshToken == "" {
		// Backend did not rotate the refresh token; keep the current one.
		pair.RefreshToken = refreshToken
	}
	if err := c.sink.SetTokens(pair); err != nil {
		c.sink.Logout()
		return authapi.TokenPair{}, &apierr.AuthenticationError{Reason: "persisting refreshed tokens", Err: err}
	}
	return pair, nil
}
