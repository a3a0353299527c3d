package session

import (
	"context"
	"time"

	"golang.org/x/oauth2"

	"github.com/cartomap/cartomap-client/apierr"
	"github.com/cartomap/cartomap-client/token"
)

// refreshAhead is how close to expiry the token source refreshes proactively
// instead of waiting for a 401.
const refreshAhead = 30 * time.Second

type tokenSource struct {
	ctx context.Context
	m   *Manager
}

// TokenSource adapts the managed session to oauth2.TokenSource so
// oauth2-aware libraries can consume its credentials. Tokens close to their
// exp claim are refreshed through the same single-flight coordinator the
// gateway uses.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, m: m}
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	snap := ts.m.Snapshot()
	if snap.AccessToken == "" {
		return nil, &apierr.AuthenticationError{Reason: "token source", Err: apierr.ErrNotAuthenticated}
	}

	access := snap.AccessToken
	if token.ExpiresWithin(access, refreshAhead) {
		refreshed, err := ts.m.EnsureRefreshed(ts.ctx)
		if err != nil {
			return nil, err
		}
		access = refreshed
	}

	tok := &oauth2.Token{AccessToken: access, TokenType: "Bearer"}
	if exp, err := token.Expiry(access); err == nil {
		tok.Expiry = exp
	}
	return tok, nil
}
