package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/cartomap/cartomap-client/apierr"
	"github.com/cartomap/cartomap-client/tokenstore"
	"github.com/cartomap/cartomap-client/tokenstore/storefakes"
)

func jwtExpiring(t *testing.T, in time.Duration) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(in).Unix(),
	}).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return signed
}

func TestTokenSourceReturnsCurrentToken(t *testing.T) {
	access := jwtExpiring(t, time.Hour)
	b := validBackend()
	b.validAccess = access
	store := storefakes.NewFakeStore()
	require.NoError(t, store.Set(tokenstore.Tokens{AccessToken: access, RefreshToken: "refresh-1"}))
	f := setup(t, b, store)

	tok, err := f.mgr.TokenSource(context.Background()).Token()
	require.NoError(t, err)
	require.Equal(t, access, tok.AccessToken)
	require.Equal(t, "Bearer", tok.TokenType)
	require.False(t, tok.Expiry.IsZero())

	refreshCalls, _ := b.counts()
	require.Zero(t, refreshCalls)
}

func TestTokenSourceRefreshesNearExpiry(t *testing.T) {
	stale := jwtExpiring(t, 5*time.Second)
	fresh := jwtExpiring(t, time.Hour)
	b := &backend{
		validAccess:  stale,
		validRefresh: "refresh-1",
		nextAccess:   fresh,
		nextRefresh:  "refresh-2",
	}
	store := storefakes.NewFakeStore()
	require.NoError(t, store.Set(tokenstore.Tokens{AccessToken: stale, RefreshToken: "refresh-1"}))
	f := setup(t, b, store)

	tok, err := f.mgr.TokenSource(context.Background()).Token()
	require.NoError(t, err)
	require.Equal(t, fresh, tok.AccessToken)

	refreshCalls, _ := b.counts()
	require.Equal(t, 1, refreshCalls)
	require.Equal(t, fresh, f.store.Get().AccessToken)
}

func TestTokenSourceWithoutSession(t *testing.T) {
	f := setup(t, validBackend(), nil)

	_, err := f.mgr.TokenSource(context.Background()).Token()
	require.True(t, apierr.IsAuthentication(err))
	require.ErrorIs(t, err, apierr.ErrNotAuthenticated)
}
