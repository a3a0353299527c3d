package token_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/cartomap/cartomap-client/token"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestExpiryReadsExpClaim(t *testing.T) {
	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	tok := signedToken(t, jwt.MapClaims{"sub": "user-1", "exp": exp.Unix()})

	got, err := token.Expiry(tok)
	require.NoError(t, err)
	require.True(t, got.Equal(exp))
}

func TestExpiryWithoutExpClaim(t *testing.T) {
	tok := signedToken(t, jwt.MapClaims{"sub": "user-1"})
	_, err := token.Expiry(tok)
	require.Error(t, err)
}

func TestExpiryOpaqueToken(t *testing.T) {
	_, err := token.Expiry("not-a-jwt")
	require.Error(t, err)
}

func TestExpiresWithin(t *testing.T) {
	now := time.Now()
	token.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { token.NowTimeFunc = time.Now })

	soon := signedToken(t, jwt.MapClaims{"exp": now.Add(10 * time.Second).Unix()})
	later := signedToken(t, jwt.MapClaims{"exp": now.Add(10 * time.Minute).Unix()})

	require.True(t, token.ExpiresWithin(soon, 30*time.Second))
	require.False(t, token.ExpiresWithin(later, 30*time.Second))

	// Opaque tokens report false: expiry is discovered via 401 instead.
	require.False(t, token.ExpiresWithin("opaque", 30*time.Second))
}
