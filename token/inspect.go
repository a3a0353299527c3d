// Package token inspects access tokens on the client side. The client holds
// no signing keys, so claims are read without verification; they are hints
// for refresh-ahead scheduling, never authorization decisions.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

var parser = jwt.NewParser()

// Expiry extracts the exp claim of a JWT access token.
func Expiry(accessToken string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, errors.Wrap(err, "parse access token")
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, errors.Wrap(err, "read exp claim")
	}
	if exp == nil {
		return time.Time{}, errors.New("access token has no exp claim")
	}
	return exp.Time, nil
}

// ExpiresWithin reports whether the token expires within d. Opaque tokens
// report false: their expiry is only discoverable through a 401.
func ExpiresWithin(accessToken string, d time.Duration) bool {
	exp, err := Expiry(accessToken)
	if err != nil {
		return false
	}
	return exp.Sub(NowTimeFunc()) <= d
}
