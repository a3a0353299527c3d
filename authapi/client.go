// Package authapi calls the backend's auth endpoints: login, refresh and
// identity. Login and refresh ride the gateway transport flagged as auth
// endpoints, so they share its transient retry behavior but are exempt from
// the refresh-and-replay path — a 401 here is final.
package authapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/cartomap/cartomap-client/apierr"
	"github.com/cartomap/cartomap-client/gateway"
)

// Doer is the transport contract, satisfied by *gateway.Gateway.
type Doer interface {
	Do(ctx context.Context, req gateway.Request) (*gateway.Response, error)
}

// Client issues auth endpoint calls over a Doer.
type Client struct {
	doer Doer
	log  zerolog.Logger
}

// Option modifies a Client.
type Option func(*Client)

// WithLogger sets the client's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates an auth API client.
func New(doer Doer, opts ...Option) *Client {
	c := &Client{doer: doer, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login exchanges credentials for a token pair. Rejected credentials surface
// as an AuthenticationError wrapping ErrInvalidCredentials.
func (c *Client) Login(ctx context.Context, creds Credentials) (TokenPair, error) {
	form := url.Values{}
	form.Set("username", creds.Username)
	form.Set("password", creds.Password)

	resp, err := c.doer.Do(ctx, gateway.Request{
		Method:       http.MethodPost,
		Path:         LoginPath,
		Body:         []byte(form.Encode()),
		ContentType:  "application/x-www-form-urlencoded",
		AuthEndpoint: true,
	})
	if err != nil {
		return TokenPair{}, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.log.Debug().Str("username", creds.Username).Msg("login rejected")
		return TokenPair{}, &apierr.AuthenticationError{Reason: "login rejected", Err: apierr.ErrInvalidCredentials}
	case !resp.OK():
		return TokenPair{}, &apierr.HTTPError{StatusCode: resp.StatusCode, Method: http.MethodPost, Path: LoginPath}
	}
	return decodePair(resp)
}

// Refresh redeems a refresh token for a new pair. A 401 means the refresh
// token itself has been consumed or expired; the session cannot recover
// without a fresh login.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return TokenPair{}, errors.Wrap(err, "encode refresh request")
	}

	resp, err := c.doer.Do(ctx, gateway.Request{
		Method:       http.MethodPost,
		Path:         RefreshPath,
		Body:         body,
		ContentType:  "application/json",
		AuthEndpoint: true,
	})
	if err != nil {
		return TokenPair{}, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return TokenPair{}, &apierr.AuthenticationError{Reason: "refresh token rejected", Err: apierr.ErrSessionExpired}
	case !resp.OK():
		return TokenPair{}, &apierr.HTTPError{StatusCode: resp.StatusCode, Method: http.MethodPost, Path: RefreshPath}
	}
	return decodePair(resp)
}

func decodePair(resp *gateway.Response) (TokenPair, error) {
	var pair TokenPair
	if err := resp.JSON(&pair); err != nil {
		return TokenPair{}, err
	}
	if pair.AccessToken == "" {
		return TokenPair{}, errors.New("token response missing access_token")
	}
	return pair, nil
}
