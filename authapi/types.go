package authapi

// Backend auth endpoint paths.
const (
	LoginPath   = "/auth/login"
	RefreshPath = "/auth/refresh"
	MePath      = "/auth/me"
)

// TokenPair is the response of the login and refresh endpoints.
// It is persisted immediately and then discarded; the token store and
// session are the only retained copies.
type TokenPair struct {
	// AccessToken is the short-lived credential sent as the bearer header.
	AccessToken string `json:"access_token"`

	// RefreshToken is the longer-lived credential redeemed for a new pair.
	// May be empty on refresh responses when the backend does not rotate it.
	RefreshToken string `json:"refresh_token,omitempty"`

	// TokenType is "bearer" in practice.
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the access token lifetime in seconds. A hint only; the
	// authoritative expiry is the token's exp claim.
	ExpiresIn int `json:"expires_in,omitempty"`
}

// Credentials are the form fields of the login endpoint.
type Credentials struct {
	Username string
	Password string
}
