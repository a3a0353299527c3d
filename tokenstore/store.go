// Package tokenstore persists the access/refresh token pair across process
// restarts. It is pure storage: no network access, no knowledge of token
// contents.
package tokenstore

// Tokens is the persisted fragment. Either field may be empty.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Empty reports whether neither token is present.
func (t Tokens) Empty() bool {
	return t.AccessToken == "" && t.RefreshToken == ""
}

// Store is the persistence contract for the current token pair. Set replaces
// both tokens as one operation; a reader never observes one updated and the
// other stale.
type Store interface {
	Get() Tokens
	Set(tokens Tokens) error
	Clear() error
}
