// Package session owns the client's authentication state: the current token
// pair, the current user identity, and the transitions between anonymous and
// authenticated. All mutation is funneled through the Manager; no other
// component writes tokens or identity.
package session

import "github.com/cartomap/cartomap-client/identity"

// State is the session lifecycle position.
type State int

const (
	// StateUninitialized means bootstrap has not started; nothing is known
	// about the persisted tokens yet.
	StateUninitialized State = iota

	// StateInitializing means bootstrap is confirming a persisted token
	// against the backend. Callers should treat the session as indeterminate.
	StateInitializing

	// StateAuthenticated means a confirmed token pair and user are loaded.
	StateAuthenticated

	// StateAnonymous means no valid session exists.
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of the session at one point in time.
// Invariant: Authenticated implies AccessToken is non-empty.
type Snapshot struct {
	AccessToken   string
	RefreshToken  string
	User          *identity.UserIdentity
	Authenticated bool
	Initialized   bool
	State         State
}
