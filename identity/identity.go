package identity

import "time"

// RoleType represents a user's role on the backend
type RoleType string

const (
	RoleAdmin   RoleType = "admin"   // Can manage users and run data imports
	RoleAnalyst RoleType = "analyst" // Can upload boundaries and build profiles
	RoleViewer  RoleType = "viewer"  // Read-only access to maps and tables
)

// UserIdentity is the identity document returned by the auth/me endpoint.
// It is replaced wholesale on every successful fetch, never partially mutated.
type UserIdentity struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Role        RoleType   `json:"role"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// IsAdmin reports whether the user can perform administrative actions.
func (u UserIdentity) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanEdit reports whether the user may modify backend data.
func (u UserIdentity) CanEdit() bool {
	return u.Role == RoleAdmin || u.Role == RoleAnalyst
}
