package auth

import (
	"errors"

	"github.com/platinummonkey/spkrepo/pkg/models"
	"github.com/platinummonkey/spkrepo/pkg/storage"
)

var (
	// ErrNotFound is returned for unknown users, wrong passwords, users
	// without roles and unknown or expired reset tokens. The cases are
	// deliberately indistinguishable.
	ErrNotFound = storage.ErrNotFound
	// ErrWeakPassword is returned when a new password is too short or too
	// long to be hashed
	ErrWeakPassword = errors.New("unacceptable password")
	// ErrInvalidToken is returned when a session or state token fails
	// verification
	ErrInvalidToken = errors.New("invalid token")
)

// Role names with special meaning to the API
const (
	RoleAdmin        = "admin"
	RolePackageAdmin = "package_admin"
	RoleDeveloper    = "developer"
)

// Method is how a request was authenticated
type Method string

const (
	MethodSession Method = "session"
	MethodAPIKey  Method = "api_key"
)

// Credentials identify a user at login. Email takes precedence over
// Username when both are set.
type Credentials struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// AuthContext holds the authenticated principal of a request
type AuthContext struct {
	UserID   int64
	Username string
	Roles    []string
	Method   Method
}

// HasRole reports whether the principal holds role
func (ac *AuthContext) HasRole(role string) bool {
	if ac == nil {
		return false
	}
	for _, r := range ac.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RoleNames returns the names of roles in order
func RoleNames(roles []models.Role) []string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.Name
	}
	return names
}
