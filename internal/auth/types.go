package auth

import "errors"

// Role represents an authorisation tier.
type Role string

const (
	// RoleViewer may read the catalogue: query, facets, stats and exports.
	RoleViewer Role = "viewer"

	// RoleOperator may additionally reload the catalogue from its source.
	RoleOperator Role = "operator"

	// RoleAdmin may additionally change the search fields and read load history.
	RoleAdmin Role = "admin"
)

// ValidRoles lists every role a token may carry.
var ValidRoles = []Role{RoleViewer, RoleOperator, RoleAdmin}

// IsValidRole returns true if r is a known role.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Sentinel errors for auth operations.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrInvalidRole  = errors.New("invalid role")
	ErrForbidden    = errors.New("insufficient permissions")
)
