package domain

import "strings"

const (
	RoleUser       = "User"
	RoleAdmin      = "Admin"
	RoleSuperAdmin = "SuperAdmin"
)

// Roles lists the closed set of role names in seeding order.
var Roles = []string{RoleAdmin, RoleUser, RoleSuperAdmin}

// Role is a named role record. Roles are created lazily on first reference.
type Role struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	NormalizedName string `json:"-"`
}

// IsValidRole is an exact, case-sensitive match against the closed role set.
func IsValidRole(name string) bool {
	switch name {
	case RoleAdmin, RoleUser, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// NormalizeRoleName folds a role name for the unique index on role records.
func NormalizeRoleName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
