package model

import "strings"

// Role is the flat role enum stored in users.role. Roles are ordered
// USER < ADMIN < MASTER_ADMIN for authorization purposes; there is no
// inheritance beyond that ordering.
type Role string

const (
	RoleUser        Role = "USER"
	RoleAdmin       Role = "ADMIN"
	RoleMasterAdmin Role = "MASTER_ADMIN"
)

// ParseRole normalizes s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Rank returns the position of the role in the ordering, 0 for unknown roles.
func (r Role) Rank() int {
	switch r {
	case RoleUser:
		return 1
	case RoleAdmin:
		return 2
	case RoleMasterAdmin:
		return 3
	}
	return 0
}

func (r Role) Valid() bool { return r.Rank() > 0 }

// AtLeast reports whether r is a known role ranked at or above min.
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && r.Rank() >= min.Rank()
}

// BypassesProductGrants reports whether the role may read every product's
// content without a user_products row.
func (r Role) BypassesProductGrants() bool {
	return r.AtLeast(RoleAdmin)
}

func (r Role) String() string { return string(r) }
