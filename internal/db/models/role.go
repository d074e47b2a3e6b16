// Package models - role.go defines the closed set of roles a caller can hold and
// the resolved identity that flows from the token layer into handlers.
package models

// Role is the capability attached to a user at identity lookup
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleStaff   Role = "STAFF"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleStaff
}

func (r Role) String() string { return string(r) }

// Identity is the resolved caller: a user id and its role
type Identity struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// IsStaff reports whether the identity holds the staff role
func (i Identity) IsStaff() bool { return i.Role == RoleStaff }
