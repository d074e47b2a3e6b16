// Package models - access_identifier.go defines the opaque identifier a client
// exchanges for a session token.
package models

import "time"

// AccessIdentifier binds an opaque, client-facing secret to exactly one user.
// Both the identifier and the user id are unique.
type AccessIdentifier struct {
	Identifier string    `db:"identifier" json:"identifier"`
	UserID     string    `db:"user_id" json:"user_id"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
