// Package models - user.go defines the persisted people of an exam: cohorts,
// students and staff.
package models

import "time"

// Cohort groups students that sit the same exam
type Cohort struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Student is a user with the STUDENT role
type Student struct {
	ID         string    `db:"id" json:"id"`
	FirstName  string    `db:"first_name" json:"first_name"`
	LastName   string    `db:"last_name" json:"last_name"`
	Email      string    `db:"email" json:"email"`
	Identifier string    `db:"identifier" json:"identifier"` // institutional student number
	CohortID   *string   `db:"cohort_id" json:"cohort_id,omitempty"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Identity returns the resolved identity for the student
func (s *Student) Identity() Identity {
	return Identity{ID: s.ID, Role: RoleStudent}
}

// Staff is a user with the STAFF role
type Staff struct {
	ID        string    `db:"id" json:"id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Identity returns the resolved identity for the staff member
func (s *Staff) Identity() Identity {
	return Identity{ID: s.ID, Role: RoleStaff}
}
