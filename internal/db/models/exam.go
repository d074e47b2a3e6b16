// Package models - exam.go defines the proctoring records: completions and
// violations. Both are append-only.
package models

import "time"

// Completion reasons
const (
	CompletionReasonStudent = "Student completed it"
	CompletionReasonPolicy  = "Course policy violated"
)

// Violation types accepted out of the box. The set is configurable.
const (
	ViolationCopyPaste = "COPY_PASTE_VIOLATION"
	ViolationTab       = "TAB_VIOLATION"
)

// ExamCompletion records that a student has finished an exam. At most one per
// (exam, student); never updated or deleted.
type ExamCompletion struct {
	ExamID    string    `db:"exam_id" json:"exam_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Reason    string    `db:"reason" json:"reason"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsPolicyViolation reports whether the completion was forced by the violation limit
func (c *ExamCompletion) IsPolicyViolation() bool {
	return c.Reason == CompletionReasonPolicy
}

// ExamViolation is one reported cheating event
type ExamViolation struct {
	ID            string    `db:"id" json:"id"`
	ExamID        string    `db:"exam_id" json:"exam_id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	AssignmentID  string    `db:"assignment_id" json:"assignment_id"`
	ViolationType string    `db:"violation_type" json:"violation_type"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// ReasonCount is one row of a completions-by-reason summary
type ReasonCount struct {
	ExamID string `db:"exam_id"`
	Reason string `db:"reason"`
	Count  int    `db:"count"`
}

// TypeCount is one row of a violations-by-type summary
type TypeCount struct {
	ViolationType string `db:"violation_type"`
	Count         int    `db:"count"`
}
