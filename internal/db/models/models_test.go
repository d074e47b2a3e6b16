package models

import "testing"

// ---------------------------------------------------------------------------
// Role
// ---------------------------------------------------------------------------

func TestRole_Valid(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleStudent, true},
		{RoleStaff, true},
		{"ADMIN", false},
		{"student", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := tt.role.Valid(); got != tt.want {
			t.Errorf("Role(%q).Valid() = %v, want %v", tt.role, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Identity
// ---------------------------------------------------------------------------

func TestStudentIdentity(t *testing.T) {
	s := &Student{ID: "s-1"}
	id := s.Identity()
	if id.ID != "s-1" || id.Role != RoleStudent {
		t.Errorf("Identity() = %+v", id)
	}
	if id.IsStaff() {
		t.Error("student identity must not be staff")
	}
}

func TestStaffIdentity(t *testing.T) {
	s := &Staff{ID: "t-1"}
	id := s.Identity()
	if id.ID != "t-1" || id.Role != RoleStaff {
		t.Errorf("Identity() = %+v", id)
	}
	if !id.IsStaff() {
		t.Error("staff identity must be staff")
	}
}

// ---------------------------------------------------------------------------
// ExamCompletion
// ---------------------------------------------------------------------------

func TestExamCompletion_IsPolicyViolation(t *testing.T) {
	if (&ExamCompletion{Reason: CompletionReasonStudent}).IsPolicyViolation() {
		t.Error("student completion reported as policy violation")
	}
	if !(&ExamCompletion{Reason: CompletionReasonPolicy}).IsPolicyViolation() {
		t.Error("policy completion not reported as policy violation")
	}
}
