// Package services implements the proctoring rules that span the catalog, the
// completion and violation records, and the audit trail: who may still access
// an exam, how an exam is completed, and when accumulated violations eject a
// student.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/hogwarts-exams/proctor/internal/apierr"
	"github.com/hogwarts-exams/proctor/internal/audit"
	"github.com/hogwarts-exams/proctor/internal/catalog"
	"github.com/hogwarts-exams/proctor/internal/db/models"
	"github.com/hogwarts-exams/proctor/internal/telemetry"
)

// CompletionStore reads and creates completion records. Create reports false
// when a completion for the (exam, student) pair already exists.
type CompletionStore interface {
	Get(ctx context.Context, examID, studentID string) (*models.ExamCompletion, error)
	Create(ctx context.Context, c *models.ExamCompletion) (bool, error)
}

// ViolationRecorder appends a violation and, when the limit is reached, records
// the policy completion in the same unit of work. It reports whether this call
// created the completion.
type ViolationRecorder interface {
	RecordWithThreshold(ctx context.Context, v *models.ExamViolation, limit int) (bool, error)
}

// ViolationReport is the body of a violation report
type ViolationReport struct {
	AssignmentID  string `json:"assignment_id" binding:"required"`
	ViolationType string `json:"violation_type" binding:"required,violation_type"`
}

// Tracker enforces exam access, completion and the violation limit
type Tracker struct {
	completions CompletionStore
	violations  ViolationRecorder
	catalog     *catalog.Catalog
	limit       int
	types       []string
	shipper     audit.Shipper
}

// NewTracker creates a Tracker. limit is the number of violations per assignment
// that ends the exam for a student; types is the accepted set of violation types.
func NewTracker(completions CompletionStore, violations ViolationRecorder, cat *catalog.Catalog, limit int, types []string, shipper audit.Shipper) *Tracker {
	return &Tracker{
		completions: completions,
		violations:  violations,
		catalog:     cat,
		limit:       limit,
		types:       types,
		shipper:     shipper,
	}
}

// ExamForCaller returns the exam if examID names the active exam and the caller
// may still access it. Students with a completion record are refused; staff are
// never refused.
func (t *Tracker) ExamForCaller(ctx context.Context, examID string, identity models.Identity) (*catalog.Exam, error) {
	exam, err := t.catalog.ExamByID(examID)
	if err != nil {
		return nil, err
	}
	if identity.IsStaff() {
		return exam, nil
	}

	completion, err := t.completions.Get(ctx, exam.ID, identity.ID)
	if err != nil {
		return nil, err
	}
	if completion != nil {
		return nil, apierr.ErrExamCompleted
	}
	return exam, nil
}

// CompleteExam records that a student finished the exam. A second call for the
// same exam fails with a conflict.
func (t *Tracker) CompleteExam(ctx context.Context, examID, studentID string) (*models.ExamCompletion, error) {
	exam, err := t.catalog.ExamByID(examID)
	if err != nil {
		return nil, err
	}

	completion := &models.ExamCompletion{
		ExamID:    exam.ID,
		StudentID: studentID,
		Reason:    models.CompletionReasonStudent,
	}
	created, err := t.completions.Create(ctx, completion)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, apierr.ErrAlreadyCompleted
	}

	telemetry.ExamCompletionsTotal.WithLabelValues(completion.Reason).Inc()
	slog.Info("exam completed", "exam_id", exam.ID, "student_id", studentID)
	return completion, nil
}

// ValidViolationType reports whether vt is one of the accepted types
func (t *Tracker) ValidViolationType(vt string) bool {
	return slices.Contains(t.types, vt)
}

// ReportViolation records a violation for the calling student against an exam
// obtained from ExamForCaller. When this report brings the student's count for
// the assignment to the limit, the exam is completed for them with the policy
// reason.
func (t *Tracker) ReportViolation(ctx context.Context, exam *catalog.Exam, identity models.Identity, report ViolationReport) (*models.ExamViolation, error) {
	if report.AssignmentID == "" || !t.ValidViolationType(report.ViolationType) {
		return nil, apierr.ErrInvalidViolation
	}
	if _, err := t.catalog.Assignment(report.AssignmentID); err != nil {
		return nil, err
	}

	violation := &models.ExamViolation{
		ExamID:        exam.ID,
		StudentID:     identity.ID,
		AssignmentID:  report.AssignmentID,
		ViolationType: report.ViolationType,
	}
	ejected, err := t.violations.RecordWithThreshold(ctx, violation, t.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to record violation: %w", err)
	}

	telemetry.ViolationsReportedTotal.WithLabelValues(violation.ViolationType).Inc()
	slog.Info("violation reported",
		"exam_id", exam.ID,
		"student_id", identity.ID,
		"assignment_id", violation.AssignmentID,
		"type", violation.ViolationType)

	if ejected {
		telemetry.ExamCompletionsTotal.WithLabelValues(models.CompletionReasonPolicy).Inc()
		slog.Warn("violation limit reached, exam completed",
			"exam_id", exam.ID, "student_id", identity.ID, "limit", t.limit)
		audit.ShipAsync(t.shipper, &audit.LogEntry{
			Action:       audit.ActionExamAutoCompleted,
			UserID:       identity.ID,
			Role:         identity.Role.String(),
			ExamID:       exam.ID,
			ResourceType: "assignment",
			ResourceID:   violation.AssignmentID,
			Metadata: map[string]interface{}{
				"reason": models.CompletionReasonPolicy,
				"limit":  t.limit,
			},
		})
	}

	return violation, nil
}

// RequireCompleted gates results: a student may only see them once a completion
// record exists. Staff pass.
func (t *Tracker) RequireCompleted(ctx context.Context, examID string, identity models.Identity) (*catalog.Exam, error) {
	exam, err := t.catalog.ExamByID(examID)
	if err != nil {
		return nil, err
	}
	if identity.IsStaff() {
		return exam, nil
	}

	completion, err := t.completions.Get(ctx, exam.ID, identity.ID)
	if err != nil {
		return nil, err
	}
	if completion == nil {
		return nil, apierr.ErrExamNotCompleted
	}
	return exam, nil
}

// CloseExam deactivates the exam on behalf of a staff member. After this every
// exam lookup fails with "Exam not found".
func (t *Tracker) CloseExam(ctx context.Context, examID string, identity models.Identity) error {
	exam, err := t.catalog.ExamByID(examID)
	if err != nil {
		return err
	}
	t.Deactivate(exam.ID, identity.ID)
	return nil
}

// Deactivate clears the active exam. by names who closed it (a user id or a job
// name). It reports whether the exam was still active.
func (t *Tracker) Deactivate(examID, by string) bool {
	if !t.catalog.Deactivate() {
		return false
	}
	telemetry.ExamActive.Set(0)
	audit.ShipAsync(t.shipper, &audit.LogEntry{
		Action: audit.ActionExamClosed,
		UserID: by,
		ExamID: examID,
	})
	return true
}
