package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hogwarts-exams/proctor/internal/db/models"
	"github.com/jmoiron/sqlx"
)

// ViolationRepository handles exam violation database operations
type ViolationRepository struct {
	db *sqlx.DB
}

// NewViolationRepository creates a new ViolationRepository
func NewViolationRepository(db *sqlx.DB) *ViolationRepository {
	return &ViolationRepository{db: db}
}

const insertViolationQuery = `
	INSERT INTO exam_violations (id, exam_id, student_id, assignment_id, violation_type, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

const countViolationsQuery = `
	SELECT COUNT(*) FROM exam_violations
	WHERE exam_id = $1 AND student_id = $2 AND assignment_id = $3
`

func prepareViolation(v *models.ExamViolation) {
	v.ID = uuid.New().String()
	v.CreatedAt = time.Now()
	v.UpdatedAt = v.CreatedAt
}

// ListByStudent returns a student's violations for an exam, oldest first
func (r *ViolationRepository) ListByStudent(ctx context.Context, examID, studentID string) ([]models.ExamViolation, error) {
	var violations []models.ExamViolation
	query := `
		SELECT id, exam_id, student_id, assignment_id, violation_type, created_at, updated_at
		FROM exam_violations
		WHERE exam_id = $1 AND student_id = $2
		ORDER BY created_at
	`
	if err := r.db.SelectContext(ctx, &violations, query, examID, studentID); err != nil {
		return nil, fmt.Errorf("failed to list violations: %w", err)
	}
	return violations, nil
}

// CountByType summarises violations per type
func (r *ViolationRepository) CountByType(ctx context.Context) ([]models.TypeCount, error) {
	var counts []models.TypeCount
	query := `
		SELECT violation_type, COUNT(*) AS count
		FROM exam_violations
		GROUP BY violation_type
		ORDER BY violation_type
	`
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("failed to count violations: %w", err)
	}
	return counts, nil
}

// RecordWithThreshold appends a violation and, when the student's count for the
// assignment reaches limit, records a policy completion. Everything happens in one
// transaction that first locks the student row, so concurrent reports for the same
// student are serialised and exactly one of them crosses the threshold.
// It reports whether this call created the completion.
func (r *ViolationRepository) RecordWithThreshold(ctx context.Context, v *models.ExamViolation, limit int) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback() // nolint:errcheck

	if _, err := tx.ExecContext(ctx, `SELECT id FROM students WHERE id = $1 FOR UPDATE`, v.StudentID); err != nil {
		return false, fmt.Errorf("failed to lock student: %w", err)
	}

	prepareViolation(v)
	if _, err := tx.ExecContext(ctx, insertViolationQuery,
		v.ID, v.ExamID, v.StudentID, v.AssignmentID, v.ViolationType, v.CreatedAt, v.UpdatedAt); err != nil {
		return false, fmt.Errorf("failed to insert violation: %w", err)
	}

	var count int
	if err := tx.GetContext(ctx, &count, countViolationsQuery, v.ExamID, v.StudentID, v.AssignmentID); err != nil {
		return false, fmt.Errorf("failed to count violations: %w", err)
	}

	completed := false
	if count >= limit {
		res, err := tx.ExecContext(ctx, insertCompletionQuery,
			v.ExamID, v.StudentID, models.CompletionReasonPolicy, v.CreatedAt, v.CreatedAt)
		if err != nil {
			return false, fmt.Errorf("failed to record completion: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		completed = n == 1
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return completed, nil
}
