package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hogwarts-exams/proctor/internal/db/models"
	"github.com/jmoiron/sqlx"
)

// CompletionRepository handles exam completion database operations
type CompletionRepository struct {
	db *sqlx.DB
}

// NewCompletionRepository creates a new CompletionRepository
func NewCompletionRepository(db *sqlx.DB) *CompletionRepository {
	return &CompletionRepository{db: db}
}

// Get returns the completion for (exam, student), or nil if there is none
func (r *CompletionRepository) Get(ctx context.Context, examID, studentID string) (*models.ExamCompletion, error) {
	var c models.ExamCompletion
	query := `
		SELECT exam_id, student_id, reason, created_at, updated_at
		FROM exam_completions
		WHERE exam_id = $1 AND student_id = $2
	`
	err := r.db.GetContext(ctx, &c, query, examID, studentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a completion. It reports false without error when a completion
// for (exam, student) already exists; the primary key makes this race-free.
func (r *CompletionRepository) Create(ctx context.Context, c *models.ExamCompletion) (bool, error) {
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, insertCompletionQuery, c.ExamID, c.StudentID, c.Reason, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

const insertCompletionQuery = `
	INSERT INTO exam_completions (exam_id, student_id, reason, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (exam_id, student_id) DO NOTHING
`

// ListByExam returns every completion recorded for an exam, oldest first
func (r *CompletionRepository) ListByExam(ctx context.Context, examID string) ([]models.ExamCompletion, error) {
	var completions []models.ExamCompletion
	query := `
		SELECT exam_id, student_id, reason, created_at, updated_at
		FROM exam_completions
		WHERE exam_id = $1
		ORDER BY created_at
	`
	if err := r.db.SelectContext(ctx, &completions, query, examID); err != nil {
		return nil, fmt.Errorf("failed to list completions: %w", err)
	}
	return completions, nil
}

// CountByReason summarises completions per exam and reason
func (r *CompletionRepository) CountByReason(ctx context.Context) ([]models.ReasonCount, error) {
	var counts []models.ReasonCount
	query := `
		SELECT exam_id, reason, COUNT(*) AS count
		FROM exam_completions
		GROUP BY exam_id, reason
		ORDER BY exam_id, reason
	`
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("failed to count completions: %w", err)
	}
	return counts, nil
}
