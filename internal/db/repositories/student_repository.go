package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hogwarts-exams/proctor/internal/db/models"
	"github.com/jmoiron/sqlx"
)

const studentColumns = `id, first_name, last_name, email, identifier, cohort_id, is_active, created_at, updated_at`

// StudentRepository handles student database operations
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository creates a new StudentRepository
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// Create inserts a student
func (r *StudentRepository) Create(ctx context.Context, s *models.Student) error {
	s.ID = uuid.New().String()
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt

	query := `
		INSERT INTO students (` + studentColumns + `)
		VALUES (:id, :first_name, :last_name, :email, :identifier, :cohort_id, :is_active, :created_at, :updated_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, s)
	return err
}

// GetByID retrieves a student by ID regardless of the active flag
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*models.Student, error) {
	var s models.Student
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`
	err := r.db.GetContext(ctx, &s, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetActiveByID retrieves a student by ID only if the student is active
func (r *StudentRepository) GetActiveByID(ctx context.Context, id string) (*models.Student, error) {
	var s models.Student
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1 AND is_active = true`
	err := r.db.GetContext(ctx, &s, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListByCohort returns every student in a cohort ordered by last name
func (r *StudentRepository) ListByCohort(ctx context.Context, cohortID string) ([]models.Student, error) {
	var students []models.Student
	query := `SELECT ` + studentColumns + ` FROM students WHERE cohort_id = $1 ORDER BY last_name, first_name`
	if err := r.db.SelectContext(ctx, &students, query, cohortID); err != nil {
		return nil, fmt.Errorf("failed to list students for cohort: %w", err)
	}
	return students, nil
}
