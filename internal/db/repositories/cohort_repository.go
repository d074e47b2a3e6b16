// Package repositories implements the data access layer for the proctoring store.
// Each repository type encapsulates the queries for one entity; handlers and
// services never issue SQL directly. Lookups return (nil, nil) when no row matches.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/hogwarts-exams/proctor/internal/db/models"
)

// CohortRepository handles student cohort database operations
type CohortRepository struct {
	db *sql.DB
}

// NewCohortRepository creates a new CohortRepository
func NewCohortRepository(db *sql.DB) *CohortRepository {
	return &CohortRepository{db: db}
}

// Create inserts a new cohort, assigning its ID and timestamps
func (r *CohortRepository) Create(ctx context.Context, cohort *models.Cohort) error {
	cohort.ID = uuid.New().String()
	cohort.CreatedAt = time.Now()
	cohort.UpdatedAt = cohort.CreatedAt

	query := `
		INSERT INTO student_cohorts (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query, cohort.ID, cohort.Name, cohort.CreatedAt, cohort.UpdatedAt)
	return err
}

// GetByID retrieves a cohort by ID
func (r *CohortRepository) GetByID(ctx context.Context, id string) (*models.Cohort, error) {
	query := `
		SELECT id, name, created_at, updated_at
		FROM student_cohorts
		WHERE id = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByName retrieves a cohort by its unique name
func (r *CohortRepository) GetByName(ctx context.Context, name string) (*models.Cohort, error) {
	query := `
		SELECT id, name, created_at, updated_at
		FROM student_cohorts
		WHERE name = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, name))
}

// List returns all cohorts ordered by name
func (r *CohortRepository) List(ctx context.Context) ([]*models.Cohort, error) {
	query := `
		SELECT id, name, created_at, updated_at
		FROM student_cohorts
		ORDER BY name
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cohorts []*models.Cohort
	for rows.Next() {
		c := &models.Cohort{}
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		cohorts = append(cohorts, c)
	}
	return cohorts, rows.Err()
}

func (r *CohortRepository) scanOne(row *sql.Row) (*models.Cohort, error) {
	c := &models.Cohort{}
	err := row.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
