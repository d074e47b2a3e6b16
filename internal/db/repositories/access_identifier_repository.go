package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/hogwarts-exams/proctor/internal/db/models"
	"github.com/jmoiron/sqlx"
)

// AccessIdentifierRepository handles access identifier database operations
type AccessIdentifierRepository struct {
	db *sqlx.DB
}

// NewAccessIdentifierRepository creates a new AccessIdentifierRepository
func NewAccessIdentifierRepository(db *sqlx.DB) *AccessIdentifierRepository {
	return &AccessIdentifierRepository{db: db}
}

// Create inserts an identifier for a user. Uniqueness of both the identifier and
// the user id is enforced by the schema.
func (r *AccessIdentifierRepository) Create(ctx context.Context, a *models.AccessIdentifier) error {
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt

	query := `
		INSERT INTO access_identifiers (identifier, user_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query, a.Identifier, a.UserID, a.IsActive, a.CreatedAt, a.UpdatedAt)
	return err
}

// GetByIdentifier looks up an identifier by value, active or not
func (r *AccessIdentifierRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.AccessIdentifier, error) {
	var a models.AccessIdentifier
	query := `
		SELECT identifier, user_id, is_active, created_at, updated_at
		FROM access_identifiers
		WHERE identifier = $1
	`
	err := r.db.GetContext(ctx, &a, query, identifier)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByUserID looks up the identifier owned by a user
func (r *AccessIdentifierRepository) GetByUserID(ctx context.Context, userID string) (*models.AccessIdentifier, error) {
	var a models.AccessIdentifier
	query := `
		SELECT identifier, user_id, is_active, created_at, updated_at
		FROM access_identifiers
		WHERE user_id = $1
	`
	err := r.db.GetContext(ctx, &a, query, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SetActive toggles the identifier owned by a user. It reports whether a row was changed.
func (r *AccessIdentifierRepository) SetActive(ctx context.Context, userID string, active bool) (bool, error) {
	query := `UPDATE access_identifiers SET is_active = $1, updated_at = $2 WHERE user_id = $3`
	res, err := r.db.ExecContext(ctx, query, active, time.Now(), userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetActiveForCohort toggles the identifiers of every student in a cohort and
// returns how many were changed
func (r *AccessIdentifierRepository) SetActiveForCohort(ctx context.Context, cohortID string, active bool) (int64, error) {
	query := `
		UPDATE access_identifiers SET is_active = $1, updated_at = $2
		WHERE user_id IN (SELECT id FROM students WHERE cohort_id = $3)
	`
	res, err := r.db.ExecContext(ctx, query, active, time.Now(), cohortID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
