package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/hogwarts-exams/proctor/internal/db/models"
)

// StaffRepository handles staff database operations
type StaffRepository struct {
	db *sql.DB
}

// NewStaffRepository creates a new StaffRepository
func NewStaffRepository(db *sql.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

// Create inserts a staff member
func (r *StaffRepository) Create(ctx context.Context, staff *models.Staff) error {
	staff.ID = uuid.New().String()
	staff.CreatedAt = time.Now()
	staff.UpdatedAt = staff.CreatedAt

	query := `
		INSERT INTO staff (id, first_name, last_name, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		staff.ID,
		staff.FirstName,
		staff.LastName,
		staff.Email,
		staff.CreatedAt,
		staff.UpdatedAt,
	)
	return err
}

// GetByID retrieves a staff member by ID
func (r *StaffRepository) GetByID(ctx context.Context, id string) (*models.Staff, error) {
	query := `
		SELECT id, first_name, last_name, email, created_at, updated_at
		FROM staff
		WHERE id = $1
	`

	s := &models.Staff{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID,
		&s.FirstName,
		&s.LastName,
		&s.Email,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
