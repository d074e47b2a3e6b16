package repositories

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/hogwarts-exams/proctor/internal/db/models"
)

var studentCols = []string{"id", "first_name", "last_name", "email", "identifier", "cohort_id", "is_active", "created_at", "updated_at"}

func newStudentRepo(t *testing.T) (*StudentRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newSQLMock(t)
	return NewStudentRepository(db), mock
}

func studentRow(id string, active bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(studentCols).
		AddRow(id, "Hermione", "Granger", "hg@hogwarts.test", "S-0001", "c-1", active, now, now)
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestStudentCreate(t *testing.T) {
	repo, mock := newStudentRepo(t)
	mock.ExpectExec("INSERT INTO students").
		WillReturnResult(sqlmock.NewResult(0, 1))

	cohort := "c-1"
	s := &models.Student{FirstName: "Ron", LastName: "Weasley", Email: "rw@hogwarts.test", Identifier: "S-2", CohortID: &cohort, IsActive: true}
	if err := repo.Create(context.Background(), s); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if s.ID == "" {
		t.Error("Create() did not assign an ID")
	}
	expectationsMet(t, mock)
}

// ---------------------------------------------------------------------------
// GetByID / GetActiveByID
// ---------------------------------------------------------------------------

func TestStudentGetByID_Found(t *testing.T) {
	repo, mock := newStudentRepo(t)
	mock.ExpectQuery("SELECT.*FROM students WHERE id").
		WithArgs("s-1").
		WillReturnRows(studentRow("s-1", false))

	s, err := repo.GetByID(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if s == nil || s.Identifier != "S-0001" || s.IsActive {
		t.Errorf("GetByID() = %+v", s)
	}
	if s.CohortID == nil || *s.CohortID != "c-1" {
		t.Errorf("CohortID = %v, want c-1", s.CohortID)
	}
}

func TestStudentGetActiveByID_FiltersInactive(t *testing.T) {
	repo, mock := newStudentRepo(t)
	mock.ExpectQuery("SELECT.*FROM students WHERE id = \\$1 AND is_active = true").
		WithArgs("s-1").
		WillReturnError(sql.ErrNoRows)

	s, err := repo.GetActiveByID(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("GetActiveByID() error: %v", err)
	}
	if s != nil {
		t.Errorf("GetActiveByID() = %+v, want nil", s)
	}
	expectationsMet(t, mock)
}

func TestStudentGetActiveByID_Found(t *testing.T) {
	repo, mock := newStudentRepo(t)
	mock.ExpectQuery("SELECT.*FROM students WHERE id = \\$1 AND is_active = true").
		WillReturnRows(studentRow("s-1", true))

	s, err := repo.GetActiveByID(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("GetActiveByID() error: %v", err)
	}
	if s == nil || s.Identity().Role != models.RoleStudent {
		t.Errorf("GetActiveByID() = %+v", s)
	}
}

func TestStudentGetActiveByID_Error(t *testing.T) {
	repo, mock := newStudentRepo(t)
	mock.ExpectQuery("SELECT.*FROM students").WillReturnError(errDB)

	if _, err := repo.GetActiveByID(context.Background(), "s-1"); err == nil {
		t.Error("GetActiveByID() expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// ListByCohort
// ---------------------------------------------------------------------------

func TestStudentListByCohort(t *testing.T) {
	repo, mock := newStudentRepo(t)
	mock.ExpectQuery("SELECT.*FROM students WHERE cohort_id").
		WithArgs("c-1").
		WillReturnRows(studentRow("s-1", true))

	students, err := repo.ListByCohort(context.Background(), "c-1")
	if err != nil {
		t.Fatalf("ListByCohort() error: %v", err)
	}
	if len(students) != 1 {
		t.Errorf("ListByCohort() len = %d, want 1", len(students))
	}
}

func TestStudentListByCohort_Error(t *testing.T) {
	repo, mock := newStudentRepo(t)
	mock.ExpectQuery("SELECT.*FROM students WHERE cohort_id").WillReturnError(errDB)

	if _, err := repo.ListByCohort(context.Background(), "c-1"); err == nil {
		t.Error("ListByCohort() expected error, got nil")
	}
}
