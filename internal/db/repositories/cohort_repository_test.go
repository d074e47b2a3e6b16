package repositories

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/hogwarts-exams/proctor/internal/db/models"
)

var cohortCols = []string{"id", "name", "created_at", "updated_at"}

func newCohortRepo(t *testing.T) (*CohortRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newSQLMock(t)
	return NewCohortRepository(db.DB), mock
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestCohortCreate_Success(t *testing.T) {
	repo, mock := newCohortRepo(t)
	mock.ExpectExec("INSERT INTO student_cohorts").
		WithArgs(sqlmock.AnyArg(), "Gryffindor", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c := &models.Cohort{Name: "Gryffindor"}
	if err := repo.Create(context.Background(), c); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if c.ID == "" {
		t.Error("Create() did not assign an ID")
	}
	if c.CreatedAt.IsZero() {
		t.Error("Create() did not set CreatedAt")
	}
	expectationsMet(t, mock)
}

func TestCohortCreate_Error(t *testing.T) {
	repo, mock := newCohortRepo(t)
	mock.ExpectExec("INSERT INTO student_cohorts").WillReturnError(errDB)

	if err := repo.Create(context.Background(), &models.Cohort{Name: "x"}); err == nil {
		t.Error("Create() expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// GetByID / GetByName
// ---------------------------------------------------------------------------

func TestCohortGetByID_Found(t *testing.T) {
	repo, mock := newCohortRepo(t)
	now := time.Now()
	mock.ExpectQuery("SELECT.*FROM student_cohorts.*WHERE id").
		WithArgs("c-1").
		WillReturnRows(sqlmock.NewRows(cohortCols).AddRow("c-1", "Ravenclaw", now, now))

	c, err := repo.GetByID(context.Background(), "c-1")
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if c == nil || c.Name != "Ravenclaw" {
		t.Errorf("GetByID() = %+v", c)
	}
}

func TestCohortGetByID_NotFound(t *testing.T) {
	repo, mock := newCohortRepo(t)
	mock.ExpectQuery("SELECT.*FROM student_cohorts.*WHERE id").
		WillReturnError(sql.ErrNoRows)

	c, err := repo.GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if c != nil {
		t.Errorf("GetByID() = %+v, want nil", c)
	}
}

func TestCohortGetByName_Error(t *testing.T) {
	repo, mock := newCohortRepo(t)
	mock.ExpectQuery("SELECT.*FROM student_cohorts.*WHERE name").
		WillReturnError(errDB)

	if _, err := repo.GetByName(context.Background(), "x"); err == nil {
		t.Error("GetByName() expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

func TestCohortList(t *testing.T) {
	repo, mock := newCohortRepo(t)
	now := time.Now()
	mock.ExpectQuery("SELECT.*FROM student_cohorts.*ORDER BY name").
		WillReturnRows(sqlmock.NewRows(cohortCols).
			AddRow("c-1", "Gryffindor", now, now).
			AddRow("c-2", "Hufflepuff", now, now))

	cohorts, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(cohorts) != 2 || cohorts[1].Name != "Hufflepuff" {
		t.Errorf("List() = %+v", cohorts)
	}
}
