// Package auth - exchange.go trades an access identifier for a session token.
// This is the only way a client obtains a token.
package auth

import (
	"context"
	"log/slog"

	"github.com/hogwarts-exams/proctor/internal/apierr"
	"github.com/hogwarts-exams/proctor/internal/db/models"
	"github.com/hogwarts-exams/proctor/internal/telemetry"
)

// IdentifierLookup finds access identifiers by their opaque value
type IdentifierLookup interface {
	GetByIdentifier(ctx context.Context, identifier string) (*models.AccessIdentifier, error)
}

// StudentLookup finds active students
type StudentLookup interface {
	GetActiveByID(ctx context.Context, id string) (*models.Student, error)
}

// StaffLookup finds staff members
type StaffLookup interface {
	GetByID(ctx context.Context, id string) (*models.Staff, error)
}

// ExamSource yields the exam tokens are issued for
type ExamSource interface {
	ExamID() (string, error)
}

// ExchangeResult is returned to the client after a successful exchange
type ExchangeResult struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExamID      string `json:"exam_id"`
}

// Exchanger implements the identifier for token exchange
type Exchanger struct {
	identifiers IdentifierLookup
	students    StudentLookup
	staff       StaffLookup
	exams       ExamSource
	tokens      *TokenManager
}

// NewExchanger creates an Exchanger
func NewExchanger(identifiers IdentifierLookup, students StudentLookup, staff StaffLookup, exams ExamSource, tokens *TokenManager) *Exchanger {
	return &Exchanger{
		identifiers: identifiers,
		students:    students,
		staff:       staff,
		exams:       exams,
		tokens:      tokens,
	}
}

// Exchange resolves identifier to its user and mints a token. Every failure to
// resolve the user is reported as 401 without saying which step failed. When
// the exam has been deactivated no token is minted and the exam error is returned.
func (e *Exchanger) Exchange(ctx context.Context, identifier string) (*ExchangeResult, error) {
	if identifier == "" {
		return nil, apierr.ErrUnauthorized
	}

	identity, err := e.resolve(ctx, identifier)
	if err != nil {
		slog.Debug("access identifier exchange refused", "error", err)
		return nil, apierr.ErrUnauthorized
	}

	examID, err := e.exams.ExamID()
	if err != nil {
		return nil, err
	}

	token, err := e.tokens.CreateToken(ctx, *identity)
	if err != nil {
		return nil, apierr.Internal(err)
	}

	telemetry.SessionsIssuedTotal.WithLabelValues(identity.Role.String()).Inc()
	slog.Info("session issued", "user_id", identity.ID, "role", identity.Role)
	return &ExchangeResult{AccessToken: token, Role: identity.Role.String(), ExamID: examID}, nil
}

func (e *Exchanger) resolve(ctx context.Context, identifier string) (*models.Identity, error) {
	ai, err := e.identifiers.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if ai == nil || !ai.IsActive {
		return nil, apierr.ErrUnauthorized
	}

	student, err := e.students.GetActiveByID(ctx, ai.UserID)
	if err != nil {
		return nil, err
	}
	if student != nil {
		id := student.Identity()
		return &id, nil
	}

	staff, err := e.staff.GetByID(ctx, ai.UserID)
	if err != nil {
		return nil, err
	}
	if staff != nil {
		id := staff.Identity()
		return &id, nil
	}

	return nil, apierr.ErrUnauthorized
}
