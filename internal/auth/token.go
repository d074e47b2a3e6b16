// Package auth - token.go issues session tokens for resolved identities and
// resolves presented tokens back to them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hogwarts-exams/proctor/internal/db/models"
)

// ErrInvalidToken is returned (wrapped) for any token that does not resolve:
// missing, malformed, badly signed, expired or unknown
var ErrInvalidToken = errors.New("invalid token")

// TokenManager mints and resolves session tokens
type TokenManager struct {
	lifetime time.Duration
	issuer   string
	store    SessionStore
	now      func() time.Time
}

// NewTokenManager creates a TokenManager. Tokens expire lifetime after issue.
func NewTokenManager(lifetime time.Duration, issuer string, store SessionStore) *TokenManager {
	return &TokenManager{
		lifetime: lifetime,
		issuer:   issuer,
		store:    store,
		now:      time.Now,
	}
}

// Lifetime returns how long issued tokens stay valid
func (m *TokenManager) Lifetime() time.Duration { return m.lifetime }

// CreateToken mints a token bound to identity and records its session
func (m *TokenManager) CreateToken(ctx context.Context, identity models.Identity) (string, error) {
	if identity.ID == "" || !identity.Role.Valid() {
		return "", fmt.Errorf("cannot issue a token for identity %+v", identity)
	}

	issuedAt := m.now()
	expiresAt := issuedAt.Add(m.lifetime)
	sessionID := uuid.New().String()

	claims := &Claims{
		UserID: identity.ID,
		Role:   identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   identity.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := signClaims(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	session := &Session{ID: sessionID, UserID: identity.ID, Role: identity.Role, ExpiresAt: expiresAt}
	if err := m.store.Put(ctx, session, m.lifetime); err != nil {
		return "", err
	}

	return token, nil
}

// GetUser resolves a token to the identity it was issued for. Expiry is checked
// on every call against both the token and its stored session.
func (m *TokenManager) GetUser(ctx context.Context, token string) (*models.Identity, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", ErrInvalidToken)
	}

	claims, err := parseClaims(token, m.issuer, m.now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ID == "" || !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: incomplete claims", ErrInvalidToken)
	}

	session, err := m.store.Get(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("%w: unknown session", ErrInvalidToken)
	}
	if !m.now().Before(session.ExpiresAt) {
		if err := m.store.Delete(ctx, session.ID); err != nil {
			slog.Debug("failed to drop expired session", "session_id", session.ID, "error", err)
		}
		return nil, fmt.Errorf("%w: session expired", ErrInvalidToken)
	}
	if session.UserID != claims.UserID || session.Role != claims.Role {
		return nil, fmt.Errorf("%w: session does not match token", ErrInvalidToken)
	}

	return &models.Identity{ID: session.UserID, Role: session.Role}, nil
}

// ExtractBearerToken extracts the token from an Authorization header.
// Expected format: "Bearer <token>"
func ExtractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header is empty")
	}

	if !strings.HasPrefix(header, "Bearer ") {
		return "", errors.New("authorization header must start with 'Bearer '")
	}

	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", errors.New("token is empty after Bearer prefix")
	}

	return token, nil
}
