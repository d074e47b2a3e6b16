// Package middleware provides Gin HTTP middleware for authentication, role
// guards, the error boundary, rate limiting, security headers, and audit.
//
// Ordering is fixed in api/router.go:
//
//	Recovery → RequestID → Metrics → Logger → CORS → SecurityHeaders → ErrorHandler
//	  → RateLimit → Auth → Role guard → Audit → Handler
//
// Middleware and handlers never write error responses themselves. They attach
// the error with c.Error and abort; ErrorHandler renders it on the way out.
package middleware

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/hogwarts-exams/proctor/internal/apierr"
	"github.com/hogwarts-exams/proctor/internal/auth"
	"github.com/hogwarts-exams/proctor/internal/db/models"
)

// Context keys set by AuthMiddleware
const (
	UserIDKey   = "user_id"
	RoleKey     = "role"
	IdentityKey = "identity"
)

// IdentityResolver resolves a bearer token to the caller
type IdentityResolver interface {
	GetUser(ctx context.Context, token string) (*models.Identity, error)
}

// AuthMiddleware requires a valid session token and stores the resolved
// identity in the context.
func AuthMiddleware(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ExtractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			abortWith(c, apierr.ErrUnauthorized.Wrap(err))
			return
		}

		identity, err := resolver.GetUser(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				slog.Debug("rejected token", "error", err, "path", c.FullPath())
				abortWith(c, apierr.ErrUnauthorized.Wrap(err))
				return
			}
			abortWith(c, err)
			return
		}

		c.Set(UserIDKey, identity.ID)
		c.Set(RoleKey, identity.Role)
		c.Set(IdentityKey, *identity)
		c.Next()
	}
}

// GetIdentity returns the identity stored by AuthMiddleware
func GetIdentity(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return models.Identity{}, false
	}
	identity, ok := v.(models.Identity)
	return identity, ok
}

func abortWith(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
