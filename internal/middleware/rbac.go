// Package middleware (rbac.go) implements role guards. The role is resolved once
// when the token is read, so a guard is a lookup in the request context.

package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/hogwarts-exams/proctor/internal/apierr"
	"github.com/hogwarts-exams/proctor/internal/db/models"
)

// RequireRole allows the request only when the caller holds role. It must run
// after AuthMiddleware.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok {
			abortWith(c, apierr.ErrUnauthorized)
			return
		}
		if identity.Role != role {
			abortWith(c, forbiddenFor(role))
			return
		}
		c.Next()
	}
}

// RequireStaff allows staff only
func RequireStaff() gin.HandlerFunc { return RequireRole(models.RoleStaff) }

// RequireStudent allows students only
func RequireStudent() gin.HandlerFunc { return RequireRole(models.RoleStudent) }

func forbiddenFor(role models.Role) *apierr.Error {
	if role == models.RoleStaff {
		return apierr.ErrStaffRequired
	}
	return apierr.ErrStudentRequired
}
