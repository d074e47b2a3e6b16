// audit.go provides Gin middleware that ships authenticated state changes to
// the audit destinations.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hogwarts-exams/proctor/internal/apierr"
	"github.com/hogwarts-exams/proctor/internal/audit"
	"github.com/hogwarts-exams/proctor/internal/db/models"
)

const auditActionKey = "audit_action"

// AuditAction names the audit action of a route and forces it to be audited
// even when it is a GET.
func AuditAction(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(auditActionKey, action)
		c.Next()
	}
}

// AuditMiddleware ships one entry per authenticated non-GET request, and per
// request on routes marked with AuditAction, after the handler has run. A nil
// shipper disables it.
func AuditMiddleware(shipper audit.Shipper) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if shipper == nil || c.Request.Method == http.MethodOptions {
			return
		}
		identity, ok := GetIdentity(c)
		if !ok {
			return
		}

		action := c.GetString(auditActionKey)
		if action == "" {
			if c.Request.Method == http.MethodGet {
				return
			}
			action = c.Request.Method + " " + c.FullPath()
		}

		audit.ShipAsync(shipper, buildEntry(c, identity, action))
	}
}

func buildEntry(c *gin.Context, identity models.Identity, action string) *audit.LogEntry {
	entry := &audit.LogEntry{
		Action:     action,
		UserID:     identity.ID,
		Role:       identity.Role.String(),
		ExamID:     c.Param("exam_id"),
		IPAddress:  c.ClientIP(),
		RequestID:  c.GetString(RequestIDKey),
		StatusCode: auditStatus(c),
		Metadata:   map[string]interface{}{"route": c.FullPath()},
	}

	switch {
	case c.Param("assignment_id") != "":
		entry.ResourceType, entry.ResourceID = "assignment", c.Param("assignment_id")
	case c.Param("cohort_id") != "":
		entry.ResourceType, entry.ResourceID = "cohort", c.Param("cohort_id")
	case c.Param("user_id") != "":
		entry.ResourceType, entry.ResourceID = "user", c.Param("user_id")
	case entry.ExamID != "":
		entry.ResourceType, entry.ResourceID = "exam", entry.ExamID
	}
	if len(c.Errors) > 0 {
		entry.Metadata["error"] = c.Errors.Last().Error()
	}
	return entry
}

// auditStatus is the status the client will see. Errors are rendered by
// ErrorHandler after this middleware returns, so the writer still holds 200.
func auditStatus(c *gin.Context) int {
	if len(c.Errors) > 0 && !c.Writer.Written() {
		return apierr.StatusOf(c.Errors.Last().Err)
	}
	return c.Writer.Status()
}
