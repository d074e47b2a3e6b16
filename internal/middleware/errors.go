package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hogwarts-exams/proctor/internal/apierr"
)

// ErrorHandler renders the last error attached to the context as
// {"error": message}. Errors that are not *apierr.Error are logged and answered
// with a generic 500.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		requestID, _ := c.Get(RequestIDKey)

		apiErr, ok := apierr.As(err)
		if !ok {
			slog.Error("unhandled error",
				"request_id", requestID,
				"method", c.Request.Method,
				"route", c.FullPath(),
				"error", err)
			apiErr = apierr.Internal(err)
		} else if apiErr.Status >= http.StatusInternalServerError {
			slog.Error("request failed",
				"request_id", requestID,
				"route", c.FullPath(),
				"status", apiErr.Status,
				"error", err)
		} else {
			slog.Debug("request rejected",
				"request_id", requestID,
				"route", c.FullPath(),
				"status", apiErr.Status,
				"error", err)
		}

		c.JSON(apiErr.Status, gin.H{"error": apiErr.Message})
	}
}

// Recovery answers panics with the same body as an unclassified error
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		requestID, _ := c.Get(RequestIDKey)
		slog.Error("panic recovered",
			"request_id", requestID,
			"route", c.FullPath(),
			"panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
	})
}
