package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hogwarts-exams/proctor/internal/telemetry"
)

// noRoute labels requests that matched no route, keeping label cardinality
// bounded.
const noRoute = "<no-route>"

// MetricsMiddleware records http_requests_total and http_request_duration_seconds
// labelled by the matched route template (e.g. /api/v1/exams/:exam_id), never
// the raw URL. It must run outside ErrorHandler so the final status is seen.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = noRoute
		}
		method := c.Request.Method

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
