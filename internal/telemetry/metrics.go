// Package telemetry provides application-level observability for the proctoring server.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and served by the
// side-channel HTTP server started by cmd/server:
//
//	GET http://<host>:<PROCTOR_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. It is NOT served by the Gin router, so exam clients never see it.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Session issue counters
//   - Violation and completion counters
//   - Grading service latency and error counters
//   - Exam catalog state
//   - Database connection pool gauges
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/exams/:exam_id) rather
// than the raw request URL, so exam, assignment and submission ids never become labels.
// No metric is labelled by user id.
package telemetry

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template and status code.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Proctoring metrics.
//
// SessionsIssuedTotal counts successful identifier exchanges by role. A burst of
// STUDENT sessions marks the start of an exam sitting.
//
// ViolationsReportedTotal counts every accepted violation report by type, and
// ExamCompletionsTotal counts completion records by reason. The ratio of
// "Course policy violated" to all completions is the ejection rate:
//
//	sum(rate(proctor_exam_completions_total{reason="Course policy violated"}[1h]))
//	  / sum(rate(proctor_exam_completions_total[1h]))
var (
	SessionsIssuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proctor_sessions_issued_total",
			Help: "Total number of session tokens issued, by role.",
		},
		[]string{"role"},
	)

	ViolationsReportedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proctor_violations_reported_total",
			Help: "Total number of violation reports recorded, by violation type.",
		},
		[]string{"type"},
	)

	ExamCompletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proctor_exam_completions_total",
			Help: "Total number of exam completion records created, by reason.",
		},
		[]string{"reason"},
	)

	// ExamActive is 1 while the catalog exam is active and 0 once deactivated.
	ExamActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "proctor_exam_active",
			Help: "Whether the catalog exam is currently active (1) or deactivated (0).",
		},
	)
)

// Grading service metrics, labelled by client operation (submit, list_mine,
// list_all, get_submission, get_allowance, get_results).
//
// Example PromQL queries:
//   - p95 upstream latency:  histogram_quantile(0.95, sum by (operation, le) (rate(grading_request_duration_seconds_bucket[5m])))
//   - Alert expression:      increase(grading_errors_total[5m]) > 10
var (
	GradingRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grading_request_duration_seconds",
			Help:    "Duration of requests to the grading service, by operation.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
		},
		[]string{"operation"},
	)

	GradingErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grading_errors_total",
			Help: "Total number of failed grading service requests, by operation.",
		},
		[]string{"operation"},
	)
)

// DBOpenConnections and DBIdleConnections mirror sql.DB pool statistics. They are
// sampled by StartDBStatsCollector rather than per request.
//
// Example PromQL queries:
//   - Pool utilisation (%): db_open_connections / <PROCTOR_DATABASE_MAX_CONNECTIONS> * 100
var (
	DBOpenConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_open_connections",
			Help: "Current number of open database connections in the pool.",
		},
	)

	DBIdleConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_idle_connections",
			Help: "Current number of idle database connections in the pool.",
		},
	)
)

// StartDBStatsCollector samples sql.DB pool statistics every interval until ctx is
// cancelled or the database becomes unreachable.
//
//	telemetry.StartDBStatsCollector(ctx, database, 30*time.Second)
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := db.PingContext(ctx); err != nil {
					slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
					return
				}
				stats := db.Stats()
				DBOpenConnections.Set(float64(stats.OpenConnections))
				DBIdleConnections.Set(float64(stats.Idle))
			}
		}
	}()
}
