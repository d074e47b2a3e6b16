// Package api wires together all HTTP routes for the proctoring server.
//
// Route grouping:
//   - /access_url/:identifier is the only unauthenticated domain route. It is
//     rate limited per client IP so identifiers cannot be guessed cheaply.
//   - Everything under /api/v1/ requires a session token. Role guards sit on the
//     individual routes, and every authenticated mutation is audited.
//   - /health, /ready and /version are open for probes.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/hogwarts-exams/proctor/internal/api/access"
	"github.com/hogwarts-exams/proctor/internal/api/exams"
	"github.com/hogwarts-exams/proctor/internal/api/submissions"
	"github.com/hogwarts-exams/proctor/internal/audit"
	"github.com/hogwarts-exams/proctor/internal/auth"
	"github.com/hogwarts-exams/proctor/internal/catalog"
	"github.com/hogwarts-exams/proctor/internal/config"
	"github.com/hogwarts-exams/proctor/internal/grading"
	"github.com/hogwarts-exams/proctor/internal/jobs"
	"github.com/hogwarts-exams/proctor/internal/middleware"
	"github.com/hogwarts-exams/proctor/internal/safego"
	"github.com/hogwarts-exams/proctor/internal/services"
	"github.com/hogwarts-exams/proctor/internal/storage"
	"github.com/hogwarts-exams/proctor/internal/validation"
)

// Version is the server build version, set at link time
var Version = "dev"

// Services are the collaborators the router hands to handlers. cmd/server
// builds them; tests substitute their own.
type Services struct {
	DB        *sql.DB
	Storage   storage.Storage
	Catalog   *catalog.Catalog
	Tokens    *auth.TokenManager
	Exchanger *auth.Exchanger
	Tracker   *services.Tracker
	Grading   *grading.Client
	Shipper   audit.Shipper
	// Redis is nil unless redis.enabled is set
	Redis redis.Cmdable
}

// BackgroundServices holds references to background jobs and resources that must
// be stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	examCloser   *jobs.ExamCloser
	rateLimiters []*middleware.RateLimiter
}

// Shutdown stops all background goroutines. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.examCloser != nil {
		bg.examCloser.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, svc *Services) (*gin.Engine, *BackgroundServices, error) {
	if err := validation.Register(cfg.Exam.ViolationTypes); err != nil {
		return nil, nil, err
	}

	bg := &BackgroundServices{}

	examID, err := svc.Catalog.ExamID()
	if err != nil {
		return nil, nil, fmt.Errorf("catalog has no active exam: %w", err)
	}
	closer, err := jobs.NewExamCloser(svc.Tracker, examID, &cfg.Exam)
	if err != nil {
		return nil, nil, err
	}
	if closer != nil {
		bg.examCloser = closer
		safego.Go(func() { closer.Start(context.Background()) })
	}

	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig(cfg.Security.TLS.Enabled)))
	router.Use(middleware.ErrorHandler())

	router.GET("/health", healthCheckHandler(svc.DB))
	router.GET("/ready", readinessHandler(svc.DB, svc.Storage, svc.Catalog))
	router.GET("/version", versionHandler(svc.Catalog))

	accessHandlers := access.NewHandlers(svc.Exchanger)
	examHandlers := exams.NewHandlers(svc.Tracker, svc.Catalog)
	submissionHandlers := submissions.NewHandlers(svc.Tracker, svc.Catalog, svc.Grading)

	// Identifier exchange (public, strictly rate limited)
	exchange := router.Group("/access_url")
	if cfg.Security.RateLimiting.Enabled {
		exchange.Use(middleware.RateLimitMiddleware(bg.exchangeLimiter(cfg, svc.Redis)))
	}
	exchange.GET("/:identifier", accessHandlers.ExchangeHandler())

	apiV1 := router.Group("/api/v1")
	if cfg.Security.RateLimiting.Enabled {
		apiV1.Use(middleware.RateLimitMiddleware(bg.generalLimiter(cfg)))
	}
	apiV1.Use(middleware.AuthMiddleware(svc.Tokens))
	apiV1.Use(middleware.AuditMiddleware(svc.Shipper))
	{
		identifiers := apiV1.Group("/access_identifiers")
		identifiers.Use(middleware.RequireStaff())
		{
			identifiers.POST("/cohort/:cohort_id/enable", accessHandlers.EnableCohortHandler())
			identifiers.POST("/cohort/:cohort_id/disable", accessHandlers.DisableCohortHandler())
			identifiers.POST("/user/:user_id/enable", accessHandlers.EnableUserHandler())
			identifiers.POST("/user/:user_id/disable", accessHandlers.DisableUserHandler())
		}

		examGroup := apiV1.Group("/exams/:exam_id")
		{
			examGroup.GET("", examHandlers.GetExamHandler())
			examGroup.POST("/complete", middleware.RequireStudent(), examHandlers.CompleteExamHandler())
			examGroup.GET("/complete", middleware.RequireStaff(),
				middleware.AuditAction(audit.ActionExamClosed), examHandlers.CloseExamHandler())
			examGroup.POST("/violation", middleware.RequireStudent(), examHandlers.ReportViolationHandler())

			examGroup.GET("/assignments/:assignment_id/submit",
				middleware.AuditAction(audit.ActionSubmission), submissionHandlers.SubmitHandler())
			examGroup.GET("/submissions", submissionHandlers.ListMySubmissionsHandler())
			examGroup.GET("/submissions/:submission_id", submissionHandlers.GetSubmissionHandler())
			examGroup.GET("/results", submissionHandlers.ResultsHandler())
		}

		apiV1.GET("/submissions", middleware.RequireStaff(), submissionHandlers.ListAllSubmissionsHandler())
		apiV1.GET("/assignments/:assignment_id/allowance", submissionHandlers.AllowanceHandler())
	}

	return router, bg, nil
}

func (bg *BackgroundServices) exchangeLimiter(cfg *config.Config, rdb redis.Cmdable) middleware.Limiter {
	rlCfg := middleware.ExchangeRateLimitConfig()
	if n := cfg.Security.RateLimiting.ExchangeRequestsPerMinute; n > 0 {
		rlCfg.RequestsPerMinute = n
	}
	if rdb != nil {
		return middleware.NewRedisRateLimiter(rdb, "exchange", rlCfg)
	}
	rl := middleware.NewRateLimiter(rlCfg)
	bg.rateLimiters = append(bg.rateLimiters, rl)
	return rl
}

func (bg *BackgroundServices) generalLimiter(cfg *config.Config) middleware.Limiter {
	rlCfg := middleware.DefaultRateLimitConfig()
	if n := cfg.Security.RateLimiting.RequestsPerMinute; n > 0 {
		rlCfg.RequestsPerMinute = n
	}
	if n := cfg.Security.RateLimiting.Burst; n > 0 {
		rlCfg.BurstSize = n
	}
	rl := middleware.NewRateLimiter(rlCfg)
	bg.rateLimiters = append(bg.rateLimiters, rl)
	return rl
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Checks the database and the catalog storage backend, and reports whether the exam is still active.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true"
// @Failure      503  {object}  map[string]interface{}  "ready: false"
// @Router       /ready [get]
// readinessHandler also probes the catalog storage backend so a readiness gate
// fails when the documents could not be reloaded after a restart.
func readinessHandler(db *sql.DB, store storage.Storage, cat *catalog.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.PingContext(c.Request.Context()); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		// A sentinel path exercises credentials and connectivity without creating state.
		if _, err := store.Exists(c.Request.Context(), ".readiness-probe"); err != nil {
			checks["storage"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "storage backend not ready",
			})
			return
		}
		checks["storage"] = "healthy"

		if cat.Active() {
			checks["exam"] = "active"
		} else {
			checks["exam"] = "closed"
			checks["exam_closed_at"] = cat.DeactivatedAt().UTC().Format(time.RFC3339)
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Description  Returns the server version and the fingerprint of the loaded catalog.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version, catalog"
// @Router       /version [get]
func versionHandler(cat *catalog.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     Version,
			"api_version": "v1",
			"catalog":     cat.Fingerprint(),
		})
	}
}

// LoggerMiddleware provides structured request logging. The output format
// follows the global slog handler configured by telemetry.NewLogger.
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}

		requestID, _ := c.Get(middleware.RequestIDKey)
		userID, _ := c.Get(middleware.UserIDKey)
		slog.LogAttrs(
			c.Request.Context(),
			level,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", fmt.Sprintf("%v", requestID)),
			slog.String("user_id", fmt.Sprintf("%v", userID)),
			slog.String("service", cfg.Telemetry.ServiceName),
		)
	}
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	methods := "GET, POST, OPTIONS"
	if len(cfg.Security.CORS.AllowedMethods) > 0 {
		methods = strings.Join(cfg.Security.CORS.AllowedMethods, ", ")
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", methods)
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
