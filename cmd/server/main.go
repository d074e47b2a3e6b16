// @title           Proctor API
// @version         1.0.0
// @description     Exam proctoring backend: session exchange, exam access, violation tracking and a gateway to the Minerva grading service.
// @basePath        /
// @schemes         http https
// @securityDefinitions.apiKey  Bearer
// @in                          header
// @name                        Authorization
// @description                 "Session token: 'Bearer {token}'"
//
// @tag.name         System
// @tag.description  Health, readiness and version endpoints.
//
// @tag.name         Observability
// @tag.description  Prometheus metrics and pprof are served on dedicated side-channel ports, never by the Gin router. Configure them with PROCTOR_TELEMETRY_METRICS_PROMETHEUS_PORT and PROCTOR_TELEMETRY_PROFILING_PORT.

// Package main is the entry point for the proctor server binary. It dispatches
// three subcommands (serve, migrate and version) with a plain switch on
// os.Args. serve applies pending migrations before listening.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // #nosec G108 -- served only on the dedicated profiling port
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hogwarts-exams/proctor/internal/api"
	"github.com/hogwarts-exams/proctor/internal/audit"
	"github.com/hogwarts-exams/proctor/internal/auth"
	"github.com/hogwarts-exams/proctor/internal/catalog"
	"github.com/hogwarts-exams/proctor/internal/config"
	"github.com/hogwarts-exams/proctor/internal/db"
	"github.com/hogwarts-exams/proctor/internal/db/repositories"
	"github.com/hogwarts-exams/proctor/internal/grading"
	"github.com/hogwarts-exams/proctor/internal/services"
	"github.com/hogwarts-exams/proctor/internal/storage"
	"github.com/hogwarts-exams/proctor/internal/telemetry"

	// Catalog storage backends register themselves
	_ "github.com/hogwarts-exams/proctor/internal/storage/azure"
	_ "github.com/hogwarts-exams/proctor/internal/storage/gcs"
	_ "github.com/hogwarts-exams/proctor/internal/storage/local"
	_ "github.com/hogwarts-exams/proctor/internal/storage/s3"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	if command == "version" {
		fmt.Printf("proctor %s\n", api.Version)
		return nil
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch command {
	case "serve":
		return serve(cfg)
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down>", os.Args[0])
		}
		return runMigrations(cfg, os.Args[2])
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, version", command)
	}
}

func serve(cfg *config.Config) error {
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level, cfg.Telemetry.ServiceName)

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := auth.ValidateJWTSecret(); err != nil {
		return fmt.Errorf("security configuration error: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()
	slog.Info("connected to database", "host", cfg.Database.Host, "name", cfg.Database.Name)

	telemetry.StartDBStatsCollector(ctx, database, 30*time.Second)

	if err := db.RunMigrations(database, "up"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if version, dirty, err := db.GetMigrationVersion(database); err != nil {
		slog.Warn("failed to get migration version", "error", err)
	} else {
		slog.Info("database schema ready", "version", version, "dirty", dirty)
	}

	svc, closeServices, err := buildServices(ctx, cfg, sqlx.NewDb(database, "postgres"))
	if err != nil {
		return err
	}
	defer closeServices()

	startSideServers(cfg)

	router, bgServices, err := api.NewRouter(cfg, svc)
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	server := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", cfg.Server.GetAddress(),
			"catalog_backend", cfg.Catalog.Backend,
			"session_store", cfg.Auth.SessionStore,
			"tls", cfg.Security.TLS.Enabled)

		var err error
		if cfg.Security.TLS.Enabled {
			err = server.ListenAndServeTLS(cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		bgServices.Shutdown()
		return fmt.Errorf("server failed: %w", err)
	}

	slog.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	bgServices.Shutdown()

	slog.Info("server stopped gracefully")
	return nil
}

// buildServices loads the catalog and wires repositories, session storage,
// the grading client and audit shipping. The returned func releases them.
func buildServices(ctx context.Context, cfg *config.Config, database *sqlx.DB) (*api.Services, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*api.Services, func(), error) {
		closeAll()
		return nil, nil, err
	}

	store, err := storage.NewStorage(&cfg.Catalog)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize catalog storage: %w", err))
	}
	cat, err := catalog.Load(ctx, store, catalog.Files{
		Environments: cfg.Catalog.EnvironmentsFile,
		Exam:         cfg.Catalog.ExamFile,
		Assignments:  cfg.Catalog.AssignmentsFile,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to load catalog: %w", err))
	}
	telemetry.ExamActive.Set(1)

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fail(fmt.Errorf("failed to connect to redis: %w", err))
		}
		slog.Info("connected to redis", "addr", cfg.Redis.Addr)
	}

	var sessions auth.SessionStore
	switch cfg.Auth.SessionStore {
	case "redis":
		if rdb == nil {
			return fail(errors.New("auth.session_store=redis requires redis.enabled"))
		}
		sessions = auth.NewRedisSessionStore(rdb)
	default:
		sessions = auth.NewMemorySessionStore(5 * time.Minute)
	}
	tokens := auth.NewTokenManager(cfg.Auth.TokenLifetime, cfg.Auth.Issuer, sessions)

	var shipper audit.Shipper
	if cfg.Audit.Enabled {
		ms, err := audit.NewMultiShipper(cfg.Audit.Shippers)
		if err != nil {
			return fail(fmt.Errorf("failed to initialize audit shippers: %w", err))
		}
		closers = append(closers, func() {
			if err := ms.Close(); err != nil {
				slog.Warn("failed to close audit shippers", "error", err)
			}
		})
		shipper = ms
	}

	completions := repositories.NewCompletionRepository(database)
	violations := repositories.NewViolationRepository(database)
	exchanger := auth.NewExchanger(
		repositories.NewAccessIdentifierRepository(database),
		repositories.NewStudentRepository(database),
		repositories.NewStaffRepository(database.DB),
		cat,
		tokens,
	)

	svc := &api.Services{
		DB:        database.DB,
		Storage:   store,
		Catalog:   cat,
		Tokens:    tokens,
		Exchanger: exchanger,
		Tracker:   services.NewTracker(completions, violations, cat, cfg.Exam.ViolationsLimitPerExam, cfg.Exam.ViolationTypes, shipper),
		Grading:   grading.New(ctx, &cfg.Grading),
		Shipper:   shipper,
	}
	if rdb != nil {
		svc.Redis = rdb
	}
	return svc, closeAll, nil
}

// startSideServers serves Prometheus metrics and pprof on their own ports so
// neither is reachable through the public listener.
func startSideServers(cfg *config.Config) {
	if cfg.Telemetry.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go listenSide("metrics", fmt.Sprintf(":%d", cfg.Telemetry.Metrics.PrometheusPort), mux, 10*time.Second)
	}
	if cfg.Telemetry.Profiling.Enabled {
		// net/http/pprof registers on http.DefaultServeMux at init
		go listenSide("pprof", fmt.Sprintf(":%d", cfg.Telemetry.Profiling.Port), http.DefaultServeMux, 30*time.Second)
	}
}

func listenSide(name, addr string, handler http.Handler, timeout time.Duration) {
	slog.Info("starting side server", "name", name, "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("side server error", "name", name, "error", err)
	}
}

func runMigrations(cfg *config.Config, direction string) error {
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level, cfg.Telemetry.ServiceName)

	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	slog.Info("running migrations", "direction", direction)
	if err := db.RunMigrations(database, direction); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	slog.Info("migration completed", "version", version, "dirty", dirty)
	return nil
}
