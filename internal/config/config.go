// Package config loads and validates the proctor configuration using Viper.
//
// Configuration is layered: built-in defaults < YAML config file < environment
// variables. Environment variables use the PROCTOR_ prefix (e.g.,
// PROCTOR_DATABASE_HOST overrides database.host in the YAML), so the same binary
// runs with a config.yaml locally and with plain environment variables in a
// container.
//
// The JWT signing secret is not part of this struct. It is read from
// PROCTOR_JWT_SECRET by the auth package at startup.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Exam      ExamConfig      `mapstructure:"exam"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Grading   GradingConfig   `mapstructure:"grading"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Audit     AuditConfig     `mapstructure:"audit"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	BaseURL      string        `mapstructure:"base_url"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Name               string `mapstructure:"name"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode"`
	MaxConnections     int    `mapstructure:"max_connections"`
	MinIdleConnections int    `mapstructure:"min_idle_connections"`
}

// AuthConfig holds session token configuration
type AuthConfig struct {
	// TokenLifetime is how long an exchanged access token stays valid
	TokenLifetime time.Duration `mapstructure:"token_lifetime"`
	// Issuer is written to and required in the iss claim
	Issuer string `mapstructure:"issuer"`
	// SessionStore selects where issued tokens are recorded: "memory" or "redis"
	SessionStore string `mapstructure:"session_store"`
}

// RedisConfig holds the optional Redis connection shared by the session store
// and the distributed rate limiter
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ExamConfig holds proctoring policy
type ExamConfig struct {
	// ViolationsLimitPerExam is the violation count at which a student is
	// completed out of the exam
	ViolationsLimitPerExam int      `mapstructure:"violations_limit_per_exam"`
	ViolationTypes         []string `mapstructure:"violation_types"`
	// ClosesAt optionally deactivates the exam at a fixed instant (RFC3339)
	ClosesAt           string        `mapstructure:"closes_at"`
	CloseCheckInterval time.Duration `mapstructure:"close_check_interval"`
}

// ClosingTime parses ClosesAt. The zero time means the exam never closes on its own.
func (e *ExamConfig) ClosingTime() (time.Time, error) {
	if e.ClosesAt == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, e.ClosesAt)
}

// CatalogConfig holds where the static exam, environment and assignment
// documents are read from
type CatalogConfig struct {
	Backend          string             `mapstructure:"backend"`
	EnvironmentsFile string             `mapstructure:"environments_file"`
	ExamFile         string             `mapstructure:"exam_file"`
	AssignmentsFile  string             `mapstructure:"assignments_file"`
	Local            LocalStorageConfig `mapstructure:"local"`
	S3               S3StorageConfig    `mapstructure:"s3"`
	GCS              GCSStorageConfig   `mapstructure:"gcs"`
	Azure            AzureStorageConfig `mapstructure:"azure"`
}

// LocalStorageConfig holds local filesystem configuration
type LocalStorageConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// S3StorageConfig holds S3-compatible storage configuration
type S3StorageConfig struct {
	// Endpoint is the S3-compatible endpoint URL (optional, for MinIO and friends)
	Endpoint string `mapstructure:"endpoint"`
	Region   string `mapstructure:"region"`
	Bucket   string `mapstructure:"bucket"`
	// Prefix is prepended to every document name
	Prefix string `mapstructure:"prefix"`

	// Authentication method: "default", "static", "oidc", "assume_role"
	AuthMethod string `mapstructure:"auth_method"`

	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`

	RoleARN              string `mapstructure:"role_arn"`
	RoleSessionName      string `mapstructure:"role_session_name"`
	ExternalID           string `mapstructure:"external_id"`
	WebIdentityTokenFile string `mapstructure:"web_identity_token_file"`
}

// GCSStorageConfig holds Google Cloud Storage configuration
type GCSStorageConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`

	// Authentication method: "default", "service_account", "workload_identity"
	AuthMethod      string `mapstructure:"auth_method"`
	CredentialsFile string `mapstructure:"credentials_file"`
	CredentialsJSON string `mapstructure:"credentials_json"`

	// Endpoint is an optional custom endpoint (GCS emulators)
	Endpoint string `mapstructure:"endpoint"`
}

// AzureStorageConfig holds Azure Blob Storage configuration
type AzureStorageConfig struct {
	AccountName   string `mapstructure:"account_name"`
	AccountKey    string `mapstructure:"account_key"`
	ContainerName string `mapstructure:"container_name"`
	Prefix        string `mapstructure:"prefix"`
	// ServiceURL overrides https://<account>.blob.core.windows.net/ (Azurite)
	ServiceURL string `mapstructure:"service_url"`
}

// GradingConfig holds the Minerva grading service client configuration
type GradingConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// UserHeader carries the caller's user id on every forwarded request
	UserHeader string        `mapstructure:"user_header"`
	Timeout    time.Duration `mapstructure:"timeout"`
	PageSize   int           `mapstructure:"page_size"`
	OAuth2     OAuth2Config  `mapstructure:"oauth2"`
}

// OAuth2Config holds optional client-credentials settings for the grading service
type OAuth2Config struct {
	Enabled      bool     `mapstructure:"enabled"`
	TokenURL     string   `mapstructure:"token_url"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	Scopes       []string `mapstructure:"scopes"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORS         CORSConfig         `mapstructure:"cors"`
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting"`
	TLS          TLSConfig          `mapstructure:"tls"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
}

// RateLimitingConfig holds rate limiting configuration
type RateLimitingConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
	// ExchangeRequestsPerMinute bounds identifier guessing on /access_url
	ExchangeRequestsPerMinute int `mapstructure:"exchange_requests_per_minute"`
}

// TLSConfig holds TLS/HTTPS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	ServiceName string          `mapstructure:"service_name"`
	Metrics     MetricsConfig   `mapstructure:"metrics"`
	Profiling   ProfilingConfig `mapstructure:"profiling"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	PrometheusPort int  `mapstructure:"prometheus_port"`
}

// ProfilingConfig holds profiling configuration
type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// AuditConfig holds audit event shipping configuration
type AuditConfig struct {
	Enabled  bool                 `mapstructure:"enabled"`
	Shippers []AuditShipperConfig `mapstructure:"shippers"`
}

// AuditShipperConfig holds configuration for a single audit shipper
type AuditShipperConfig struct {
	Enabled bool                `mapstructure:"enabled"`
	Type    string              `mapstructure:"type"` // webhook, file
	Webhook *AuditWebhookConfig `mapstructure:"webhook"`
	File    *AuditFileConfig    `mapstructure:"file"`
}

// AuditWebhookConfig holds webhook shipper configuration
type AuditWebhookConfig struct {
	URL           string            `mapstructure:"url"`
	Headers       map[string]string `mapstructure:"headers"`
	TimeoutSecs   int               `mapstructure:"timeout_secs"`
	BatchSize     int               `mapstructure:"batch_size"`
	FlushInterval int               `mapstructure:"flush_interval_secs"`
}

// AuditFileConfig holds file shipper configuration
type AuditFileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// bindEnvVars explicitly binds environment variables to config keys.
// AutomaticEnv() alone does not reach nested keys during Unmarshal.
func bindEnvVars(v *viper.Viper) error {
	keys := []string{
		// Server
		"server.host",
		"server.port",
		"server.base_url",
		"server.read_timeout",
		"server.write_timeout",

		// Database
		"database.host",
		"database.port",
		"database.name",
		"database.user",
		"database.password",
		"database.ssl_mode",
		"database.max_connections",
		"database.min_idle_connections",

		// Auth
		"auth.token_lifetime",
		"auth.issuer",
		"auth.session_store",

		// Redis
		"redis.enabled",
		"redis.addr",
		"redis.password",
		"redis.db",

		// Exam
		"exam.violations_limit_per_exam",
		"exam.violation_types",
		"exam.closes_at",
		"exam.close_check_interval",

		// Catalog
		"catalog.backend",
		"catalog.environments_file",
		"catalog.exam_file",
		"catalog.assignments_file",
		"catalog.local.base_path",
		"catalog.s3.endpoint",
		"catalog.s3.region",
		"catalog.s3.bucket",
		"catalog.s3.prefix",
		"catalog.s3.auth_method",
		"catalog.s3.access_key_id",
		"catalog.s3.secret_access_key",
		"catalog.s3.role_arn",
		"catalog.s3.role_session_name",
		"catalog.s3.external_id",
		"catalog.s3.web_identity_token_file",
		"catalog.gcs.bucket",
		"catalog.gcs.prefix",
		"catalog.gcs.auth_method",
		"catalog.gcs.credentials_file",
		"catalog.gcs.credentials_json",
		"catalog.gcs.endpoint",
		"catalog.azure.account_name",
		"catalog.azure.account_key",
		"catalog.azure.container_name",
		"catalog.azure.prefix",
		"catalog.azure.service_url",

		// Grading
		"grading.base_url",
		"grading.user_header",
		"grading.timeout",
		"grading.page_size",
		"grading.oauth2.enabled",
		"grading.oauth2.token_url",
		"grading.oauth2.client_id",
		"grading.oauth2.client_secret",
		"grading.oauth2.scopes",

		// Security
		"security.cors.allowed_origins",
		"security.cors.allowed_methods",
		"security.rate_limiting.enabled",
		"security.rate_limiting.requests_per_minute",
		"security.rate_limiting.burst",
		"security.rate_limiting.exchange_requests_per_minute",
		"security.tls.enabled",
		"security.tls.cert_file",
		"security.tls.key_file",

		// Logging
		"logging.level",
		"logging.format",

		// Telemetry
		"telemetry.service_name",
		"telemetry.metrics.enabled",
		"telemetry.metrics.prometheus_port",
		"telemetry.profiling.enabled",
		"telemetry.profiling.port",

		// Audit
		"audit.enabled",
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env var %q: %w", key, err)
		}
	}
	return nil
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/proctor")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and environment only
	}

	v.SetEnvPrefix("PROCTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Expand ${VAR} references in secrets
	cfg.Database.Password = expandEnv(cfg.Database.Password)
	cfg.Redis.Password = expandEnv(cfg.Redis.Password)
	cfg.Catalog.S3.AccessKeyID = expandEnv(cfg.Catalog.S3.AccessKeyID)
	cfg.Catalog.S3.SecretAccessKey = expandEnv(cfg.Catalog.S3.SecretAccessKey)
	cfg.Catalog.Azure.AccountKey = expandEnv(cfg.Catalog.Azure.AccountKey)
	cfg.Grading.OAuth2.ClientSecret = expandEnv(cfg.Grading.OAuth2.ClientSecret)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "proctor")
	v.SetDefault("database.user", "proctor")
	v.SetDefault("database.ssl_mode", "require")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_idle_connections", 5)

	// Auth defaults
	v.SetDefault("auth.token_lifetime", "180m")
	v.SetDefault("auth.issuer", "proctor")
	v.SetDefault("auth.session_store", "memory")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	// Exam defaults
	v.SetDefault("exam.violations_limit_per_exam", 3)
	v.SetDefault("exam.violation_types", []string{"COPY_PASTE_VIOLATION", "TAB_VIOLATION"})
	v.SetDefault("exam.closes_at", "")
	v.SetDefault("exam.close_check_interval", "1m")

	// Catalog defaults
	v.SetDefault("catalog.backend", "local")
	v.SetDefault("catalog.environments_file", "environments.json")
	v.SetDefault("catalog.exam_file", "exam.json")
	v.SetDefault("catalog.assignments_file", "assignments.json")
	v.SetDefault("catalog.local.base_path", "./resources")

	// Grading defaults
	v.SetDefault("grading.base_url", "http://localhost:9091")
	v.SetDefault("grading.user_header", "X-albus-user-id")
	v.SetDefault("grading.timeout", "3s")
	v.SetDefault("grading.page_size", 50)
	v.SetDefault("grading.oauth2.enabled", false)

	// Security defaults
	v.SetDefault("security.cors.allowed_origins", []string{"*"})
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("security.rate_limiting.enabled", true)
	v.SetDefault("security.rate_limiting.requests_per_minute", 300)
	v.SetDefault("security.rate_limiting.burst", 60)
	v.SetDefault("security.rate_limiting.exchange_requests_per_minute", 10)
	v.SetDefault("security.tls.enabled", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Telemetry defaults
	v.SetDefault("telemetry.service_name", "proctor")
	v.SetDefault("telemetry.metrics.enabled", true)
	v.SetDefault("telemetry.metrics.prometheus_port", 9090)
	v.SetDefault("telemetry.profiling.enabled", false)
	v.SetDefault("telemetry.profiling.port", 6060)

	// Audit defaults
	v.SetDefault("audit.enabled", false)
}

// expandEnv expands environment variables in the format ${VAR_NAME}
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}

	if c.Auth.TokenLifetime <= 0 {
		return fmt.Errorf("auth.token_lifetime must be positive")
	}
	switch c.Auth.SessionStore {
	case "memory":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("auth.session_store is redis but redis.enabled is false")
		}
	default:
		return fmt.Errorf("invalid auth.session_store: %s (must be memory or redis)", c.Auth.SessionStore)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}

	if c.Exam.ViolationsLimitPerExam < 1 {
		return fmt.Errorf("exam.violations_limit_per_exam must be at least 1")
	}
	if len(c.Exam.ViolationTypes) == 0 {
		return fmt.Errorf("exam.violation_types must not be empty")
	}
	if _, err := c.Exam.ClosingTime(); err != nil {
		return fmt.Errorf("invalid exam.closes_at: %w", err)
	}

	if err := c.Catalog.validate(); err != nil {
		return err
	}

	if c.Grading.BaseURL == "" {
		return fmt.Errorf("grading.base_url is required")
	}
	if c.Grading.UserHeader == "" {
		return fmt.Errorf("grading.user_header is required")
	}
	if c.Grading.Timeout <= 0 {
		return fmt.Errorf("grading.timeout must be positive")
	}
	if c.Grading.OAuth2.Enabled {
		if c.Grading.OAuth2.TokenURL == "" || c.Grading.OAuth2.ClientID == "" {
			return fmt.Errorf("grading.oauth2.token_url and grading.oauth2.client_id are required when oauth2 is enabled")
		}
	}

	if c.Security.TLS.Enabled {
		if c.Security.TLS.CertFile == "" {
			return fmt.Errorf("security.tls.cert_file is required when TLS is enabled")
		}
		if c.Security.TLS.KeyFile == "" {
			return fmt.Errorf("security.tls.key_file is required when TLS is enabled")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}

func (c *CatalogConfig) validate() error {
	if c.EnvironmentsFile == "" || c.ExamFile == "" || c.AssignmentsFile == "" {
		return fmt.Errorf("catalog.environments_file, catalog.exam_file and catalog.assignments_file are required")
	}

	switch c.Backend {
	case "local":
		if c.Local.BasePath == "" {
			return fmt.Errorf("catalog.local.base_path is required when using local backend")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return fmt.Errorf("catalog.s3.bucket is required when using S3 backend")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("catalog.s3.region is required when using S3 backend")
		}
	case "gcs":
		if c.GCS.Bucket == "" {
			return fmt.Errorf("catalog.gcs.bucket is required when using GCS backend")
		}
	case "azure":
		if c.Azure.AccountName == "" {
			return fmt.Errorf("catalog.azure.account_name is required when using Azure backend")
		}
		if c.Azure.AccountKey == "" {
			return fmt.Errorf("catalog.azure.account_key is required when using Azure backend")
		}
		if c.Azure.ContainerName == "" {
			return fmt.Errorf("catalog.azure.container_name is required when using Azure backend")
		}
	default:
		return fmt.Errorf("invalid catalog backend: %s (must be local, s3, gcs, or azure)", c.Backend)
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GetAddress returns the server address in host:port format
func (c *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
