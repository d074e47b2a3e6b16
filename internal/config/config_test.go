package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// DatabaseConfig.GetDSN
// ---------------------------------------------------------------------------

func TestGetDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "standard config",
			cfg: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "proctor",
				Password: "secret",
				Name:     "proctor",
				SSLMode:  "require",
			},
			want: "host=localhost port=5432 user=proctor password=secret dbname=proctor sslmode=require",
		},
		{
			name: "empty password",
			cfg: DatabaseConfig{
				Host:    "db.internal",
				Port:    5433,
				User:    "user",
				Name:    "exams",
				SSLMode: "disable",
			},
			want: "host=db.internal port=5433 user=user password= dbname=exams sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetDSN(); got != tt.want {
				t.Errorf("GetDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// ServerConfig.GetAddress
// ---------------------------------------------------------------------------

func TestGetAddress(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
		want string
	}{
		{"default", ServerConfig{Host: "0.0.0.0", Port: 8080}, "0.0.0.0:8080"},
		{"localhost", ServerConfig{Host: "localhost", Port: 3000}, "localhost:3000"},
		{"empty host", ServerConfig{Host: "", Port: 8080}, ":8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetAddress(); got != tt.want {
				t.Errorf("GetAddress() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// ExamConfig.ClosingTime
// ---------------------------------------------------------------------------

func TestClosingTime(t *testing.T) {
	t.Run("empty means never", func(t *testing.T) {
		e := ExamConfig{}
		got, err := e.ClosingTime()
		if err != nil {
			t.Fatalf("ClosingTime() error: %v", err)
		}
		if !got.IsZero() {
			t.Errorf("ClosingTime() = %v, want zero", got)
		}
	})

	t.Run("RFC3339 parsed", func(t *testing.T) {
		e := ExamConfig{ClosesAt: "2026-06-01T12:00:00Z"}
		got, err := e.ClosingTime()
		if err != nil {
			t.Fatalf("ClosingTime() error: %v", err)
		}
		want := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("ClosingTime() = %v, want %v", got, want)
		}
	})

	t.Run("garbage rejected", func(t *testing.T) {
		e := ExamConfig{ClosesAt: "next tuesday"}
		if _, err := e.ClosingTime(); err == nil {
			t.Error("ClosingTime() expected error, got nil")
		}
	})
}

// ---------------------------------------------------------------------------
// Config.Validate
// ---------------------------------------------------------------------------

func minimalValidConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host: "localhost",
			Name: "proctor",
			User: "proctor",
		},
		Auth: AuthConfig{
			TokenLifetime: 180 * time.Minute,
			Issuer:        "proctor",
			SessionStore:  "memory",
		},
		Exam: ExamConfig{
			ViolationsLimitPerExam: 3,
			ViolationTypes:         []string{"TAB_VIOLATION"},
		},
		Catalog: CatalogConfig{
			Backend:          "local",
			EnvironmentsFile: "environments.json",
			ExamFile:         "exam.json",
			AssignmentsFile:  "assignments.json",
			Local:            LocalStorageConfig{BasePath: "./resources"},
		},
		Grading: GradingConfig{
			BaseURL:    "http://localhost:9091",
			UserHeader: "X-albus-user-id",
			Timeout:    3 * time.Second,
			PageSize:   50,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid minimal config passes", func(t *testing.T) {
		if err := minimalValidConfig().Validate(); err != nil {
			t.Errorf("Validate() unexpected error: %v", err)
		}
	})

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"missing db host", func(c *Config) { c.Database.Host = "" }, "database.host"},
		{"missing db name", func(c *Config) { c.Database.Name = "" }, "database.name"},
		{"missing db user", func(c *Config) { c.Database.User = "" }, "database.user"},
		{"zero token lifetime", func(c *Config) { c.Auth.TokenLifetime = 0 }, "auth.token_lifetime"},
		{"unknown session store", func(c *Config) { c.Auth.SessionStore = "etcd" }, "auth.session_store"},
		{"redis store without redis", func(c *Config) { c.Auth.SessionStore = "redis" }, "redis.enabled"},
		{"redis enabled without addr", func(c *Config) { c.Redis.Enabled = true }, "redis.addr"},
		{"violation limit zero", func(c *Config) { c.Exam.ViolationsLimitPerExam = 0 }, "violations_limit_per_exam"},
		{"no violation types", func(c *Config) { c.Exam.ViolationTypes = nil }, "violation_types"},
		{"bad closes_at", func(c *Config) { c.Exam.ClosesAt = "soon" }, "exam.closes_at"},
		{"missing exam file", func(c *Config) { c.Catalog.ExamFile = "" }, "catalog.exam_file"},
		{"unknown catalog backend", func(c *Config) { c.Catalog.Backend = "ftp" }, "invalid catalog backend"},
		{"local without base path", func(c *Config) { c.Catalog.Local.BasePath = "" }, "catalog.local.base_path"},
		{"s3 without bucket", func(c *Config) { c.Catalog.Backend = "s3"; c.Catalog.S3.Region = "eu-west-1" }, "catalog.s3.bucket"},
		{"s3 without region", func(c *Config) { c.Catalog.Backend = "s3"; c.Catalog.S3.Bucket = "b" }, "catalog.s3.region"},
		{"gcs without bucket", func(c *Config) { c.Catalog.Backend = "gcs" }, "catalog.gcs.bucket"},
		{"azure without account", func(c *Config) { c.Catalog.Backend = "azure" }, "catalog.azure.account_name"},
		{"missing grading url", func(c *Config) { c.Grading.BaseURL = "" }, "grading.base_url"},
		{"missing user header", func(c *Config) { c.Grading.UserHeader = "" }, "grading.user_header"},
		{"zero grading timeout", func(c *Config) { c.Grading.Timeout = 0 }, "grading.timeout"},
		{"oauth2 without token url", func(c *Config) { c.Grading.OAuth2.Enabled = true }, "grading.oauth2"},
		{"tls without cert", func(c *Config) { c.Security.TLS.Enabled = true }, "cert_file"},
		{"tls without key", func(c *Config) { c.Security.TLS.Enabled = true; c.Security.TLS.CertFile = "c.pem" }, "key_file"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "invalid logging level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := minimalValidConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want substring %q", err.Error(), tt.wantErr)
			}
		})
	}

	t.Run("redis session store with redis enabled passes", func(t *testing.T) {
		cfg := minimalValidConfig()
		cfg.Auth.SessionStore = "redis"
		cfg.Redis = RedisConfig{Enabled: true, Addr: "localhost:6379"}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() unexpected error: %v", err)
		}
	})
}

// ---------------------------------------------------------------------------
// expandEnv
// ---------------------------------------------------------------------------

func TestExpandEnv(t *testing.T) {
	t.Run("expands ${VAR} syntax", func(t *testing.T) {
		t.Setenv("CONFIG_TEST_SECRET", "super-secret")
		if got := expandEnv("${CONFIG_TEST_SECRET}"); got != "super-secret" {
			t.Errorf("expandEnv() = %q, want %q", got, "super-secret")
		}
	})

	t.Run("plain string passthrough", func(t *testing.T) {
		if got := expandEnv("no-vars-here"); got != "no-vars-here" {
			t.Errorf("expandEnv() = %q, want %q", got, "no-vars-here")
		}
	})

	t.Run("unset variable expands to empty string", func(t *testing.T) {
		os.Unsetenv("CONFIG_TEST_DEFINITELY_UNSET_12345")
		if got := expandEnv("${CONFIG_TEST_DEFINITELY_UNSET_12345}"); got != "" {
			t.Errorf("expandEnv() = %q, want empty string", got)
		}
	})
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

// writeTempConfig creates a temp YAML file and registers a cleanup to remove it.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp("", "config-test-*.yaml")
	if err != nil {
		t.Fatal("CreateTemp:", err)
	}
	t.Cleanup(func() { os.Remove(f.Name()) })
	if _, err := f.WriteString(content); err != nil {
		t.Fatal("WriteString:", err)
	}
	f.Close()
	return f.Name()
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, "logging:\n  level: info\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("default Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Auth.TokenLifetime != 180*time.Minute {
		t.Errorf("default Auth.TokenLifetime = %v, want 180m", cfg.Auth.TokenLifetime)
	}
	if cfg.Auth.SessionStore != "memory" {
		t.Errorf("default Auth.SessionStore = %q, want memory", cfg.Auth.SessionStore)
	}
	if cfg.Exam.ViolationsLimitPerExam != 3 {
		t.Errorf("default Exam.ViolationsLimitPerExam = %d, want 3", cfg.Exam.ViolationsLimitPerExam)
	}
	if cfg.Grading.BaseURL != "http://localhost:9091" {
		t.Errorf("default Grading.BaseURL = %q", cfg.Grading.BaseURL)
	}
	if cfg.Grading.UserHeader != "X-albus-user-id" {
		t.Errorf("default Grading.UserHeader = %q", cfg.Grading.UserHeader)
	}
	if cfg.Grading.Timeout != 3*time.Second {
		t.Errorf("default Grading.Timeout = %v, want 3s", cfg.Grading.Timeout)
	}
	if cfg.Grading.PageSize != 50 {
		t.Errorf("default Grading.PageSize = %d, want 50", cfg.Grading.PageSize)
	}
	if cfg.Catalog.Backend != "local" || cfg.Catalog.Local.BasePath != "./resources" {
		t.Errorf("default Catalog = %+v", cfg.Catalog)
	}
}

func TestLoad_WithConfigFile(t *testing.T) {
	const content = `
server:
  host: "testhost"
  port: 9999
database:
  host: "dbhost"
  name: "testdb"
  user: "testuser"
exam:
  violations_limit_per_exam: 5
  violation_types: ["TAB_VIOLATION"]
grading:
  base_url: "http://minerva:9091"
logging:
  level: "debug"
`
	cfg, err := Load(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Host != "testhost" || cfg.Server.Port != 9999 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Database.Host != "dbhost" {
		t.Errorf("Database.Host = %q, want dbhost", cfg.Database.Host)
	}
	if cfg.Exam.ViolationsLimitPerExam != 5 {
		t.Errorf("Exam.ViolationsLimitPerExam = %d, want 5", cfg.Exam.ViolationsLimitPerExam)
	}
	if len(cfg.Exam.ViolationTypes) != 1 || cfg.Exam.ViolationTypes[0] != "TAB_VIOLATION" {
		t.Errorf("Exam.ViolationTypes = %v", cfg.Exam.ViolationTypes)
	}
	if cfg.Grading.BaseURL != "http://minerva:9091" {
		t.Errorf("Grading.BaseURL = %q", cfg.Grading.BaseURL)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("PROCTOR_DATABASE_HOST", "from-env")
	t.Setenv("PROCTOR_EXAM_VIOLATIONS_LIMIT_PER_EXAM", "7")

	const content = `
database:
  host: "from-file"
`
	cfg, err := Load(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Database.Host != "from-env" {
		t.Errorf("Database.Host = %q, want from-env", cfg.Database.Host)
	}
	if cfg.Exam.ViolationsLimitPerExam != 7 {
		t.Errorf("Exam.ViolationsLimitPerExam = %d, want 7", cfg.Exam.ViolationsLimitPerExam)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_DB_PASS", "mysecret")
	const content = `
database:
  password: "${TEST_DB_PASS}"
`
	cfg, err := Load(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Database.Password != "mysecret" {
		t.Errorf("Database.Password = %q, want mysecret", cfg.Database.Password)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeTempConfig(t, "server: [unclosed")); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_InvalidValuesRejected(t *testing.T) {
	const content = `
auth:
  session_store: "etcd"
`
	_, err := Load(writeTempConfig(t, content))
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("Load() error = %v, want invalid configuration", err)
	}
}
