package middleware

import (
	"os"
	"testing"

	"github.com/hogwarts-exams/proctor/internal/auth"
)

func TestMain(m *testing.M) {
	os.Setenv(auth.SecretEnvVar, "test-jwt-secret-that-is-32-chars!!")
	os.Exit(m.Run())
}
