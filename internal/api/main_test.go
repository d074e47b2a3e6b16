package api

import (
	"os"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/hogwarts-exams/proctor/internal/auth"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Setenv(auth.SecretEnvVar, "test-jwt-secret-that-is-32-chars!!")
	os.Exit(m.Run())
}
