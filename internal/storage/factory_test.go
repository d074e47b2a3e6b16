package storage_test

import (
	"context"
	"io"
	"testing"

	"github.com/hogwarts-exams/proctor/internal/config"
	"github.com/hogwarts-exams/proctor/internal/storage"
)

// ---------------------------------------------------------------------------
// Minimal mock Storage implementation for Register tests
// ---------------------------------------------------------------------------

type mockStorage struct{}

func (m *mockStorage) Download(_ context.Context, _ string) (io.ReadCloser, error) { return nil, nil }
func (m *mockStorage) Exists(_ context.Context, _ string) (bool, error)            { return false, nil }
func (m *mockStorage) GetMetadata(_ context.Context, _ string) (*storage.FileMetadata, error) {
	return nil, nil
}

// ---------------------------------------------------------------------------
// Register / NewStorage
// ---------------------------------------------------------------------------

func TestRegister_AddsFactory(t *testing.T) {
	storage.Register("test-backend", func(_ *config.CatalogConfig) (storage.Storage, error) {
		return &mockStorage{}, nil
	})

	s, err := storage.NewStorage(&config.CatalogConfig{Backend: "test-backend"})
	if err != nil {
		t.Fatalf("NewStorage() error: %v", err)
	}
	if s == nil {
		t.Fatal("NewStorage() returned nil")
	}

	found := false
	for _, name := range storage.Backends() {
		if name == "test-backend" {
			found = true
		}
	}
	if !found {
		t.Errorf("Backends() = %v, missing test-backend", storage.Backends())
	}
}

func TestNewStorage_UnknownBackend(t *testing.T) {
	if _, err := storage.NewStorage(&config.CatalogConfig{Backend: "completely-unknown-backend"}); err == nil {
		t.Error("NewStorage() = nil error, want error for unregistered backend")
	}
}

// ---------------------------------------------------------------------------
// JoinPrefix
// ---------------------------------------------------------------------------

func TestJoinPrefix(t *testing.T) {
	tests := []struct {
		prefix, path, want string
	}{
		{"", "exam.json", "exam.json"},
		{"exams/2026", "exam.json", "exams/2026/exam.json"},
		{"exams/2026/", "exam.json", "exams/2026/exam.json"},
	}
	for _, tt := range tests {
		if got := storage.JoinPrefix(tt.prefix, tt.path); got != tt.want {
			t.Errorf("JoinPrefix(%q, %q) = %q, want %q", tt.prefix, tt.path, got, tt.want)
		}
	}
}
