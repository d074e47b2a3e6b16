package checksum

import (
	"errors"
	"strings"
	"testing"
)

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }

func TestCalculateSHA256(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			// echo -n "hello" | sha256sum
			name:  "hello",
			input: "hello",
			want:  "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		},
		{
			name:  "empty string",
			input: "",
			want:  "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateSHA256(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("CalculateSHA256() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("CalculateSHA256(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}

	t.Run("read error is propagated", func(t *testing.T) {
		if _, err := CalculateSHA256(errReader{}); err == nil {
			t.Error("CalculateSHA256() expected error from failing reader, got nil")
		}
	})
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("exam"), []byte("envs"), []byte("assignments"))
	b := Fingerprint([]byte("exam"), []byte("envs"), []byte("assignments"))
	if a != b {
		t.Error("Fingerprint() is not deterministic")
	}
	if len(a) != 64 {
		t.Errorf("Fingerprint() length = %d, want 64", len(a))
	}

	t.Run("document boundaries matter", func(t *testing.T) {
		x := Fingerprint([]byte("ab"), []byte("c"))
		y := Fingerprint([]byte("a"), []byte("bc"))
		if x == y {
			t.Error("Fingerprint() ignores document boundaries")
		}
	})

	t.Run("order matters", func(t *testing.T) {
		x := Fingerprint([]byte("one"), []byte("two"))
		y := Fingerprint([]byte("two"), []byte("one"))
		if x == y {
			t.Error("Fingerprint() ignores document order")
		}
	})
}

func TestShort(t *testing.T) {
	if got := Short("0123456789abcdef"); got != "0123456789ab" {
		t.Errorf("Short() = %q", got)
	}
	if got := Short("abc"); got != "abc" {
		t.Errorf("Short() = %q", got)
	}
}
