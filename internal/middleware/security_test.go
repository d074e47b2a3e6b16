package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func applySecurityHeaders(cfg SecurityHeadersConfig, handler gin.HandlerFunc) *httptest.ResponseRecorder {
	r := gin.New()
	r.Use(ErrorHandler(), SecurityHeadersMiddleware(cfg))
	r.GET("/", handler)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		tls      bool
		wantHSTS string
	}{
		{"plain http", false, ""},
		{"tls", true, "max-age=31536000; includeSubDomains"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := applySecurityHeaders(APISecurityHeadersConfig(tt.tls), func(c *gin.Context) { c.Status(http.StatusOK) })

			if got := w.Header().Get("Strict-Transport-Security"); got != tt.wantHSTS {
				t.Errorf("Strict-Transport-Security = %q, want %q", got, tt.wantHSTS)
			}
			want := map[string]string{
				"X-Frame-Options":         "DENY",
				"X-Content-Type-Options":  "nosniff",
				"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
				"Referrer-Policy":         "no-referrer",
				"Cache-Control":           "no-store",
			}
			for h, v := range want {
				if got := w.Header().Get(h); got != v {
					t.Errorf("%s = %q, want %q", h, got, v)
				}
			}
		})
	}
}

func TestSecurityHeadersMiddleware_OnErrors(t *testing.T) {
	w := applySecurityHeaders(APISecurityHeadersConfig(false), func(c *gin.Context) {
		_ = c.Error(errUnclassified)
	})

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing on error response")
	}
}

func TestSecurityHeadersMiddleware_EmptyValuesOmitted(t *testing.T) {
	w := applySecurityHeaders(SecurityHeadersConfig{}, func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, h := range []string{"Strict-Transport-Security", "X-Frame-Options", "Content-Security-Policy", "Referrer-Policy"} {
		if got := w.Header().Get(h); got != "" {
			t.Errorf("%s = %q, want unset", h, got)
		}
	}
}
