package submissions

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hogwarts-exams/proctor/internal/catalog"
	"github.com/hogwarts-exams/proctor/internal/config"
	"github.com/hogwarts-exams/proctor/internal/db/models"
	"github.com/hogwarts-exams/proctor/internal/grading"
	"github.com/hogwarts-exams/proctor/internal/middleware"
	"github.com/hogwarts-exams/proctor/internal/services"
)

const userHeader = "X-albus-user-id"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// completions is a CompletionStore keyed by exam/student
type completions struct {
	mu   sync.Mutex
	done map[string]bool
}

func (s *completions) Get(_ context.Context, examID, studentID string) (*models.ExamCompletion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done[examID+"/"+studentID] {
		return &models.ExamCompletion{ExamID: examID, StudentID: studentID, Reason: models.CompletionReasonStudent}, nil
	}
	return nil, nil
}

func (s *completions) Create(_ context.Context, c *models.ExamCompletion) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := c.ExamID + "/" + c.StudentID
	if s.done[key] {
		return false, nil
	}
	s.done[key] = true
	return true, nil
}

func (s *completions) RecordWithThreshold(context.Context, *models.ExamViolation, int) (bool, error) {
	return false, nil
}

// forwarded is one request seen by the fake grading service
type forwarded struct {
	Method string
	Path   string
	Query  string
	User   string
	Body   map[string]string
}

type fixture struct {
	store   *completions
	router  *gin.Engine
	mu      sync.Mutex
	seen    []forwarded
	status  int
	payload string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   &completions{done: map[string]bool{}},
		status:  http.StatusOK,
		payload: `{"id":"sub-1","status":"QUEUED"}`,
	}

	minerva := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := forwarded{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, User: r.Header.Get(userHeader)}
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			_ = json.Unmarshal(b, &rec.Body)
		}
		f.mu.Lock()
		f.seen = append(f.seen, rec)
		status, payload := f.status, f.payload
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, payload)
	}))
	t.Cleanup(minerva.Close)

	client := grading.New(context.Background(), &config.GradingConfig{
		BaseURL:    minerva.URL,
		UserHeader: userHeader,
		Timeout:    time.Second,
		PageSize:   50,
	})

	cat, err := catalog.New(
		&catalog.Exam{ID: "potions-final"},
		[]catalog.Environment{{ID: "py311", Name: "python-3.11", DockerImage: "python:3.11"}},
		[]catalog.Assignment{{ID: "a1", Name: "Polyjuice"}},
	)
	require.NoError(t, err)

	tracker := services.NewTracker(f.store, f.store, cat, 3, []string{models.ViolationTab}, nil)
	h := NewHandlers(tracker, cat, client)

	r := gin.New()
	r.Use(middleware.ErrorHandler(), asCaller)
	r.GET("/api/v1/exams/:exam_id/assignments/:assignment_id/submit", h.SubmitHandler())
	r.GET("/api/v1/exams/:exam_id/submissions", h.ListMySubmissionsHandler())
	r.GET("/api/v1/submissions", middleware.RequireStaff(), h.ListAllSubmissionsHandler())
	r.GET("/api/v1/exams/:exam_id/submissions/:submission_id", h.GetSubmissionHandler())
	r.GET("/api/v1/assignments/:assignment_id/allowance", h.AllowanceHandler())
	r.GET("/api/v1/exams/:exam_id/results", h.ResultsHandler())
	f.router = r
	return f
}

// asCaller resolves the caller from the X-Test-User header; ids starting with
// "staff" are staff.
func asCaller(c *gin.Context) {
	id := c.GetHeader("X-Test-User")
	role := models.RoleStudent
	if strings.HasPrefix(id, "staff") {
		role = models.RoleStaff
	}
	c.Set(middleware.UserIDKey, id)
	c.Set(middleware.IdentityKey, models.Identity{ID: id, Role: role})
	c.Next()
}

func (f *fixture) get(user, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(http.MethodGet, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Test-User", user)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) respondWith(status int, payload string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status, f.payload = status, payload
}

func (f *fixture) forwarded() []forwarded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]forwarded(nil), f.seen...)
}

const submitPath = "/api/v1/exams/potions-final/assignments/a1/submit"

// ---------------------------------------------------------------------------
// SubmitHandler
// ---------------------------------------------------------------------------

func TestSubmit_Accepted(t *testing.T) {
	f := newFixture(t)

	w := f.get("student-1", submitPath, `{"environment":"python-3.11","content":"print(42)"}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.JSONEq(t, `{"data":{"id":"sub-1","status":"QUEUED"}}`, w.Body.String())

	seen := f.forwarded()
	require.Len(t, seen, 1)
	assert.Equal(t, http.MethodPost, seen[0].Method)
	assert.Equal(t, "/api/v1/submissions", seen[0].Path)
	assert.Equal(t, "student-1", seen[0].User)
	assert.Equal(t, map[string]string{
		"assignment_id":   "a1",
		"assignment_name": "Polyjuice",
		"environment":     "python-3.11",
		"exam_id":         "potions-final",
		"content":         "print(42)",
	}, seen[0].Body)
}

func TestSubmit_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"missing content", submitPath, `{"environment":"py311"}`, http.StatusBadRequest, "Code submission is invalid."},
		{"missing environment", submitPath, `{"content":"print(42)"}`, http.StatusBadRequest, "Code submission is invalid."},
		{"empty body", submitPath, "", http.StatusBadRequest, "Code submission is invalid."},
		{"invalid checked before exam", "/api/v1/exams/charms-final/assignments/a1/submit", `{"content":"x"}`, http.StatusBadRequest, "Code submission is invalid."},
		{"unknown exam", "/api/v1/exams/charms-final/assignments/a1/submit", `{"environment":"py311","content":"x"}`, http.StatusNotFound, "Exam not found"},
		{"unknown assignment", "/api/v1/exams/potions-final/assignments/a9/submit", `{"environment":"py311","content":"x"}`, http.StatusNotFound, "Assignment not found."},
		{"unknown environment", submitPath, `{"environment":"cobol","content":"x"}`, http.StatusNotFound, "Environment not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			w := f.get("student-1", tt.path, tt.body)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.JSONEq(t, `{"error":"`+tt.wantErr+`"}`, w.Body.String())
			assert.Empty(t, f.forwarded(), "nothing reaches the grading service")
		})
	}
}

func TestSubmit_AfterCompletion(t *testing.T) {
	f := newFixture(t)
	f.store.done["potions-final/student-1"] = true

	w := f.get("student-1", submitPath, `{"environment":"py311","content":"x"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, f.forwarded())
}

func TestSubmit_UpstreamFailure(t *testing.T) {
	f := newFixture(t)
	f.respondWith(http.StatusInternalServerError, `{"detail":"worker crashed"}`)

	w := f.get("student-1", submitPath, `{"environment":"py311","content":"x"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"error":"Grading service error"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "worker crashed")
}

// ---------------------------------------------------------------------------
// Listing and lookups
// ---------------------------------------------------------------------------

func TestListMySubmissions_Pagination(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"", "limit=50&offset=0"},
		{"?offset=100&limit=10", "limit=10&offset=100"},
		{"?limit=500", "limit=50&offset=0"},
		{"?offset=-3&limit=zero", "limit=50&offset=0"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			f := newFixture(t)
			f.respondWith(http.StatusOK, `[]`)

			w := f.get("student-1", "/api/v1/exams/potions-final/submissions"+tt.query, "")
			require.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"data":[]}`, w.Body.String())

			seen := f.forwarded()
			require.Len(t, seen, 1)
			assert.Equal(t, "/api/v1/exams/potions-final/submissions", seen[0].Path)
			assert.Equal(t, tt.want, seen[0].Query)
		})
	}
}

func TestListAllSubmissions_StaffOnly(t *testing.T) {
	f := newFixture(t)

	w := f.get("student-1", "/api/v1/submissions", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, f.forwarded())

	w = f.get("staff-1", "/api/v1/submissions", "")
	require.Equal(t, http.StatusOK, w.Code)
	seen := f.forwarded()
	require.Len(t, seen, 1)
	assert.Equal(t, "staff-1", seen[0].User)
}

func TestGetSubmission(t *testing.T) {
	f := newFixture(t)

	w := f.get("student-1", "/api/v1/exams/potions-final/submissions/sub-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/api/v1/submissions/sub-1", f.forwarded()[0].Path)

	f.respondWith(http.StatusNotFound, `{"detail":"no such submission"}`)
	w = f.get("student-1", "/api/v1/exams/potions-final/submissions/sub-9", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Not found in grading service"}`, w.Body.String())
}

func TestAllowance(t *testing.T) {
	f := newFixture(t)
	f.respondWith(http.StatusOK, `{"remaining":4}`)

	w := f.get("student-1", "/api/v1/assignments/a1/allowance", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"remaining":4}}`, w.Body.String())

	w = f.get("student-1", "/api/v1/assignments/a9/allowance", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Len(t, f.forwarded(), 1)
}

// ---------------------------------------------------------------------------
// ResultsHandler
// ---------------------------------------------------------------------------

func TestResults_RequiresCompletion(t *testing.T) {
	f := newFixture(t)

	w := f.get("student-1", "/api/v1/exams/potions-final/results", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"Exam not completed"}`, w.Body.String())
	assert.Empty(t, f.forwarded())

	f.store.done["potions-final/student-1"] = true
	w = f.get("student-1", "/api/v1/exams/potions-final/results", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/api/v1/exams/potions-final/results", f.forwarded()[0].Path)
}

func TestResults_StaffBypass(t *testing.T) {
	f := newFixture(t)

	w := f.get("staff-1", "/api/v1/exams/potions-final/results", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
