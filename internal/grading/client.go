// Package grading is the client for Minerva, the external grading service that
// stores and grades code submissions. The proctoring server never interprets
// Minerva's response bodies; it forwards them to the caller as opaque JSON.
//
// Every request carries the caller's user id in a configurable header so
// Minerva can scope results to that user.
package grading

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/hogwarts-exams/proctor/internal/apierr"
	"github.com/hogwarts-exams/proctor/internal/config"
	"github.com/hogwarts-exams/proctor/internal/telemetry"
)

// maxErrorBody bounds how much of an upstream error body is kept for logging
const maxErrorBody = 512

// Client talks to the grading service
type Client struct {
	BaseURL    string
	UserHeader string
	HTTPClient *http.Client
	// PageSize is the page length used by the list routes
	PageSize int
}

// SubmitRequest is the body forwarded to the grading service on submit
type SubmitRequest struct {
	AssignmentID   string `json:"assignment_id"`
	AssignmentName string `json:"assignment_name"`
	Environment    string `json:"environment"`
	ExamID         string `json:"exam_id"`
	Content        string `json:"content"`
}

// New creates a client from configuration. With OAuth2 enabled, requests carry
// a client-credentials bearer token that is fetched and refreshed transparently.
func New(ctx context.Context, cfg *config.GradingConfig) *Client {
	base := &http.Client{Timeout: cfg.Timeout}

	httpClient := base
	if cfg.OAuth2.Enabled {
		cc := &clientcredentials.Config{
			ClientID:     cfg.OAuth2.ClientID,
			ClientSecret: cfg.OAuth2.ClientSecret,
			TokenURL:     cfg.OAuth2.TokenURL,
			Scopes:       cfg.OAuth2.Scopes,
		}
		httpClient = cc.Client(context.WithValue(ctx, oauth2.HTTPClient, base))
		httpClient.Timeout = cfg.Timeout
	}

	return &Client{
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		UserHeader: cfg.UserHeader,
		HTTPClient: httpClient,
		PageSize:   cfg.PageSize,
	}
}

// Submit forwards a code submission
func (c *Client) Submit(ctx context.Context, req *SubmitRequest, userID string) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode submission: %w", err)
	}
	return c.do(ctx, "submit", http.MethodPost, "/api/v1/submissions", nil, body, userID)
}

// ListMySubmissions lists the caller's submissions for an exam
func (c *Client) ListMySubmissions(ctx context.Context, examID string, offset, limit int, userID string) (json.RawMessage, error) {
	path := "/api/v1/exams/" + url.PathEscape(examID) + "/submissions"
	return c.do(ctx, "list_mine", http.MethodGet, path, page(offset, limit), nil, userID)
}

// ListAllSubmissions lists every submission. Callers restrict this to staff.
func (c *Client) ListAllSubmissions(ctx context.Context, offset, limit int, userID string) (json.RawMessage, error) {
	return c.do(ctx, "list_all", http.MethodGet, "/api/v1/submissions", page(offset, limit), nil, userID)
}

// GetSubmission fetches one submission
func (c *Client) GetSubmission(ctx context.Context, submissionID, userID string) (json.RawMessage, error) {
	return c.do(ctx, "get_submission", http.MethodGet, "/api/v1/submissions/"+url.PathEscape(submissionID), nil, nil, userID)
}

// GetAllowance returns how many submissions the caller has left for an assignment
func (c *Client) GetAllowance(ctx context.Context, assignmentID, userID string) (json.RawMessage, error) {
	path := "/api/v1/assignments/" + url.PathEscape(assignmentID) + "/allowance"
	return c.do(ctx, "get_allowance", http.MethodGet, path, nil, nil, userID)
}

// GetExamResults returns the caller's graded results for an exam
func (c *Client) GetExamResults(ctx context.Context, examID, userID string) (json.RawMessage, error) {
	path := "/api/v1/exams/" + url.PathEscape(examID) + "/results"
	return c.do(ctx, "get_results", http.MethodGet, path, nil, nil, userID)
}

func page(offset, limit int) url.Values {
	return url.Values{
		"offset": {strconv.Itoa(offset)},
		"limit":  {strconv.Itoa(limit)},
	}
}

// do performs one request and maps every failure onto the API error taxonomy:
// transport failures and timeouts are "unavailable", a 404 is passed through as
// not found, and any other non-2xx status is a generic upstream error.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body []byte, userID string) (json.RawMessage, error) {
	start := time.Now()
	defer func() {
		telemetry.GradingRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	target := c.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, c.fail(op, apierr.ErrGradingUnavailable.Wrap(fmt.Errorf("failed to create request: %w", err)))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(c.UserHeader, userID)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, c.fail(op, apierr.ErrGradingUnavailable.Wrap(err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(op, apierr.ErrGradingUnavailable.Wrap(fmt.Errorf("failed to read response: %w", err)))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, apierr.ErrNotFoundInGrading
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, c.fail(op, apierr.ErrGradingFailed.Wrap(
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(data, maxErrorBody))))
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(data) {
		return nil, c.fail(op, apierr.ErrGradingFailed.Wrap(errors.New("response is not valid JSON")))
	}
	return json.RawMessage(data), nil
}

func (c *Client) fail(op string, err *apierr.Error) error {
	telemetry.GradingErrorsTotal.WithLabelValues(op).Inc()
	slog.Warn("grading request failed", "operation", op, "error", err)
	return err
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
