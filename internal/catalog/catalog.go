// Package catalog holds the immutable exam, environment and assignment
// definitions an instance serves. They are loaded once at startup from the
// configured storage backend. The exam can be deactivated, after which every
// exam lookup fails with "Exam not found"; there is no way back.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/hogwarts-exams/proctor/internal/apierr"
	"github.com/hogwarts-exams/proctor/internal/storage"
	"github.com/hogwarts-exams/proctor/pkg/checksum"
)

// Exam is the single exam served by an instance
type Exam struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// Environment is a runtime a submission can be graded in
type Environment struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DockerImage string `json:"docker_image"`
}

// Assignment is one task of the exam
type Assignment struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Files names the three documents the catalog is loaded from
type Files struct {
	Environments string
	Exam         string
	Assignments  string
}

// Catalog serves the loaded definitions. It is safe for concurrent use.
type Catalog struct {
	mu     sync.RWMutex
	exam   *Exam
	closed time.Time

	environments []Environment
	envIndex     map[string]int
	assignments  []Assignment
	asgIndex     map[string]int
	fingerprint  string
}

// Load reads and validates the catalog documents from store
func Load(ctx context.Context, store storage.Storage, files Files) (*Catalog, error) {
	envDoc, err := readDocument(ctx, store, files.Environments)
	if err != nil {
		return nil, err
	}
	examDoc, err := readDocument(ctx, store, files.Exam)
	if err != nil {
		return nil, err
	}
	asgDoc, err := readDocument(ctx, store, files.Assignments)
	if err != nil {
		return nil, err
	}

	var envs []Environment
	if err := decodeStrict(envDoc, &envs); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", files.Environments, err)
	}
	var exam Exam
	if err := decodeStrict(examDoc, &exam); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", files.Exam, err)
	}
	var assignments []Assignment
	if err := decodeStrict(asgDoc, &assignments); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", files.Assignments, err)
	}

	c, err := New(&exam, envs, assignments)
	if err != nil {
		return nil, err
	}
	c.fingerprint = checksum.Fingerprint(envDoc, examDoc, asgDoc)

	slog.Info("exam catalog loaded",
		"exam_id", exam.ID,
		"environments", len(envs),
		"assignments", len(assignments),
		"fingerprint", checksum.Short(c.fingerprint))
	return c, nil
}

func readDocument(ctx context.Context, store storage.Storage, name string) ([]byte, error) {
	rc, err := store.Download(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog document %s: %w", name, err)
	}
	defer rc.Close()

	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog document %s: %w", name, err)
	}
	return b, nil
}

func decodeStrict(doc []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// New builds a catalog from already decoded definitions. Every exam, environment
// and assignment needs an id; ids must be unique within their kind.
func New(exam *Exam, envs []Environment, assignments []Assignment) (*Catalog, error) {
	if exam == nil || exam.ID == "" {
		return nil, fmt.Errorf("exam id is required")
	}

	c := &Catalog{
		exam:         exam,
		environments: envs,
		envIndex:     make(map[string]int, len(envs)),
		assignments:  assignments,
		asgIndex:     make(map[string]int, len(assignments)),
	}

	for i, e := range envs {
		if e.ID == "" {
			return nil, fmt.Errorf("environment at index %d has no id", i)
		}
		if _, dup := c.envIndex[e.ID]; dup {
			return nil, fmt.Errorf("duplicate environment id: %s", e.ID)
		}
		c.envIndex[e.ID] = i
	}
	for i, a := range assignments {
		if a.ID == "" {
			return nil, fmt.Errorf("assignment at index %d has no id", i)
		}
		if _, dup := c.asgIndex[a.ID]; dup {
			return nil, fmt.Errorf("duplicate assignment id: %s", a.ID)
		}
		c.asgIndex[a.ID] = i
	}

	return c, nil
}

// Exam returns the active exam
func (c *Catalog) Exam() (*Exam, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.exam == nil {
		return nil, apierr.ErrExamNotFound
	}
	e := *c.exam
	return &e, nil
}

// ExamID returns the id of the active exam
func (c *Catalog) ExamID() (string, error) {
	e, err := c.Exam()
	if err != nil {
		return "", err
	}
	return e.ID, nil
}

// ExamByID returns the active exam if its id is id
func (c *Catalog) ExamByID(id string) (*Exam, error) {
	e, err := c.Exam()
	if err != nil {
		return nil, err
	}
	if e.ID != id {
		return nil, apierr.ErrExamNotFound
	}
	return e, nil
}

// Active reports whether the exam has not been deactivated
func (c *Catalog) Active() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.exam != nil
}

// Deactivate clears the exam. It reports whether this call changed the state.
func (c *Catalog) Deactivate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.exam == nil {
		return false
	}
	slog.Warn("exam deactivated", "exam_id", c.exam.ID)
	c.exam = nil
	c.closed = time.Now()
	return true
}

// DeactivatedAt returns when the exam was deactivated, zero while active
func (c *Catalog) DeactivatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Assignment returns one assignment by id
func (c *Catalog) Assignment(id string) (*Assignment, error) {
	i, ok := c.asgIndex[id]
	if !ok {
		return nil, apierr.ErrAssignmentNotFound
	}
	a := c.assignments[i]
	return &a, nil
}

// Assignments returns every assignment in document order
func (c *Catalog) Assignments() []Assignment {
	out := make([]Assignment, len(c.assignments))
	copy(out, c.assignments)
	return out
}

// Environments returns every environment in document order
func (c *Catalog) Environments() []Environment {
	out := make([]Environment, len(c.environments))
	copy(out, c.environments)
	return out
}

// Environment finds an environment by id, falling back to a name match
func (c *Catalog) Environment(ref string) (*Environment, error) {
	if i, ok := c.envIndex[ref]; ok {
		e := c.environments[i]
		return &e, nil
	}
	for _, e := range c.environments {
		if e.Name == ref {
			return &e, nil
		}
	}
	return nil, apierr.ErrEnvironmentNotFound
}

// Fingerprint identifies the loaded documents. Empty for catalogs built with New.
func (c *Catalog) Fingerprint() string {
	return c.fingerprint
}
