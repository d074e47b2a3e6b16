// Package jobs contains background workers that run on a schedule.
//
// exam_closer.go implements the ExamCloser, which deactivates the served exam
// once its configured closing time has passed. Deactivation is idempotent, so a
// staff member closing the exam by hand before the deadline is harmless.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hogwarts-exams/proctor/internal/config"
)

// closerName is recorded as the actor in the exam.closed audit event
const closerName = "exam-closer"

const defaultCloseCheckInterval = time.Minute

// Deactivator closes an exam. It reports whether the exam was still active.
type Deactivator interface {
	Deactivate(examID, by string) bool
}

// ExamCloser periodically checks whether the exam's closing time has passed
type ExamCloser struct {
	exams    Deactivator
	examID   string
	closesAt time.Time
	interval time.Duration
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewExamCloser creates a closer for examID from the exam configuration. It
// returns nil when no closing time is configured.
func NewExamCloser(exams Deactivator, examID string, cfg *config.ExamConfig) (*ExamCloser, error) {
	closesAt, err := cfg.ClosingTime()
	if err != nil {
		return nil, fmt.Errorf("invalid exam.closes_at: %w", err)
	}
	if closesAt.IsZero() {
		return nil, nil
	}

	interval := cfg.CloseCheckInterval
	if interval <= 0 {
		interval = defaultCloseCheckInterval
	}

	return &ExamCloser{
		exams:    exams,
		examID:   examID,
		closesAt: closesAt,
		interval: interval,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}, nil
}

// Start runs the check loop until the exam is closed, Stop is called or ctx is
// cancelled. It checks once immediately.
func (j *ExamCloser) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	slog.Info("exam closer started", "exam_id", j.examID, "closes_at", j.closesAt, "interval", j.interval)

	if j.check() {
		return
	}
	for {
		select {
		case <-ticker.C:
			if j.check() {
				return
			}
		case <-j.stopChan:
			slog.Info("exam closer stopped")
			return
		case <-ctx.Done():
			slog.Info("exam closer context cancelled")
			return
		}
	}
}

// Stop signals the loop to exit. Safe to call more than once.
func (j *ExamCloser) Stop() {
	j.stopOnce.Do(func() { close(j.stopChan) })
}

// check closes the exam if its time has come and reports whether the loop is done
func (j *ExamCloser) check() bool {
	if j.now().Before(j.closesAt) {
		return false
	}
	if j.exams.Deactivate(j.examID, closerName) {
		slog.Warn("exam closed at configured time", "exam_id", j.examID, "closes_at", j.closesAt)
	}
	return true
}
