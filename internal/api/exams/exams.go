// Package exams implements the exam routes: reading the exam, completing it,
// reporting violations and closing it.
package exams

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hogwarts-exams/proctor/internal/apierr"
	"github.com/hogwarts-exams/proctor/internal/catalog"
	"github.com/hogwarts-exams/proctor/internal/middleware"
	"github.com/hogwarts-exams/proctor/internal/services"
	"github.com/hogwarts-exams/proctor/internal/validation"
)

// Handlers serves the exam routes
type Handlers struct {
	tracker *services.Tracker
	catalog *catalog.Catalog
}

// NewHandlers creates the exam handlers
func NewHandlers(tracker *services.Tracker, cat *catalog.Catalog) *Handlers {
	return &Handlers{tracker: tracker, catalog: cat}
}

// ExamResponse is the body of GET /api/v1/exams/:exam_id
type ExamResponse struct {
	Exam         *catalog.Exam         `json:"exam"`
	Environments []catalog.Environment `json:"environments"`
	Assignments  []catalog.Assignment  `json:"assignments"`
}

// @Summary      Get exam
// @Description  Returns the exam with its environments and assignments. Students who completed the exam are refused.
// @Tags         Exams
// @Security     Bearer
// @Produce      json
// @Param        exam_id  path  string  true  "Exam ID"
// @Success      200  {object}  ExamResponse
// @Failure      403  {object}  map[string]interface{}  "Exam already completed"
// @Failure      404  {object}  map[string]interface{}  "Exam not found"
// @Router       /api/v1/exams/{exam_id} [get]
func (h *Handlers) GetExamHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, _ := middleware.GetIdentity(c)

		exam, err := h.tracker.ExamForCaller(c.Request.Context(), c.Param("exam_id"), identity)
		if err != nil {
			_ = c.Error(err)
			return
		}

		c.JSON(http.StatusOK, ExamResponse{
			Exam:         exam,
			Environments: h.catalog.Environments(),
			Assignments:  h.catalog.Assignments(),
		})
	}
}

// @Summary      Complete exam
// @Tags         Exams
// @Security     Bearer
// @Param        exam_id  path  string  true  "Exam ID"
// @Success      201  {object}  map[string]interface{}
// @Failure      403  {object}  map[string]interface{}  "Student access required"
// @Failure      404  {object}  map[string]interface{}  "Exam not found"
// @Failure      409  {object}  map[string]interface{}  "Exam already completed"
// @Router       /api/v1/exams/{exam_id}/complete [post]
func (h *Handlers) CompleteExamHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, _ := middleware.GetIdentity(c)

		if _, err := h.tracker.CompleteExam(c.Request.Context(), c.Param("exam_id"), identity.ID); err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{})
	}
}

// @Summary      Report violation
// @Description  Records a cheating violation. Reaching the violation limit on an assignment completes the exam for the student.
// @Tags         Exams
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        exam_id  path  string                    true  "Exam ID"
// @Param        body     body  services.ViolationReport  true  "Violation"
// @Success      200  {object}  models.ExamViolation
// @Failure      400  {object}  map[string]interface{}  "Violation report is invalid."
// @Failure      403  {object}  map[string]interface{}  "Exam already completed"
// @Failure      404  {object}  map[string]interface{}  "Exam or assignment not found"
// @Router       /api/v1/exams/{exam_id}/violation [post]
func (h *Handlers) ReportViolationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		identity, _ := middleware.GetIdentity(c)

		exam, err := h.tracker.ExamForCaller(ctx, c.Param("exam_id"), identity)
		if err != nil {
			_ = c.Error(err)
			return
		}

		var report services.ViolationReport
		if err := c.ShouldBindJSON(&report); err != nil {
			slog.Debug("violation report rejected", "student_id", identity.ID, "reason", validation.Describe(err))
			_ = c.Error(apierr.ErrInvalidViolation.Wrap(err))
			return
		}

		violation, err := h.tracker.ReportViolation(ctx, exam, identity, report)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, violation)
	}
}

// @Summary      Close exam
// @Description  Deactivates the exam for everyone. Result collection is not available yet, so the call answers 501 after closing.
// @Tags         Exams
// @Security     Bearer
// @Param        exam_id  path  string  true  "Exam ID"
// @Failure      404  {object}  map[string]interface{}  "Exam not found"
// @Failure      501  {object}  map[string]interface{}  "Not implemented"
// @Router       /api/v1/exams/{exam_id}/complete [get]
func (h *Handlers) CloseExamHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, _ := middleware.GetIdentity(c)

		if err := h.tracker.CloseExam(c.Request.Context(), c.Param("exam_id"), identity); err != nil {
			_ = c.Error(err)
			return
		}
		// TODO: record completions for students still sitting the exam
		_ = c.Error(apierr.ErrNotImplemented)
	}
}
