// Package submissions implements the routes that forward code submissions and
// result queries to the grading service. Exam access is checked locally before
// anything is forwarded; response bodies from the grading service are returned
// to the caller unchanged under a "data" key.
package submissions

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hogwarts-exams/proctor/internal/apierr"
	"github.com/hogwarts-exams/proctor/internal/catalog"
	"github.com/hogwarts-exams/proctor/internal/grading"
	"github.com/hogwarts-exams/proctor/internal/middleware"
	"github.com/hogwarts-exams/proctor/internal/services"
	"github.com/hogwarts-exams/proctor/internal/validation"
)

// Handlers serves the submission routes
type Handlers struct {
	tracker *services.Tracker
	catalog *catalog.Catalog
	grading *grading.Client
}

// NewHandlers creates the submission handlers
func NewHandlers(tracker *services.Tracker, cat *catalog.Catalog, client *grading.Client) *Handlers {
	return &Handlers{tracker: tracker, catalog: cat, grading: client}
}

// SubmitRequest is the body of a code submission
type SubmitRequest struct {
	Environment string `json:"environment" binding:"required"`
	Content     string `json:"content" binding:"required"`
}

// Response wraps a grading service body
type Response struct {
	Data json.RawMessage `json:"data" swaggertype:"object"`
}

func respond(c *gin.Context, status int, data json.RawMessage, err error) {
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(status, Response{Data: data})
}

// pagination reads offset and limit from the query string. Missing or
// malformed values fall back to the first page; limit is capped at the client
// page size.
func (h *Handlers) pagination(c *gin.Context) (offset, limit int) {
	limit = h.grading.PageSize
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		offset = v
	}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v < limit {
		limit = v
	}
	return offset, limit
}

// @Summary      Submit code
// @Description  Forwards a code submission for an assignment to the grading service.
// @Tags         Submissions
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        exam_id        path  string         true  "Exam ID"
// @Param        assignment_id  path  string         true  "Assignment ID"
// @Param        body           body  SubmitRequest  true  "Submission"
// @Success      202  {object}  Response
// @Failure      400  {object}  map[string]interface{}  "Code submission is invalid."
// @Failure      403  {object}  map[string]interface{}  "Exam already completed"
// @Failure      404  {object}  map[string]interface{}  "Exam, assignment or environment not found"
// @Failure      502  {object}  map[string]interface{}  "Grading service error"
// @Router       /api/v1/exams/{exam_id}/assignments/{assignment_id}/submit [get]
func (h *Handlers) SubmitHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SubmitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			slog.Debug("rejected submission", "error", validation.Describe(err))
			_ = c.Error(apierr.ErrInvalidSubmission.Wrap(err))
			return
		}

		identity, _ := middleware.GetIdentity(c)
		ctx := c.Request.Context()

		exam, err := h.tracker.ExamForCaller(ctx, c.Param("exam_id"), identity)
		if err != nil {
			_ = c.Error(err)
			return
		}
		assignment, err := h.catalog.Assignment(c.Param("assignment_id"))
		if err != nil {
			_ = c.Error(err)
			return
		}
		if _, err := h.catalog.Environment(req.Environment); err != nil {
			_ = c.Error(err)
			return
		}

		data, err := h.grading.Submit(ctx, &grading.SubmitRequest{
			AssignmentID:   assignment.ID,
			AssignmentName: assignment.Name,
			Environment:    req.Environment,
			ExamID:         exam.ID,
			Content:        req.Content,
		}, identity.ID)
		respond(c, http.StatusAccepted, data, err)
	}
}

// @Summary      List my submissions
// @Tags         Submissions
// @Security     Bearer
// @Produce      json
// @Param        exam_id  path   string  true   "Exam ID"
// @Param        offset   query  int     false  "Offset"
// @Param        limit    query  int     false  "Page length"
// @Success      200  {object}  Response
// @Router       /api/v1/exams/{exam_id}/submissions [get]
func (h *Handlers) ListMySubmissionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, _ := middleware.GetIdentity(c)
		ctx := c.Request.Context()

		exam, err := h.tracker.ExamForCaller(ctx, c.Param("exam_id"), identity)
		if err != nil {
			_ = c.Error(err)
			return
		}

		offset, limit := h.pagination(c)
		data, err := h.grading.ListMySubmissions(ctx, exam.ID, offset, limit, identity.ID)
		respond(c, http.StatusOK, data, err)
	}
}

// @Summary      List all submissions
// @Description  Staff only.
// @Tags         Submissions
// @Security     Bearer
// @Produce      json
// @Param        offset  query  int  false  "Offset"
// @Param        limit   query  int  false  "Page length"
// @Success      200  {object}  Response
// @Failure      403  {object}  map[string]interface{}  "Staff access required"
// @Router       /api/v1/submissions [get]
func (h *Handlers) ListAllSubmissionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, _ := middleware.GetIdentity(c)
		offset, limit := h.pagination(c)
		data, err := h.grading.ListAllSubmissions(c.Request.Context(), offset, limit, identity.ID)
		respond(c, http.StatusOK, data, err)
	}
}

// @Summary      Get submission
// @Tags         Submissions
// @Security     Bearer
// @Produce      json
// @Param        exam_id        path  string  true  "Exam ID"
// @Param        submission_id  path  string  true  "Submission ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  map[string]interface{}  "Not found"
// @Router       /api/v1/exams/{exam_id}/submissions/{submission_id} [get]
func (h *Handlers) GetSubmissionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, _ := middleware.GetIdentity(c)
		ctx := c.Request.Context()

		if _, err := h.tracker.ExamForCaller(ctx, c.Param("exam_id"), identity); err != nil {
			_ = c.Error(err)
			return
		}

		data, err := h.grading.GetSubmission(ctx, c.Param("submission_id"), identity.ID)
		respond(c, http.StatusOK, data, err)
	}
}

// @Summary      Get submission allowance
// @Description  Returns how many submissions the caller has left for an assignment.
// @Tags         Submissions
// @Security     Bearer
// @Produce      json
// @Param        assignment_id  path  string  true  "Assignment ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  map[string]interface{}  "Assignment not found."
// @Router       /api/v1/assignments/{assignment_id}/allowance [get]
func (h *Handlers) AllowanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, _ := middleware.GetIdentity(c)

		assignment, err := h.catalog.Assignment(c.Param("assignment_id"))
		if err != nil {
			_ = c.Error(err)
			return
		}

		data, err := h.grading.GetAllowance(c.Request.Context(), assignment.ID, identity.ID)
		respond(c, http.StatusOK, data, err)
	}
}

// @Summary      Get exam results
// @Description  Students see results only after completing the exam.
// @Tags         Submissions
// @Security     Bearer
// @Produce      json
// @Param        exam_id  path  string  true  "Exam ID"
// @Success      200  {object}  Response
// @Failure      403  {object}  map[string]interface{}  "Exam not completed"
// @Router       /api/v1/exams/{exam_id}/results [get]
func (h *Handlers) ResultsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, _ := middleware.GetIdentity(c)
		ctx := c.Request.Context()

		exam, err := h.tracker.RequireCompleted(ctx, c.Param("exam_id"), identity)
		if err != nil {
			_ = c.Error(err)
			return
		}

		data, err := h.grading.GetExamResults(ctx, exam.ID, identity.ID)
		respond(c, http.StatusOK, data, err)
	}
}
