// Package access implements the identifier exchange and the staff endpoints
// that administer access identifiers.
package access

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hogwarts-exams/proctor/internal/apierr"
	"github.com/hogwarts-exams/proctor/internal/auth"
)

// Handlers serves the access routes
type Handlers struct {
	exchanger *auth.Exchanger
}

// NewHandlers creates the access handlers
func NewHandlers(exchanger *auth.Exchanger) *Handlers {
	return &Handlers{exchanger: exchanger}
}

// @Summary      Exchange access identifier
// @Description  Trades an opaque access identifier for a session token. The only unauthenticated API route.
// @Tags         Access
// @Produce      json
// @Param        identifier  path  string  true  "Access identifier"
// @Success      200  {object}  auth.ExchangeResult
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "Exam not found"
// @Router       /access_url/{identifier} [get]
// ExchangeHandler implements GET /access_url/:identifier
func (h *Handlers) ExchangeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := h.exchanger.Exchange(c.Request.Context(), c.Param("identifier"))
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// notImplemented answers the identifier administration routes. Their storage
// operations exist (repositories.AccessIdentifierRepository.SetActive and
// SetActiveForCohort); the HTTP contract is not settled yet.
func notImplemented() gin.HandlerFunc {
	return func(c *gin.Context) {
		_ = c.Error(apierr.ErrNotImplemented)
	}
}

// @Summary      Enable cohort identifiers
// @Tags         Access
// @Security     Bearer
// @Param        cohort_id  path  string  true  "Cohort ID"
// @Failure      501  {object}  map[string]interface{}  "Not implemented"
// @Router       /api/v1/access_identifiers/cohort/{cohort_id}/enable [post]
func (h *Handlers) EnableCohortHandler() gin.HandlerFunc { return notImplemented() }

// @Summary      Disable cohort identifiers
// @Tags         Access
// @Security     Bearer
// @Param        cohort_id  path  string  true  "Cohort ID"
// @Failure      501  {object}  map[string]interface{}  "Not implemented"
// @Router       /api/v1/access_identifiers/cohort/{cohort_id}/disable [post]
func (h *Handlers) DisableCohortHandler() gin.HandlerFunc { return notImplemented() }

// @Summary      Enable user identifier
// @Tags         Access
// @Security     Bearer
// @Param        user_id  path  string  true  "User ID"
// @Failure      501  {object}  map[string]interface{}  "Not implemented"
// @Router       /api/v1/access_identifiers/user/{user_id}/enable [post]
func (h *Handlers) EnableUserHandler() gin.HandlerFunc { return notImplemented() }

// @Summary      Disable user identifier
// @Tags         Access
// @Security     Bearer
// @Param        user_id  path  string  true  "User ID"
// @Failure      501  {object}  map[string]interface{}  "Not implemented"
// @Router       /api/v1/access_identifiers/user/{user_id}/disable [post]
func (h *Handlers) DisableUserHandler() gin.HandlerFunc { return notImplemented() }
