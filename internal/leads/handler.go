// Package leads wires the lead domain: missed-lead aggregation, the
// operator decision window and the HTTP surface for both.
package leads

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crm_intake_backend/internal/leads/presenter"
	"crm_intake_backend/internal/leadstore"
	"crm_intake_backend/platform/apperr"
	"crm_intake_backend/platform/httpkit"
)

// Handler exposes the operator endpoints for the decision window and the
// missed-leads list.
type Handler struct {
	presenter *presenter.Service
	store     *leadstore.Client
}

// NewHandler creates a new leads handler.
func NewHandler(pres *presenter.Service, store *leadstore.Client) *Handler {
	return &Handler{presenter: pres, store: store}
}

type answerRequest struct {
	Operator string `json:"operator" binding:"required,max=200"`
}

// Current handles GET /leads/current. A 200 with null data means there is
// nothing to present.
func (h *Handler) Current(c *gin.Context) {
	lead, err := h.presenter.Current(c.Request.Context())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, gin.H{"data": lead})
}

// Missed handles GET /leads/missed.
func (h *Handler) Missed(c *gin.Context) {
	leads, err := h.store.FetchMissedLeads(c.Request.Context(), 50)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, gin.H{"data": leads})
}

// Answer handles POST /leads/:id/answer.
func (h *Handler) Answer(c *gin.Context) {
	const op = "leads.Handler.Answer"

	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.Wrap(apperr.KindBadRequest, "operator is required", err).WithOp(op))
		return
	}

	lead, err := h.presenter.Answer(c.Request.Context(), c.Param("id"), req.Operator)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, gin.H{"data": lead})
}

// Reject handles POST /leads/:id/reject.
func (h *Handler) Reject(c *gin.Context) {
	lead, err := h.presenter.Reject(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, gin.H{"data": lead})
}

// Spam handles POST /leads/:id/spam.
func (h *Handler) Spam(c *gin.Context) {
	lead, err := h.presenter.Spam(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, gin.H{"data": lead})
}

// Dismiss handles POST /leads/:id/dismiss. Not a decision: the lead is only
// excluded from presentation for this session.
func (h *Handler) Dismiss(c *gin.Context) {
	if err := h.presenter.Dismiss(c.Request.Context(), c.Param("id")); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
