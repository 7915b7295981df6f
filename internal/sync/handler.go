package sync

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crm_intake_backend/internal/events"
	"crm_intake_backend/platform/apperr"
	"crm_intake_backend/platform/httpkit"
)

type recordChangedRequest struct {
	Collection string         `json:"collection" binding:"required"`
	Key        string         `json:"key" binding:"required"`
	Payload    map[string]any `json:"payload" binding:"required"`
}

// Handler exposes the store-originated change hook. It only publishes the
// change onto the bus; the sync service consumes it asynchronously, so the
// hook caller never waits on (or observes) the propagation.
type Handler struct {
	bus events.Bus
}

// NewHandler creates a new sync hook handler.
func NewHandler(bus events.Bus) *Handler {
	return &Handler{bus: bus}
}

// RecordChanged handles POST /hooks/record-changed. Fire-and-forget: only
// malformed requests are rejected.
func (h *Handler) RecordChanged(c *gin.Context) {
	const op = "sync.Handler.RecordChanged"

	var req recordChangedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.Wrap(apperr.KindBadRequest, "invalid hook payload", err).WithOp(op))
		return
	}

	h.bus.Publish(c.Request.Context(), events.RecordChanged{
		BaseEvent:  events.NewBaseEvent(),
		Collection: req.Collection,
		Key:        req.Key,
		Payload:    req.Payload,
	})

	httpkit.JSON(c, http.StatusAccepted, gin.H{"status": "accepted"})
}
