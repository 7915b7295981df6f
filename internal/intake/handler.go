package intake

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"crm_intake_backend/platform/apperr"
	"crm_intake_backend/platform/httpkit"
	"crm_intake_backend/platform/logger"
	"crm_intake_backend/platform/validator"
)

// Call-event statuses the intake accepts. Anything else is rejected so the
// bridge only ever sees states it knows how to annotate.
var allowedStatuses = map[string]struct{}{
	"incoming": {},
	"ongoing":  {},
	"missed":   {},
	"answered": {},
	"rejected": {},
	"spam":     {},
}

// callEventRequest accepts both current and legacy field spellings; the
// older telephony integration posts phone_number/customer_name/call_id,
// newer ones post phone/name/external_id.
type callEventRequest struct {
	Phone        string  `json:"phone" validate:"omitempty,max=50"`
	PhoneNumber  string  `json:"phone_number" validate:"omitempty,max=50"`
	Name         *string `json:"name" validate:"omitempty,max=200"`
	CustomerName *string `json:"customer_name" validate:"omitempty,max=200"`
	Source       string  `json:"source" validate:"omitempty,max=100"`
	Notes        *string `json:"notes" validate:"omitempty,max=5000"`
	Status       string  `json:"status" validate:"omitempty,max=30"`
	Direction    *string `json:"direction" validate:"omitempty,max=20"`
	ExternalID   *string `json:"external_id" validate:"omitempty,max=200"`
	CallID       *string `json:"call_id" validate:"omitempty,max=200"`
}

// Handler exposes the legacy webhook intake endpoints.
type Handler struct {
	repo *Repository
	val  *validator.Validator
	log  *logger.Logger
}

// NewHandler creates a new intake handler.
func NewHandler(repo *Repository, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{repo: repo, val: val, log: log}
}

// CreateCallEvent handles POST /webhooks/call-events. The same handler
// serves POST /webhooks/leads; the two routes existed as separate functions
// in the legacy stack but always shared this shape.
func (h *Handler) CreateCallEvent(c *gin.Context) {
	const op = "intake.Handler.CreateCallEvent"

	var req callEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.Wrap(apperr.KindBadRequest, "invalid JSON body", err).WithOp(op))
		return
	}

	if err := h.val.Struct(req); err != nil {
		httpkit.HandleError(c, apperr.Wrap(apperr.KindValidation, "invalid call event", err).WithOp(op))
		return
	}

	params, err := req.toParams()
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	event, err := h.repo.Create(c.Request.Context(), params)
	if err != nil {
		httpkit.HandleError(c, apperr.Wrap(apperr.KindInternal, "failed to record call event", err).WithOp(op))
		return
	}

	h.log.Info("call event recorded",
		slog.String("call_event_id", event.ID.String()),
		slog.String("source", event.Source),
		slog.String("status", event.Status))

	httpkit.JSON(c, http.StatusCreated, gin.H{"id": event.ID, "status": event.Status})
}

// toParams coalesces the field aliases and applies the checks validate tags
// cannot express. Length caps are enforced by the validator beforehand.
func (req callEventRequest) toParams() (CreateCallEventParams, error) {
	phone := strings.TrimSpace(coalesce(req.Phone, req.PhoneNumber))
	if phone == "" {
		return CreateCallEventParams{}, apperr.Validation("phone is required")
	}

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = "phone"
	}

	status := strings.ToLower(strings.TrimSpace(req.Status))
	if status == "" {
		status = "incoming"
	}
	if _, ok := allowedStatuses[status]; !ok {
		return CreateCallEventParams{}, apperr.Validation("unsupported status: " + status)
	}

	name := coalescePtr(req.Name, req.CustomerName)

	return CreateCallEventParams{
		PhoneNumber:  phone,
		CustomerName: name,
		Notes:        req.Notes,
		Source:       source,
		Status:       status,
		Direction:    req.Direction,
		ExternalID:   coalescePtr(req.ExternalID, req.CallID),
	}, nil
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func coalescePtr(values ...*string) *string {
	for _, v := range values {
		if v != nil && strings.TrimSpace(*v) != "" {
			return v
		}
	}
	return nil
}
