package intake

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"crm_intake_backend/internal/events"
	"crm_intake_backend/internal/http"
	"crm_intake_backend/internal/leadstore"
	"crm_intake_backend/platform/config"
	"crm_intake_backend/platform/logger"
	"crm_intake_backend/platform/validator"
)

// Config combines the config interfaces the intake module needs.
type Config interface {
	config.WebhookConfig
	config.BridgeConfig
}

// Module bundles the webhook intake endpoints and the lead intake bridge.
type Module struct {
	handler *Handler
	bridge  *Bridge
	cfg     config.WebhookConfig
}

// NewModule wires the intake bounded context.
func NewModule(pool *pgxpool.Pool, store *leadstore.Client, alerter Alerter, bus events.Bus, val *validator.Validator, cfg Config, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	return &Module{
		handler: NewHandler(repo, val, log),
		bridge:  NewBridge(repo, store, alerter, bus, cfg.GetBridgePollInterval(), log),
		cfg:     cfg,
	}
}

// Name returns the module's identifier for logging purposes.
func (m *Module) Name() string { return "intake" }

// Bridge returns the intake bridge so the composition root can run it.
func (m *Module) Bridge() *Bridge { return m.bridge }

// RegisterRoutes mounts the legacy webhook endpoints. Both routes share one
// handler; the split exists for compatibility with the integrations that
// post to them.
func (m *Module) RegisterRoutes(ctx *http.RouterContext) {
	webhooks := ctx.Webhooks.Group("")
	webhooks.Use(WebhookAuth(m.cfg))
	webhooks.POST("/call-events", m.handler.CreateCallEvent)
	webhooks.POST("/leads", m.handler.CreateCallEvent)
}
