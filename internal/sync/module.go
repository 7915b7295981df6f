package sync

import (
	"context"

	"crm_intake_backend/internal/events"
	"crm_intake_backend/internal/http"
	"crm_intake_backend/internal/leadstore"
	"crm_intake_backend/platform/logger"
)

// Module bundles the contact/newsletter sync service and its hook endpoint.
type Module struct {
	service *Service
	handler *Handler
}

// NewModule wires the sync bounded context over the store client.
func NewModule(store *leadstore.Client, bus events.Bus, log *logger.Logger) *Module {
	collections := store.Collections()
	service := NewService(
		store.Items(collections.Contacts),
		store.Items(collections.Subscriptions),
		store.Items(collections.IdentityMap),
		collections,
		log,
	)
	return &Module{
		service: service,
		handler: NewHandler(bus),
	}
}

// Name returns the module's identifier for logging purposes.
func (m *Module) Name() string { return "sync" }

// RegisterRoutes mounts the store change hook.
func (m *Module) RegisterRoutes(ctx *http.RouterContext) {
	ctx.Hooks.POST("/record-changed", m.handler.RecordChanged)
}

// RegisterHandlers subscribes the sync service to in-process change events,
// so modules writing contacts through the store trigger the same propagation
// as the external hook.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.RecordChanged{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		changed, ok := event.(events.RecordChanged)
		if !ok {
			return nil
		}
		m.service.RecordChanged(ctx, changed.Collection, changed.Key, leadstore.Record(changed.Payload))
		return nil
	}))
}
