package leads

import (
	"time"

	"github.com/redis/go-redis/v9"

	"crm_intake_backend/internal/events"
	"crm_intake_backend/internal/http"
	"crm_intake_backend/internal/leads/aggregator"
	"crm_intake_backend/internal/leads/presenter"
	"crm_intake_backend/internal/leadstore"
	"crm_intake_backend/internal/scheduler"
	"crm_intake_backend/platform/config"
	"crm_intake_backend/platform/logger"
	"crm_intake_backend/platform/redislock"
)

// aggregationLockTTL bounds how long one aggregation can hold its
// per-identity lock.
const aggregationLockTTL = 10 * time.Second

// Module bundles missed-lead aggregation, the decision window and the
// operator HTTP surface.
type Module struct {
	aggregator *aggregator.Service
	presenter  *presenter.Service
	handler    *Handler
}

// NewModule wires the lead domain. rdb may be shared with other modules;
// the scheduler may be nil in processes that never present leads.
func NewModule(store *leadstore.Client, sched scheduler.DecisionTimeoutScheduler, rdb *redis.Client, bus events.Bus, cfg config.PresenterConfig, log *logger.Logger) *Module {
	var locker *redislock.Locker
	if rdb != nil {
		locker = redislock.New(rdb, aggregationLockTTL)
	}

	agg := aggregator.New(store, locker, log)
	pres := presenter.New(store, agg, sched, rdb, cfg.GetDecisionWindow(), bus, log)

	return &Module{
		aggregator: agg,
		presenter:  pres,
		handler:    NewHandler(pres, store),
	}
}

// Name returns the module's identifier for logging purposes.
func (m *Module) Name() string { return "leads" }

// Aggregator exposes the aggregation service for the timeout worker.
func (m *Module) Aggregator() *aggregator.Service { return m.aggregator }

// Presenter exposes the decision-window service; the worker registers it as
// the timeout handler.
func (m *Module) Presenter() *presenter.Service { return m.presenter }

// RegisterRoutes mounts the operator endpoints.
func (m *Module) RegisterRoutes(ctx *http.RouterContext) {
	group := ctx.V1.Group("/leads")
	group.GET("/current", m.handler.Current)
	group.GET("/missed", m.handler.Missed)
	group.POST("/:id/answer", m.handler.Answer)
	group.POST("/:id/reject", m.handler.Reject)
	group.POST("/:id/spam", m.handler.Spam)
	group.POST("/:id/dismiss", m.handler.Dismiss)
}
