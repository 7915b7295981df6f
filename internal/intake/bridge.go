package intake

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"crm_intake_backend/internal/events"
	"crm_intake_backend/internal/identity"
	"crm_intake_backend/internal/leadstore"
	"crm_intake_backend/platform/logger"
)

// EventSource is the bridge's view of unprocessed call events.
type EventSource interface {
	NextUnprocessed(ctx context.Context) (*CallEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, action string) error
}

// LeadCreator creates leads in the lead store.
type LeadCreator interface {
	CreateLead(ctx context.Context, fields leadstore.Fields) (leadstore.Lead, error)
}

// Alerter delivers out-of-band operator warnings. May be nil.
type Alerter interface {
	BridgeFailure(ctx context.Context, err error)
}

// Call-event statuses that were already resolved through another path and
// must not re-enter the lead pipeline.
var terminalCallStatuses = map[string]struct{}{
	"answered": {},
	"rejected": {},
	"spam":     {},
}

// Bridge adapts unprocessed call events into incoming leads. It polls on a
// fixed interval; a tick that finds the previous tick still running is a
// no-op rather than queued.
type Bridge struct {
	source   EventSource
	leads    LeadCreator
	alerter  Alerter
	bus      events.Bus
	interval time.Duration
	log      *logger.Logger

	busy   atomic.Bool
	warned atomic.Bool
}

// NewBridge creates a bridge polling source every interval. alerter and bus
// may be nil.
func NewBridge(source EventSource, leads LeadCreator, alerter Alerter, bus events.Bus, interval time.Duration, log *logger.Logger) *Bridge {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Bridge{
		source:   source,
		leads:    leads,
		alerter:  alerter,
		bus:      bus,
		interval: interval,
		log:      log,
	}
}

// Run polls until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	b.log.Info("lead intake bridge started", slog.Duration("interval", b.interval))
	for {
		select {
		case <-ctx.Done():
			b.log.Info("lead intake bridge stopped")
			return
		case <-ticker.C:
			b.Tick(ctx)
		}
	}
}

// Tick processes at most one unprocessed call event. Exported so the API
// process can run a tick eagerly on startup before the first interval fires.
func (b *Bridge) Tick(ctx context.Context) {
	if !b.busy.CompareAndSwap(false, true) {
		return
	}
	defer b.busy.Store(false)

	event, err := b.source.NextUnprocessed(ctx)
	if err != nil {
		b.warnOnce(ctx, "failed to fetch unprocessed call event", err)
		return
	}
	if event == nil {
		return
	}

	if _, terminal := terminalCallStatuses[event.Status]; terminal {
		// Handled through another path; annotate and move on.
		if err := b.source.MarkProcessed(ctx, event.ID, "skipped:"+event.Status); err != nil {
			b.warnOnce(ctx, "failed to mark call event processed", err)
			return
		}
		b.log.BridgeEvent(event.ID.String(), "skipped:"+event.Status)
		return
	}

	fields := leadstore.Fields{
		"status":          leadstore.StatusIncoming,
		"source":          mapSource(event.Source),
		"source_event_id": event.ID.String(),
		"phone":           event.PhoneNumber,
		"display_name":    displayName(event),
		"dedupe_key":      identity.ComputeDedupeKey(event.PhoneNumber, ""),
	}

	lead, err := b.leads.CreateLead(ctx, fields)
	if err != nil {
		// Event stays unprocessed and is retried next tick.
		b.warnOnce(ctx, "failed to create lead from call event", err)
		return
	}

	// Marking after the create means a failure here can re-bridge the event
	// next tick; the missed-lead aggregator bounds the duplicate risk.
	if err := b.source.MarkProcessed(ctx, event.ID, "bridged"); err != nil {
		b.warnOnce(ctx, "failed to mark call event processed", err)
		return
	}

	if b.bus != nil {
		b.bus.Publish(ctx, events.LeadCreated{
			BaseEvent:   events.NewBaseEvent(),
			LeadID:      lead.ID,
			Source:      string(mapSource(event.Source)),
			DedupeKey:   identity.ComputeDedupeKey(event.PhoneNumber, ""),
			CallEventID: event.ID.String(),
		})
	}

	b.log.BridgeEvent(event.ID.String(), "bridged")
	b.log.Info("call event bridged to lead",
		slog.String("call_event_id", event.ID.String()),
		slog.String("lead_id", lead.ID))
}

// warnOnce logs every failure but alerts the operator only on the first one
// in this session.
func (b *Bridge) warnOnce(ctx context.Context, msg string, err error) {
	if b.warned.CompareAndSwap(false, true) {
		b.log.Warn("lead intake bridge degraded, further warnings suppressed",
			slog.String("reason", msg), slog.Any("error", err))
		if b.alerter != nil {
			b.alerter.BridgeFailure(ctx, err)
		}
		return
	}
	b.log.Debug(msg, slog.Any("error", err))
}

func mapSource(tag string) leadstore.Source {
	switch leadstore.Source(tag) {
	case leadstore.SourcePhone, leadstore.SourceCentral, leadstore.SourceWhatsApp,
		leadstore.SourceTypebot, leadstore.SourceChatwoot, leadstore.SourceEmail,
		leadstore.SourceWeb:
		return leadstore.Source(tag)
	default:
		return leadstore.SourcePhone
	}
}

func displayName(event *CallEvent) string {
	if event.CustomerName != nil && *event.CustomerName != "" {
		return *event.CustomerName
	}
	if event.PhoneNumber != "" {
		return event.PhoneNumber
	}
	return "Lead"
}
