// Package presenter owns the operator-facing decision window for incoming
// leads: one lead is presented at a time, the operator gets a bounded window
// to answer, reject or flag it, and an undecided lead is routed into
// missed-lead aggregation when the window elapses.
package presenter

import (
	"context"
	"errors"
	"time"

	"crm_intake_backend/internal/events"
	"crm_intake_backend/internal/leadstore"
	"crm_intake_backend/internal/scheduler"
	"crm_intake_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

const (
	presentedKey       = "leads:presented"
	dismissedKeyPrefix = "leads:dismissed:"

	// dismissedTTL scopes manual dismissals to roughly one operator shift.
	// A dismissed lead is never re-presented within that window but stays
	// unprocessed at the source for follow-up through other views.
	dismissedTTL = 12 * time.Hour

	candidateFetchLimit = 10
)

// Store is the slice of the lead store gateway the presenter needs.
type Store interface {
	FetchIncomingLeads(ctx context.Context, limit int) ([]leadstore.Lead, error)
	GetLead(ctx context.Context, id string) (leadstore.Lead, error)
	PatchLead(ctx context.Context, id string, fields leadstore.Fields) (leadstore.Lead, error)
}

// Aggregator folds a lead into the rolling missed record for its identity.
type Aggregator interface {
	MarkMissed(ctx context.Context, lead leadstore.Lead) (string, error)
}

// Service is the presentation state machine. Presentation state lives in
// Redis so the timeout worker and the API process observe the same state.
type Service struct {
	store     Store
	agg       Aggregator
	scheduler scheduler.DecisionTimeoutScheduler
	rdb       *redis.Client
	window    time.Duration
	bus       events.Bus
	log       *logger.Logger
	now       func() time.Time
}

// New creates a presenter with the given decision window. The bus may be nil.
func New(store Store, agg Aggregator, sched scheduler.DecisionTimeoutScheduler, rdb *redis.Client, window time.Duration, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store:     store,
		agg:       agg,
		scheduler: sched,
		rdb:       rdb,
		window:    window,
		bus:       bus,
		log:       log,
		now:       time.Now,
	}
}

// Current returns the lead currently presented to the operator, presenting
// the next eligible incoming lead when none is. Returns nil when the inbox
// is empty. Selection is first-found, first-shown.
func (s *Service) Current(ctx context.Context) (*leadstore.Lead, error) {
	if id := s.presentedID(ctx); id != "" {
		lead, err := s.store.GetLead(ctx, id)
		if err == nil && lead.Status == leadstore.StatusIncoming {
			return &lead, nil
		}
		// Presented lead was decided, aggregated or deleted elsewhere.
		s.clearPresented(ctx, id)
	}

	candidates, err := s.store.FetchIncomingLeads(ctx, candidateFetchLimit)
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		if s.isDismissed(ctx, candidate.ID) {
			continue
		}
		claimed, err := s.present(ctx, candidate.ID)
		if err != nil {
			return nil, err
		}
		if !claimed {
			// Another session presented first; single presentation at a time.
			return nil, nil
		}
		return &candidate, nil
	}

	return nil, nil
}

// Answer claims the lead for an operator and takes it out of the window.
func (s *Service) Answer(ctx context.Context, leadID, operator string) (leadstore.Lead, error) {
	lead, err := s.store.PatchLead(ctx, leadID, leadstore.Fields{
		"status":     leadstore.StatusOngoing,
		"claimed_by": operator,
		"claimed_at": s.now(),
	})
	if err != nil {
		// State stays presented so the operator can retry.
		return leadstore.Lead{}, err
	}
	s.clearPresented(ctx, leadID)
	s.publish(ctx, events.LeadClaimed{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		ClaimedBy: operator,
	})
	return lead, nil
}

// Reject marks the lead rejected.
func (s *Service) Reject(ctx context.Context, leadID string) (leadstore.Lead, error) {
	lead, err := s.store.PatchLead(ctx, leadID, leadstore.Fields{
		"status": leadstore.StatusRejected,
	})
	if err != nil {
		return leadstore.Lead{}, err
	}
	s.clearPresented(ctx, leadID)
	return lead, nil
}

// Spam marks the lead as spam and records the discard time.
func (s *Service) Spam(ctx context.Context, leadID string) (leadstore.Lead, error) {
	lead, err := s.store.PatchLead(ctx, leadID, leadstore.Fields{
		"status":       leadstore.StatusSpam,
		"discarded_at": s.now(),
	})
	if err != nil {
		return leadstore.Lead{}, err
	}
	s.clearPresented(ctx, leadID)
	return lead, nil
}

// Dismiss closes the popup without a decision. The lead is not patched and
// not marked processed at its source; it is only excluded from presentation.
func (s *Service) Dismiss(ctx context.Context, leadID string) error {
	if err := s.rdb.Set(ctx, dismissedKeyPrefix+leadID, "1", dismissedTTL).Err(); err != nil {
		return err
	}
	s.clearPresented(ctx, leadID)
	return nil
}

// HandleTimeout resolves an elapsed decision window. A lead that was decided
// or dismissed in the meantime is left alone; an undecided incoming lead is
// routed into missed-lead aggregation.
func (s *Service) HandleTimeout(ctx context.Context, leadID string) error {
	if s.isDismissed(ctx, leadID) {
		s.clearPresented(ctx, leadID)
		return nil
	}

	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		// The lead may already have been merged away by a concurrent
		// aggregation; degrade to skip rather than poison the task queue.
		s.log.Warn("decision timeout could not load lead", "lead_id", leadID, "error", err)
		s.clearPresented(ctx, leadID)
		return nil
	}

	if lead.Status != leadstore.StatusIncoming {
		s.clearPresented(ctx, leadID)
		return nil
	}

	keptID, err := s.agg.MarkMissed(ctx, lead)
	if err != nil {
		return err
	}
	s.clearPresented(ctx, leadID)
	s.publish(ctx, events.LeadMissed{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    keptID,
		DedupeKey: lead.DedupeKey,
		Merged:    keptID != leadID,
	})
	s.log.Info("lead decision window elapsed", "lead_id", leadID, "kept_id", keptID)
	return nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus != nil {
		s.bus.Publish(ctx, event)
	}
}

// present records the lead as the one on screen and schedules the end of
// its decision window. The presented key carries a TTL slightly beyond the
// window so the slot always frees itself.
func (s *Service) present(ctx context.Context, leadID string) (bool, error) {
	ttl := s.window + time.Minute
	ok, err := s.rdb.SetNX(ctx, presentedKey, leadID, ttl).Result()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if err := s.scheduler.ScheduleDecisionTimeout(ctx, leadID, s.now().Add(s.window)); err != nil {
		s.clearPresented(ctx, leadID)
		return false, err
	}
	return true, nil
}

func (s *Service) presentedID(ctx context.Context) string {
	id, err := s.rdb.Get(ctx, presentedKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn("failed to read presentation state", "error", err)
		}
		return ""
	}
	return id
}

func (s *Service) isDismissed(ctx context.Context, leadID string) bool {
	exists, err := s.rdb.Exists(ctx, dismissedKeyPrefix+leadID).Result()
	if err != nil {
		s.log.Warn("failed to read dismissal state", "lead_id", leadID, "error", err)
		return false
	}
	return exists > 0
}

func (s *Service) clearPresented(ctx context.Context, leadID string) {
	current, err := s.rdb.Get(ctx, presentedKey).Result()
	if err != nil || current != leadID {
		return
	}
	if err := s.rdb.Del(ctx, presentedKey).Err(); err != nil {
		s.log.Warn("failed to clear presentation state", "lead_id", leadID, "error", err)
	}
}
