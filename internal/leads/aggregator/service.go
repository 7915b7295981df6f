// Package aggregator collapses repeated missed contacts from the same
// identity into a single rolling lead record with a running attempt count,
// so a caller who rings five times shows up as one card, not five.
package aggregator

import (
	"context"
	"errors"
	"time"

	"crm_intake_backend/internal/identity"
	"crm_intake_backend/internal/leadstore"
	"crm_intake_backend/platform/logger"
	"crm_intake_backend/platform/redislock"
)

// Store is the slice of the lead store gateway the aggregator needs.
type Store interface {
	FindMissedByDedupeKey(ctx context.Context, key string) (*leadstore.Lead, error)
	PatchLead(ctx context.Context, id string, fields leadstore.Fields) (leadstore.Lead, error)
	DeleteLead(ctx context.Context, id string) error
}

// Service aggregates missed leads per dedupe key.
type Service struct {
	store  Store
	locker *redislock.Locker
	log    *logger.Logger
	now    func() time.Time
}

// New creates an aggregator. The locker serializes aggregation per dedupe
// key across processes; a nil locker disables locking.
func New(store Store, locker *redislock.Locker, log *logger.Logger) *Service {
	return &Service{
		store:  store,
		locker: locker,
		log:    log,
		now:    time.Now,
	}
}

// MarkMissed transitions the lead to missed, merging it into the existing
// rolling missed record for the same identity when one exists. It returns
// the id of the record that survives.
//
// Leads without a usable phone or email are patched in place and never
// merged: ambiguous identities are not guessed at.
func (s *Service) MarkMissed(ctx context.Context, lead leadstore.Lead) (string, error) {
	key := lead.DedupeKey
	if key == "" {
		key = identity.ComputeDedupeKey(lead.Phone, lead.Email)
	}

	now := s.now()

	if key == "" {
		return s.markMissedInPlace(ctx, lead, "", now, len(lead.AttemptLog) == 0)
	}

	if s.locker != nil {
		lock, err := s.locker.Acquire(ctx, "leadagg:"+key)
		if err != nil {
			// Availability over strictness: run unlocked and accept the
			// documented read-then-write race for this call.
			if !errors.Is(err, context.Canceled) {
				s.log.Warn("aggregation lock unavailable", "dedupe_key", key, "error", err)
			}
		} else {
			defer func() {
				if releaseErr := lock.Release(context.WithoutCancel(ctx)); releaseErr != nil {
					s.log.Warn("aggregation lock release failed", "dedupe_key", key, "error", releaseErr)
				}
			}()
		}
	}

	existing, err := s.store.FindMissedByDedupeKey(ctx, key)
	if err != nil {
		return "", err
	}

	if existing != nil && existing.ID != lead.ID {
		return s.mergeInto(ctx, *existing, lead, key, now)
	}

	return s.markMissedInPlace(ctx, lead, key, now, true)
}

// mergeInto folds the new lead into the existing missed record and deletes
// the now-redundant input record.
func (s *Service) mergeInto(ctx context.Context, existing, lead leadstore.Lead, key string, now time.Time) (string, error) {
	count := existing.AttemptCount
	if count < 1 {
		count = 1
	}
	count++

	attemptLog := prependAttempt(existing.AttemptLog, leadstore.AttemptEntry{At: now, Source: lead.Source})

	fields := leadstore.Fields{
		"attempt_count":   count,
		"attempt_log":     attemptLog,
		"last_attempt_at": now,
		"dedupe_key":      key,
	}
	if first := firstAttemptOf(existing, now); first != nil {
		fields["first_attempt_at"] = *first
	}

	if _, err := s.store.PatchLead(ctx, existing.ID, fields); err != nil {
		return "", err
	}

	// The merged-in lead is redundant now: one card per identity. Losing its
	// own record is intentional; its history lives on in the attempt log.
	if err := s.store.DeleteLead(ctx, lead.ID); err != nil {
		s.log.Warn("failed to delete superseded lead", "lead_id", lead.ID, "kept_id", existing.ID, "error", err)
	}

	return existing.ID, nil
}

func (s *Service) markMissedInPlace(ctx context.Context, lead leadstore.Lead, key string, now time.Time, appendAttempt bool) (string, error) {
	count := lead.AttemptCount
	if count < 1 {
		count = 1
	}

	fields := leadstore.Fields{
		"status":          leadstore.StatusMissed,
		"attempt_count":   count,
		"last_attempt_at": now,
		"first_attempt_at": func() time.Time {
			if first := firstAttemptOf(lead, now); first != nil {
				return *first
			}
			return now
		}(),
	}
	if key != "" {
		fields["dedupe_key"] = key
	}
	if appendAttempt {
		fields["attempt_log"] = prependAttempt(lead.AttemptLog, leadstore.AttemptEntry{At: now, Source: lead.Source})
	}

	if _, err := s.store.PatchLead(ctx, lead.ID, fields); err != nil {
		return "", err
	}
	return lead.ID, nil
}

// firstAttemptOf resolves the start of the aggregation window:
// existing value, then record creation time, then nil (caller defaults to now).
func firstAttemptOf(lead leadstore.Lead, _ time.Time) *time.Time {
	if lead.FirstAttempt != nil {
		return lead.FirstAttempt
	}
	if lead.DateCreated != nil {
		return lead.DateCreated
	}
	return nil
}

// prependAttempt puts the new entry first and truncates to the cap.
func prependAttempt(log []leadstore.AttemptEntry, entry leadstore.AttemptEntry) []leadstore.AttemptEntry {
	out := make([]leadstore.AttemptEntry, 0, len(log)+1)
	out = append(out, entry)
	out = append(out, log...)
	if len(out) > leadstore.AttemptLogCap {
		out = out[:leadstore.AttemptLogCap]
	}
	return out
}
