package sync

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"crm_intake_backend/internal/identity"
	"crm_intake_backend/internal/leadstore"
	"crm_intake_backend/platform/logger"
)

// Collection is the slice of the items client the sync needs per collection.
type Collection interface {
	Find(ctx context.Context, query url.Values) ([]leadstore.Record, error)
	Create(ctx context.Context, payload map[string]any) (leadstore.Record, error)
	Patch(ctx context.Context, id string, payload map[string]any) (leadstore.Record, error)
}

// Service propagates record changes between contacts and newsletter
// subscriptions. Every step is best-effort: a failure is logged and the
// originating write is never failed because of it.
type Service struct {
	contacts      Collection
	subscriptions Collection
	identityMap   Collection
	collections   leadstore.Collections
	log           *logger.Logger
	now           func() time.Time
}

// NewService creates the sync service over the three store collections.
func NewService(contacts, subscriptions, identityMap Collection, collections leadstore.Collections, log *logger.Logger) *Service {
	return &Service{
		contacts:      contacts,
		subscriptions: subscriptions,
		identityMap:   identityMap,
		collections:   collections,
		log:           log,
		now:           time.Now,
	}
}

// RecordChanged handles a create/update hook for one record in either
// collection. The record payload is the post-write snapshot.
func (s *Service) RecordChanged(ctx context.Context, collection, key string, payload leadstore.Record) {
	var target Collection
	var targetName string
	switch collection {
	case s.collections.Contacts:
		target, targetName = s.subscriptions, s.collections.Subscriptions
	case s.collections.Subscriptions:
		target, targetName = s.contacts, s.collections.Contacts
	default:
		s.log.Warn("sync hook for unknown collection", "collection", collection)
		return
	}

	email := identity.NormalizeEmail(stringField(payload, "email"))
	phone := identity.NormalizePhone(stringField(payload, "phone"))
	if email == "" && phone == "" {
		s.log.SyncEvent(collection, targetName, "skipped:no-identity")
		return
	}

	existing, err := s.findMatch(ctx, target, email, phone)
	if err != nil {
		s.log.Error("sync target lookup failed", "collection", targetName, "error", err)
		s.log.SyncEvent(collection, targetName, "error")
		return
	}

	candidate := candidatePayload(payload, collection, targetName, s.collections.Contacts)

	var targetID string
	outcome := "skipped:no-diff"
	if existing != nil {
		targetID = recordID(*existing)
		if hasDiff(candidate, *existing) {
			if _, err := target.Patch(ctx, targetID, candidate); err != nil {
				s.log.Error("sync target update failed", "collection", targetName, "id", targetID, "error", err)
				s.log.SyncEvent(collection, targetName, "error")
				return
			}
			outcome = "updated"
		}
	} else {
		created, err := target.Create(ctx, candidate)
		if err != nil {
			s.log.Error("sync target create failed", "collection", targetName, "error", err)
			s.log.SyncEvent(collection, targetName, "error")
			return
		}
		targetID = recordID(created)
		outcome = "created"
	}

	if outcome != "skipped:no-diff" {
		s.upsertIdentityMap(ctx, identityLink{
			email:     email,
			phone:     phone,
			rawPhone:  stringField(payload, "phone"),
			source:    collectionIDs{collection: collection, id: key},
			target:    collectionIDs{collection: targetName, id: targetID},
			timestamp: s.now().UTC(),
		})
	}

	s.log.SyncEvent(collection, targetName, outcome)
}

// findMatch searches the target collection for a record sharing the email or
// phone, most recently updated first.
func (s *Service) findMatch(ctx context.Context, target Collection, email, phone string) (*leadstore.Record, error) {
	query := url.Values{}
	idx := 0
	if email != "" {
		query.Set("filter[_or]["+strconv.Itoa(idx)+"][email][_eq]", email)
		idx++
	}
	if phone != "" {
		query.Set("filter[_or]["+strconv.Itoa(idx)+"][phone][_ends_with]", phone)
	}
	query.Set("sort", "-date_updated")
	query.Set("limit", "1")

	records, err := target.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

func stringField(record leadstore.Record, field string) string {
	if v, ok := record[field].(string); ok {
		return v
	}
	return ""
}

func recordID(record leadstore.Record) string {
	switch id := record["id"].(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}
