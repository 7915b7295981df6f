package sync

import (
	"context"
	"net/url"
	"time"

	"crm_intake_backend/platform/phone"
)

type collectionIDs struct {
	collection string
	id         string
}

type identityLink struct {
	email     string
	phone     string
	rawPhone  string
	source    collectionIDs
	target    collectionIDs
	timestamp time.Time
}

// matchedBy returns the match basis and its confidence score.
func (l identityLink) matchedBy() (string, int) {
	switch {
	case l.email != "" && l.phone != "":
		return "both", 90
	case l.email != "":
		return "email", 80
	default:
		return "phone", 70
	}
}

// upsertIdentityMap records the match in the identity map. Best-effort: a
// failure here never fails the sync that produced it.
func (s *Service) upsertIdentityMap(ctx context.Context, link identityLink) {
	matchedBy, confidence := link.matchedBy()

	fields := map[string]any{
		"email_normalized": link.email,
		"phone_normalized": link.phone,
		"phone_e164":       phone.NormalizeE164(link.rawPhone),
		"matched_by":       matchedBy,
		"confidence":       confidence,
		"last_verified_at": link.timestamp.Format(time.RFC3339),
	}
	for _, ids := range []collectionIDs{link.source, link.target} {
		if ids.id == "" {
			continue
		}
		switch ids.collection {
		case s.collections.Contacts:
			fields["contact_id"] = ids.id
		case s.collections.Subscriptions:
			fields["subscription_id"] = ids.id
		}
	}

	query := url.Values{}
	query.Set("filter[email_normalized][_eq]", link.email)
	query.Set("filter[phone_normalized][_eq]", link.phone)
	query.Set("limit", "1")

	existing, err := s.identityMap.Find(ctx, query)
	if err != nil {
		s.log.Error("identity map lookup failed", "error", err)
		return
	}

	if len(existing) > 0 {
		if id := recordID(existing[0]); id != "" {
			if _, err := s.identityMap.Patch(ctx, id, fields); err != nil {
				s.log.Error("identity map update failed", "id", id, "error", err)
			}
			return
		}
	}

	if _, err := s.identityMap.Create(ctx, fields); err != nil {
		s.log.Error("identity map create failed", "error", err)
	}
}
