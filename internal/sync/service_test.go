package sync

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"crm_intake_backend/internal/leadstore"
	"crm_intake_backend/platform/logger"
)

type fakeCollection struct {
	records   []leadstore.Record
	findErr   error
	createErr error
	patchErr  error

	findCalls   []url.Values
	created     []map[string]any
	patched     []map[string]any
	patchedIDs  []string
	nextCreated leadstore.Record
}

func (f *fakeCollection) Find(ctx context.Context, query url.Values) ([]leadstore.Record, error) {
	f.findCalls = append(f.findCalls, query)
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.records, nil
}

func (f *fakeCollection) Create(ctx context.Context, payload map[string]any) (leadstore.Record, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, payload)
	if f.nextCreated != nil {
		return f.nextCreated, nil
	}
	return leadstore.Record{"id": "created-1"}, nil
}

func (f *fakeCollection) Patch(ctx context.Context, id string, payload map[string]any) (leadstore.Record, error) {
	if f.patchErr != nil {
		return nil, f.patchErr
	}
	f.patchedIDs = append(f.patchedIDs, id)
	f.patched = append(f.patched, payload)
	return leadstore.Record{"id": id}, nil
}

func (f *fakeCollection) writes() int {
	return len(f.created) + len(f.patched)
}

var testCollections = leadstore.Collections{
	Leads:         "leads",
	Contacts:      "contacts",
	Subscriptions: "newsletter_subscriptions",
	IdentityMap:   "identity_map",
}

func newTestService(contacts, subscriptions, identityMap *fakeCollection) *Service {
	return NewService(contacts, subscriptions, identityMap, testCollections, logger.New("development"))
}

func TestContactCreatesMatchingSubscription(t *testing.T) {
	contacts := &fakeCollection{}
	subscriptions := &fakeCollection{}
	identityMap := &fakeCollection{}
	svc := newTestService(contacts, subscriptions, identityMap)

	svc.RecordChanged(context.Background(), "contacts", "c-1", leadstore.Record{
		"id":                "c-1",
		"first_name":        "Rita",
		"email":             "X@Y.com",
		"marketing_consent": true,
		"newsletter_source": "signup-form",
	})

	if len(subscriptions.created) != 1 {
		t.Fatalf("expected one subscription created, got %d", len(subscriptions.created))
	}
	created := subscriptions.created[0]
	if created["email"] != "X@Y.com" {
		t.Errorf("expected email copied as-is, got %v", created["email"])
	}
	if created["first_name"] != "Rita" {
		t.Errorf("expected first_name copied, got %v", created["first_name"])
	}
	if created["source"] != "signup-form" {
		t.Errorf("expected newsletter_source de-aliased to source, got %v", created["source"])
	}

	if len(identityMap.created) != 1 {
		t.Fatalf("expected one identity map row, got %d", len(identityMap.created))
	}
	row := identityMap.created[0]
	if row["matched_by"] != "email" {
		t.Errorf("expected matched_by email, got %v", row["matched_by"])
	}
	if row["confidence"] != 80 {
		t.Errorf("expected confidence 80, got %v", row["confidence"])
	}
	if row["email_normalized"] != "x@y.com" {
		t.Errorf("expected normalized email, got %v", row["email_normalized"])
	}
	if row["contact_id"] != "c-1" {
		t.Errorf("expected contact id linked, got %v", row["contact_id"])
	}
	if row["subscription_id"] != "created-1" {
		t.Errorf("expected new subscription id linked, got %v", row["subscription_id"])
	}
}

func TestAgreeingRecordsProduceNoWrite(t *testing.T) {
	contacts := &fakeCollection{}
	subscriptions := &fakeCollection{records: []leadstore.Record{{
		"id":         "s-1",
		"first_name": "Rita",
		"email":      "x@y.com",
		"phone":      "912345678",
		"source":     "signup-form",
	}}}
	identityMap := &fakeCollection{}
	svc := newTestService(contacts, subscriptions, identityMap)

	svc.RecordChanged(context.Background(), "contacts", "c-1", leadstore.Record{
		"id":                "c-1",
		"first_name":        "Rita",
		"email":             "x@y.com",
		"phone":             "912345678",
		"newsletter_source": "signup-form",
	})

	if subscriptions.writes() != 0 {
		t.Fatalf("agreeing records must not produce a write, got %d", subscriptions.writes())
	}
	if identityMap.writes() != 0 {
		t.Fatalf("skipped sync must not touch the identity map, got %d writes", identityMap.writes())
	}
}

func TestSubscriptionUpdatesMatchingContact(t *testing.T) {
	contacts := &fakeCollection{records: []leadstore.Record{{
		"id":         "c-9",
		"email":      "x@y.com",
		"phone":      "912345678",
		"first_name": "Rita",
	}}}
	subscriptions := &fakeCollection{}
	identityMap := &fakeCollection{}
	svc := newTestService(contacts, subscriptions, identityMap)

	svc.RecordChanged(context.Background(), "newsletter_subscriptions", "s-1", leadstore.Record{
		"id":          "s-1",
		"email":       "x@y.com",
		"phone":       "+351 912 345 678",
		"first_name":  "Rita Maria",
		"coupon_code": "WELCOME10",
		"notes":       "subscribed at checkout",
	})

	if len(contacts.patched) != 1 {
		t.Fatalf("expected one contact patch, got %d", len(contacts.patched))
	}
	if contacts.patchedIDs[0] != "c-9" {
		t.Errorf("expected contact c-9 patched, got %s", contacts.patchedIDs[0])
	}
	patch := contacts.patched[0]
	if patch["first_name"] != "Rita Maria" {
		t.Errorf("expected first_name propagated, got %v", patch["first_name"])
	}
	if patch["newsletter_notes"] != "subscribed at checkout" {
		t.Errorf("expected notes aliased to newsletter_notes, got %v", patch["newsletter_notes"])
	}
	if patch["coupon_code"] != "WELCOME10" {
		t.Errorf("expected coupon propagated, got %v", patch["coupon_code"])
	}

	if len(identityMap.created) != 1 {
		t.Fatalf("expected identity map row, got %d", len(identityMap.created))
	}
	row := identityMap.created[0]
	if row["matched_by"] != "both" {
		t.Errorf("expected matched_by both, got %v", row["matched_by"])
	}
	if row["confidence"] != 90 {
		t.Errorf("expected confidence 90, got %v", row["confidence"])
	}
	if row["phone_e164"] != "+351912345678" {
		t.Errorf("expected E.164 phone, got %v", row["phone_e164"])
	}
	if row["contact_id"] != "c-9" || row["subscription_id"] != "s-1" {
		t.Errorf("expected both ids linked, got %v / %v", row["contact_id"], row["subscription_id"])
	}
}

func TestNoIdentityIsNoOp(t *testing.T) {
	contacts := &fakeCollection{}
	subscriptions := &fakeCollection{}
	svc := newTestService(contacts, subscriptions, &fakeCollection{})

	svc.RecordChanged(context.Background(), "contacts", "c-1", leadstore.Record{
		"id":         "c-1",
		"first_name": "Anon",
	})

	if len(subscriptions.findCalls) != 0 || subscriptions.writes() != 0 {
		t.Fatal("record without identity must not reach the target collection")
	}
}

func TestIdentityMapFailureDoesNotFailSync(t *testing.T) {
	contacts := &fakeCollection{}
	subscriptions := &fakeCollection{}
	identityMap := &fakeCollection{findErr: errors.New("identity map down")}
	svc := newTestService(contacts, subscriptions, identityMap)

	svc.RecordChanged(context.Background(), "contacts", "c-1", leadstore.Record{
		"id":    "c-1",
		"email": "x@y.com",
	})

	if len(subscriptions.created) != 1 {
		t.Fatalf("sync write must survive identity map failure, got %d creates", len(subscriptions.created))
	}
}

func TestExistingIdentityMapRowIsUpdated(t *testing.T) {
	contacts := &fakeCollection{}
	subscriptions := &fakeCollection{}
	identityMap := &fakeCollection{records: []leadstore.Record{{"id": "im-3"}}}
	svc := newTestService(contacts, subscriptions, identityMap)

	svc.RecordChanged(context.Background(), "contacts", "c-1", leadstore.Record{
		"id":    "c-1",
		"email": "x@y.com",
	})

	if len(identityMap.created) != 0 {
		t.Fatalf("expected no new identity map row, got %d", len(identityMap.created))
	}
	if len(identityMap.patchedIDs) != 1 || identityMap.patchedIDs[0] != "im-3" {
		t.Fatalf("expected existing row im-3 updated, got %v", identityMap.patchedIDs)
	}
}

func TestHasDiffTreatsNullAndAbsentAsEqual(t *testing.T) {
	existing := leadstore.Record{"first_name": "Rita", "coupon_code": nil}
	if hasDiff(map[string]any{"first_name": "Rita"}, existing) {
		t.Error("identical scalar must not diff")
	}
	if hasDiff(map[string]any{"confidence": 90}, leadstore.Record{"confidence": float64(90)}) {
		t.Error("int vs json float64 must not diff")
	}
	if !hasDiff(map[string]any{"first_name": "Ana"}, existing) {
		t.Error("changed scalar must diff")
	}
	if !hasDiff(map[string]any{"coupon_code": "X"}, leadstore.Record{}) {
		t.Error("value vs absent must diff")
	}
}
