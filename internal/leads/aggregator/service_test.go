package aggregator

import (
	"context"
	"testing"
	"time"

	"crm_intake_backend/internal/leadstore"
	"crm_intake_backend/platform/logger"
)

type fakeStore struct {
	missed  map[string]*leadstore.Lead // dedupe key -> rolling missed record
	patches map[string][]leadstore.Fields
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		missed:  make(map[string]*leadstore.Lead),
		patches: make(map[string][]leadstore.Fields),
	}
}

func (f *fakeStore) FindMissedByDedupeKey(_ context.Context, key string) (*leadstore.Lead, error) {
	if lead, ok := f.missed[key]; ok {
		copied := *lead
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeStore) PatchLead(_ context.Context, id string, fields leadstore.Fields) (leadstore.Lead, error) {
	f.patches[id] = append(f.patches[id], fields)

	// Mirror the store: apply the patch to the rolling record if it exists,
	// or install the input lead as the new rolling record.
	for _, lead := range f.missed {
		if lead.ID == id {
			applyFields(lead, fields)
			return *lead, nil
		}
	}
	lead := &leadstore.Lead{ID: id}
	applyFields(lead, fields)
	if lead.DedupeKey != "" {
		f.missed[lead.DedupeKey] = lead
	}
	return *lead, nil
}

func (f *fakeStore) DeleteLead(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func applyFields(lead *leadstore.Lead, fields leadstore.Fields) {
	if v, ok := fields["status"].(leadstore.Status); ok {
		lead.Status = v
	}
	if v, ok := fields["dedupe_key"].(string); ok {
		lead.DedupeKey = v
	}
	if v, ok := fields["attempt_count"].(int); ok {
		lead.AttemptCount = v
	}
	if v, ok := fields["attempt_log"].([]leadstore.AttemptEntry); ok {
		lead.AttemptLog = v
	}
	if v, ok := fields["last_attempt_at"].(time.Time); ok {
		lead.LastAttempt = &v
	}
	if v, ok := fields["first_attempt_at"].(time.Time); ok {
		lead.FirstAttempt = &v
	}
}

func newService(store *fakeStore) *Service {
	return New(store, nil, logger.New("development"))
}

func TestMarkMissedMergesIntoExistingRecord(t *testing.T) {
	store := newFakeStore()
	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.missed["phone:912345678"] = &leadstore.Lead{
		ID:           "kept",
		Status:       leadstore.StatusMissed,
		DedupeKey:    "phone:912345678",
		AttemptCount: 3,
		FirstAttempt: &first,
		AttemptLog: []leadstore.AttemptEntry{
			{At: first, Source: leadstore.SourcePhone},
		},
	}

	svc := newService(store)
	keptID, err := svc.MarkMissed(context.Background(), leadstore.Lead{
		ID:     "new",
		Status: leadstore.StatusIncoming,
		Phone:  "+351 912 345 678",
		Source: leadstore.SourcePhone,
	})
	if err != nil {
		t.Fatalf("MarkMissed: %v", err)
	}
	if keptID != "kept" {
		t.Fatalf("expected existing record kept, got %q", keptID)
	}

	rolling := store.missed["phone:912345678"]
	if rolling.AttemptCount != 4 {
		t.Fatalf("expected attempt_count 4, got %d", rolling.AttemptCount)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "new" {
		t.Fatalf("expected superseded lead deleted, got %v", store.deleted)
	}
	if rolling.FirstAttempt == nil || !rolling.FirstAttempt.Equal(first) {
		t.Fatalf("first_attempt_at must be preserved, got %v", rolling.FirstAttempt)
	}
	if len(rolling.AttemptLog) != 2 {
		t.Fatalf("expected new attempt prepended, got %+v", rolling.AttemptLog)
	}
	if rolling.AttemptLog[0].At.Before(rolling.AttemptLog[1].At) {
		t.Fatalf("attempt log must be newest first, got %+v", rolling.AttemptLog)
	}
}

func TestMarkMissedWithoutIdentityPatchesInPlace(t *testing.T) {
	store := newFakeStore()
	svc := newService(store)

	keptID, err := svc.MarkMissed(context.Background(), leadstore.Lead{
		ID:     "anon",
		Status: leadstore.StatusIncoming,
		Source: leadstore.SourceWeb,
	})
	if err != nil {
		t.Fatalf("MarkMissed: %v", err)
	}
	if keptID != "anon" {
		t.Fatalf("expected lead kept in place, got %q", keptID)
	}
	if len(store.deleted) != 0 {
		t.Fatalf("lead without identity must never be deleted, got %v", store.deleted)
	}

	patches := store.patches["anon"]
	if len(patches) != 1 {
		t.Fatalf("expected one patch, got %d", len(patches))
	}
	if patches[0]["status"] != leadstore.StatusMissed {
		t.Fatalf("expected status missed, got %v", patches[0]["status"])
	}
	if patches[0]["attempt_count"] != 1 {
		t.Fatalf("expected attempt_count 1, got %v", patches[0]["attempt_count"])
	}
	if _, ok := patches[0]["dedupe_key"]; ok {
		t.Fatal("must not invent a dedupe key for an unidentifiable lead")
	}
}

func TestMarkMissedFirstForIdentityKeepsInputLead(t *testing.T) {
	store := newFakeStore()
	svc := newService(store)

	keptID, err := svc.MarkMissed(context.Background(), leadstore.Lead{
		ID:     "first",
		Status: leadstore.StatusIncoming,
		Phone:  "912345678",
		Source: leadstore.SourcePhone,
	})
	if err != nil {
		t.Fatalf("MarkMissed: %v", err)
	}
	if keptID != "first" {
		t.Fatalf("expected input lead kept, got %q", keptID)
	}

	rolling := store.missed["phone:912345678"]
	if rolling == nil {
		t.Fatal("expected lead installed as rolling missed record")
	}
	if rolling.AttemptCount != 1 || len(rolling.AttemptLog) != 1 {
		t.Fatalf("expected seeded attempt state, got count=%d log=%d", rolling.AttemptCount, len(rolling.AttemptLog))
	}
}

func TestAttemptLogCappedAtThirty(t *testing.T) {
	store := newFakeStore()
	svc := newService(store)

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	for i := 0; i < 40; i++ {
		_, err := svc.MarkMissed(context.Background(), leadstore.Lead{
			ID:     "lead-" + string(rune('a'+i%26)) + string(rune('a'+i/26)),
			Status: leadstore.StatusIncoming,
			Phone:  "912345678",
			Source: leadstore.SourcePhone,
		})
		if err != nil {
			t.Fatalf("MarkMissed #%d: %v", i, err)
		}
	}

	rolling := store.missed["phone:912345678"]
	if rolling.AttemptCount != 40 {
		t.Fatalf("expected attempt_count 40, got %d", rolling.AttemptCount)
	}
	if len(rolling.AttemptLog) != 30 {
		t.Fatalf("expected attempt log capped at 30, got %d", len(rolling.AttemptLog))
	}
	for i := 1; i < len(rolling.AttemptLog); i++ {
		if rolling.AttemptLog[i].At.After(rolling.AttemptLog[i-1].At) {
			t.Fatalf("attempt log must be newest first, broken at %d", i)
		}
	}
}

func TestMarkMissedSameRecordDoesNotMergeWithItself(t *testing.T) {
	store := newFakeStore()
	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.missed["phone:912345678"] = &leadstore.Lead{
		ID:           "self",
		Status:       leadstore.StatusMissed,
		DedupeKey:    "phone:912345678",
		AttemptCount: 2,
		FirstAttempt: &first,
	}

	svc := newService(store)
	keptID, err := svc.MarkMissed(context.Background(), leadstore.Lead{
		ID:           "self",
		Status:       leadstore.StatusMissed,
		DedupeKey:    "phone:912345678",
		Phone:        "912345678",
		AttemptCount: 2,
		FirstAttempt: &first,
	})
	if err != nil {
		t.Fatalf("MarkMissed: %v", err)
	}
	if keptID != "self" {
		t.Fatalf("expected same record kept, got %q", keptID)
	}
	if len(store.deleted) != 0 {
		t.Fatalf("record must not be deleted when it is its own match, got %v", store.deleted)
	}
}
