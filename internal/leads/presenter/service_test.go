package presenter

import (
	"context"
	"fmt"
	"testing"
	"time"

	"crm_intake_backend/internal/leadstore"
	"crm_intake_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeStore struct {
	leads   map[string]*leadstore.Lead
	order   []string
	patches map[string][]leadstore.Fields
}

func newFakeStore(leads ...*leadstore.Lead) *fakeStore {
	s := &fakeStore{
		leads:   make(map[string]*leadstore.Lead),
		patches: make(map[string][]leadstore.Fields),
	}
	for _, lead := range leads {
		s.leads[lead.ID] = lead
		s.order = append(s.order, lead.ID)
	}
	return s
}

func (f *fakeStore) FetchIncomingLeads(_ context.Context, limit int) ([]leadstore.Lead, error) {
	out := make([]leadstore.Lead, 0, limit)
	for _, id := range f.order {
		lead := f.leads[id]
		if lead.Status == leadstore.StatusIncoming {
			out = append(out, *lead)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) GetLead(_ context.Context, id string) (leadstore.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return leadstore.Lead{}, fmt.Errorf("lead store: not found (status 404)")
	}
	return *lead, nil
}

func (f *fakeStore) PatchLead(_ context.Context, id string, fields leadstore.Fields) (leadstore.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return leadstore.Lead{}, fmt.Errorf("lead store: not found (status 404)")
	}
	f.patches[id] = append(f.patches[id], fields)
	if status, ok := fields["status"].(leadstore.Status); ok {
		lead.Status = status
	}
	return *lead, nil
}

type fakeAggregator struct {
	calls []string
}

func (f *fakeAggregator) MarkMissed(_ context.Context, lead leadstore.Lead) (string, error) {
	f.calls = append(f.calls, lead.ID)
	return lead.ID, nil
}

type fakeScheduler struct {
	scheduled []string
}

func (f *fakeScheduler) ScheduleDecisionTimeout(_ context.Context, leadID string, _ time.Time) error {
	f.scheduled = append(f.scheduled, leadID)
	return nil
}

func newTestService(t *testing.T, store *fakeStore) (*Service, *fakeAggregator, *fakeScheduler) {
	t.Helper()
	mini := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	agg := &fakeAggregator{}
	sched := &fakeScheduler{}
	svc := New(store, agg, sched, rdb, 18*time.Second, nil, logger.New("development"))
	return svc, agg, sched
}

func TestCurrentPresentsFirstIncomingAndSchedulesTimeout(t *testing.T) {
	store := newFakeStore(
		&leadstore.Lead{ID: "a", Status: leadstore.StatusIncoming},
		&leadstore.Lead{ID: "b", Status: leadstore.StatusIncoming},
	)
	svc, _, sched := newTestService(t, store)

	lead, err := svc.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if lead == nil || lead.ID != "a" {
		t.Fatalf("expected lead a presented, got %+v", lead)
	}
	if len(sched.scheduled) != 1 || sched.scheduled[0] != "a" {
		t.Fatalf("expected one timeout scheduled for a, got %v", sched.scheduled)
	}

	// Same lead again while still undecided; no second timer.
	again, err := svc.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if again == nil || again.ID != "a" {
		t.Fatalf("expected same presented lead, got %+v", again)
	}
	if len(sched.scheduled) != 1 {
		t.Fatalf("expected no extra timer, got %v", sched.scheduled)
	}
}

func TestAnswerPatchesClaimAndFreesSlot(t *testing.T) {
	store := newFakeStore(&leadstore.Lead{ID: "a", Status: leadstore.StatusIncoming})
	svc, _, _ := newTestService(t, store)

	if _, err := svc.Current(context.Background()); err != nil {
		t.Fatalf("Current: %v", err)
	}

	lead, err := svc.Answer(context.Background(), "a", "operator-1")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if lead.Status != leadstore.StatusOngoing {
		t.Fatalf("expected ongoing, got %q", lead.Status)
	}

	patch := store.patches["a"][0]
	if patch["claimed_by"] != "operator-1" {
		t.Fatalf("expected claim metadata, got %+v", patch)
	}
	if _, ok := patch["claimed_at"]; !ok {
		t.Fatalf("expected claimed_at, got %+v", patch)
	}

	next, err := svc.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if next != nil {
		t.Fatalf("expected empty inbox after answer, got %+v", next)
	}
}

func TestTimeoutAggregatesUndecidedLead(t *testing.T) {
	store := newFakeStore(&leadstore.Lead{ID: "a", Status: leadstore.StatusIncoming, Phone: "912345678"})
	svc, agg, _ := newTestService(t, store)

	if _, err := svc.Current(context.Background()); err != nil {
		t.Fatalf("Current: %v", err)
	}

	if err := svc.HandleTimeout(context.Background(), "a"); err != nil {
		t.Fatalf("HandleTimeout: %v", err)
	}
	if len(agg.calls) != 1 || agg.calls[0] != "a" {
		t.Fatalf("expected aggregation for a, got %v", agg.calls)
	}
}

func TestTimeoutIsNoOpAfterDecision(t *testing.T) {
	store := newFakeStore(&leadstore.Lead{ID: "a", Status: leadstore.StatusIncoming})
	svc, agg, _ := newTestService(t, store)

	if _, err := svc.Current(context.Background()); err != nil {
		t.Fatalf("Current: %v", err)
	}
	if _, err := svc.Reject(context.Background(), "a"); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	if err := svc.HandleTimeout(context.Background(), "a"); err != nil {
		t.Fatalf("HandleTimeout: %v", err)
	}
	if len(agg.calls) != 0 {
		t.Fatalf("decided lead must not be aggregated, got %v", agg.calls)
	}
}

func TestDismissedLeadNotRepresentedAndNotAggregated(t *testing.T) {
	store := newFakeStore(
		&leadstore.Lead{ID: "a", Status: leadstore.StatusIncoming},
		&leadstore.Lead{ID: "b", Status: leadstore.StatusIncoming},
	)
	svc, agg, _ := newTestService(t, store)

	if _, err := svc.Current(context.Background()); err != nil {
		t.Fatalf("Current: %v", err)
	}
	if err := svc.Dismiss(context.Background(), "a"); err != nil {
		t.Fatalf("Dismiss: %v", err)
	}

	// Dismissal is not a decision: the lead stays incoming and unpatched.
	if store.leads["a"].Status != leadstore.StatusIncoming {
		t.Fatalf("dismissed lead must stay incoming, got %q", store.leads["a"].Status)
	}
	if len(store.patches["a"]) != 0 {
		t.Fatalf("dismissed lead must not be patched, got %v", store.patches["a"])
	}

	// Its pending timeout resolves to nothing.
	if err := svc.HandleTimeout(context.Background(), "a"); err != nil {
		t.Fatalf("HandleTimeout: %v", err)
	}
	if len(agg.calls) != 0 {
		t.Fatalf("dismissed lead must not be aggregated, got %v", agg.calls)
	}

	// The next presentation skips it.
	next, err := svc.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if next == nil || next.ID != "b" {
		t.Fatalf("expected lead b presented, got %+v", next)
	}
}

func TestTimeoutSkipsMissingLead(t *testing.T) {
	store := newFakeStore()
	svc, agg, _ := newTestService(t, store)

	if err := svc.HandleTimeout(context.Background(), "gone"); err != nil {
		t.Fatalf("HandleTimeout must degrade to skip, got %v", err)
	}
	if len(agg.calls) != 0 {
		t.Fatalf("missing lead must not be aggregated, got %v", agg.calls)
	}
}
