package planner

import (
	"testing"
	"time"

	"github.com/liamcoop/triage/action"
)

func testPlan(id, accountID string, createdAt time.Time) *ExecutionPlan {
	return &ExecutionPlan{
		ID:               id,
		RecommendationID: "rec-" + id,
		AccountID:        accountID,
		MessageID:        "msg-" + id,
		CreatedAt:        createdAt,
		Steps: []ExecutionStep{
			{
				Action:   action.Descriptor{Type: action.TypeFlag, Priority: 8},
				Decision: DecisionApproved,
				Reason:   "allowed",
			},
		},
		OverallStatus: StatusApproved,
	}
}

func TestInMemoryPlanStoreAddAndGet(t *testing.T) {
	store := NewInMemoryPlanStore()
	plan := testPlan("p1", "acct-1", time.Now().UTC())

	if err := store.Add(plan); err != nil {
		t.Fatalf("unexpected error adding plan: %v", err)
	}

	got, err := store.Get("p1")
	if err != nil {
		t.Fatalf("unexpected error getting plan: %v", err)
	}
	if got.RecommendationID != "rec-p1" {
		t.Errorf("expected recommendation ID rec-p1, got %s", got.RecommendationID)
	}
}

func TestInMemoryPlanStoreRejectsDuplicates(t *testing.T) {
	store := NewInMemoryPlanStore()
	now := time.Now().UTC()

	if err := store.Add(testPlan("p1", "acct-1", now)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Add(testPlan("p1", "acct-1", now)); err == nil {
		t.Error("expected error adding duplicate plan ID")
	}
}

func TestInMemoryPlanStoreRejectsInvalidPlans(t *testing.T) {
	store := NewInMemoryPlanStore()

	if err := store.Add(nil); err == nil {
		t.Error("expected error adding nil plan")
	}
	if err := store.Add(&ExecutionPlan{}); err == nil {
		t.Error("expected error adding plan without ID")
	}
}

func TestInMemoryPlanStoreGetMissing(t *testing.T) {
	store := NewInMemoryPlanStore()
	if _, err := store.Get("nope"); err == nil {
		t.Error("expected error getting missing plan")
	}
}

func TestInMemoryPlanStoreListByAccount(t *testing.T) {
	store := NewInMemoryPlanStore()
	base := time.Now().UTC()

	plans := []*ExecutionPlan{
		testPlan("p1", "acct-1", base.Add(-2*time.Hour)),
		testPlan("p2", "acct-1", base.Add(-1*time.Hour)),
		testPlan("p3", "acct-2", base),
	}
	for _, p := range plans {
		if err := store.Add(p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := store.ListByAccount("acct-1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 plans for acct-1, got %d", len(got))
	}
	if got[0].ID != "p2" || got[1].ID != "p1" {
		t.Errorf("expected newest-first ordering [p2 p1], got [%s %s]", got[0].ID, got[1].ID)
	}

	limited, err := store.ListByAccount("acct-1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "p2" {
		t.Errorf("expected limit to keep the newest plan, got %+v", limited)
	}
}
