package domain

import (
	"errors"
	"testing"
	"time"
)

func newTestItem(t *testing.T, system int) CountItem {
	t.Helper()
	item, err := NewCountItem(CountItemInput{
		ID:             "i1",
		SessionID:      "s1",
		ProductID:      "p1",
		LocationID:     "loc",
		SystemQuantity: system,
	}, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewCountItem() error = %v", err)
	}
	return item
}

func TestNewCountItemIsPending(t *testing.T) {
	item := newTestItem(t, 50)
	if item.Status != ItemStatusPending {
		t.Fatalf("expected pending, got %q", item.Status)
	}
	if item.CountedQuantity != nil || item.Variance != nil {
		t.Fatalf("pending item must have nil counted and variance, got %#v", item)
	}
	if item.Done() || item.HasVariance() || item.ReconcileCandidate() {
		t.Fatal("pending item must not be done or a candidate")
	}
}

func TestRecordCountComputesVariance(t *testing.T) {
	item := newTestItem(t, 50)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	if err := item.RecordCount(-1, "ana", "", now); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if item.Status != ItemStatusPending {
		t.Fatalf("rejected count must not mutate the item, got %q", item.Status)
	}

	if err := item.RecordCount(42, " ana ", "shelf 3", now); err != nil {
		t.Fatalf("RecordCount() error = %v", err)
	}
	if *item.CountedQuantity != 42 || *item.Variance != -8 {
		t.Fatalf("unexpected counted/variance %d/%d", *item.CountedQuantity, *item.Variance)
	}
	if item.Status != ItemStatusCounted || item.CountedBy != "ana" || item.CountedAt == nil {
		t.Fatalf("unexpected item %#v", item)
	}
	if !item.ReconcileCandidate() {
		t.Fatal("expected counted item with variance to be a candidate")
	}

	if err := item.RecordCount(50, "ana", "", now); err != nil {
		t.Fatalf("RecordCount() recount error = %v", err)
	}
	if *item.Variance != 0 || item.HasVariance() || item.ReconcileCandidate() {
		t.Fatalf("matching count must drop out of candidates, got %#v", item)
	}

	if err := item.Verify(50, false, "", now); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if err := item.RecordCount(44, "ana", "", now); !errors.Is(err, ErrItemVerified) || !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrItemVerified, got %v", err)
	}
	if item.Status != ItemStatusVerified || *item.CountedQuantity != 50 {
		t.Fatalf("rejected recount must not mutate a verified item, got %#v", item)
	}
}

func TestPolicyResolution(t *testing.T) {
	manual := 45
	cases := []struct {
		name         string
		policy       ReconcilePolicy
		manual       *int
		wantFinal    int
		wantUpdate   bool
		wantCounted  int
		wantVariance int
	}{
		{name: "accept count", policy: PolicyAcceptCount, wantFinal: 42, wantUpdate: true, wantCounted: 42, wantVariance: -8},
		{name: "keep system", policy: PolicyKeepSystem, wantFinal: 50, wantUpdate: false, wantCounted: 42, wantVariance: 0},
		{name: "manual adjust", policy: PolicyManualAdjust, manual: &manual, wantFinal: 45, wantUpdate: true, wantCounted: 45, wantVariance: -5},
		{name: "manual missing falls back", policy: PolicyManualAdjust, wantFinal: 50, wantUpdate: true, wantCounted: 50, wantVariance: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item := newTestItem(t, 50)
			now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
			if err := item.RecordCount(42, "ana", "", now); err != nil {
				t.Fatalf("RecordCount() error = %v", err)
			}
			res := tc.policy.Resolve(item, tc.manual)
			if res.FinalQuantity != tc.wantFinal || res.UpdateStock != tc.wantUpdate {
				t.Fatalf("unexpected resolution %#v", res)
			}
			if err := item.Verify(res.FinalQuantity, res.OverwriteCounted, "", now); err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if item.Status != ItemStatusVerified {
				t.Fatalf("expected verified, got %q", item.Status)
			}
			if *item.CountedQuantity != tc.wantCounted || *item.Variance != tc.wantVariance {
				t.Fatalf("unexpected counted/variance %d/%d", *item.CountedQuantity, *item.Variance)
			}
			applied, ok := item.AppliedQuantity()
			if !ok || applied != tc.wantFinal {
				t.Fatalf("AppliedQuantity() = %d, %t", applied, ok)
			}
		})
	}
}

func TestParseReconcilePolicy(t *testing.T) {
	policy, err := ParseReconcilePolicy(" ACCEPT_COUNT")
	if err != nil || policy != PolicyAcceptCount {
		t.Fatalf("ParseReconcilePolicy() = %q, %v", policy, err)
	}
	if _, err := ParseReconcilePolicy("split"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := PolicyKeepSystem.Reason(""); got != "Inventory count reconciliation - keep_system" {
		t.Fatalf("unexpected reason %q", got)
	}
}

func TestComputeProgress(t *testing.T) {
	if p := ComputeProgress(nil); p.Percent != 0 || p.Complete() {
		t.Fatalf("empty session progress = %#v", p)
	}
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	items := []CountItem{newTestItem(t, 10), newTestItem(t, 5), newTestItem(t, 7)}
	if err := items[0].RecordCount(8, "ana", "", now); err != nil {
		t.Fatalf("RecordCount() error = %v", err)
	}
	if err := items[1].RecordCount(9, "ana", "", now); err != nil {
		t.Fatalf("RecordCount() error = %v", err)
	}
	if err := items[1].Verify(9, false, "", now); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	p := ComputeProgress(items)
	if p.Percent != 67 || p.Pending != 1 || p.Counted != 1 || p.Verified != 1 {
		t.Fatalf("unexpected progress %#v", p)
	}
	if p.WithVariance != 2 || p.NetVariance != 2 || p.AbsoluteVariance != 6 {
		t.Fatalf("unexpected variance totals %#v", p)
	}
	if p.Complete() {
		t.Fatal("progress with a pending item must not be complete")
	}
}
