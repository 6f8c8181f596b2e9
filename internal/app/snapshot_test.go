package app

import (
	"context"
	"strings"
	"testing"

	"github.com/evanschultz/tally/internal/domain"
)

func TestExportImportSnapshotRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	product := env.addProduct(t, "A-1", 50)
	env.addProduct(t, "B-1", 3)
	session := env.startSession(t)
	env.count(t, env.itemFor(t, session.ID, product.ID).ID, 42)
	ctx := context.Background()

	snap, err := env.svc.ExportSnapshot(ctx, true)
	if err != nil {
		t.Fatalf("ExportSnapshot() error = %v", err)
	}
	if snap.Version != SnapshotVersion {
		t.Fatalf("unexpected version %q", snap.Version)
	}
	if len(snap.Locations) != 1 || len(snap.Products) != 2 || len(snap.Stock) != 2 || len(snap.Sessions) != 1 || len(snap.Items) != 2 {
		t.Fatalf("unexpected snapshot sizes l=%d p=%d s=%d cs=%d ci=%d", len(snap.Locations), len(snap.Products), len(snap.Stock), len(snap.Sessions), len(snap.Items))
	}
	if snap.Items[0].Position != 0 || snap.Items[0].CountedQuantity == nil || *snap.Items[0].CountedQuantity != 42 {
		t.Fatalf("unexpected first item %#v", snap.Items[0])
	}

	target := newTestEnv(t)
	if err := target.svc.ImportSnapshot(ctx, snap); err != nil {
		t.Fatalf("ImportSnapshot() error = %v", err)
	}
	if got := target.repo.stock[stockKey{product.ID, env.location.ID}]; got != 50 {
		t.Fatalf("imported stock = %d, want 50", got)
	}
	imported, ok := target.repo.sessions[session.ID]
	if !ok || imported.Status != domain.SessionStatusInProgress {
		t.Fatalf("unexpected imported session %#v", imported)
	}
	items, _ := target.repo.ListCountItems(ctx, session.ID)
	if len(items) != 2 {
		t.Fatalf("expected 2 imported items, got %d", len(items))
	}
	last := target.repo.adjustments[len(target.repo.adjustments)-1]
	if last.Reason != snapshotImportReason {
		t.Fatalf("unexpected import audit reason %q", last.Reason)
	}
}

func TestSnapshotValidateRejectsDanglingReferences(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want string
	}{
		{name: "version", snap: Snapshot{Version: "other"}, want: "unsupported snapshot version"},
		{name: "stock product", snap: Snapshot{
			Locations: []SnapshotLocation{{ID: "l1", Name: "Shop"}},
			Stock:     []SnapshotStockRecord{{ProductID: "p1", LocationID: "l1"}},
		}, want: "unknown product_id"},
		{name: "two primaries", snap: Snapshot{
			Locations: []SnapshotLocation{{ID: "l1", Name: "Shop", Primary: true}, {ID: "l2", Name: "Back", Primary: true}},
		}, want: "primary locations"},
		{name: "session status", snap: Snapshot{
			Locations: []SnapshotLocation{{ID: "l1", Name: "Shop"}},
			Sessions:  []SnapshotCountSession{{ID: "s1", LocationID: "l1", Status: "paused"}},
		}, want: "sessions[0]"},
		{name: "item session", snap: Snapshot{
			Products: []SnapshotProduct{{ID: "p1", SKU: "A"}},
			Items:    []SnapshotCountItem{{ID: "i1", SessionID: "s1", ProductID: "p1"}},
		}, want: "unknown session_id"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.snap.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate() error = %v, want %q", err, tc.want)
			}
		})
	}
}
