package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/evanschultz/tally/internal/domain"
)

// ReconcileInput holds input values for reconcile operations.
type ReconcileInput struct {
	SessionID string
	// ItemIDs selects items to reconcile. Empty selects every open candidate.
	ItemIDs        []string
	Policy         domain.ReconcilePolicy
	ManualQuantity *int
	Notes          string
	Actor          string
}

// ReconcileStage names the step at which a per-item failure happened.
type ReconcileStage string

// ReconcileStage values.
const (
	ReconcileStageItem   ReconcileStage = "item"
	ReconcileStageStock  ReconcileStage = "stock"
	ReconcileStageMaster ReconcileStage = "master"
	// ReconcileStageSession marks a failed completion check after the item writes landed.
	ReconcileStageSession ReconcileStage = "session"
)

// ReconcileFailure records one item that could not be fully reconciled.
type ReconcileFailure struct {
	ItemID    string
	ProductID string
	Stage     ReconcileStage
	Err       error
}

// Error implements error.
func (f ReconcileFailure) Error() string {
	if f.ItemID == "" {
		return fmt.Sprintf("%s: %v", f.Stage, f.Err)
	}
	return fmt.Sprintf("item %s (%s): %v", f.ItemID, f.Stage, f.Err)
}

// ReconcileSummary reports the outcome of one reconciliation batch.
type ReconcileSummary struct {
	SessionID      string
	Policy         domain.ReconcilePolicy
	Selected       int
	Processed      int
	Skipped        int
	Ignored        int
	StockUpdated   int
	MasterResynced int
	Failures       []ReconcileFailure
}

// Succeeded returns the number of selected items reconciled without failure.
func (s ReconcileSummary) Succeeded() int {
	failed := 0
	for _, failure := range s.Failures {
		if failure.Stage == ReconcileStageItem || failure.Stage == ReconcileStageStock {
			failed++
		}
	}
	return s.Processed - failed
}

// StockFailures returns failures raised by the stock store.
func (s ReconcileSummary) StockFailures() []ReconcileFailure {
	out := make([]ReconcileFailure, 0, len(s.Failures))
	for _, failure := range s.Failures {
		if failure.Stage == ReconcileStageStock {
			out = append(out, failure)
		}
	}
	return out
}

// Message renders the summary as a short operator-facing status line.
func (s ReconcileSummary) Message() string {
	parts := make([]string, 0, 4)
	if s.Processed > 0 {
		parts = append(parts, fmt.Sprintf("Reconciled %d variance(s) and updated %d stock quantities", s.Processed, s.StockUpdated))
	}
	if s.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("Skipped %d already reconciled item(s)", s.Skipped))
	}
	if s.Ignored > 0 {
		parts = append(parts, fmt.Sprintf("Ignored %d item(s) without a variance", s.Ignored))
	}
	if len(s.Failures) > 0 {
		parts = append(parts, fmt.Sprintf("%d update(s) failed", len(s.Failures)))
	}
	if len(parts) == 0 {
		return "No variances to reconcile"
	}
	return strings.Join(parts, "; ")
}

// Reconcile resolves variances for the selected items under one policy. Input and state
// errors abort before any write. Per-item write failures are collected in the summary and
// do not stop the batch.
func (s *Service) Reconcile(ctx context.Context, in ReconcileInput) (ReconcileSummary, error) {
	policy, err := domain.ParseReconcilePolicy(string(in.Policy))
	if err != nil {
		return ReconcileSummary{}, err
	}
	if policy == domain.PolicyManualAdjust {
		if in.ManualQuantity == nil {
			return ReconcileSummary{}, fmt.Errorf("%w: manual_adjust requires a quantity", domain.ErrInvalidQuantity)
		}
		if *in.ManualQuantity < 0 {
			return ReconcileSummary{}, domain.ErrInvalidQuantity
		}
	}
	session, err := s.GetSession(ctx, in.SessionID)
	if err != nil {
		return ReconcileSummary{}, err
	}
	if err := session.AcceptsReconciliation(); err != nil {
		return ReconcileSummary{}, err
	}
	selected, err := s.selectReconcileItems(ctx, session.ID, in.ItemIDs)
	if err != nil {
		return ReconcileSummary{}, err
	}
	syncMaster, err := s.locationDrivesMaster(ctx, session.LocationID)
	if err != nil {
		return ReconcileSummary{}, err
	}

	actor := s.resolveActor(ctx, in.Actor)
	reason := policy.Reason(s.reasonPrefix)
	summary := ReconcileSummary{SessionID: session.ID, Policy: policy, Selected: len(selected)}
	for _, item := range selected {
		switch {
		case item.Status == domain.ItemStatusVerified:
			summary.Skipped++
			if !syncMaster {
				continue
			}
			applied, ok := item.AppliedQuantity()
			if !ok {
				continue
			}
			wrote, err := s.resyncMaster(ctx, item.ProductID, applied)
			if err != nil {
				s.log.Warn("master resync failed", "session_id", session.ID, "item_id", item.ID, "product_id", item.ProductID, "err", err)
				summary.Failures = append(summary.Failures, ReconcileFailure{ItemID: item.ID, ProductID: item.ProductID, Stage: ReconcileStageMaster, Err: err})
				continue
			}
			if wrote {
				summary.MasterResynced++
			}
		case !item.ReconcileCandidate():
			summary.Ignored++
		default:
			summary.Processed++
			s.reconcileItem(ctx, &summary, item, policy, in.ManualQuantity, in.Notes, reason, actor)
		}
	}

	// Item and stock writes are already committed; a failed completion check is reported, not returned.
	if _, err := s.evaluateCompletion(ctx, session); err != nil {
		s.log.Error("session completion check failed", "session_id", session.ID, "err", err)
		summary.Failures = append(summary.Failures, ReconcileFailure{Stage: ReconcileStageSession, Err: err})
	}
	s.log.Info("reconciliation finished",
		"session_id", session.ID,
		"policy", policy,
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"ignored", summary.Ignored,
		"stock_updated", summary.StockUpdated,
		"failures", len(summary.Failures),
	)
	return summary, nil
}

// reconcileItem verifies one candidate and writes the resolved quantity to stock.
func (s *Service) reconcileItem(ctx context.Context, summary *ReconcileSummary, item domain.CountItem, policy domain.ReconcilePolicy, manual *int, notes, reason, actor string) {
	resolution := policy.Resolve(item, manual)
	if err := item.Verify(resolution.FinalQuantity, resolution.OverwriteCounted, notes, s.clock()); err != nil {
		summary.Failures = append(summary.Failures, ReconcileFailure{ItemID: item.ID, ProductID: item.ProductID, Stage: ReconcileStageItem, Err: err})
		return
	}
	if err := s.repo.UpdateCountItem(ctx, item); err != nil {
		s.log.Warn("count item update failed", "session_id", item.SessionID, "item_id", item.ID, "err", err)
		summary.Failures = append(summary.Failures, ReconcileFailure{ItemID: item.ID, ProductID: item.ProductID, Stage: ReconcileStageItem, Err: err})
		return
	}
	if !resolution.UpdateStock || resolution.FinalQuantity == item.SystemQuantity {
		return
	}
	_, err := s.writeStock(ctx, domain.StockUpdate{
		ProductID:  item.ProductID,
		LocationID: item.LocationID,
		Quantity:   resolution.FinalQuantity,
		Reason:     reason,
		SessionID:  item.SessionID,
		Actor:      actor,
		At:         s.clock(),
	})
	if err != nil {
		s.log.Warn("stock update failed", "session_id", item.SessionID, "item_id", item.ID, "product_id", item.ProductID, "quantity", resolution.FinalQuantity, "err", err)
		summary.Failures = append(summary.Failures, ReconcileFailure{
			ItemID:    item.ID,
			ProductID: item.ProductID,
			Stage:     ReconcileStageStock,
			Err:       fmt.Errorf("%w: %w", ErrStockUpdateFailed, err),
		})
		return
	}
	summary.StockUpdated++
}

// selectReconcileItems resolves the batch. Explicit ids must belong to the session.
func (s *Service) selectReconcileItems(ctx context.Context, sessionID string, itemIDs []string) ([]domain.CountItem, error) {
	items, err := s.sessionItems(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ids := uniqueNonEmptyIDs(itemIDs)
	if len(ids) == 0 {
		out := make([]domain.CountItem, 0, len(items))
		for _, item := range items {
			if item.ReconcileCandidate() {
				out = append(out, item)
			}
		}
		return out, nil
	}
	byID := make(map[string]domain.CountItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	out := make([]domain.CountItem, 0, len(ids))
	for _, id := range ids {
		item, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("count item %q in session %q: %w", id, sessionID, ErrNotFound)
		}
		out = append(out, item)
	}
	return out, nil
}
