package app

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/evanschultz/tally/internal/domain"
)

// VarianceFilter selects items by whether their count differs from the system snapshot.
type VarianceFilter string

// VarianceFilter values.
const (
	VarianceAny     VarianceFilter = ""
	VarianceWith    VarianceFilter = "with"
	VarianceWithout VarianceFilter = "without"
)

// ListItemsFilter defines filtering criteria for item queries.
type ListItemsFilter struct {
	SessionID string
	Statuses  []domain.ItemStatus
	Variance  VarianceFilter
}

// RecordCountInput holds input values for record count operations.
type RecordCountInput struct {
	ItemID   string
	Quantity int
	Actor    string
	Notes    string
}

// ParseQuantity parses a user-entered quantity, rejecting non-numeric and negative values.
func ParseQuantity(raw string) (int, error) {
	quantity, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidQuantity, raw)
	}
	if quantity < 0 {
		return 0, domain.ErrInvalidQuantity
	}
	return quantity, nil
}

// RecordCount stores a physical count for one item. Stock records are not touched.
func (s *Service) RecordCount(ctx context.Context, in RecordCountInput) (domain.CountItem, error) {
	if in.Quantity < 0 {
		return domain.CountItem{}, domain.ErrInvalidQuantity
	}
	itemID := strings.TrimSpace(in.ItemID)
	if itemID == "" {
		return domain.CountItem{}, domain.ErrInvalidID
	}
	item, err := s.repo.GetCountItem(ctx, itemID)
	if err != nil {
		return domain.CountItem{}, err
	}
	session, err := s.repo.GetCountSession(ctx, item.SessionID)
	if err != nil {
		return domain.CountItem{}, err
	}
	if err := session.AcceptsCounts(); err != nil {
		return domain.CountItem{}, err
	}
	if err := item.RecordCount(in.Quantity, s.resolveActor(ctx, in.Actor), in.Notes, s.clock()); err != nil {
		return domain.CountItem{}, err
	}
	if err := s.repo.UpdateCountItem(ctx, item); err != nil {
		return domain.CountItem{}, err
	}
	s.log.Debug("count recorded", "session_id", item.SessionID, "item_id", item.ID, "counted", in.Quantity, "system", item.SystemQuantity)
	if _, err := s.evaluateCompletion(ctx, session); err != nil {
		return domain.CountItem{}, err
	}
	return item, nil
}

// GetItem returns item.
func (s *Service) GetItem(ctx context.Context, itemID string) (domain.CountItem, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return domain.CountItem{}, domain.ErrInvalidID
	}
	return s.repo.GetCountItem(ctx, itemID)
}

// ListItems lists session items in seed order.
func (s *Service) ListItems(ctx context.Context, filter ListItemsFilter) ([]domain.CountItem, error) {
	session, err := s.GetSession(ctx, filter.SessionID)
	if err != nil {
		return nil, err
	}
	switch filter.Variance {
	case VarianceAny, VarianceWith, VarianceWithout:
	default:
		return nil, fmt.Errorf("%w: unknown variance filter %q", domain.ErrValidation, filter.Variance)
	}
	items, err := s.sessionItems(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.CountItem, 0, len(items))
	for _, item := range items {
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, item.Status) {
			continue
		}
		switch filter.Variance {
		case VarianceWith:
			if !item.HasVariance() {
				continue
			}
		case VarianceWithout:
			if item.HasVariance() {
				continue
			}
		}
		out = append(out, item)
	}
	return out, nil
}

// ListSessionItems lists every item of a session in seed order.
func (s *Service) ListSessionItems(ctx context.Context, sessionID string) ([]domain.CountItem, error) {
	return s.ListItems(ctx, ListItemsFilter{SessionID: sessionID})
}

// ListReconcileCandidates lists counted items whose count differs from the system quantity.
func (s *Service) ListReconcileCandidates(ctx context.Context, sessionID string) ([]domain.CountItem, error) {
	return s.ListItems(ctx, ListItemsFilter{
		SessionID: sessionID,
		Statuses:  []domain.ItemStatus{domain.ItemStatusCounted},
		Variance:  VarianceWith,
	})
}

// GetSessionProgress summarizes item states for a session.
func (s *Service) GetSessionProgress(ctx context.Context, sessionID string) (domain.CountProgress, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return domain.CountProgress{}, err
	}
	items, err := s.sessionItems(ctx, session.ID)
	if err != nil {
		return domain.CountProgress{}, err
	}
	return domain.ComputeProgress(items), nil
}

// sessionItems returns items sorted by seed position.
func (s *Service) sessionItems(ctx context.Context, sessionID string) ([]domain.CountItem, error) {
	items, err := s.repo.ListCountItems(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(items, func(a, b domain.CountItem) int {
		return a.Position - b.Position
	})
	return items, nil
}
