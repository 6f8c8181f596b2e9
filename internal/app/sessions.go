package app

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/evanschultz/tally/internal/domain"
)

// CreateSessionInput holds input values for create session operations.
type CreateSessionInput struct {
	Name        string
	Description string
	LocationID  string
	Kind        domain.CountKind
	// ProductIDs restricts a partial count. Full counts must leave it empty.
	ProductIDs []string
	CreatedBy  string
	Notes      string
}

// CreateSession creates a draft session and seeds one pending item per product from
// current stock at the session location.
func (s *Service) CreateSession(ctx context.Context, in CreateSessionInput) (domain.CountSession, error) {
	now := s.clock()
	kind := domain.NormalizeCountKind(in.Kind)
	if kind == "" {
		kind = s.defaultKind
	}
	session, err := domain.NewCountSession(domain.CountSessionInput{
		ID:          s.idGen(),
		Name:        in.Name,
		Description: in.Description,
		Kind:        kind,
		LocationID:  in.LocationID,
		CreatedBy:   s.resolveActor(ctx, in.CreatedBy),
		Notes:       in.Notes,
	}, now)
	if err != nil {
		return domain.CountSession{}, err
	}
	if _, err := s.repo.GetLocation(ctx, session.LocationID); err != nil {
		if isNotFound(err) {
			return domain.CountSession{}, fmt.Errorf("%w: location %q does not exist", domain.ErrInvalidLocationID, session.LocationID)
		}
		return domain.CountSession{}, err
	}

	products, err := s.seedProducts(ctx, session.Kind, in.ProductIDs)
	if err != nil {
		return domain.CountSession{}, err
	}
	items := make([]domain.CountItem, 0, len(products))
	for idx, product := range products {
		quantity, err := s.repo.GetStockQuantity(ctx, product.ID, session.LocationID)
		if err != nil {
			return domain.CountSession{}, fmt.Errorf("read stock for product %q: %w", product.ID, err)
		}
		item, err := domain.NewCountItem(domain.CountItemInput{
			ID:             s.idGen(),
			SessionID:      session.ID,
			ProductID:      product.ID,
			LocationID:     session.LocationID,
			Position:       idx,
			SystemQuantity: quantity,
		}, now)
		if err != nil {
			return domain.CountSession{}, fmt.Errorf("seed item for product %q: %w", product.ID, err)
		}
		items = append(items, item)
	}
	session.TotalItems = len(items)

	if err := s.repo.CreateCountSession(ctx, session, items); err != nil {
		return domain.CountSession{}, err
	}
	s.log.Info("count session created", "session_id", session.ID, "location_id", session.LocationID, "kind", session.Kind, "items", session.TotalItems)
	return session, nil
}

// seedProducts resolves the products a new session counts, in catalog order.
func (s *Service) seedProducts(ctx context.Context, kind domain.CountKind, requested []string) ([]domain.Product, error) {
	active, err := s.repo.ListProducts(ctx, false)
	if err != nil {
		return nil, err
	}
	ids := uniqueNonEmptyIDs(requested)
	if kind == domain.CountKindFull {
		if len(ids) > 0 {
			return nil, fmt.Errorf("%w: full counts include every active product", domain.ErrValidation)
		}
		return active, nil
	}
	if len(ids) == 0 {
		return nil, domain.ErrEmptyProductSet
	}
	out := make([]domain.Product, 0, len(ids))
	for _, product := range active {
		if slices.Contains(ids, product.ID) {
			out = append(out, product)
		}
	}
	if len(out) != len(ids) {
		for _, id := range ids {
			if !slices.ContainsFunc(out, func(p domain.Product) bool { return p.ID == id }) {
				return nil, fmt.Errorf("%w: product %q is not an active product", domain.ErrInvalidProductID, id)
			}
		}
	}
	return out, nil
}

// GetSession returns session.
func (s *Service) GetSession(ctx context.Context, sessionID string) (domain.CountSession, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.CountSession{}, domain.ErrInvalidID
	}
	return s.repo.GetCountSession(ctx, sessionID)
}

// ListSessions lists sessions, newest first.
func (s *Service) ListSessions(ctx context.Context, filter CountSessionFilter) ([]domain.CountSession, error) {
	filter.LocationID = strings.TrimSpace(filter.LocationID)
	sessions, err := s.repo.ListCountSessions(ctx, filter)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(sessions, func(a, b domain.CountSession) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return sessions, nil
}

// StartSession moves a draft session to in_progress.
func (s *Service) StartSession(ctx context.Context, sessionID string) (domain.CountSession, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return domain.CountSession{}, err
	}
	if err := session.Start(s.clock()); err != nil {
		return domain.CountSession{}, err
	}
	if err := s.repo.UpdateCountSession(ctx, session); err != nil {
		return domain.CountSession{}, err
	}
	s.log.Info("count session started", "session_id", session.ID)
	return session, nil
}

// ReopenSession returns a session to in_progress so counts can be corrected. Counted and
// verified items keep their state; verified items re-assert their product master quantity.
func (s *Service) ReopenSession(ctx context.Context, sessionID string) (domain.CountSession, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return domain.CountSession{}, err
	}
	session.Reopen(s.clock())
	if err := s.repo.UpdateCountSession(ctx, session); err != nil {
		return domain.CountSession{}, err
	}
	s.log.Info("count session reopened", "session_id", session.ID)
	s.healVerifiedMasters(ctx, session)
	return session, nil
}

// CancelSession abandons a session that has not completed.
func (s *Service) CancelSession(ctx context.Context, sessionID string) (domain.CountSession, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return domain.CountSession{}, err
	}
	if err := session.Cancel(s.clock()); err != nil {
		return domain.CountSession{}, err
	}
	if err := s.repo.UpdateCountSession(ctx, session); err != nil {
		return domain.CountSession{}, err
	}
	s.log.Info("count session cancelled", "session_id", session.ID)
	return session, nil
}

// DeleteSession deletes a session and its items. Completed sessions are kept as history.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := session.CheckDeletable(); err != nil {
		return err
	}
	if err := s.repo.DeleteCountSession(ctx, session.ID); err != nil {
		return err
	}
	s.log.Info("count session deleted", "session_id", session.ID, "items", session.TotalItems)
	return nil
}

// healVerifiedMasters re-asserts master quantities for verified items. Failures are logged only.
func (s *Service) healVerifiedMasters(ctx context.Context, session domain.CountSession) {
	syncMaster, err := s.locationDrivesMaster(ctx, session.LocationID)
	if err != nil {
		s.log.Warn("master resync skipped", "session_id", session.ID, "err", err)
		return
	}
	if !syncMaster {
		return
	}
	items, err := s.repo.ListCountItems(ctx, session.ID)
	if err != nil {
		s.log.Warn("master resync skipped", "session_id", session.ID, "err", err)
		return
	}
	for _, item := range items {
		applied, ok := item.AppliedQuantity()
		if !ok {
			continue
		}
		if _, err := s.resyncMaster(ctx, item.ProductID, applied); err != nil {
			s.log.Warn("master resync failed", "session_id", session.ID, "item_id", item.ID, "product_id", item.ProductID, "err", err)
		}
	}
}
