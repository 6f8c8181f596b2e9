package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/evanschultz/tally/internal/domain"
)

// CreateLocation creates a location. A new primary location demotes the previous one;
// the repository applies both writes atomically.
func (s *Service) CreateLocation(ctx context.Context, name string, primary bool) (domain.Location, error) {
	location, err := domain.NewLocation(s.idGen(), name, primary, s.clock())
	if err != nil {
		return domain.Location{}, err
	}
	if err := s.repo.CreateLocation(ctx, location); err != nil {
		return domain.Location{}, err
	}
	return location, nil
}

// GetLocation returns location.
func (s *Service) GetLocation(ctx context.Context, locationID string) (domain.Location, error) {
	locationID = strings.TrimSpace(locationID)
	if locationID == "" {
		return domain.Location{}, domain.ErrInvalidLocationID
	}
	return s.repo.GetLocation(ctx, locationID)
}

// ListLocations lists locations.
func (s *Service) ListLocations(ctx context.Context) ([]domain.Location, error) {
	return s.repo.ListLocations(ctx)
}

// CreateProductInput holds input values for create product operations.
type CreateProductInput struct {
	SKU      string
	Name     string
	MinStock int
}

// CreateProduct creates product.
func (s *Service) CreateProduct(ctx context.Context, in CreateProductInput) (domain.Product, error) {
	product, err := domain.NewProduct(domain.ProductInput{
		ID:       s.idGen(),
		SKU:      in.SKU,
		Name:     in.Name,
		MinStock: in.MinStock,
	}, s.clock())
	if err != nil {
		return domain.Product{}, err
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// GetProduct returns product.
func (s *Service) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	return s.repo.GetProduct(ctx, strings.TrimSpace(productID))
}

// ListProducts lists products.
func (s *Service) ListProducts(ctx context.Context, includeInactive bool) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, includeInactive)
}

// SetProductActive toggles whether new count sessions include the product.
func (s *Service) SetProductActive(ctx context.Context, productID string, active bool) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, err
	}
	product.SetActive(active, s.clock())
	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// SetStockInput holds input values for manual stock adjustments.
type SetStockInput struct {
	ProductID  string
	LocationID string
	Quantity   int
	Reason     string
	Actor      string
}

// SetStockQuantity records a manual stock level outside of any count session.
func (s *Service) SetStockQuantity(ctx context.Context, in SetStockInput) (domain.StockAdjustment, error) {
	if in.Quantity < 0 {
		return domain.StockAdjustment{}, domain.ErrInvalidQuantity
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = "Manual stock adjustment"
	}
	if _, err := s.repo.GetProduct(ctx, strings.TrimSpace(in.ProductID)); err != nil {
		return domain.StockAdjustment{}, err
	}
	if _, err := s.repo.GetLocation(ctx, strings.TrimSpace(in.LocationID)); err != nil {
		return domain.StockAdjustment{}, err
	}
	update := domain.StockUpdate{
		ProductID:  strings.TrimSpace(in.ProductID),
		LocationID: strings.TrimSpace(in.LocationID),
		Quantity:   in.Quantity,
		Reason:     reason,
		Actor:      s.resolveActor(ctx, in.Actor),
		At:         s.clock().UTC(),
	}
	return s.writeStock(ctx, update)
}

// GetStockQuantity returns the on-hand quantity, 0 when no record exists.
func (s *Service) GetStockQuantity(ctx context.Context, productID, locationID string) (int, error) {
	return s.repo.GetStockQuantity(ctx, strings.TrimSpace(productID), strings.TrimSpace(locationID))
}

// ListStockRecords lists stock records at a location.
func (s *Service) ListStockRecords(ctx context.Context, locationID string) ([]domain.StockRecord, error) {
	locationID = strings.TrimSpace(locationID)
	if locationID == "" {
		return nil, domain.ErrInvalidLocationID
	}
	return s.repo.ListStockRecords(ctx, locationID)
}

// ListStockAdjustments lists the audit trail, newest first. Empty ids match every product or location.
func (s *Service) ListStockAdjustments(ctx context.Context, productID, locationID string, limit int) ([]domain.StockAdjustment, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListStockAdjustments(ctx, strings.TrimSpace(productID), strings.TrimSpace(locationID), limit)
}

// writeStock validates an update and routes it through the dual-write when the location
// drives the product master quantity.
func (s *Service) writeStock(ctx context.Context, update domain.StockUpdate) (domain.StockAdjustment, error) {
	if err := update.Validate(); err != nil {
		return domain.StockAdjustment{}, err
	}
	syncMaster, err := s.locationDrivesMaster(ctx, update.LocationID)
	if err != nil {
		return domain.StockAdjustment{}, err
	}
	if syncMaster {
		return s.repo.ApplyReconciledQuantity(ctx, update)
	}
	return s.repo.UpdateStockQuantity(ctx, update)
}

// locationDrivesMaster reports whether stock at the location is mirrored into product master
// quantities: true for the primary location, or for any location when none is primary.
func (s *Service) locationDrivesMaster(ctx context.Context, locationID string) (bool, error) {
	locations, err := s.repo.ListLocations(ctx)
	if err != nil {
		return false, fmt.Errorf("list locations: %w", err)
	}
	hasPrimary := false
	for _, location := range locations {
		if !location.Primary {
			continue
		}
		hasPrimary = true
		if location.ID == locationID {
			return true, nil
		}
	}
	return !hasPrimary, nil
}

// resyncMaster re-asserts a product master quantity. It reports whether a write happened.
func (s *Service) resyncMaster(ctx context.Context, productID string, quantity int) (bool, error) {
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return false, err
	}
	if product.Quantity == quantity {
		return false, nil
	}
	if err := product.SetMasterQuantity(quantity, s.clock()); err != nil {
		return false, err
	}
	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		return false, err
	}
	return true, nil
}

// isNotFound reports whether err is a storage miss.
func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
