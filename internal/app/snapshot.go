package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/evanschultz/tally/internal/domain"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "tally.snapshot.v1"

// snapshotImportReason is recorded on stock adjustments written by ImportSnapshot.
const snapshotImportReason = "Snapshot import"

// Snapshot represents a portable export of catalog, stock, and count data.
type Snapshot struct {
	Version    string                 `json:"version"`
	ExportedAt time.Time              `json:"exported_at"`
	Locations  []SnapshotLocation     `json:"locations"`
	Products   []SnapshotProduct      `json:"products"`
	Stock      []SnapshotStockRecord  `json:"stock"`
	Sessions   []SnapshotCountSession `json:"sessions"`
	Items      []SnapshotCountItem    `json:"items"`
}

// SnapshotLocation represents snapshot location data used by this package.
type SnapshotLocation struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Primary   bool      `json:"primary"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SnapshotProduct represents snapshot product data used by this package.
type SnapshotProduct struct {
	ID        string    `json:"id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	MinStock  int       `json:"min_stock"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SnapshotStockRecord represents one on-hand quantity.
type SnapshotStockRecord struct {
	ProductID  string `json:"product_id"`
	LocationID string `json:"location_id"`
	Quantity   int    `json:"quantity"`
}

// SnapshotCountSession represents snapshot session data used by this package.
type SnapshotCountSession struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Kind        domain.CountKind     `json:"kind"`
	LocationID  string               `json:"location_id"`
	Status      domain.SessionStatus `json:"status"`
	CreatedBy   string               `json:"created_by,omitempty"`
	Notes       string               `json:"notes,omitempty"`
	TotalItems  int                  `json:"total_items"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
	StartedAt   *time.Time           `json:"started_at,omitempty"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
	CancelledAt *time.Time           `json:"cancelled_at,omitempty"`
}

// SnapshotCountItem represents snapshot item data used by this package.
type SnapshotCountItem struct {
	ID              string            `json:"id"`
	SessionID       string            `json:"session_id"`
	ProductID       string            `json:"product_id"`
	LocationID      string            `json:"location_id"`
	Position        int               `json:"position"`
	SystemQuantity  int               `json:"system_quantity"`
	CountedQuantity *int              `json:"counted_quantity,omitempty"`
	Variance        *int              `json:"variance,omitempty"`
	Status          domain.ItemStatus `json:"status"`
	CountedAt       *time.Time        `json:"counted_at,omitempty"`
	CountedBy       string            `json:"counted_by,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// ExportSnapshot handles export snapshot.
func (s *Service) ExportSnapshot(ctx context.Context, includeInactive bool) (Snapshot, error) {
	locations, err := s.repo.ListLocations(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	products, err := s.repo.ListProducts(ctx, includeInactive)
	if err != nil {
		return Snapshot{}, err
	}
	sessions, err := s.repo.ListCountSessions(ctx, CountSessionFilter{})
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
		Locations:  make([]SnapshotLocation, 0, len(locations)),
		Products:   make([]SnapshotProduct, 0, len(products)),
		Stock:      make([]SnapshotStockRecord, 0),
		Sessions:   make([]SnapshotCountSession, 0, len(sessions)),
		Items:      make([]SnapshotCountItem, 0),
	}
	exported := make(map[string]struct{}, len(products))
	for _, product := range products {
		snap.Products = append(snap.Products, snapshotProductFromDomain(product))
		exported[product.ID] = struct{}{}
	}
	for _, location := range locations {
		snap.Locations = append(snap.Locations, snapshotLocationFromDomain(location))
		records, listErr := s.repo.ListStockRecords(ctx, location.ID)
		if listErr != nil {
			return Snapshot{}, listErr
		}
		for _, record := range records {
			if _, ok := exported[record.ProductID]; !ok {
				continue
			}
			snap.Stock = append(snap.Stock, SnapshotStockRecord{
				ProductID:  record.ProductID,
				LocationID: record.LocationID,
				Quantity:   record.Quantity,
			})
		}
	}
	for _, session := range sessions {
		snap.Sessions = append(snap.Sessions, snapshotSessionFromDomain(session))
		items, listErr := s.repo.ListCountItems(ctx, session.ID)
		if listErr != nil {
			return Snapshot{}, listErr
		}
		for _, item := range items {
			snap.Items = append(snap.Items, snapshotItemFromDomain(item))
		}
	}

	snap.sort()
	return snap, nil
}

// ImportSnapshot upserts catalog rows, sets stock through the audited path, and creates
// sessions that do not exist yet. Existing sessions are left untouched.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	snap.sort()

	for _, location := range snap.Locations {
		dl := location.toDomain()
		if _, err := s.repo.GetLocation(ctx, dl.ID); err == nil {
			if err := s.repo.UpdateLocation(ctx, dl); err != nil {
				return err
			}
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := s.repo.CreateLocation(ctx, dl); err != nil {
			return err
		}
	}
	for _, product := range snap.Products {
		dp := product.toDomain()
		if _, err := s.repo.GetProduct(ctx, dp.ID); err == nil {
			if err := s.repo.UpdateProduct(ctx, dp); err != nil {
				return err
			}
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := s.repo.CreateProduct(ctx, dp); err != nil {
			return err
		}
	}
	for _, record := range snap.Stock {
		current, err := s.repo.GetStockQuantity(ctx, record.ProductID, record.LocationID)
		if err != nil {
			return err
		}
		if current == record.Quantity {
			continue
		}
		if _, err := s.repo.UpdateStockQuantity(ctx, domain.StockUpdate{
			ProductID:  record.ProductID,
			LocationID: record.LocationID,
			Quantity:   record.Quantity,
			Reason:     snapshotImportReason,
			Actor:      s.resolveActor(ctx, ""),
			At:         s.clock(),
		}); err != nil {
			return fmt.Errorf("import stock for product %q: %w", record.ProductID, err)
		}
	}

	itemsBySession := map[string][]domain.CountItem{}
	for _, item := range snap.Items {
		itemsBySession[item.SessionID] = append(itemsBySession[item.SessionID], item.toDomain())
	}
	for _, session := range snap.Sessions {
		if _, err := s.repo.GetCountSession(ctx, session.ID); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := s.repo.CreateCountSession(ctx, session.toDomain(), itemsBySession[session.ID]); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the requested operation.
func (s *Snapshot) Validate() error {
	if s.Version != "" && s.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version: %q", s.Version)
	}

	locationIDs := map[string]struct{}{}
	primaries := 0
	for i, l := range s.Locations {
		if strings.TrimSpace(l.ID) == "" {
			return fmt.Errorf("locations[%d].id is required", i)
		}
		if strings.TrimSpace(l.Name) == "" {
			return fmt.Errorf("locations[%d].name is required", i)
		}
		if _, exists := locationIDs[l.ID]; exists {
			return fmt.Errorf("duplicate location id: %q", l.ID)
		}
		if l.Primary {
			primaries++
		}
		locationIDs[l.ID] = struct{}{}
	}
	if primaries > 1 {
		return fmt.Errorf("snapshot declares %d primary locations", primaries)
	}

	productIDs := map[string]struct{}{}
	for i, p := range s.Products {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("products[%d].id is required", i)
		}
		if strings.TrimSpace(p.SKU) == "" {
			return fmt.Errorf("products[%d].sku is required", i)
		}
		if p.Quantity < 0 || p.MinStock < 0 {
			return fmt.Errorf("products[%d] quantities must be >= 0", i)
		}
		if _, exists := productIDs[p.ID]; exists {
			return fmt.Errorf("duplicate product id: %q", p.ID)
		}
		productIDs[p.ID] = struct{}{}
	}

	for i, r := range s.Stock {
		if _, ok := productIDs[r.ProductID]; !ok {
			return fmt.Errorf("stock[%d] references unknown product_id %q", i, r.ProductID)
		}
		if _, ok := locationIDs[r.LocationID]; !ok {
			return fmt.Errorf("stock[%d] references unknown location_id %q", i, r.LocationID)
		}
		if r.Quantity < 0 {
			return fmt.Errorf("stock[%d].quantity must be >= 0", i)
		}
	}

	sessionIDs := map[string]struct{}{}
	for i, cs := range s.Sessions {
		if strings.TrimSpace(cs.ID) == "" {
			return fmt.Errorf("sessions[%d].id is required", i)
		}
		if _, ok := locationIDs[cs.LocationID]; !ok {
			return fmt.Errorf("sessions[%d] references unknown location_id %q", i, cs.LocationID)
		}
		if _, err := domain.ParseSessionStatus(string(cs.Status)); err != nil {
			return fmt.Errorf("sessions[%d]: %w", i, err)
		}
		if _, exists := sessionIDs[cs.ID]; exists {
			return fmt.Errorf("duplicate session id: %q", cs.ID)
		}
		sessionIDs[cs.ID] = struct{}{}
	}

	itemIDs := map[string]struct{}{}
	for i, it := range s.Items {
		if strings.TrimSpace(it.ID) == "" {
			return fmt.Errorf("items[%d].id is required", i)
		}
		if _, ok := sessionIDs[it.SessionID]; !ok {
			return fmt.Errorf("items[%d] references unknown session_id %q", i, it.SessionID)
		}
		if _, ok := productIDs[it.ProductID]; !ok {
			return fmt.Errorf("items[%d] references unknown product_id %q", i, it.ProductID)
		}
		if _, exists := itemIDs[it.ID]; exists {
			return fmt.Errorf("duplicate item id: %q", it.ID)
		}
		itemIDs[it.ID] = struct{}{}
	}
	return nil
}

// sort orders snapshot slices for deterministic output.
func (s *Snapshot) sort() {
	sort.Slice(s.Locations, func(i, j int) bool { return s.Locations[i].ID < s.Locations[j].ID })
	sort.Slice(s.Products, func(i, j int) bool { return s.Products[i].SKU < s.Products[j].SKU })
	sort.Slice(s.Stock, func(i, j int) bool {
		if s.Stock[i].LocationID == s.Stock[j].LocationID {
			return s.Stock[i].ProductID < s.Stock[j].ProductID
		}
		return s.Stock[i].LocationID < s.Stock[j].LocationID
	})
	sort.Slice(s.Sessions, func(i, j int) bool {
		if s.Sessions[i].CreatedAt.Equal(s.Sessions[j].CreatedAt) {
			return s.Sessions[i].ID < s.Sessions[j].ID
		}
		return s.Sessions[i].CreatedAt.Before(s.Sessions[j].CreatedAt)
	})
	sort.Slice(s.Items, func(i, j int) bool {
		if s.Items[i].SessionID == s.Items[j].SessionID {
			return s.Items[i].Position < s.Items[j].Position
		}
		return s.Items[i].SessionID < s.Items[j].SessionID
	})
}

func snapshotLocationFromDomain(l domain.Location) SnapshotLocation {
	return SnapshotLocation{ID: l.ID, Name: l.Name, Primary: l.Primary, CreatedAt: l.CreatedAt, UpdatedAt: l.UpdatedAt}
}

func (l SnapshotLocation) toDomain() domain.Location {
	return domain.Location{
		ID:        strings.TrimSpace(l.ID),
		Name:      strings.TrimSpace(l.Name),
		Primary:   l.Primary,
		CreatedAt: l.CreatedAt.UTC(),
		UpdatedAt: l.UpdatedAt.UTC(),
	}
}

func snapshotProductFromDomain(p domain.Product) SnapshotProduct {
	return SnapshotProduct{
		ID:        p.ID,
		SKU:       p.SKU,
		Name:      p.Name,
		Quantity:  p.Quantity,
		MinStock:  p.MinStock,
		Active:    p.Active,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (p SnapshotProduct) toDomain() domain.Product {
	return domain.Product{
		ID:        strings.TrimSpace(p.ID),
		SKU:       strings.TrimSpace(p.SKU),
		Name:      strings.TrimSpace(p.Name),
		Quantity:  p.Quantity,
		MinStock:  p.MinStock,
		Active:    p.Active,
		CreatedAt: p.CreatedAt.UTC(),
		UpdatedAt: p.UpdatedAt.UTC(),
	}
}

func snapshotSessionFromDomain(cs domain.CountSession) SnapshotCountSession {
	return SnapshotCountSession{
		ID:          cs.ID,
		Name:        cs.Name,
		Description: cs.Description,
		Kind:        cs.Kind,
		LocationID:  cs.LocationID,
		Status:      cs.Status,
		CreatedBy:   cs.CreatedBy,
		Notes:       cs.Notes,
		TotalItems:  cs.TotalItems,
		CreatedAt:   cs.CreatedAt,
		UpdatedAt:   cs.UpdatedAt,
		StartedAt:   copyTimePtr(cs.StartedAt),
		CompletedAt: copyTimePtr(cs.CompletedAt),
		CancelledAt: copyTimePtr(cs.CancelledAt),
	}
}

func (cs SnapshotCountSession) toDomain() domain.CountSession {
	return domain.CountSession{
		ID:          strings.TrimSpace(cs.ID),
		Name:        cs.Name,
		Description: cs.Description,
		Kind:        domain.NormalizeCountKind(cs.Kind),
		LocationID:  strings.TrimSpace(cs.LocationID),
		Status:      cs.Status,
		CreatedBy:   cs.CreatedBy,
		Notes:       cs.Notes,
		TotalItems:  cs.TotalItems,
		CreatedAt:   cs.CreatedAt.UTC(),
		UpdatedAt:   cs.UpdatedAt.UTC(),
		StartedAt:   copyTimePtr(cs.StartedAt),
		CompletedAt: copyTimePtr(cs.CompletedAt),
		CancelledAt: copyTimePtr(cs.CancelledAt),
	}
}

func snapshotItemFromDomain(it domain.CountItem) SnapshotCountItem {
	return SnapshotCountItem{
		ID:              it.ID,
		SessionID:       it.SessionID,
		ProductID:       it.ProductID,
		LocationID:      it.LocationID,
		Position:        it.Position,
		SystemQuantity:  it.SystemQuantity,
		CountedQuantity: copyIntPtr(it.CountedQuantity),
		Variance:        copyIntPtr(it.Variance),
		Status:          it.Status,
		CountedAt:       copyTimePtr(it.CountedAt),
		CountedBy:       it.CountedBy,
		Notes:           it.Notes,
		CreatedAt:       it.CreatedAt,
		UpdatedAt:       it.UpdatedAt,
	}
}

func (it SnapshotCountItem) toDomain() domain.CountItem {
	return domain.CountItem{
		ID:              strings.TrimSpace(it.ID),
		SessionID:       strings.TrimSpace(it.SessionID),
		ProductID:       strings.TrimSpace(it.ProductID),
		LocationID:      strings.TrimSpace(it.LocationID),
		Position:        it.Position,
		SystemQuantity:  it.SystemQuantity,
		CountedQuantity: copyIntPtr(it.CountedQuantity),
		Variance:        copyIntPtr(it.Variance),
		Status:          it.Status,
		CountedAt:       copyTimePtr(it.CountedAt),
		CountedBy:       it.CountedBy,
		Notes:           it.Notes,
		CreatedAt:       it.CreatedAt.UTC(),
		UpdatedAt:       it.UpdatedAt.UTC(),
	}
}

// copyTimePtr returns a UTC copy so snapshot values never alias domain state.
func copyTimePtr(in *time.Time) *time.Time {
	if in == nil {
		return nil
	}
	ts := in.UTC()
	return &ts
}

func copyIntPtr(in *int) *int {
	if in == nil {
		return nil
	}
	v := *in
	return &v
}
