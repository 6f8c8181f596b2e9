package domain

import (
	"strings"
	"time"
)

// ItemStatus is the per-item counting state.
type ItemStatus string

// ItemStatus values.
const (
	ItemStatusPending  ItemStatus = "pending"
	ItemStatusCounted  ItemStatus = "counted"
	ItemStatusVerified ItemStatus = "verified"
)

// CountItem holds the system snapshot and physical count of one product in a session.
type CountItem struct {
	ID              string
	SessionID       string
	ProductID       string
	LocationID      string
	Position        int
	SystemQuantity  int
	CountedQuantity *int
	Variance        *int
	Status          ItemStatus
	CountedAt       *time.Time
	CountedBy       string
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CountItemInput holds values for NewCountItem.
type CountItemInput struct {
	ID             string
	SessionID      string
	ProductID      string
	LocationID     string
	Position       int
	SystemQuantity int
}

// NewCountItem constructs a pending item seeded with the current system quantity.
func NewCountItem(in CountItemInput, now time.Time) (CountItem, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.SessionID = strings.TrimSpace(in.SessionID)
	in.ProductID = strings.TrimSpace(in.ProductID)
	in.LocationID = strings.TrimSpace(in.LocationID)
	if in.ID == "" || in.SessionID == "" {
		return CountItem{}, ErrInvalidID
	}
	if in.ProductID == "" {
		return CountItem{}, ErrInvalidProductID
	}
	if in.LocationID == "" {
		return CountItem{}, ErrInvalidLocationID
	}
	// Stock records are never negative; clamp legacy rows rather than refuse the count.
	if in.SystemQuantity < 0 {
		in.SystemQuantity = 0
	}
	return CountItem{
		ID:             in.ID,
		SessionID:      in.SessionID,
		ProductID:      in.ProductID,
		LocationID:     in.LocationID,
		Position:       in.Position,
		SystemQuantity: in.SystemQuantity,
		Status:         ItemStatusPending,
		CreatedAt:      now.UTC(),
		UpdatedAt:      now.UTC(),
	}, nil
}

// RecordCount stores a physical count and recomputes the variance. Verified items are
// final; their applied quantity already lives in stock.
func (i *CountItem) RecordCount(quantity int, actor, notes string, now time.Time) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	if i.Status == ItemStatusVerified {
		return ErrItemVerified
	}
	ts := now.UTC()
	i.setCounted(quantity)
	i.Status = ItemStatusCounted
	i.CountedAt = &ts
	i.CountedBy = strings.TrimSpace(actor)
	if notes = strings.TrimSpace(notes); notes != "" {
		i.Notes = notes
	}
	i.UpdatedAt = ts
	return nil
}

// Verify marks the item reconciled at finalQuantity. The counted quantity is only
// replaced when overwriteCounted is set; variance always tracks finalQuantity.
func (i *CountItem) Verify(finalQuantity int, overwriteCounted bool, notes string, now time.Time) error {
	if finalQuantity < 0 {
		return ErrInvalidQuantity
	}
	if overwriteCounted || i.CountedQuantity == nil {
		counted := finalQuantity
		i.CountedQuantity = &counted
	}
	variance := finalQuantity - i.SystemQuantity
	i.Variance = &variance
	i.Status = ItemStatusVerified
	if notes = strings.TrimSpace(notes); notes != "" {
		i.Notes = notes
	}
	i.UpdatedAt = now.UTC()
	return nil
}

// setCounted writes the counted quantity and its derived variance together.
func (i *CountItem) setCounted(quantity int) {
	counted := quantity
	variance := quantity - i.SystemQuantity
	i.CountedQuantity = &counted
	i.Variance = &variance
}

// Done reports whether the item counts toward session completion.
func (i CountItem) Done() bool {
	return i.Status == ItemStatusCounted || i.Status == ItemStatusVerified
}

// HasVariance reports whether the recorded count differs from the system snapshot.
func (i CountItem) HasVariance() bool {
	return i.CountedQuantity != nil && *i.CountedQuantity != i.SystemQuantity
}

// ReconcileCandidate reports whether the item still awaits reconciliation.
func (i CountItem) ReconcileCandidate() bool {
	return i.Status == ItemStatusCounted && i.HasVariance()
}

// AppliedQuantity returns the quantity the last reconciliation settled on.
func (i CountItem) AppliedQuantity() (int, bool) {
	if i.Status != ItemStatusVerified || i.Variance == nil {
		return 0, false
	}
	return i.SystemQuantity + *i.Variance, true
}
