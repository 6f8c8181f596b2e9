package domain

import (
	"strings"
	"time"
)

// StockRecord is the on-hand quantity of one product at one location.
type StockRecord struct {
	ProductID  string
	LocationID string
	Quantity   int
	UpdatedAt  time.Time
}

// StockAdjustment is one append-only audit entry written alongside a stock quantity change.
type StockAdjustment struct {
	ID               int64
	ProductID        string
	LocationID       string
	PreviousQuantity int
	NewQuantity      int
	Reason           string
	SessionID        string
	Actor            string
	CreatedAt        time.Time
}

// StockUpdate describes one requested absolute quantity change.
type StockUpdate struct {
	ProductID  string
	LocationID string
	Quantity   int
	Reason     string
	SessionID  string
	Actor      string
	At         time.Time
}

// Validate checks a stock update before it reaches storage.
func (u StockUpdate) Validate() error {
	if strings.TrimSpace(u.ProductID) == "" {
		return ErrInvalidProductID
	}
	if strings.TrimSpace(u.LocationID) == "" {
		return ErrInvalidLocationID
	}
	if u.Quantity < 0 {
		return ErrInvalidQuantity
	}
	if strings.TrimSpace(u.Reason) == "" {
		return ErrInvalidReason
	}
	return nil
}

// Delta returns the signed change recorded by the adjustment.
func (a StockAdjustment) Delta() int {
	return a.NewQuantity - a.PreviousQuantity
}
