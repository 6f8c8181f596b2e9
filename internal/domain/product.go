package domain

import (
	"strings"
	"time"
)

// Product carries the denormalized master quantity mirrored from the primary location.
type Product struct {
	ID        string
	SKU       string
	Name      string
	Quantity  int
	MinStock  int
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProductInput holds values for NewProduct.
type ProductInput struct {
	ID       string
	SKU      string
	Name     string
	MinStock int
}

// NewProduct constructs an active product with zero master quantity.
func NewProduct(in ProductInput, now time.Time) (Product, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.SKU = strings.TrimSpace(in.SKU)
	in.Name = strings.TrimSpace(in.Name)
	if in.ID == "" {
		return Product{}, ErrInvalidID
	}
	if in.SKU == "" {
		return Product{}, ErrInvalidSKU
	}
	if in.Name == "" {
		return Product{}, ErrInvalidName
	}
	if in.MinStock < 0 {
		return Product{}, ErrInvalidQuantity
	}
	return Product{
		ID:        in.ID,
		SKU:       in.SKU,
		Name:      in.Name,
		MinStock:  in.MinStock,
		Active:    true,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// SetMasterQuantity overwrites the denormalized master quantity.
func (p *Product) SetMasterQuantity(quantity int, now time.Time) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	p.Quantity = quantity
	p.UpdatedAt = now.UTC()
	return nil
}

// SetActive toggles whether the product is seeded into new count sessions.
func (p *Product) SetActive(active bool, now time.Time) {
	p.Active = active
	p.UpdatedAt = now.UTC()
}

// BelowMinimum reports whether a quantity falls under the minimum stock threshold.
func (p Product) BelowMinimum(quantity int) bool {
	return p.MinStock > 0 && quantity < p.MinStock
}
