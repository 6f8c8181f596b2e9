package app

import (
	"context"

	"github.com/evanschultz/tally/internal/domain"
)

// Repository is the storage port consumed by Service.
type Repository interface {
	// CreateLocation inserts l. When l is primary, any previous primary is demoted in the same transaction.
	CreateLocation(context.Context, domain.Location) error
	UpdateLocation(context.Context, domain.Location) error
	GetLocation(context.Context, string) (domain.Location, error)
	ListLocations(context.Context) ([]domain.Location, error)

	CreateProduct(context.Context, domain.Product) error
	UpdateProduct(context.Context, domain.Product) error
	GetProduct(context.Context, string) (domain.Product, error)
	ListProducts(context.Context, bool) ([]domain.Product, error)

	// GetStockQuantity returns 0 when no stock record exists.
	GetStockQuantity(ctx context.Context, productID, locationID string) (int, error)
	ListStockRecords(ctx context.Context, locationID string) ([]domain.StockRecord, error)
	// UpdateStockQuantity sets the quantity and appends the audit entry in one transaction.
	UpdateStockQuantity(context.Context, domain.StockUpdate) (domain.StockAdjustment, error)
	// ApplyReconciledQuantity is UpdateStockQuantity plus the product master quantity write,
	// all in one transaction.
	ApplyReconciledQuantity(context.Context, domain.StockUpdate) (domain.StockAdjustment, error)
	ListStockAdjustments(ctx context.Context, productID, locationID string, limit int) ([]domain.StockAdjustment, error)

	// CreateCountSession persists the session and its seeded items together.
	CreateCountSession(context.Context, domain.CountSession, []domain.CountItem) error
	UpdateCountSession(context.Context, domain.CountSession) error
	GetCountSession(context.Context, string) (domain.CountSession, error)
	ListCountSessions(context.Context, CountSessionFilter) ([]domain.CountSession, error)
	// DeleteCountSession removes the session items and then the session in one transaction.
	DeleteCountSession(context.Context, string) error

	GetCountItem(context.Context, string) (domain.CountItem, error)
	UpdateCountItem(context.Context, domain.CountItem) error
	ListCountItems(ctx context.Context, sessionID string) ([]domain.CountItem, error)
}

// CountSessionFilter narrows ListCountSessions results. Zero values match everything.
type CountSessionFilter struct {
	Status     domain.SessionStatus
	LocationID string
}

// Logger receives structured service events.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
