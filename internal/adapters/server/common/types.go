// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
	"time"

	"github.com/evanschultz/tally/internal/report"
)

// ErrInvalidRequest reports malformed or rejected transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrInvalidState reports operations the current session state does not allow.
var ErrInvalidState = errors.New("invalid state")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// Location is the transport shape of a stock location.
type Location struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Primary   bool      `json:"primary"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Product is the transport shape of a catalog product.
type Product struct {
	ID        string    `json:"id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	MinStock  int       `json:"min_stock"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StockRecord is one per-location stock level.
type StockRecord struct {
	ProductID  string    `json:"product_id"`
	LocationID string    `json:"location_id"`
	Quantity   int       `json:"quantity"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// StockAdjustment is one audit row for a stock change.
type StockAdjustment struct {
	ID               int64     `json:"id"`
	ProductID        string    `json:"product_id"`
	LocationID       string    `json:"location_id"`
	PreviousQuantity int       `json:"previous_quantity"`
	NewQuantity      int       `json:"new_quantity"`
	Delta            int       `json:"delta"`
	Reason           string    `json:"reason"`
	SessionID        string    `json:"session_id,omitempty"`
	Actor            string    `json:"actor,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Session is the transport shape of a count session.
type Session struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Kind        string     `json:"kind"`
	LocationID  string     `json:"location_id"`
	Status      string     `json:"status"`
	CreatedBy   string     `json:"created_by,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	TotalItems  int        `json:"total_items"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// Item is the transport shape of one count line.
type Item struct {
	ID              string     `json:"id"`
	SessionID       string     `json:"session_id"`
	ProductID       string     `json:"product_id"`
	LocationID      string     `json:"location_id"`
	Position        int        `json:"position"`
	SystemQuantity  int        `json:"system_quantity"`
	CountedQuantity *int       `json:"counted_quantity"`
	Variance        *int       `json:"variance"`
	Status          string     `json:"status"`
	CountedAt       *time.Time `json:"counted_at,omitempty"`
	CountedBy       string     `json:"counted_by,omitempty"`
	Notes           string     `json:"notes,omitempty"`
}

// Progress summarizes a session's counting state.
type Progress struct {
	SessionID        string `json:"session_id"`
	TotalItems       int    `json:"total_items"`
	Pending          int    `json:"pending"`
	Counted          int    `json:"counted"`
	Verified         int    `json:"verified"`
	Percent          int    `json:"percent"`
	WithVariance     int    `json:"with_variance"`
	NetVariance      int    `json:"net_variance"`
	AbsoluteVariance int    `json:"absolute_variance"`
	Complete         bool   `json:"complete"`
}

// ReconcileFailure reports one item the batch could not settle.
type ReconcileFailure struct {
	ItemID    string `json:"item_id"`
	ProductID string `json:"product_id"`
	Stage     string `json:"stage"`
	Error     string `json:"error"`
}

// ReconcileResult is the outcome of one reconciliation batch.
type ReconcileResult struct {
	SessionID      string             `json:"session_id"`
	Policy         string             `json:"policy"`
	Selected       int                `json:"selected"`
	Processed      int                `json:"processed"`
	Succeeded      int                `json:"succeeded"`
	Skipped        int                `json:"skipped"`
	Ignored        int                `json:"ignored"`
	StockUpdated   int                `json:"stock_updated"`
	MasterResynced int                `json:"master_resynced"`
	Failures       []ReconcileFailure `json:"failures"`
	Message        string             `json:"message"`
}

// CreateLocationRequest captures input for a new location.
type CreateLocationRequest struct {
	Name    string `json:"name"`
	Primary bool   `json:"primary"`
}

// CreateProductRequest captures input for a new product.
type CreateProductRequest struct {
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	MinStock int    `json:"min_stock"`
}

// SetProductActiveRequest toggles product availability for future counts.
type SetProductActiveRequest struct {
	Active *bool `json:"active"`
}

// SetStockRequest captures a manual stock level.
type SetStockRequest struct {
	ProductID  string `json:"product_id"`
	LocationID string `json:"location_id"`
	Quantity   *int   `json:"quantity"`
	Reason     string `json:"reason,omitempty"`
	Actor      string `json:"actor,omitempty"`
}

// ListStockAdjustmentsRequest filters the stock audit trail.
type ListStockAdjustmentsRequest struct {
	ProductID  string
	LocationID string
	Limit      int
}

// CreateSessionRequest captures input for a new count session.
type CreateSessionRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	LocationID  string   `json:"location_id"`
	Kind        string   `json:"kind,omitempty"`
	ProductIDs  []string `json:"product_ids,omitempty"`
	CreatedBy   string   `json:"created_by,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

// ListSessionsRequest filters count sessions.
type ListSessionsRequest struct {
	Status     string
	LocationID string
}

// ListItemsRequest filters the items of one session.
type ListItemsRequest struct {
	SessionID string
	Statuses  []string
	Variance  string
}

// RecordCountRequest captures one physical count.
type RecordCountRequest struct {
	ItemID   string `json:"-"`
	Quantity *int   `json:"quantity"`
	Actor    string `json:"actor,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// ReconcileRequest captures one reconciliation batch.
type ReconcileRequest struct {
	SessionID      string   `json:"-"`
	ItemIDs        []string `json:"item_ids,omitempty"`
	Policy         string   `json:"policy"`
	ManualQuantity *int     `json:"manual_quantity,omitempty"`
	Notes          string   `json:"notes,omitempty"`
	Actor          string   `json:"actor,omitempty"`
}

// CatalogService exposes locations, products, and stock to transports.
type CatalogService interface {
	ListLocations(context.Context) ([]Location, error)
	CreateLocation(context.Context, CreateLocationRequest) (Location, error)
	ListProducts(ctx context.Context, includeInactive bool) ([]Product, error)
	CreateProduct(context.Context, CreateProductRequest) (Product, error)
	SetProductActive(ctx context.Context, productID string, req SetProductActiveRequest) (Product, error)
	ListStock(ctx context.Context, locationID string) ([]StockRecord, error)
	SetStock(context.Context, SetStockRequest) (StockAdjustment, error)
	ListStockAdjustments(context.Context, ListStockAdjustmentsRequest) ([]StockAdjustment, error)
}

// CountService exposes count sessions, items, and reconciliation to transports.
type CountService interface {
	ListSessions(context.Context, ListSessionsRequest) ([]Session, error)
	CreateSession(context.Context, CreateSessionRequest) (Session, error)
	GetSession(ctx context.Context, sessionID string) (Session, error)
	StartSession(ctx context.Context, sessionID string) (Session, error)
	ReopenSession(ctx context.Context, sessionID string) (Session, error)
	CancelSession(ctx context.Context, sessionID string) (Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	ListItems(context.Context, ListItemsRequest) ([]Item, error)
	RecordCount(context.Context, RecordCountRequest) (Item, error)
	Reconcile(context.Context, ReconcileRequest) (ReconcileResult, error)
	SessionProgress(ctx context.Context, sessionID string) (Progress, error)
	SessionReport(ctx context.Context, sessionID string) (report.VarianceReport, error)
}

// Service is the full surface the HTTP adapter serves.
type Service interface {
	CatalogService
	CountService
}
