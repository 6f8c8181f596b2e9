package common

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/evanschultz/tally/internal/app"
	"github.com/evanschultz/tally/internal/domain"
	"github.com/evanschultz/tally/internal/report"
)

// AppServiceAdapter maps transport contracts onto app.Service.
type AppServiceAdapter struct {
	service *app.Service
	now     func() time.Time
}

var _ Service = (*AppServiceAdapter)(nil)

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service, now: time.Now}
}

// ListLocations lists every location, primary first.
func (a *AppServiceAdapter) ListLocations(ctx context.Context) ([]Location, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	locations, err := a.service.ListLocations(ctx)
	if err != nil {
		return nil, mapAppError("list locations", err)
	}
	out := make([]Location, 0, len(locations))
	for _, location := range locations {
		out = append(out, mapLocation(location))
	}
	return out, nil
}

// CreateLocation creates one location.
func (a *AppServiceAdapter) CreateLocation(ctx context.Context, in CreateLocationRequest) (Location, error) {
	if err := a.ready(); err != nil {
		return Location{}, err
	}
	location, err := a.service.CreateLocation(ctx, in.Name, in.Primary)
	if err != nil {
		return Location{}, mapAppError("create location", err)
	}
	return mapLocation(location), nil
}

// ListProducts lists catalog products by SKU.
func (a *AppServiceAdapter) ListProducts(ctx context.Context, includeInactive bool) ([]Product, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	products, err := a.service.ListProducts(ctx, includeInactive)
	if err != nil {
		return nil, mapAppError("list products", err)
	}
	out := make([]Product, 0, len(products))
	for _, product := range products {
		out = append(out, mapProduct(product))
	}
	return out, nil
}

// CreateProduct creates one product.
func (a *AppServiceAdapter) CreateProduct(ctx context.Context, in CreateProductRequest) (Product, error) {
	if err := a.ready(); err != nil {
		return Product{}, err
	}
	product, err := a.service.CreateProduct(ctx, app.CreateProductInput{
		SKU:      in.SKU,
		Name:     in.Name,
		MinStock: in.MinStock,
	})
	if err != nil {
		return Product{}, mapAppError("create product", err)
	}
	return mapProduct(product), nil
}

// SetProductActive activates or deactivates one product.
func (a *AppServiceAdapter) SetProductActive(ctx context.Context, productID string, in SetProductActiveRequest) (Product, error) {
	if err := a.ready(); err != nil {
		return Product{}, err
	}
	if in.Active == nil {
		return Product{}, fmt.Errorf("active is required: %w", ErrInvalidRequest)
	}
	product, err := a.service.SetProductActive(ctx, productID, *in.Active)
	if err != nil {
		return Product{}, mapAppError("set product active", err)
	}
	return mapProduct(product), nil
}

// ListStock lists stock records for a location, or all when locationID is empty.
func (a *AppServiceAdapter) ListStock(ctx context.Context, locationID string) ([]StockRecord, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	records, err := a.service.ListStockRecords(ctx, locationID)
	if err != nil {
		return nil, mapAppError("list stock", err)
	}
	out := make([]StockRecord, 0, len(records))
	for _, record := range records {
		out = append(out, StockRecord{
			ProductID:  record.ProductID,
			LocationID: record.LocationID,
			Quantity:   record.Quantity,
			UpdatedAt:  record.UpdatedAt,
		})
	}
	return out, nil
}

// SetStock records a manual stock level.
func (a *AppServiceAdapter) SetStock(ctx context.Context, in SetStockRequest) (StockAdjustment, error) {
	if err := a.ready(); err != nil {
		return StockAdjustment{}, err
	}
	if in.Quantity == nil {
		return StockAdjustment{}, fmt.Errorf("quantity is required: %w", ErrInvalidRequest)
	}
	adjustment, err := a.service.SetStockQuantity(ctx, app.SetStockInput{
		ProductID:  in.ProductID,
		LocationID: in.LocationID,
		Quantity:   *in.Quantity,
		Reason:     in.Reason,
		Actor:      in.Actor,
	})
	if err != nil {
		return StockAdjustment{}, mapAppError("set stock", err)
	}
	return mapAdjustment(adjustment), nil
}

// ListStockAdjustments lists audit rows newest first.
func (a *AppServiceAdapter) ListStockAdjustments(ctx context.Context, in ListStockAdjustmentsRequest) ([]StockAdjustment, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	if in.Limit < 0 {
		return nil, fmt.Errorf("limit must be non-negative: %w", ErrInvalidRequest)
	}
	adjustments, err := a.service.ListStockAdjustments(ctx, in.ProductID, in.LocationID, in.Limit)
	if err != nil {
		return nil, mapAppError("list stock adjustments", err)
	}
	out := make([]StockAdjustment, 0, len(adjustments))
	for _, adjustment := range adjustments {
		out = append(out, mapAdjustment(adjustment))
	}
	return out, nil
}

// ListSessions lists count sessions newest first.
func (a *AppServiceAdapter) ListSessions(ctx context.Context, in ListSessionsRequest) ([]Session, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	filter := app.CountSessionFilter{LocationID: strings.TrimSpace(in.LocationID)}
	if raw := strings.TrimSpace(in.Status); raw != "" {
		status, err := domain.ParseSessionStatus(raw)
		if err != nil {
			return nil, mapAppError("list sessions", err)
		}
		filter.Status = status
	}
	sessions, err := a.service.ListSessions(ctx, filter)
	if err != nil {
		return nil, mapAppError("list sessions", err)
	}
	out := make([]Session, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, mapSession(session))
	}
	return out, nil
}

// CreateSession creates a draft count session with its seeded items.
func (a *AppServiceAdapter) CreateSession(ctx context.Context, in CreateSessionRequest) (Session, error) {
	if err := a.ready(); err != nil {
		return Session{}, err
	}
	session, err := a.service.CreateSession(ctx, app.CreateSessionInput{
		Name:        in.Name,
		Description: in.Description,
		LocationID:  in.LocationID,
		Kind:        domain.CountKind(strings.TrimSpace(in.Kind)),
		ProductIDs:  in.ProductIDs,
		CreatedBy:   in.CreatedBy,
		Notes:       in.Notes,
	})
	if err != nil {
		return Session{}, mapAppError("create session", err)
	}
	return mapSession(session), nil
}

// GetSession returns one session.
func (a *AppServiceAdapter) GetSession(ctx context.Context, sessionID string) (Session, error) {
	if err := a.ready(); err != nil {
		return Session{}, err
	}
	session, err := a.service.GetSession(ctx, sessionID)
	if err != nil {
		return Session{}, mapAppError("get session", err)
	}
	return mapSession(session), nil
}

// StartSession moves a draft session to in_progress.
func (a *AppServiceAdapter) StartSession(ctx context.Context, sessionID string) (Session, error) {
	if err := a.ready(); err != nil {
		return Session{}, err
	}
	session, err := a.service.StartSession(ctx, sessionID)
	if err != nil {
		return Session{}, mapAppError("start session", err)
	}
	return mapSession(session), nil
}

// ReopenSession moves a completed session back to in_progress.
func (a *AppServiceAdapter) ReopenSession(ctx context.Context, sessionID string) (Session, error) {
	if err := a.ready(); err != nil {
		return Session{}, err
	}
	session, err := a.service.ReopenSession(ctx, sessionID)
	if err != nil {
		return Session{}, mapAppError("reopen session", err)
	}
	return mapSession(session), nil
}

// CancelSession cancels a draft or in-progress session.
func (a *AppServiceAdapter) CancelSession(ctx context.Context, sessionID string) (Session, error) {
	if err := a.ready(); err != nil {
		return Session{}, err
	}
	session, err := a.service.CancelSession(ctx, sessionID)
	if err != nil {
		return Session{}, mapAppError("cancel session", err)
	}
	return mapSession(session), nil
}

// DeleteSession removes a session that is not completed.
func (a *AppServiceAdapter) DeleteSession(ctx context.Context, sessionID string) error {
	if err := a.ready(); err != nil {
		return err
	}
	if err := a.service.DeleteSession(ctx, sessionID); err != nil {
		return mapAppError("delete session", err)
	}
	return nil
}

// ListItems lists session items with optional status and variance filters.
func (a *AppServiceAdapter) ListItems(ctx context.Context, in ListItemsRequest) ([]Item, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	statuses, err := parseItemStatuses(in.Statuses)
	if err != nil {
		return nil, err
	}
	items, err := a.service.ListItems(ctx, app.ListItemsFilter{
		SessionID: in.SessionID,
		Statuses:  statuses,
		Variance:  app.VarianceFilter(strings.ToLower(strings.TrimSpace(in.Variance))),
	})
	if err != nil {
		return nil, mapAppError("list items", err)
	}
	out := make([]Item, 0, len(items))
	for _, item := range items {
		out = append(out, mapItem(item))
	}
	return out, nil
}

// RecordCount stores one physical count.
func (a *AppServiceAdapter) RecordCount(ctx context.Context, in RecordCountRequest) (Item, error) {
	if err := a.ready(); err != nil {
		return Item{}, err
	}
	if in.Quantity == nil {
		return Item{}, fmt.Errorf("quantity is required: %w", ErrInvalidRequest)
	}
	item, err := a.service.RecordCount(ctx, app.RecordCountInput{
		ItemID:   in.ItemID,
		Quantity: *in.Quantity,
		Actor:    in.Actor,
		Notes:    in.Notes,
	})
	if err != nil {
		return Item{}, mapAppError("record count", err)
	}
	return mapItem(item), nil
}

// Reconcile settles selected variances with one policy.
func (a *AppServiceAdapter) Reconcile(ctx context.Context, in ReconcileRequest) (ReconcileResult, error) {
	if err := a.ready(); err != nil {
		return ReconcileResult{}, err
	}
	policy, err := domain.ParseReconcilePolicy(in.Policy)
	if err != nil {
		return ReconcileResult{}, mapAppError("reconcile", err)
	}
	summary, err := a.service.Reconcile(ctx, app.ReconcileInput{
		SessionID:      in.SessionID,
		ItemIDs:        in.ItemIDs,
		Policy:         policy,
		ManualQuantity: in.ManualQuantity,
		Notes:          in.Notes,
		Actor:          in.Actor,
	})
	if err != nil {
		return ReconcileResult{}, mapAppError("reconcile", err)
	}
	return mapReconcileSummary(summary), nil
}

// SessionProgress returns counting progress for one session.
func (a *AppServiceAdapter) SessionProgress(ctx context.Context, sessionID string) (Progress, error) {
	if err := a.ready(); err != nil {
		return Progress{}, err
	}
	progress, err := a.service.GetSessionProgress(ctx, sessionID)
	if err != nil {
		return Progress{}, mapAppError("session progress", err)
	}
	return mapProgress(sessionID, progress), nil
}

// SessionReport builds the variance report for one session.
func (a *AppServiceAdapter) SessionReport(ctx context.Context, sessionID string) (report.VarianceReport, error) {
	if err := a.ready(); err != nil {
		return report.VarianceReport{}, err
	}
	out, err := report.Load(ctx, a.service, sessionID, a.now())
	if err != nil {
		return report.VarianceReport{}, mapAppError("session report", err)
	}
	return out, nil
}

func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return errors.New("app service adapter is not configured")
	}
	return nil
}

var itemStatuses = []domain.ItemStatus{
	domain.ItemStatusPending,
	domain.ItemStatusCounted,
	domain.ItemStatusVerified,
}

// parseItemStatuses validates status filters. Blank entries are dropped.
func parseItemStatuses(raw []string) ([]domain.ItemStatus, error) {
	out := make([]domain.ItemStatus, 0, len(raw))
	for _, value := range raw {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		status := domain.ItemStatus(value)
		if !slices.Contains(itemStatuses, status) {
			return nil, fmt.Errorf("unsupported item status %q: %w", value, ErrInvalidRequest)
		}
		out = append(out, status)
	}
	return out, nil
}

// mapAppError maps app/domain errors into transport-layer error sentinels.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, domain.ErrValidation):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	case errors.Is(err, domain.ErrInvalidState):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidState, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}

func mapLocation(l domain.Location) Location {
	return Location{
		ID:        l.ID,
		Name:      l.Name,
		Primary:   l.Primary,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
}

func mapProduct(p domain.Product) Product {
	return Product{
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

func mapAdjustment(a domain.StockAdjustment) StockAdjustment {
	return StockAdjustment{
		ID:               a.ID,
		ProductID:        a.ProductID,
		LocationID:       a.LocationID,
		PreviousQuantity: a.PreviousQuantity,
		NewQuantity:      a.NewQuantity,
		Delta:            a.Delta(),
		Reason:           a.Reason,
		SessionID:        a.SessionID,
		Actor:            a.Actor,
		CreatedAt:        a.CreatedAt,
	}
}

func mapSession(s domain.CountSession) Session {
	return Session{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Kind:        string(s.Kind),
		LocationID:  s.LocationID,
		Status:      string(s.Status),
		CreatedBy:   s.CreatedBy,
		Notes:       s.Notes,
		TotalItems:  s.TotalItems,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		StartedAt:   s.StartedAt,
		CompletedAt: s.CompletedAt,
		CancelledAt: s.CancelledAt,
	}
}

func mapItem(i domain.CountItem) Item {
	return Item{
		ID:              i.ID,
		SessionID:       i.SessionID,
		ProductID:       i.ProductID,
		LocationID:      i.LocationID,
		Position:        i.Position,
		SystemQuantity:  i.SystemQuantity,
		CountedQuantity: i.CountedQuantity,
		Variance:        i.Variance,
		Status:          string(i.Status),
		CountedAt:       i.CountedAt,
		CountedBy:       i.CountedBy,
		Notes:           i.Notes,
	}
}

func mapProgress(sessionID string, p domain.CountProgress) Progress {
	return Progress{
		SessionID:        sessionID,
		TotalItems:       p.TotalItems,
		Pending:          p.Pending,
		Counted:          p.Counted,
		Verified:         p.Verified,
		Percent:          p.Percent,
		WithVariance:     p.WithVariance,
		NetVariance:      p.NetVariance,
		AbsoluteVariance: p.AbsoluteVariance,
		Complete:         p.Complete(),
	}
}

func mapReconcileSummary(s app.ReconcileSummary) ReconcileResult {
	failures := make([]ReconcileFailure, 0, len(s.Failures))
	for _, failure := range s.Failures {
		failures = append(failures, ReconcileFailure{
			ItemID:    failure.ItemID,
			ProductID: failure.ProductID,
			Stage:     string(failure.Stage),
			Error:     failure.Err.Error(),
		})
	}
	return ReconcileResult{
		SessionID:      s.SessionID,
		Policy:         string(s.Policy),
		Selected:       s.Selected,
		Processed:      s.Processed,
		Succeeded:      s.Succeeded(),
		Skipped:        s.Skipped,
		Ignored:        s.Ignored,
		StockUpdated:   s.StockUpdated,
		MasterResynced: s.MasterResynced,
		Failures:       failures,
		Message:        s.Message(),
	}
}
