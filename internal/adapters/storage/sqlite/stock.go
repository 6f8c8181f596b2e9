package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/evanschultz/tally/internal/domain"
	"github.com/uptrace/bun"
)

type stockRow struct {
	ProductID  string `bun:"product_id"`
	LocationID string `bun:"location_id"`
	Quantity   int    `bun:"quantity"`
	UpdatedAt  string `bun:"updated_at"`
}

type adjustmentRow struct {
	ID               int64  `bun:"id"`
	ProductID        string `bun:"product_id"`
	LocationID       string `bun:"location_id"`
	PreviousQuantity int    `bun:"previous_quantity"`
	NewQuantity      int    `bun:"new_quantity"`
	Reason           string `bun:"reason"`
	SessionID        string `bun:"session_id"`
	Actor            string `bun:"actor"`
	CreatedAt        string `bun:"created_at"`
}

func (row adjustmentRow) toDomain() domain.StockAdjustment {
	return domain.StockAdjustment{
		ID:               row.ID,
		ProductID:        row.ProductID,
		LocationID:       row.LocationID,
		PreviousQuantity: row.PreviousQuantity,
		NewQuantity:      row.NewQuantity,
		Reason:           row.Reason,
		SessionID:        row.SessionID,
		Actor:            row.Actor,
		CreatedAt:        parseTS(row.CreatedAt),
	}
}

// GetStockQuantity returns the on-hand quantity, 0 when no record exists.
func (r *Repository) GetStockQuantity(ctx context.Context, productID, locationID string) (int, error) {
	return stockQuantity(ctx, r.db, productID, locationID)
}

// ListStockRecords lists stock records at a location.
func (r *Repository) ListStockRecords(ctx context.Context, locationID string) ([]domain.StockRecord, error) {
	rows := make([]stockRow, 0)
	err := r.db.NewRaw(`
		SELECT product_id, location_id, quantity, updated_at
		FROM stock_records
		WHERE location_id = ?
		ORDER BY product_id ASC
	`, locationID).Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	out := make([]domain.StockRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.StockRecord{
			ProductID:  row.ProductID,
			LocationID: row.LocationID,
			Quantity:   row.Quantity,
			UpdatedAt:  parseTS(row.UpdatedAt),
		})
	}
	return out, nil
}

// UpdateStockQuantity sets the quantity and appends the audit entry in one transaction.
func (r *Repository) UpdateStockQuantity(ctx context.Context, u domain.StockUpdate) (domain.StockAdjustment, error) {
	var adj domain.StockAdjustment
	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var err error
		adj, err = applyStock(ctx, tx, u)
		return err
	})
	if err != nil {
		return domain.StockAdjustment{}, err
	}
	return adj, nil
}

// ApplyReconciledQuantity writes stock, audit entry, and product master quantity together.
func (r *Repository) ApplyReconciledQuantity(ctx context.Context, u domain.StockUpdate) (domain.StockAdjustment, error) {
	var adj domain.StockAdjustment
	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var err error
		adj, err = applyStock(ctx, tx, u)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `UPDATE products SET quantity = ?, updated_at = ? WHERE id = ?`, u.Quantity, ts(u.At), u.ProductID)
		if err != nil {
			return fmt.Errorf("sync product master quantity: %w", err)
		}
		return translateNoRows(res)
	})
	if err != nil {
		return domain.StockAdjustment{}, err
	}
	return adj, nil
}

// ListStockAdjustments lists the audit trail, newest first. Empty ids match everything.
func (r *Repository) ListStockAdjustments(ctx context.Context, productID, locationID string, limit int) ([]domain.StockAdjustment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows := make([]adjustmentRow, 0)
	err := r.db.NewRaw(`
		SELECT id, product_id, location_id, previous_quantity, new_quantity, reason, session_id, actor, created_at
		FROM stock_adjustments
		WHERE (? = '' OR product_id = ?) AND (? = '' OR location_id = ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, productID, productID, locationID, locationID, limit).Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	out := make([]domain.StockAdjustment, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// applyStock upserts the stock record and inserts its audit row on the caller's transaction.
func applyStock(ctx context.Context, tx bun.Tx, u domain.StockUpdate) (domain.StockAdjustment, error) {
	if err := u.Validate(); err != nil {
		return domain.StockAdjustment{}, err
	}
	previous, err := stockQuantity(ctx, tx, u.ProductID, u.LocationID)
	if err != nil {
		return domain.StockAdjustment{}, err
	}
	at := ts(u.At)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO stock_records(product_id, location_id, quantity, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(product_id, location_id) DO UPDATE SET
			quantity = excluded.quantity,
			updated_at = excluded.updated_at
	`, u.ProductID, u.LocationID, u.Quantity, at); err != nil {
		return domain.StockAdjustment{}, fmt.Errorf("write stock record: %w", err)
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO stock_adjustments(product_id, location_id, previous_quantity, new_quantity, reason, session_id, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, u.ProductID, u.LocationID, previous, u.Quantity, u.Reason, u.SessionID, u.Actor, at)
	if err != nil {
		return domain.StockAdjustment{}, fmt.Errorf("write stock adjustment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.StockAdjustment{}, err
	}
	return domain.StockAdjustment{
		ID:               id,
		ProductID:        u.ProductID,
		LocationID:       u.LocationID,
		PreviousQuantity: previous,
		NewQuantity:      u.Quantity,
		Reason:           u.Reason,
		SessionID:        u.SessionID,
		Actor:            u.Actor,
		CreatedAt:        parseTS(at),
	}, nil
}

// stockQuantity reads one stock record, 0 when absent.
func stockQuantity(ctx context.Context, db bun.IDB, productID, locationID string) (int, error) {
	var quantity int
	err := db.NewRaw(`SELECT quantity FROM stock_records WHERE product_id = ? AND location_id = ?`, productID, locationID).Scan(ctx, &quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return quantity, nil
}
