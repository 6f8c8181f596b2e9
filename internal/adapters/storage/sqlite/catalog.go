package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/evanschultz/tally/internal/domain"
	"github.com/uptrace/bun"
)

type locationRow struct {
	ID        string `bun:"id"`
	Name      string `bun:"name"`
	IsPrimary int    `bun:"is_primary"`
	CreatedAt string `bun:"created_at"`
	UpdatedAt string `bun:"updated_at"`
}

func (row locationRow) toDomain() domain.Location {
	return domain.Location{
		ID:        row.ID,
		Name:      row.Name,
		Primary:   row.IsPrimary != 0,
		CreatedAt: parseTS(row.CreatedAt),
		UpdatedAt: parseTS(row.UpdatedAt),
	}
}

type productRow struct {
	ID        string `bun:"id"`
	SKU       string `bun:"sku"`
	Name      string `bun:"name"`
	Quantity  int    `bun:"quantity"`
	MinStock  int    `bun:"min_stock"`
	Active    int    `bun:"active"`
	CreatedAt string `bun:"created_at"`
	UpdatedAt string `bun:"updated_at"`
}

func (row productRow) toDomain() domain.Product {
	return domain.Product{
		ID:        row.ID,
		SKU:       row.SKU,
		Name:      row.Name,
		Quantity:  row.Quantity,
		MinStock:  row.MinStock,
		Active:    row.Active != 0,
		CreatedAt: parseTS(row.CreatedAt),
		UpdatedAt: parseTS(row.UpdatedAt),
	}
}

const locationColumns = `id, name, is_primary, created_at, updated_at`

const productColumns = `id, sku, name, quantity, min_stock, active, created_at, updated_at`

// CreateLocation creates location. A primary location demotes the previous primary in the
// same transaction, so a failed insert leaves the old primary in place.
func (r *Repository) CreateLocation(ctx context.Context, l domain.Location) error {
	return r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if l.Primary {
			if _, err := tx.ExecContext(ctx, `
				UPDATE locations SET is_primary = 0, updated_at = ? WHERE is_primary = 1 AND id <> ?
			`, ts(l.CreatedAt), l.ID); err != nil {
				return fmt.Errorf("demote primary location: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO locations(id, name, is_primary, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, l.ID, l.Name, boolInt(l.Primary), ts(l.CreatedAt), ts(l.UpdatedAt)); err != nil {
			return fmt.Errorf("insert location: %w", err)
		}
		return nil
	})
}

// UpdateLocation updates location.
func (r *Repository) UpdateLocation(ctx context.Context, l domain.Location) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE locations SET name = ?, is_primary = ?, updated_at = ? WHERE id = ?
	`, l.Name, boolInt(l.Primary), ts(l.UpdatedAt), l.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetLocation returns location.
func (r *Repository) GetLocation(ctx context.Context, id string) (domain.Location, error) {
	var row locationRow
	err := r.db.NewRaw(`SELECT `+locationColumns+` FROM locations WHERE id = ?`, id).Scan(ctx, &row)
	if err != nil {
		return domain.Location{}, scanErr(err)
	}
	return row.toDomain(), nil
}

// ListLocations lists locations, primary first.
func (r *Repository) ListLocations(ctx context.Context) ([]domain.Location, error) {
	rows := make([]locationRow, 0)
	err := r.db.NewRaw(`SELECT `+locationColumns+` FROM locations ORDER BY is_primary DESC, name ASC, id ASC`).Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Location, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// CreateProduct creates product.
func (r *Repository) CreateProduct(ctx context.Context, p domain.Product) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products(id, sku, name, quantity, min_stock, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.SKU, p.Name, p.Quantity, p.MinStock, boolInt(p.Active), ts(p.CreatedAt), ts(p.UpdatedAt))
	return err
}

// UpdateProduct updates product.
func (r *Repository) UpdateProduct(ctx context.Context, p domain.Product) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE products SET sku = ?, name = ?, quantity = ?, min_stock = ?, active = ?, updated_at = ?
		WHERE id = ?
	`, p.SKU, p.Name, p.Quantity, p.MinStock, boolInt(p.Active), ts(p.UpdatedAt), p.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetProduct returns product.
func (r *Repository) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	var row productRow
	err := r.db.NewRaw(`SELECT `+productColumns+` FROM products WHERE id = ?`, id).Scan(ctx, &row)
	if err != nil {
		return domain.Product{}, scanErr(err)
	}
	return row.toDomain(), nil
}

// ListProducts lists products by SKU.
func (r *Repository) ListProducts(ctx context.Context, includeInactive bool) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	if !includeInactive {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY sku ASC`
	rows := make([]productRow, 0)
	if err := r.db.NewRaw(query).Scan(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}
