package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/evanschultz/tally/internal/app"
	"github.com/evanschultz/tally/internal/domain"
	"github.com/uptrace/bun"
)

type sessionRow struct {
	ID          string         `bun:"id"`
	Name        string         `bun:"name"`
	Description string         `bun:"description"`
	Kind        string         `bun:"kind"`
	LocationID  string         `bun:"location_id"`
	Status      string         `bun:"status"`
	CreatedBy   string         `bun:"created_by"`
	Notes       string         `bun:"notes"`
	TotalItems  int            `bun:"total_items"`
	CreatedAt   string         `bun:"created_at"`
	UpdatedAt   string         `bun:"updated_at"`
	StartedAt   sql.NullString `bun:"started_at"`
	CompletedAt sql.NullString `bun:"completed_at"`
	CancelledAt sql.NullString `bun:"cancelled_at"`
}

func (row sessionRow) toDomain() domain.CountSession {
	return domain.CountSession{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Kind:        domain.CountKind(row.Kind),
		LocationID:  row.LocationID,
		Status:      domain.SessionStatus(row.Status),
		CreatedBy:   row.CreatedBy,
		Notes:       row.Notes,
		TotalItems:  row.TotalItems,
		CreatedAt:   parseTS(row.CreatedAt),
		UpdatedAt:   parseTS(row.UpdatedAt),
		StartedAt:   parseNullTS(row.StartedAt),
		CompletedAt: parseNullTS(row.CompletedAt),
		CancelledAt: parseNullTS(row.CancelledAt),
	}
}

type itemRow struct {
	ID              string         `bun:"id"`
	SessionID       string         `bun:"session_id"`
	ProductID       string         `bun:"product_id"`
	LocationID      string         `bun:"location_id"`
	Position        int            `bun:"position"`
	SystemQuantity  int            `bun:"system_quantity"`
	CountedQuantity sql.NullInt64  `bun:"counted_quantity"`
	Variance        sql.NullInt64  `bun:"variance"`
	Status          string         `bun:"status"`
	CountedAt       sql.NullString `bun:"counted_at"`
	CountedBy       string         `bun:"counted_by"`
	Notes           string         `bun:"notes"`
	CreatedAt       string         `bun:"created_at"`
	UpdatedAt       string         `bun:"updated_at"`
}

func (row itemRow) toDomain() domain.CountItem {
	return domain.CountItem{
		ID:              row.ID,
		SessionID:       row.SessionID,
		ProductID:       row.ProductID,
		LocationID:      row.LocationID,
		Position:        row.Position,
		SystemQuantity:  row.SystemQuantity,
		CountedQuantity: parseNullInt(row.CountedQuantity),
		Variance:        parseNullInt(row.Variance),
		Status:          domain.ItemStatus(row.Status),
		CountedAt:       parseNullTS(row.CountedAt),
		CountedBy:       row.CountedBy,
		Notes:           row.Notes,
		CreatedAt:       parseTS(row.CreatedAt),
		UpdatedAt:       parseTS(row.UpdatedAt),
	}
}

const sessionColumns = `id, name, description, kind, location_id, status, created_by, notes, total_items,
	created_at, updated_at, started_at, completed_at, cancelled_at`

const itemColumns = `id, session_id, product_id, location_id, position, system_quantity, counted_quantity, variance,
	status, counted_at, counted_by, notes, created_at, updated_at`

// CreateCountSession persists the session and its seeded items in one transaction.
func (r *Repository) CreateCountSession(ctx context.Context, s domain.CountSession, items []domain.CountItem) error {
	return r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO count_sessions(id, name, description, kind, location_id, status, created_by, notes, total_items,
				created_at, updated_at, started_at, completed_at, cancelled_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			s.ID, s.Name, s.Description, string(s.Kind), s.LocationID, string(s.Status), s.CreatedBy, s.Notes, s.TotalItems,
			ts(s.CreatedAt), ts(s.UpdatedAt), nullableTS(s.StartedAt), nullableTS(s.CompletedAt), nullableTS(s.CancelledAt),
		); err != nil {
			return fmt.Errorf("insert count session: %w", err)
		}
		for _, item := range items {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO count_items(id, session_id, product_id, location_id, position, system_quantity, counted_quantity, variance,
					status, counted_at, counted_by, notes, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
				item.ID, item.SessionID, item.ProductID, item.LocationID, item.Position, item.SystemQuantity,
				nullableInt(item.CountedQuantity), nullableInt(item.Variance), string(item.Status), nullableTS(item.CountedAt),
				item.CountedBy, item.Notes, ts(item.CreatedAt), ts(item.UpdatedAt),
			); err != nil {
				return fmt.Errorf("insert count item %q: %w", item.ID, err)
			}
		}
		return nil
	})
}

// UpdateCountSession updates count session.
func (r *Repository) UpdateCountSession(ctx context.Context, s domain.CountSession) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE count_sessions
		SET name = ?, description = ?, kind = ?, status = ?, notes = ?, total_items = ?, updated_at = ?,
		    started_at = ?, completed_at = ?, cancelled_at = ?
		WHERE id = ?
	`,
		s.Name, s.Description, string(s.Kind), string(s.Status), s.Notes, s.TotalItems, ts(s.UpdatedAt),
		nullableTS(s.StartedAt), nullableTS(s.CompletedAt), nullableTS(s.CancelledAt),
		s.ID,
	)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetCountSession returns count session.
func (r *Repository) GetCountSession(ctx context.Context, id string) (domain.CountSession, error) {
	var row sessionRow
	if err := r.db.NewRaw(`SELECT `+sessionColumns+` FROM count_sessions WHERE id = ?`, id).Scan(ctx, &row); err != nil {
		return domain.CountSession{}, scanErr(err)
	}
	return row.toDomain(), nil
}

// ListCountSessions lists sessions, newest first.
func (r *Repository) ListCountSessions(ctx context.Context, filter app.CountSessionFilter) ([]domain.CountSession, error) {
	status := string(filter.Status)
	rows := make([]sessionRow, 0)
	err := r.db.NewRaw(`
		SELECT `+sessionColumns+`
		FROM count_sessions
		WHERE (? = '' OR status = ?) AND (? = '' OR location_id = ?)
		ORDER BY created_at DESC, id ASC
	`, status, status, filter.LocationID, filter.LocationID).Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	out := make([]domain.CountSession, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// DeleteCountSession removes the session items, then the session, in one transaction.
func (r *Repository) DeleteCountSession(ctx context.Context, id string) error {
	return r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM count_items WHERE session_id = ?`, id); err != nil {
			return fmt.Errorf("delete count items: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM count_sessions WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete count session: %w", err)
		}
		return translateNoRows(res)
	})
}

// GetCountItem returns count item.
func (r *Repository) GetCountItem(ctx context.Context, id string) (domain.CountItem, error) {
	var row itemRow
	if err := r.db.NewRaw(`SELECT `+itemColumns+` FROM count_items WHERE id = ?`, id).Scan(ctx, &row); err != nil {
		return domain.CountItem{}, scanErr(err)
	}
	return row.toDomain(), nil
}

// UpdateCountItem updates count item.
func (r *Repository) UpdateCountItem(ctx context.Context, item domain.CountItem) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE count_items
		SET counted_quantity = ?, variance = ?, status = ?, counted_at = ?, counted_by = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`,
		nullableInt(item.CountedQuantity), nullableInt(item.Variance), string(item.Status), nullableTS(item.CountedAt),
		item.CountedBy, item.Notes, ts(item.UpdatedAt),
		item.ID,
	)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// ListCountItems lists session items in seed order.
func (r *Repository) ListCountItems(ctx context.Context, sessionID string) ([]domain.CountItem, error) {
	rows := make([]itemRow, 0)
	err := r.db.NewRaw(`SELECT `+itemColumns+` FROM count_items WHERE session_id = ? ORDER BY position ASC, id ASC`, sessionID).Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	out := make([]domain.CountItem, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}
