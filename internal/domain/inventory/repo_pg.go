package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinova/hms/internal/platform/db"
	"github.com/clinova/hms/pkg/apperr"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type stockRepoPG struct{ pool *pgxpool.Pool }

func NewStockRepoPG(pool *pgxpool.Pool) StockRepository { return &stockRepoPG{pool: pool} }

func (r *stockRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const ledgerCols = `id, material_id, kind, quantity, reference_type, reference_id, note, created_by, created_at`

func scanEntry(row pgx.Row) (*StockLedgerEntry, error) {
	var e StockLedgerEntry
	err := row.Scan(&e.ID, &e.MaterialID, &e.Kind, &e.Quantity, &e.ReferenceType,
		&e.ReferenceID, &e.Note, &e.CreatedBy, &e.CreatedAt)
	return &e, err
}

// RecordMovement locks the stock counter row, checks the non-negative
// invariant, then inserts the ledger entry and moves the counter in the
// same transaction. When the context already carries a transaction the
// movement joins it, so an enclosing operation stays all-or-nothing.
func (r *stockRepoPG) RecordMovement(ctx context.Context, e *StockLedgerEntry) error {
	if tx := db.TxFromContext(ctx); tx != nil {
		return r.recordMovement(ctx, tx, e)
	}
	return db.RunInTx(ctx, r.pool, func(txCtx context.Context) error {
		return r.recordMovement(txCtx, db.TxFromContext(txCtx), e)
	})
}

func (r *stockRepoPG) recordMovement(ctx context.Context, q queryable, e *StockLedgerEntry) error {
	var onHand int
	err := q.QueryRow(ctx,
		`SELECT on_hand_quantity FROM material_stock WHERE material_id = $1 FOR UPDATE`,
		e.MaterialID).Scan(&onHand)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.New(apperr.KindNotFound, "material has no stock record")
	}
	if err != nil {
		return err
	}

	next := onHand + e.Kind.Delta(e.Quantity)
	if next < 0 {
		return apperr.New(apperr.KindInsufficientStock,
			fmt.Sprintf("on hand %d, movement of %d would go negative", onHand, e.Quantity))
	}

	e.ID = uuid.New()
	if err := q.QueryRow(ctx, `
		INSERT INTO stock_ledger (id, material_id, kind, quantity, reference_type, reference_id, note, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at`,
		e.ID, e.MaterialID, e.Kind, e.Quantity, e.ReferenceType, e.ReferenceID, e.Note, e.CreatedBy,
	).Scan(&e.CreatedAt); err != nil {
		return err
	}

	_, err = q.Exec(ctx,
		`UPDATE material_stock SET on_hand_quantity = $2, updated_at = NOW() WHERE material_id = $1`,
		e.MaterialID, next)
	return err
}

func (r *stockRepoPG) OnHand(ctx context.Context, materialID uuid.UUID) (int, error) {
	var onHand int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT on_hand_quantity FROM material_stock WHERE material_id = $1`, materialID).Scan(&onHand)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperr.New(apperr.KindNotFound, "material has no stock record")
	}
	return onHand, err
}

// Balance recomputes from the ledger instead of trusting the counter.
func (r *stockRepoPG) Balance(ctx context.Context, materialID uuid.UUID) (int, error) {
	var balance int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN kind = 'OUT' THEN -quantity ELSE quantity END), 0)
		FROM stock_ledger WHERE material_id = $1`, materialID).Scan(&balance)
	return balance, err
}

func (r *stockRepoPG) LowStock(ctx context.Context) ([]*LowStockItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT m.id, m.code, m.name, m.unit, s.on_hand_quantity, m.reorder_level
		FROM materials m
		JOIN material_stock s ON s.material_id = m.id
		WHERE m.active AND s.on_hand_quantity <= m.reorder_level
		ORDER BY s.on_hand_quantity ASC, m.code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*LowStockItem
	for rows.Next() {
		var it LowStockItem
		if err := rows.Scan(&it.MaterialID, &it.Code, &it.Name, &it.Unit, &it.OnHand, &it.ReorderLevel); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

func (r *stockRepoPG) History(ctx context.Context, materialID uuid.UUID, limit, offset int) ([]*StockLedgerEntry, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM stock_ledger WHERE material_id = $1`, materialID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+ledgerCols+` FROM stock_ledger WHERE material_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		materialID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*StockLedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}
