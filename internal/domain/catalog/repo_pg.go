package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinova/hms/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== ProcedureDefinition Repository ===========

type procedureDefRepoPG struct{ pool *pgxpool.Pool }

func NewProcedureDefinitionRepoPG(pool *pgxpool.Pool) ProcedureDefinitionRepository {
	return &procedureDefRepoPG{pool: pool}
}

func (r *procedureDefRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const procDefCols = `id, code, name, description, default_cost, duration_minutes, active, created_at, updated_at`

func (r *procedureDefRepoPG) scan(row pgx.Row) (*ProcedureDefinition, error) {
	var p ProcedureDefinition
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.DefaultCost,
		&p.DurationMinutes, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *procedureDefRepoPG) Create(ctx context.Context, p *ProcedureDefinition) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO procedure_catalog (id, code, name, description, default_cost, duration_minutes, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.Code, p.Name, p.Description, p.DefaultCost, p.DurationMinutes, p.Active)
	return err
}

func (r *procedureDefRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ProcedureDefinition, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+procDefCols+` FROM procedure_catalog WHERE id = $1`, id))
}

func (r *procedureDefRepoPG) GetByCode(ctx context.Context, code string) (*ProcedureDefinition, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+procDefCols+` FROM procedure_catalog WHERE code = $1`, code))
}

func (r *procedureDefRepoPG) Update(ctx context.Context, p *ProcedureDefinition) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE procedure_catalog SET name=$2, description=$3, default_cost=$4,
			duration_minutes=$5, active=$6, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.Description, p.DefaultCost, p.DurationMinutes, p.Active)
	return err
}

func (r *procedureDefRepoPG) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*ProcedureDefinition, int, error) {
	where := ``
	if activeOnly {
		where = ` WHERE active`
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM procedure_catalog`+where).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+procDefCols+` FROM procedure_catalog`+where+` ORDER BY code LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ProcedureDefinition
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

// =========== Material Repository ===========

type materialRepoPG struct{ pool *pgxpool.Pool }

func NewMaterialRepoPG(pool *pgxpool.Pool) MaterialRepository { return &materialRepoPG{pool: pool} }

func (r *materialRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const materialCols = `id, code, name, unit, unit_cost, reorder_level, active, created_at, updated_at`

func (r *materialRepoPG) scan(row pgx.Row) (*Material, error) {
	var m Material
	err := row.Scan(&m.ID, &m.Code, &m.Name, &m.Unit, &m.UnitCost,
		&m.ReorderLevel, &m.Active, &m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *materialRepoPG) Create(ctx context.Context, m *Material) error {
	m.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO materials (id, code, name, unit, unit_cost, reorder_level, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		m.ID, m.Code, m.Name, m.Unit, m.UnitCost, m.ReorderLevel, m.Active)
	if err != nil {
		return err
	}
	// Seed the stock row so ledger movements have a counter to lock.
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO material_stock (material_id, on_hand_quantity)
		VALUES ($1, 0) ON CONFLICT (material_id) DO NOTHING`, m.ID)
	return err
}

func (r *materialRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Material, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+materialCols+` FROM materials WHERE id = $1`, id))
}

func (r *materialRepoPG) GetByCode(ctx context.Context, code string) (*Material, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+materialCols+` FROM materials WHERE code = $1`, code))
}

func (r *materialRepoPG) Update(ctx context.Context, m *Material) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE materials SET name=$2, unit=$3, unit_cost=$4, reorder_level=$5, active=$6, updated_at=NOW()
		WHERE id = $1`,
		m.ID, m.Name, m.Unit, m.UnitCost, m.ReorderLevel, m.Active)
	return err
}

func (r *materialRepoPG) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Material, int, error) {
	where := ``
	if activeOnly {
		where = ` WHERE active`
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM materials`+where).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+materialCols+` FROM materials`+where+` ORDER BY code LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Material
	for rows.Next() {
		m, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}
