package treatmentplan

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/clinova/hms/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Plan Repository ===========

type planRepoPG struct{ pool *pgxpool.Pool }

func NewPlanRepoPG(pool *pgxpool.Pool) PlanRepository { return &planRepoPG{pool: pool} }

func (r *planRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const planCols = `id, patient_id, doctor_id, appointment_id, title, diagnosis,
	status, estimated_cost, notes, created_at, updated_at`

func scanPlan(row pgx.Row) (*TreatmentPlan, error) {
	var p TreatmentPlan
	err := row.Scan(&p.ID, &p.PatientID, &p.DoctorID, &p.AppointmentID, &p.Title, &p.Diagnosis,
		&p.Status, &p.EstimatedCost, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *planRepoPG) Create(ctx context.Context, p *TreatmentPlan) error {
	p.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO treatment_plans (id, patient_id, doctor_id, appointment_id, title, diagnosis, status, estimated_cost, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		p.ID, p.PatientID, p.DoctorID, p.AppointmentID, p.Title, p.Diagnosis, p.Status, p.EstimatedCost, p.Notes,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *planRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*TreatmentPlan, error) {
	return scanPlan(r.conn(ctx).QueryRow(ctx, `SELECT `+planCols+` FROM treatment_plans WHERE id = $1`, id))
}

func (r *planRepoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*TreatmentPlan, error) {
	return scanPlan(r.conn(ctx).QueryRow(ctx, `SELECT `+planCols+` FROM treatment_plans WHERE id = $1 FOR UPDATE`, id))
}

func (r *planRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status PlanStatus) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE treatment_plans SET status=$2, updated_at=NOW() WHERE id = $1`, id, status)
	return err
}

func (r *planRepoPG) UpdateEstimatedCost(ctx context.Context, id uuid.UUID, cost decimal.Decimal) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE treatment_plans SET estimated_cost=$2, updated_at=NOW() WHERE id = $1`, id, cost)
	return err
}

func (r *planRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*TreatmentPlan, int, error) {
	return r.list(ctx, `patient_id`, patientID, limit, offset)
}

func (r *planRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*TreatmentPlan, int, error) {
	return r.list(ctx, `doctor_id`, doctorID, limit, offset)
}

func (r *planRepoPG) list(ctx context.Context, col string, id uuid.UUID, limit, offset int) ([]*TreatmentPlan, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM treatment_plans WHERE `+col+` = $1`, id).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+planCols+` FROM treatment_plans WHERE `+col+` = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		id, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*TreatmentPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

// =========== Procedure Repository ===========

type procedureRepoPG struct{ pool *pgxpool.Pool }

func NewProcedureRepoPG(pool *pgxpool.Pool) ProcedureRepository { return &procedureRepoPG{pool: pool} }

func (r *procedureRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const procedureCols = `id, plan_id, catalog_id, code, name, tooth_reference, priority,
	estimated_cost, status, started_at, completed_at, notes, created_at, updated_at`

func scanProcedure(row pgx.Row) (*PlanProcedure, error) {
	var p PlanProcedure
	err := row.Scan(&p.ID, &p.PlanID, &p.CatalogID, &p.Code, &p.Name, &p.ToothReference,
		&p.Priority, &p.EstimatedCost, &p.Status, &p.StartedAt, &p.CompletedAt, &p.Notes,
		&p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *procedureRepoPG) Create(ctx context.Context, p *PlanProcedure) error {
	p.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO plan_procedures (id, plan_id, catalog_id, code, name, tooth_reference, priority, estimated_cost, status, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		p.ID, p.PlanID, p.CatalogID, p.Code, p.Name, p.ToothReference, p.Priority, p.EstimatedCost, p.Status, p.Notes,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *procedureRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*PlanProcedure, error) {
	return scanProcedure(r.conn(ctx).QueryRow(ctx, `SELECT `+procedureCols+` FROM plan_procedures WHERE id = $1`, id))
}

func (r *procedureRepoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*PlanProcedure, error) {
	return scanProcedure(r.conn(ctx).QueryRow(ctx, `SELECT `+procedureCols+` FROM plan_procedures WHERE id = $1 FOR UPDATE`, id))
}

func (r *procedureRepoPG) ListByPlan(ctx context.Context, planID uuid.UUID) ([]*PlanProcedure, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+procedureCols+` FROM plan_procedures WHERE plan_id = $1 ORDER BY created_at`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*PlanProcedure
	for rows.Next() {
		p, err := scanProcedure(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// UpdateStatus also stamps started_at and completed_at as the procedure
// crosses those states.
func (r *procedureRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status ProcedureStatus) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE plan_procedures SET status=$2,
			started_at   = CASE WHEN $2 = 'IN_PROGRESS' AND started_at IS NULL THEN NOW() ELSE started_at END,
			completed_at = CASE WHEN $2 = 'COMPLETED' THEN NOW() ELSE completed_at END,
			updated_at = NOW()
		WHERE id = $1`, id, status)
	return err
}

func (r *procedureRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM plan_procedures WHERE id = $1`, id)
	return err
}

// =========== Usage Repository ===========

type usageRepoPG struct{ pool *pgxpool.Pool }

func NewUsageRepoPG(pool *pgxpool.Pool) UsageRepository { return &usageRepoPG{pool: pool} }

func (r *usageRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const usageCols = `id, procedure_id, material_id, quantity, unit_cost_at_time, total_cost, created_at`

func scanUsage(row pgx.Row) (*MaterialUsage, error) {
	var u MaterialUsage
	err := row.Scan(&u.ID, &u.ProcedureID, &u.MaterialID, &u.Quantity, &u.UnitCostAtTime, &u.TotalCost, &u.CreatedAt)
	return &u, err
}

func (r *usageRepoPG) Create(ctx context.Context, u *MaterialUsage) error {
	u.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO procedure_materials (id, procedure_id, material_id, quantity, unit_cost_at_time, total_cost)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		u.ID, u.ProcedureID, u.MaterialID, u.Quantity, u.UnitCostAtTime, u.TotalCost,
	).Scan(&u.CreatedAt)
}

func (r *usageRepoPG) ListByProcedure(ctx context.Context, procedureID uuid.UUID) ([]*MaterialUsage, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+usageCols+` FROM procedure_materials WHERE procedure_id = $1 ORDER BY created_at`, procedureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*MaterialUsage
	for rows.Next() {
		u, err := scanUsage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}
