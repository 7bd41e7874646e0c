package treatmentplan

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PlanRepository interface {
	Create(ctx context.Context, p *TreatmentPlan) error
	GetByID(ctx context.Context, id uuid.UUID) (*TreatmentPlan, error)
	// GetByIDForUpdate locks the plan row for the enclosing transaction.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*TreatmentPlan, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status PlanStatus) error
	UpdateEstimatedCost(ctx context.Context, id uuid.UUID, cost decimal.Decimal) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*TreatmentPlan, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*TreatmentPlan, int, error)
}

type ProcedureRepository interface {
	Create(ctx context.Context, p *PlanProcedure) error
	GetByID(ctx context.Context, id uuid.UUID) (*PlanProcedure, error)
	// GetByIDForUpdate locks the procedure row for the enclosing transaction.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*PlanProcedure, error)
	ListByPlan(ctx context.Context, planID uuid.UUID) ([]*PlanProcedure, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status ProcedureStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type UsageRepository interface {
	Create(ctx context.Context, u *MaterialUsage) error
	ListByProcedure(ctx context.Context, procedureID uuid.UUID) ([]*MaterialUsage, error)
}
