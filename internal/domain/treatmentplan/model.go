package treatmentplan

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PlanStatus string

const (
	PlanDraft      PlanStatus = "DRAFT"
	PlanApproved   PlanStatus = "APPROVED"
	PlanInProgress PlanStatus = "IN_PROGRESS"
	PlanCompleted  PlanStatus = "COMPLETED"
	PlanCancelled  PlanStatus = "CANCELLED"
)

// CanTransitionTo encodes the plan status machine. Cancellation is allowed
// from any non-terminal state.
func (s PlanStatus) CanTransitionTo(to PlanStatus) bool {
	if s.Terminal() {
		return false
	}
	if to == PlanCancelled {
		return true
	}
	switch s {
	case PlanDraft:
		return to == PlanApproved
	case PlanApproved:
		return to == PlanInProgress
	case PlanInProgress:
		return to == PlanCompleted
	}
	return false
}

func (s PlanStatus) Terminal() bool {
	return s == PlanCompleted || s == PlanCancelled
}

// Editable reports whether procedures may still be added to the plan.
func (s PlanStatus) Editable() bool {
	return s == PlanDraft || s == PlanApproved
}

type ProcedureStatus string

const (
	ProcedurePending    ProcedureStatus = "PENDING"
	ProcedureInProgress ProcedureStatus = "IN_PROGRESS"
	ProcedureCompleted  ProcedureStatus = "COMPLETED"
	ProcedureCancelled  ProcedureStatus = "CANCELLED"
)

func (s ProcedureStatus) CanTransitionTo(to ProcedureStatus) bool {
	switch s {
	case ProcedurePending:
		return to == ProcedureInProgress || to == ProcedureCompleted || to == ProcedureCancelled
	case ProcedureInProgress:
		return to == ProcedureCompleted || to == ProcedureCancelled
	}
	return false
}

func (s ProcedureStatus) Terminal() bool {
	return s == ProcedureCompleted || s == ProcedureCancelled
}

type ProcedurePriority string

const (
	PriorityLow    ProcedurePriority = "LOW"
	PriorityMedium ProcedurePriority = "MEDIUM"
	PriorityHigh   ProcedurePriority = "HIGH"
)

func (p ProcedurePriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type TreatmentPlan struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	PatientID     uuid.UUID       `db:"patient_id" json:"patient_id"`
	DoctorID      uuid.UUID       `db:"doctor_id" json:"doctor_id"`
	AppointmentID *uuid.UUID      `db:"appointment_id" json:"appointment_id,omitempty"`
	Title         string          `db:"title" json:"title"`
	Diagnosis     *string         `db:"diagnosis" json:"diagnosis,omitempty"`
	Status        PlanStatus      `db:"status" json:"status"`
	EstimatedCost decimal.Decimal `db:"estimated_cost" json:"estimated_cost"`
	Notes         *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`

	Procedures []*PlanProcedure `db:"-" json:"procedures,omitempty"`
}

// PlanProcedure snapshots the catalog name and cost at the time it is added,
// so later catalog edits never reprice an existing plan.
type PlanProcedure struct {
	ID             uuid.UUID         `db:"id" json:"id"`
	PlanID         uuid.UUID         `db:"plan_id" json:"plan_id"`
	CatalogID      uuid.UUID         `db:"catalog_id" json:"catalog_id"`
	Code           string            `db:"code" json:"code"`
	Name           string            `db:"name" json:"name"`
	ToothReference *string           `db:"tooth_reference" json:"tooth_reference,omitempty"`
	Priority       ProcedurePriority `db:"priority" json:"priority"`
	EstimatedCost  decimal.Decimal   `db:"estimated_cost" json:"estimated_cost"`
	Status         ProcedureStatus   `db:"status" json:"status"`
	StartedAt      *time.Time        `db:"started_at" json:"started_at,omitempty"`
	CompletedAt    *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
	Notes          *string           `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`

	Usages []*MaterialUsage `db:"-" json:"material_usages,omitempty"`
}

// MaterialUsage records planned material consumption for a procedure.
// UnitCostAtTime is the material's unit cost at record time.
type MaterialUsage struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	ProcedureID    uuid.UUID       `db:"procedure_id" json:"procedure_id"`
	MaterialID     uuid.UUID       `db:"material_id" json:"material_id"`
	Quantity       int             `db:"quantity" json:"quantity"`
	UnitCostAtTime decimal.Decimal `db:"unit_cost_at_time" json:"unit_cost_at_time"`
	TotalCost      decimal.Decimal `db:"total_cost" json:"total_cost"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// EstimatedTotal sums the estimated cost of every non-cancelled procedure.
func EstimatedTotal(procedures []*PlanProcedure) decimal.Decimal {
	total := decimal.Zero
	for _, p := range procedures {
		if p.Status == ProcedureCancelled {
			continue
		}
		total = total.Add(p.EstimatedCost)
	}
	return total
}
