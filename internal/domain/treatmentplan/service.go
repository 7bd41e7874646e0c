package treatmentplan

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinova/hms/internal/domain/catalog"
	"github.com/clinova/hms/pkg/apperr"
)

// TxRunner executes fn inside one store transaction. Repositories called with
// the inner context join that transaction.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// CatalogReader is the slice of the catalog the plan engine needs: procedure
// pricing defaults and material cost snapshots.
type CatalogReader interface {
	GetProcedureDefinition(ctx context.Context, id uuid.UUID) (*catalog.ProcedureDefinition, error)
	GetMaterial(ctx context.Context, id uuid.UUID) (*catalog.Material, error)
}

type Service struct {
	plans      PlanRepository
	procedures ProcedureRepository
	usages     UsageRepository
	catalog    CatalogReader
	inTx       TxRunner
}

func NewService(plans PlanRepository, procedures ProcedureRepository, usages UsageRepository, cat CatalogReader, inTx TxRunner) *Service {
	return &Service{plans: plans, procedures: procedures, usages: usages, catalog: cat, inTx: inTx}
}

func (s *Service) CreatePlan(ctx context.Context, p *TreatmentPlan) error {
	if p.PatientID == uuid.Nil || p.DoctorID == uuid.Nil {
		return apperr.New(apperr.KindValidation, "patient_id and doctor_id are required")
	}
	if p.Title == "" {
		return apperr.New(apperr.KindValidation, "title is required")
	}
	p.Status = PlanDraft
	p.EstimatedCost = decimal.Zero
	return s.plans.Create(ctx, p)
}

// GetPlan loads the plan with its procedures and their material usages.
func (s *Service) GetPlan(ctx context.Context, id uuid.UUID) (*TreatmentPlan, error) {
	p, err := s.plans.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, err, "treatment plan not found")
	}
	procs, err := s.procedures.ListByPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, proc := range procs {
		usages, err := s.usages.ListByProcedure(ctx, proc.ID)
		if err != nil {
			return nil, err
		}
		proc.Usages = usages
	}
	p.Procedures = procs
	return p, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*TreatmentPlan, int, error) {
	return s.plans.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*TreatmentPlan, int, error) {
	return s.plans.ListByDoctor(ctx, doctorID, limit, offset)
}

// UpdatePlanStatus applies a manual plan transition. Completion normally
// happens through procedure completion; a manual finalize from IN_PROGRESS
// is allowed here.
func (s *Service) UpdatePlanStatus(ctx context.Context, id uuid.UUID, to PlanStatus) (*TreatmentPlan, error) {
	var updated *TreatmentPlan
	err := s.inTx(ctx, func(txCtx context.Context) error {
		p, err := s.plans.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return apperr.Wrap(apperr.KindNotFound, err, "treatment plan not found")
		}
		if !p.Status.CanTransitionTo(to) {
			return apperr.New(apperr.KindStateConflict,
				fmt.Sprintf("cannot transition plan from %s to %s", p.Status, to))
		}
		if err := s.plans.UpdateStatus(txCtx, id, to); err != nil {
			return err
		}
		p.Status = to
		updated = p
		return nil
	})
	return updated, err
}

// AddProcedureInput carries the optional attributes of a new plan procedure.
// Priority defaults to MEDIUM; Cost overrides the catalog default.
type AddProcedureInput struct {
	CatalogID      uuid.UUID
	Cost           *decimal.Decimal
	Priority       ProcedurePriority
	ToothReference *string
	Notes          *string
}

// AddProcedure attaches a catalog procedure to an editable plan. The cost
// defaults from the catalog unless overridden, and the plan's estimated cost
// is recomputed in the same transaction.
func (s *Service) AddProcedure(ctx context.Context, planID uuid.UUID, in AddProcedureInput) (*PlanProcedure, error) {
	def, err := s.catalog.GetProcedureDefinition(ctx, in.CatalogID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, err, "catalog procedure not found")
	}
	cost := def.DefaultCost
	if in.Cost != nil {
		if in.Cost.IsNegative() {
			return nil, apperr.New(apperr.KindValidation, "cost must not be negative")
		}
		cost = *in.Cost
	}
	priority := in.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		return nil, apperr.New(apperr.KindValidation,
			fmt.Sprintf("invalid priority %q", in.Priority))
	}

	proc := &PlanProcedure{
		PlanID:         planID,
		CatalogID:      in.CatalogID,
		Code:           def.Code,
		Name:           def.Name,
		ToothReference: in.ToothReference,
		Priority:       priority,
		EstimatedCost:  cost,
		Status:         ProcedurePending,
		Notes:          in.Notes,
	}
	err = s.inTx(ctx, func(txCtx context.Context) error {
		plan, err := s.plans.GetByIDForUpdate(txCtx, planID)
		if err != nil {
			return apperr.Wrap(apperr.KindNotFound, err, "treatment plan not found")
		}
		if !plan.Status.Editable() {
			return apperr.New(apperr.KindStateConflict,
				fmt.Sprintf("cannot add procedures to a %s plan", plan.Status))
		}
		if err := s.procedures.Create(txCtx, proc); err != nil {
			return err
		}
		return s.recomputeEstimatedCost(txCtx, planID)
	})
	if err != nil {
		return nil, err
	}
	return proc, nil
}

// RemoveProcedure drops a procedure that has not started and recomputes the
// plan's estimated cost.
func (s *Service) RemoveProcedure(ctx context.Context, procedureID uuid.UUID) error {
	return s.inTx(ctx, func(txCtx context.Context) error {
		proc, err := s.procedures.GetByIDForUpdate(txCtx, procedureID)
		if err != nil {
			return apperr.Wrap(apperr.KindNotFound, err, "procedure not found")
		}
		if proc.Status != ProcedurePending {
			return apperr.New(apperr.KindStateConflict,
				fmt.Sprintf("cannot remove a %s procedure", proc.Status))
		}
		if _, err := s.plans.GetByIDForUpdate(txCtx, proc.PlanID); err != nil {
			return apperr.Wrap(apperr.KindNotFound, err, "treatment plan not found")
		}
		if err := s.procedures.Delete(txCtx, procedureID); err != nil {
			return err
		}
		return s.recomputeEstimatedCost(txCtx, proc.PlanID)
	})
}

// AddMaterialUsage records planned consumption against a procedure,
// snapshotting the material's current unit cost.
func (s *Service) AddMaterialUsage(ctx context.Context, procedureID, materialID uuid.UUID, quantity int) (*MaterialUsage, error) {
	if quantity <= 0 {
		return nil, apperr.New(apperr.KindValidation, "quantity must be positive")
	}
	mat, err := s.catalog.GetMaterial(ctx, materialID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, err, "material not found")
	}

	usage := &MaterialUsage{
		ProcedureID:    procedureID,
		MaterialID:     materialID,
		Quantity:       quantity,
		UnitCostAtTime: mat.UnitCost,
		TotalCost:      mat.UnitCost.Mul(decimal.NewFromInt(int64(quantity))),
	}
	err = s.inTx(ctx, func(txCtx context.Context) error {
		proc, err := s.procedures.GetByIDForUpdate(txCtx, procedureID)
		if err != nil {
			return apperr.Wrap(apperr.KindNotFound, err, "procedure not found")
		}
		if proc.Status.Terminal() {
			return apperr.New(apperr.KindStateConflict,
				fmt.Sprintf("cannot add materials to a %s procedure", proc.Status))
		}
		return s.usages.Create(txCtx, usage)
	})
	if err != nil {
		return nil, err
	}
	return usage, nil
}

// StartProcedure moves a pending procedure in progress and pulls the plan
// out of APPROVED if this is the first activity on it.
func (s *Service) StartProcedure(ctx context.Context, procedureID uuid.UUID) (*PlanProcedure, error) {
	var proc *PlanProcedure
	err := s.inTx(ctx, func(txCtx context.Context) error {
		var err error
		proc, err = s.procedures.GetByIDForUpdate(txCtx, procedureID)
		if err != nil {
			return apperr.Wrap(apperr.KindNotFound, err, "procedure not found")
		}
		if !proc.Status.CanTransitionTo(ProcedureInProgress) {
			return apperr.New(apperr.KindStateConflict,
				fmt.Sprintf("cannot start a %s procedure", proc.Status))
		}
		if err := s.procedures.UpdateStatus(txCtx, procedureID, ProcedureInProgress); err != nil {
			return err
		}
		proc.Status = ProcedureInProgress

		plan, err := s.plans.GetByIDForUpdate(txCtx, proc.PlanID)
		if err != nil {
			return err
		}
		if plan.Status == PlanApproved {
			return s.plans.UpdateStatus(txCtx, plan.ID, PlanInProgress)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return proc, nil
}

// CancelProcedure cancels a non-terminal procedure. Cancelled procedures no
// longer count toward the plan's estimated cost.
func (s *Service) CancelProcedure(ctx context.Context, procedureID uuid.UUID) (*PlanProcedure, error) {
	var proc *PlanProcedure
	err := s.inTx(ctx, func(txCtx context.Context) error {
		var err error
		proc, err = s.procedures.GetByIDForUpdate(txCtx, procedureID)
		if err != nil {
			return apperr.Wrap(apperr.KindNotFound, err, "procedure not found")
		}
		if !proc.Status.CanTransitionTo(ProcedureCancelled) {
			return apperr.New(apperr.KindStateConflict,
				fmt.Sprintf("cannot cancel a %s procedure", proc.Status))
		}
		if _, err := s.plans.GetByIDForUpdate(txCtx, proc.PlanID); err != nil {
			return err
		}
		if err := s.procedures.UpdateStatus(txCtx, procedureID, ProcedureCancelled); err != nil {
			return err
		}
		proc.Status = ProcedureCancelled
		return s.recomputeEstimatedCost(txCtx, proc.PlanID)
	})
	if err != nil {
		return nil, err
	}
	return proc, nil
}

func (s *Service) recomputeEstimatedCost(ctx context.Context, planID uuid.UUID) error {
	procs, err := s.procedures.ListByPlan(ctx, planID)
	if err != nil {
		return err
	}
	return s.plans.UpdateEstimatedCost(ctx, planID, EstimatedTotal(procs))
}

// Repositories exposes the underlying stores for the workflow orchestrator,
// which drives procedure completion across domain boundaries.
func (s *Service) Repositories() (PlanRepository, ProcedureRepository, UsageRepository) {
	return s.plans, s.procedures, s.usages
}
