package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/clinova/hms/internal/domain/billing"
	"github.com/clinova/hms/internal/domain/inventory"
	"github.com/clinova/hms/internal/domain/treatmentplan"
	"github.com/clinova/hms/internal/platform/db"
	"github.com/clinova/hms/pkg/apperr"
)

// TxRunner executes fn inside one store transaction.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// BillingAppender appends invoice lines for a completed procedure inside the
// caller's transaction.
type BillingAppender interface {
	AppendItemsForProcedure(ctx context.Context, patientID uuid.UUID, proc *treatmentplan.PlanProcedure, usages []*treatmentplan.MaterialUsage) (*billing.Invoice, []*billing.InvoiceItem, error)
}

// Result reports everything one completion touched.
type Result struct {
	Procedure      *treatmentplan.PlanProcedure  `json:"procedure"`
	PlanStatus     treatmentplan.PlanStatus      `json:"plan_status"`
	StockMovements []*inventory.StockLedgerEntry `json:"stock_movements"`
	Invoice        *billing.Invoice              `json:"invoice,omitempty"`
	InvoiceItems   []*billing.InvoiceItem        `json:"invoice_items,omitempty"`
}

const defaultRetryBackoff = 50 * time.Millisecond

// Service drives procedure completion across the plan engine, the stock
// ledger and billing as one unit of work.
type Service struct {
	plans      treatmentplan.PlanRepository
	procedures treatmentplan.ProcedureRepository
	usages     treatmentplan.UsageRepository
	stock      inventory.StockRepository
	billing    BillingAppender
	inTx       TxRunner
	backoff    time.Duration
}

func NewService(plans treatmentplan.PlanRepository, procedures treatmentplan.ProcedureRepository, usages treatmentplan.UsageRepository, stock inventory.StockRepository, bill BillingAppender, inTx TxRunner) *Service {
	return &Service{
		plans:      plans,
		procedures: procedures,
		usages:     usages,
		stock:      stock,
		billing:    bill,
		inTx:       inTx,
		backoff:    defaultRetryBackoff,
	}
}

// CompleteProcedure transitions the procedure to COMPLETED, consumes its
// material usages from stock, rolls the plan forward and appends the invoice
// lines, all in one transaction. Nothing is committed when any step fails.
// Transient store failures are retried once; business-rule failures never.
func (s *Service) CompleteProcedure(ctx context.Context, procedureID uuid.UUID, actor string) (*Result, error) {
	res, err := s.completeOnce(ctx, procedureID, actor)
	if err == nil || !db.IsTransient(err) {
		return res, err
	}

	log.Warn().Err(err).Str("procedure_id", procedureID.String()).
		Msg("transient failure completing procedure, retrying once")
	select {
	case <-time.After(s.backoff):
	case <-ctx.Done():
		return nil, apperr.Wrap(apperr.KindTransient, ctx.Err(), "completion interrupted")
	}

	res, err = s.completeOnce(ctx, procedureID, actor)
	if err != nil && db.IsTransient(err) {
		return nil, apperr.Wrap(apperr.KindTransient, err, "store unavailable, retry later")
	}
	return res, err
}

func (s *Service) completeOnce(ctx context.Context, procedureID uuid.UUID, actor string) (*Result, error) {
	var res *Result
	err := s.inTx(ctx, func(txCtx context.Context) error {
		proc, err := s.procedures.GetByIDForUpdate(txCtx, procedureID)
		if err != nil {
			return apperr.Wrap(apperr.KindNotFound, err, "procedure not found")
		}
		if !proc.Status.CanTransitionTo(treatmentplan.ProcedureCompleted) {
			return apperr.New(apperr.KindStateConflict,
				fmt.Sprintf("cannot complete a %s procedure", proc.Status))
		}

		plan, err := s.plans.GetByIDForUpdate(txCtx, proc.PlanID)
		if err != nil {
			return apperr.Wrap(apperr.KindNotFound, err, "treatment plan not found")
		}
		if plan.Status.Terminal() {
			return apperr.New(apperr.KindStateConflict,
				fmt.Sprintf("plan is %s, procedures can no longer complete", plan.Status))
		}

		usages, err := s.usages.ListByProcedure(txCtx, procedureID)
		if err != nil {
			return err
		}

		refType := "plan_procedure"
		var movements []*inventory.StockLedgerEntry
		for _, u := range usages {
			entry := &inventory.StockLedgerEntry{
				MaterialID:    u.MaterialID,
				Kind:          inventory.MovementOut,
				Quantity:      u.Quantity,
				ReferenceType: &refType,
				ReferenceID:   &proc.ID,
				CreatedBy:     actor,
			}
			if err := s.stock.RecordMovement(txCtx, entry); err != nil {
				return err
			}
			movements = append(movements, entry)
		}

		if err := s.procedures.UpdateStatus(txCtx, procedureID, treatmentplan.ProcedureCompleted); err != nil {
			return err
		}
		proc.Status = treatmentplan.ProcedureCompleted

		planStatus, err := s.advancePlan(txCtx, plan)
		if err != nil {
			return err
		}

		inv, items, err := s.billing.AppendItemsForProcedure(txCtx, plan.PatientID, proc, usages)
		if err != nil {
			return err
		}

		res = &Result{
			Procedure:      proc,
			PlanStatus:     planStatus,
			StockMovements: movements,
			Invoice:        inv,
			InvoiceItems:   items,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// advancePlan moves the plan to IN_PROGRESS on the first completion and to
// COMPLETED once every procedure is terminal with at least one completed.
func (s *Service) advancePlan(ctx context.Context, plan *treatmentplan.TreatmentPlan) (treatmentplan.PlanStatus, error) {
	status := plan.Status
	if status == treatmentplan.PlanDraft || status == treatmentplan.PlanApproved {
		if err := s.plans.UpdateStatus(ctx, plan.ID, treatmentplan.PlanInProgress); err != nil {
			return status, err
		}
		status = treatmentplan.PlanInProgress
	}

	procs, err := s.procedures.ListByPlan(ctx, plan.ID)
	if err != nil {
		return status, err
	}
	completed := 0
	for _, p := range procs {
		if !p.Status.Terminal() {
			return status, nil
		}
		if p.Status == treatmentplan.ProcedureCompleted {
			completed++
		}
	}
	if completed == 0 {
		return status, nil
	}
	if err := s.plans.UpdateStatus(ctx, plan.ID, treatmentplan.PlanCompleted); err != nil {
		return status, err
	}
	return treatmentplan.PlanCompleted, nil
}
