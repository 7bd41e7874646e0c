package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinova/hms/internal/domain/treatmentplan"
	"github.com/clinova/hms/pkg/apperr"
)

// TxRunner executes fn inside one store transaction.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// PlanReader loads a plan with its procedures and material usages.
type PlanReader interface {
	GetPlan(ctx context.Context, id uuid.UUID) (*treatmentplan.TreatmentPlan, error)
}

// Config carries billing policy. Overpayment is rejected unless explicitly
// allowed, in which case the excess stays on the invoice as credit.
type Config struct {
	Currency         string
	AllowOverpayment bool
}

type Service struct {
	invoices InvoiceRepository
	items    ItemRepository
	payments PaymentRepository
	plans    PlanReader
	inTx     TxRunner
	cfg      Config
}

func NewService(invoices InvoiceRepository, items ItemRepository, payments PaymentRepository, plans PlanReader, inTx TxRunner, cfg Config) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	return &Service{invoices: invoices, items: items, payments: payments, plans: plans, inTx: inTx, cfg: cfg}
}

// itemsForProcedure builds the snapshot lines for one completed procedure:
// one line for the procedure itself and one per material usage.
func itemsForProcedure(proc *treatmentplan.PlanProcedure, usages []*treatmentplan.MaterialUsage) []*InvoiceItem {
	procID := proc.ID
	items := []*InvoiceItem{{
		Kind:              ItemProcedure,
		SourceProcedureID: &procID,
		Description:       proc.Name,
		Quantity:          1,
		UnitAmount:        proc.EstimatedCost,
		Amount:            proc.EstimatedCost,
	}}
	for _, u := range usages {
		items = append(items, &InvoiceItem{
			Kind:              ItemMaterial,
			SourceProcedureID: &procID,
			Description:       fmt.Sprintf("material for %s", proc.Name),
			Quantity:          u.Quantity,
			UnitAmount:        u.UnitCostAtTime,
			Amount:            u.TotalCost,
		})
	}
	return items
}

// GenerateInvoice bills every completed, not-yet-invoiced procedure of the
// plan as one new invoice. It fails when there is nothing to bill.
func (s *Service) GenerateInvoice(ctx context.Context, planID uuid.UUID) (*Invoice, error) {
	var inv *Invoice
	err := s.inTx(ctx, func(txCtx context.Context) error {
		plan, err := s.plans.GetPlan(txCtx, planID)
		if err != nil {
			return apperr.Wrap(apperr.KindNotFound, err, "treatment plan not found")
		}
		invoiced, err := s.items.InvoicedProcedureIDs(txCtx, planID)
		if err != nil {
			return err
		}

		var newItems []*InvoiceItem
		for _, proc := range plan.Procedures {
			if proc.Status != treatmentplan.ProcedureCompleted || invoiced[proc.ID] {
				continue
			}
			newItems = append(newItems, itemsForProcedure(proc, proc.Usages)...)
		}
		if len(newItems) == 0 {
			return apperr.New(apperr.KindStateConflict, "plan has no completed procedures to bill")
		}

		inv = &Invoice{
			PlanID:      &plan.ID,
			PatientID:   plan.PatientID,
			Status:      InvoiceUnpaid,
			TotalAmount: decimal.Zero,
			PaidAmount:  decimal.Zero,
			Currency:    s.cfg.Currency,
		}
		if err := s.invoices.Create(txCtx, inv); err != nil {
			return err
		}
		for _, it := range newItems {
			it.InvoiceID = inv.ID
			if err := s.items.Create(txCtx, it); err != nil {
				return err
			}
		}
		inv.TotalAmount = ItemsTotal(newItems)
		inv.Status = StatusFor(inv.PaidAmount, inv.TotalAmount)
		inv.Items = newItems
		return s.invoices.UpdateTotals(txCtx, inv.ID, inv.TotalAmount, inv.PaidAmount, inv.Status)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// AppendItemsForProcedure adds the snapshot lines for one newly completed
// procedure to the plan's open invoice, creating the invoice if none exists.
// It is idempotent per procedure and expects to run inside the caller's
// transaction. Existing items are never touched; only the total moves.
func (s *Service) AppendItemsForProcedure(ctx context.Context, patientID uuid.UUID, proc *treatmentplan.PlanProcedure, usages []*treatmentplan.MaterialUsage) (*Invoice, []*InvoiceItem, error) {
	invoiced, err := s.items.InvoicedProcedureIDs(ctx, proc.PlanID)
	if err != nil {
		return nil, nil, err
	}
	if invoiced[proc.ID] {
		// Nothing to append, and no invoice is created on this path.
		inv, _ := s.invoices.GetOpenByPlan(ctx, proc.PlanID)
		return inv, nil, nil
	}

	inv, err := s.invoices.GetOpenByPlan(ctx, proc.PlanID)
	if err != nil {
		planID := proc.PlanID
		inv = &Invoice{
			PlanID:      &planID,
			PatientID:   patientID,
			Status:      InvoiceUnpaid,
			TotalAmount: decimal.Zero,
			PaidAmount:  decimal.Zero,
			Currency:    s.cfg.Currency,
		}
		if err := s.invoices.Create(ctx, inv); err != nil {
			return nil, nil, err
		}
	}

	newItems := itemsForProcedure(proc, usages)
	for _, it := range newItems {
		it.InvoiceID = inv.ID
		if err := s.items.Create(ctx, it); err != nil {
			return nil, nil, err
		}
	}

	all, err := s.items.ListByInvoice(ctx, inv.ID)
	if err != nil {
		return nil, nil, err
	}
	inv.TotalAmount = ItemsTotal(all)
	inv.Status = StatusFor(inv.PaidAmount, inv.TotalAmount)
	if err := s.invoices.UpdateTotals(ctx, inv.ID, inv.TotalAmount, inv.PaidAmount, inv.Status); err != nil {
		return nil, nil, err
	}
	return inv, newItems, nil
}

// RecordPayment appends one payment. paid_amount only ever grows, and the
// status is rederived from the new amounts inside the same transaction that
// holds the invoice row lock.
func (s *Service) RecordPayment(ctx context.Context, invoiceID uuid.UUID, amount decimal.Decimal, method string, reference *string, actor string) (*Invoice, *Payment, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, nil, apperr.New(apperr.KindInvalidAmount, "payment amount must be positive")
	}
	if method == "" {
		method = "cash"
	}

	var (
		inv     *Invoice
		payment *Payment
	)
	err := s.inTx(ctx, func(txCtx context.Context) error {
		var err error
		inv, err = s.invoices.GetByIDForUpdate(txCtx, invoiceID)
		if err != nil {
			return apperr.Wrap(apperr.KindNotFound, err, "invoice not found")
		}

		newPaid := inv.PaidAmount.Add(amount)
		if !s.cfg.AllowOverpayment && newPaid.GreaterThan(inv.TotalAmount) {
			return apperr.New(apperr.KindOverpayment,
				fmt.Sprintf("payment of %s exceeds outstanding balance %s", amount, inv.Balance()))
		}

		payment = &Payment{
			InvoiceID:  invoiceID,
			Amount:     amount,
			Method:     method,
			Reference:  reference,
			ReceivedBy: actor,
		}
		if err := s.payments.Create(txCtx, payment); err != nil {
			return err
		}

		inv.PaidAmount = newPaid
		inv.Status = StatusFor(newPaid, inv.TotalAmount)
		return s.invoices.UpdateTotals(txCtx, invoiceID, inv.TotalAmount, newPaid, inv.Status)
	})
	if err != nil {
		return nil, nil, err
	}
	return inv, payment, nil
}

// GetInvoice loads the invoice with its items and payments.
func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, err, "invoice not found")
	}
	if inv.Items, err = s.items.ListByInvoice(ctx, id); err != nil {
		return nil, err
	}
	if inv.Payments, err = s.payments.ListByInvoice(ctx, id); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	return s.invoices.ListByPatient(ctx, patientID, limit, offset)
}
