package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvoiceRepository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// GetByIDForUpdate locks the invoice row; payments serialize on it.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// GetOpenByPlan returns the plan's open (not fully paid) invoice, locked.
	GetOpenByPlan(ctx context.Context, planID uuid.UUID) (*Invoice, error)
	UpdateTotals(ctx context.Context, id uuid.UUID, total, paid decimal.Decimal, status InvoiceStatus) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error)
}

type ItemRepository interface {
	Create(ctx context.Context, item *InvoiceItem) error
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*InvoiceItem, error)
	// InvoicedProcedureIDs reports which plan procedures already have lines
	// on any invoice of the plan.
	InvoicedProcedureIDs(ctx context.Context, planID uuid.UUID) (map[uuid.UUID]bool, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error)
}
