package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceUnpaid  InvoiceStatus = "UNPAID"
	InvoicePartial InvoiceStatus = "PARTIAL"
	InvoicePaid    InvoiceStatus = "PAID"
)

// StatusFor derives the invoice status from amounts. It is the only way a
// status is ever produced; nothing sets it directly.
func StatusFor(paid, total decimal.Decimal) InvoiceStatus {
	if paid.GreaterThanOrEqual(total) {
		return InvoicePaid
	}
	if paid.GreaterThan(decimal.Zero) {
		return InvoicePartial
	}
	return InvoiceUnpaid
}

type Invoice struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	PlanID      *uuid.UUID      `db:"plan_id" json:"plan_id,omitempty"`
	PatientID   uuid.UUID       `db:"patient_id" json:"patient_id"`
	Status      InvoiceStatus   `db:"status" json:"status"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"total_amount"`
	PaidAmount  decimal.Decimal `db:"paid_amount" json:"paid_amount"`
	Currency    string          `db:"currency" json:"currency"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`

	Items    []*InvoiceItem `db:"-" json:"items,omitempty"`
	Payments []*Payment     `db:"-" json:"payments,omitempty"`
}

func (i *Invoice) Balance() decimal.Decimal {
	return i.TotalAmount.Sub(i.PaidAmount)
}

type ItemKind string

const (
	ItemProcedure ItemKind = "procedure"
	ItemMaterial  ItemKind = "material"
)

// InvoiceItem is an immutable snapshot. SourceProcedureID tracks which plan
// procedure produced the line so a procedure is never billed twice.
type InvoiceItem struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	InvoiceID         uuid.UUID       `db:"invoice_id" json:"invoice_id"`
	Kind              ItemKind        `db:"kind" json:"kind"`
	SourceProcedureID *uuid.UUID      `db:"source_procedure_id" json:"source_procedure_id,omitempty"`
	Description       string          `db:"description" json:"description"`
	Quantity          int             `db:"quantity" json:"quantity"`
	UnitAmount        decimal.Decimal `db:"unit_amount" json:"unit_amount"`
	Amount            decimal.Decimal `db:"amount" json:"amount"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
}

type Payment struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	InvoiceID  uuid.UUID       `db:"invoice_id" json:"invoice_id"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	Method     string          `db:"method" json:"method"`
	Reference  *string         `db:"reference" json:"reference,omitempty"`
	ReceivedBy string          `db:"received_by" json:"received_by"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// ItemsTotal sums item amounts; an invoice total is always derived this way.
func ItemsTotal(items []*InvoiceItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Amount)
	}
	return total
}
