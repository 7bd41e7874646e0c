package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinova/hms/internal/domain/treatmentplan"
	"github.com/clinova/hms/pkg/apperr"
)

type mockInvoiceRepo struct {
	byID map[uuid.UUID]*Invoice
}

func newMockInvoiceRepo() *mockInvoiceRepo {
	return &mockInvoiceRepo{byID: make(map[uuid.UUID]*Invoice)}
}

func (m *mockInvoiceRepo) Create(_ context.Context, inv *Invoice) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	m.byID[inv.ID] = inv
	return nil
}

func (m *mockInvoiceRepo) GetByID(_ context.Context, id uuid.UUID) (*Invoice, error) {
	inv, ok := m.byID[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	return inv, nil
}

func (m *mockInvoiceRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return m.GetByID(ctx, id)
}

func (m *mockInvoiceRepo) GetOpenByPlan(_ context.Context, planID uuid.UUID) (*Invoice, error) {
	for _, inv := range m.byID {
		if inv.PlanID != nil && *inv.PlanID == planID && inv.Status != InvoicePaid {
			return inv, nil
		}
	}
	return nil, errors.New("no rows")
}

func (m *mockInvoiceRepo) UpdateTotals(_ context.Context, id uuid.UUID, total, paid decimal.Decimal, status InvoiceStatus) error {
	inv, ok := m.byID[id]
	if !ok {
		return errors.New("no rows")
	}
	inv.TotalAmount = total
	inv.PaidAmount = paid
	inv.Status = status
	return nil
}

func (m *mockInvoiceRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Invoice, int, error) {
	var out []*Invoice
	for _, inv := range m.byID {
		if inv.PatientID == patientID {
			out = append(out, inv)
		}
	}
	return out, len(out), nil
}

type mockItemRepo struct {
	byInvoice map[uuid.UUID][]*InvoiceItem
	invoices  *mockInvoiceRepo
}

func newMockItemRepo(invoices *mockInvoiceRepo) *mockItemRepo {
	return &mockItemRepo{byInvoice: make(map[uuid.UUID][]*InvoiceItem), invoices: invoices}
}

func (m *mockItemRepo) Create(_ context.Context, item *InvoiceItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	m.byInvoice[item.InvoiceID] = append(m.byInvoice[item.InvoiceID], item)
	return nil
}

func (m *mockItemRepo) ListByInvoice(_ context.Context, invoiceID uuid.UUID) ([]*InvoiceItem, error) {
	return m.byInvoice[invoiceID], nil
}

func (m *mockItemRepo) InvoicedProcedureIDs(_ context.Context, planID uuid.UUID) (map[uuid.UUID]bool, error) {
	ids := make(map[uuid.UUID]bool)
	for invID, items := range m.byInvoice {
		inv := m.invoices.byID[invID]
		if inv == nil || inv.PlanID == nil || *inv.PlanID != planID {
			continue
		}
		for _, it := range items {
			if it.SourceProcedureID != nil {
				ids[*it.SourceProcedureID] = true
			}
		}
	}
	return ids, nil
}

type mockPaymentRepo struct {
	byInvoice map[uuid.UUID][]*Payment
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{byInvoice: make(map[uuid.UUID][]*Payment)}
}

func (m *mockPaymentRepo) Create(_ context.Context, p *Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.byInvoice[p.InvoiceID] = append(m.byInvoice[p.InvoiceID], p)
	return nil
}

func (m *mockPaymentRepo) ListByInvoice(_ context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	return m.byInvoice[invoiceID], nil
}

type mockPlanReader struct {
	byID map[uuid.UUID]*treatmentplan.TreatmentPlan
}

func newMockPlanReader() *mockPlanReader {
	return &mockPlanReader{byID: make(map[uuid.UUID]*treatmentplan.TreatmentPlan)}
}

func (m *mockPlanReader) GetPlan(_ context.Context, id uuid.UUID) (*treatmentplan.TreatmentPlan, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	return p, nil
}

func passthroughTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixture struct {
	svc      *Service
	invoices *mockInvoiceRepo
	items    *mockItemRepo
	payments *mockPaymentRepo
	plans    *mockPlanReader
}

func newFixture(cfg Config) *fixture {
	invoices := newMockInvoiceRepo()
	items := newMockItemRepo(invoices)
	payments := newMockPaymentRepo()
	plans := newMockPlanReader()
	return &fixture{
		svc:      NewService(invoices, items, payments, plans, passthroughTx, cfg),
		invoices: invoices,
		items:    items,
		payments: payments,
		plans:    plans,
	}
}

func (f *fixture) seedPlanWithProcedures(statuses ...treatmentplan.ProcedureStatus) *treatmentplan.TreatmentPlan {
	plan := &treatmentplan.TreatmentPlan{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		DoctorID:  uuid.New(),
		Title:     "Restoration",
		Status:    treatmentplan.PlanInProgress,
	}
	for i, st := range statuses {
		plan.Procedures = append(plan.Procedures, &treatmentplan.PlanProcedure{
			ID:            uuid.New(),
			PlanID:        plan.ID,
			Name:          "Procedure",
			EstimatedCost: decimal.NewFromInt(int64(500 * (i + 1))),
			Status:        st,
		})
	}
	f.plans.byID[plan.ID] = plan
	return plan
}

func TestGenerateInvoiceNoCompletedProcedures(t *testing.T) {
	f := newFixture(Config{})
	plan := f.seedPlanWithProcedures(treatmentplan.ProcedurePending, treatmentplan.ProcedureInProgress)

	_, err := f.svc.GenerateInvoice(context.Background(), plan.ID)
	if apperr.KindOf(err) != apperr.KindStateConflict {
		t.Errorf("kind = %v, want KindStateConflict", apperr.KindOf(err))
	}
	if len(f.invoices.byID) != 0 {
		t.Errorf("invoices created = %d, want 0", len(f.invoices.byID))
	}
}

func TestGenerateInvoiceBillsCompletedOnly(t *testing.T) {
	f := newFixture(Config{Currency: "EUR"})
	plan := f.seedPlanWithProcedures(
		treatmentplan.ProcedureCompleted, // 500
		treatmentplan.ProcedurePending,   // 1000, not billed
		treatmentplan.ProcedureCompleted, // 1500
	)

	inv, err := f.svc.GenerateInvoice(context.Background(), plan.ID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(inv.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(inv.Items))
	}
	if !inv.TotalAmount.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("total = %s, want 2000", inv.TotalAmount)
	}
	if inv.Status != InvoiceUnpaid {
		t.Errorf("status = %s, want UNPAID", inv.Status)
	}
	if inv.Currency != "EUR" {
		t.Errorf("currency = %s, want EUR", inv.Currency)
	}
}

func TestGenerateInvoiceSkipsAlreadyInvoiced(t *testing.T) {
	f := newFixture(Config{})
	plan := f.seedPlanWithProcedures(treatmentplan.ProcedureCompleted)

	if _, err := f.svc.GenerateInvoice(context.Background(), plan.ID); err != nil {
		t.Fatalf("first generate: %v", err)
	}

	_, err := f.svc.GenerateInvoice(context.Background(), plan.ID)
	if apperr.KindOf(err) != apperr.KindStateConflict {
		t.Errorf("kind = %v, want KindStateConflict (nothing left to bill)", apperr.KindOf(err))
	}
}

func TestGenerateInvoiceIncludesMaterialLines(t *testing.T) {
	f := newFixture(Config{})
	plan := f.seedPlanWithProcedures(treatmentplan.ProcedureCompleted)
	proc := plan.Procedures[0]
	proc.Usages = []*treatmentplan.MaterialUsage{{
		ID:             uuid.New(),
		ProcedureID:    proc.ID,
		MaterialID:     uuid.New(),
		Quantity:       2,
		UnitCostAtTime: decimal.NewFromInt(25),
		TotalCost:      decimal.NewFromInt(50),
	}}

	inv, err := f.svc.GenerateInvoice(context.Background(), plan.ID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(inv.Items) != 2 {
		t.Fatalf("items = %d, want procedure + material", len(inv.Items))
	}
	if !inv.TotalAmount.Equal(decimal.NewFromInt(550)) {
		t.Errorf("total = %s, want 550", inv.TotalAmount)
	}
}

func TestRecordPaymentSequence(t *testing.T) {
	f := newFixture(Config{})
	ctx := context.Background()

	planID := uuid.New()
	inv := &Invoice{
		ID:          uuid.New(),
		PlanID:      &planID,
		PatientID:   uuid.New(),
		Status:      InvoiceUnpaid,
		TotalAmount: decimal.NewFromInt(1000),
		PaidAmount:  decimal.Zero,
		Currency:    "USD",
	}
	f.invoices.byID[inv.ID] = inv

	got, _, err := f.svc.RecordPayment(ctx, inv.ID, decimal.NewFromInt(400), "cash", nil, "cashier")
	if err != nil {
		t.Fatalf("first payment: %v", err)
	}
	if got.Status != InvoicePartial {
		t.Errorf("status = %s, want PARTIAL", got.Status)
	}
	if !got.Balance().Equal(decimal.NewFromInt(600)) {
		t.Errorf("balance = %s, want 600", got.Balance())
	}

	got, _, err = f.svc.RecordPayment(ctx, inv.ID, decimal.NewFromInt(600), "card", nil, "cashier")
	if err != nil {
		t.Fatalf("second payment: %v", err)
	}
	if got.Status != InvoicePaid {
		t.Errorf("status = %s, want PAID", got.Status)
	}
	if !got.Balance().Equal(decimal.Zero) {
		t.Errorf("balance = %s, want 0", got.Balance())
	}
	if len(f.payments.byInvoice[inv.ID]) != 2 {
		t.Errorf("payments = %d, want 2", len(f.payments.byInvoice[inv.ID]))
	}
}

func TestRecordPaymentInvalidAmount(t *testing.T) {
	f := newFixture(Config{})
	inv := &Invoice{ID: uuid.New(), TotalAmount: decimal.NewFromInt(100), PaidAmount: decimal.Zero}
	f.invoices.byID[inv.ID] = inv

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-50)} {
		_, _, err := f.svc.RecordPayment(context.Background(), inv.ID, amount, "cash", nil, "cashier")
		if apperr.KindOf(err) != apperr.KindInvalidAmount {
			t.Errorf("amount %s: kind = %v, want KindInvalidAmount", amount, apperr.KindOf(err))
		}
	}
	if len(f.payments.byInvoice[inv.ID]) != 0 {
		t.Errorf("payments recorded = %d, want 0", len(f.payments.byInvoice[inv.ID]))
	}
}

func TestRecordPaymentOverpaymentRejected(t *testing.T) {
	f := newFixture(Config{})
	inv := &Invoice{ID: uuid.New(), Status: InvoicePartial,
		TotalAmount: decimal.NewFromInt(1000), PaidAmount: decimal.NewFromInt(900)}
	f.invoices.byID[inv.ID] = inv

	_, _, err := f.svc.RecordPayment(context.Background(), inv.ID, decimal.NewFromInt(200), "cash", nil, "cashier")
	if apperr.KindOf(err) != apperr.KindOverpayment {
		t.Fatalf("kind = %v, want KindOverpayment", apperr.KindOf(err))
	}
	if !inv.PaidAmount.Equal(decimal.NewFromInt(900)) {
		t.Errorf("paid = %s, want unchanged 900", inv.PaidAmount)
	}
}

func TestRecordPaymentOverpaymentAllowedByPolicy(t *testing.T) {
	f := newFixture(Config{AllowOverpayment: true})
	inv := &Invoice{ID: uuid.New(), Status: InvoicePartial,
		TotalAmount: decimal.NewFromInt(1000), PaidAmount: decimal.NewFromInt(900)}
	f.invoices.byID[inv.ID] = inv

	got, _, err := f.svc.RecordPayment(context.Background(), inv.ID, decimal.NewFromInt(200), "cash", nil, "cashier")
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	if got.Status != InvoicePaid {
		t.Errorf("status = %s, want PAID", got.Status)
	}
	if !got.PaidAmount.Equal(decimal.NewFromInt(1100)) {
		t.Errorf("paid = %s, want 1100", got.PaidAmount)
	}
}

func TestAppendItemsForProcedureIdempotent(t *testing.T) {
	f := newFixture(Config{})
	ctx := context.Background()

	patientID := uuid.New()
	proc := &treatmentplan.PlanProcedure{
		ID:            uuid.New(),
		PlanID:        uuid.New(),
		Name:          "Extraction",
		EstimatedCost: decimal.NewFromInt(350),
		Status:        treatmentplan.ProcedureCompleted,
	}

	inv, items, err := f.svc.AppendItemsForProcedure(ctx, patientID, proc, nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if !inv.TotalAmount.Equal(decimal.NewFromInt(350)) {
		t.Errorf("total = %s, want 350", inv.TotalAmount)
	}

	inv2, items2, err := f.svc.AppendItemsForProcedure(ctx, patientID, proc, nil)
	if err != nil {
		t.Fatalf("second append: %v", err)
	}
	if len(items2) != 0 {
		t.Errorf("second append produced %d items, want 0", len(items2))
	}
	if inv2.ID != inv.ID {
		t.Errorf("second append created a new invoice")
	}
	if !inv2.TotalAmount.Equal(decimal.NewFromInt(350)) {
		t.Errorf("total = %s, want unchanged 350", inv2.TotalAmount)
	}
}

func TestAppendItemsAlreadyInvoicedCreatesNoInvoice(t *testing.T) {
	f := newFixture(Config{})
	ctx := context.Background()

	patientID := uuid.New()
	proc := &treatmentplan.PlanProcedure{
		ID:            uuid.New(),
		PlanID:        uuid.New(),
		Name:          "Extraction",
		EstimatedCost: decimal.NewFromInt(350),
		Status:        treatmentplan.ProcedureCompleted,
	}

	inv, _, err := f.svc.AppendItemsForProcedure(ctx, patientID, proc, nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	// Fully pay the invoice so the plan has no open invoice left.
	inv.PaidAmount = inv.TotalAmount
	inv.Status = InvoicePaid

	inv2, items2, err := f.svc.AppendItemsForProcedure(ctx, patientID, proc, nil)
	if err != nil {
		t.Fatalf("second append: %v", err)
	}
	if len(items2) != 0 {
		t.Errorf("second append produced %d items, want 0", len(items2))
	}
	if inv2 != nil {
		t.Errorf("second append returned invoice %v, want nil", inv2.ID)
	}
	if len(f.invoices.byID) != 1 {
		t.Errorf("invoices = %d, want 1; no empty invoice may appear for an already invoiced procedure", len(f.invoices.byID))
	}
}
