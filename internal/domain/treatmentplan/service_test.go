package treatmentplan

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinova/hms/internal/domain/catalog"
	"github.com/clinova/hms/pkg/apperr"
)

type mockPlanRepo struct {
	byID map[uuid.UUID]*TreatmentPlan
}

func newMockPlanRepo() *mockPlanRepo {
	return &mockPlanRepo{byID: make(map[uuid.UUID]*TreatmentPlan)}
}

func (m *mockPlanRepo) Create(_ context.Context, p *TreatmentPlan) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.byID[p.ID] = p
	return nil
}

func (m *mockPlanRepo) GetByID(_ context.Context, id uuid.UUID) (*TreatmentPlan, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	return p, nil
}

func (m *mockPlanRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*TreatmentPlan, error) {
	return m.GetByID(ctx, id)
}

func (m *mockPlanRepo) UpdateStatus(_ context.Context, id uuid.UUID, status PlanStatus) error {
	p, ok := m.byID[id]
	if !ok {
		return errors.New("no rows")
	}
	p.Status = status
	return nil
}

func (m *mockPlanRepo) UpdateEstimatedCost(_ context.Context, id uuid.UUID, cost decimal.Decimal) error {
	p, ok := m.byID[id]
	if !ok {
		return errors.New("no rows")
	}
	p.EstimatedCost = cost
	return nil
}

func (m *mockPlanRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*TreatmentPlan, int, error) {
	var out []*TreatmentPlan
	for _, p := range m.byID {
		if p.PatientID == patientID {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (m *mockPlanRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]*TreatmentPlan, int, error) {
	var out []*TreatmentPlan
	for _, p := range m.byID {
		if p.DoctorID == doctorID {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

type mockProcedureRepo struct {
	byID map[uuid.UUID]*PlanProcedure
}

func newMockProcedureRepo() *mockProcedureRepo {
	return &mockProcedureRepo{byID: make(map[uuid.UUID]*PlanProcedure)}
}

func (m *mockProcedureRepo) Create(_ context.Context, p *PlanProcedure) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.byID[p.ID] = p
	return nil
}

func (m *mockProcedureRepo) GetByID(_ context.Context, id uuid.UUID) (*PlanProcedure, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	return p, nil
}

func (m *mockProcedureRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*PlanProcedure, error) {
	return m.GetByID(ctx, id)
}

func (m *mockProcedureRepo) ListByPlan(_ context.Context, planID uuid.UUID) ([]*PlanProcedure, error) {
	var out []*PlanProcedure
	for _, p := range m.byID {
		if p.PlanID == planID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProcedureRepo) UpdateStatus(_ context.Context, id uuid.UUID, status ProcedureStatus) error {
	p, ok := m.byID[id]
	if !ok {
		return errors.New("no rows")
	}
	p.Status = status
	return nil
}

func (m *mockProcedureRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.byID, id)
	return nil
}

type mockUsageRepo struct {
	byProc map[uuid.UUID][]*MaterialUsage
}

func newMockUsageRepo() *mockUsageRepo {
	return &mockUsageRepo{byProc: make(map[uuid.UUID][]*MaterialUsage)}
}

func (m *mockUsageRepo) Create(_ context.Context, u *MaterialUsage) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	m.byProc[u.ProcedureID] = append(m.byProc[u.ProcedureID], u)
	return nil
}

func (m *mockUsageRepo) ListByProcedure(_ context.Context, procedureID uuid.UUID) ([]*MaterialUsage, error) {
	return m.byProc[procedureID], nil
}

type mockCatalog struct {
	defs map[uuid.UUID]*catalog.ProcedureDefinition
	mats map[uuid.UUID]*catalog.Material
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{
		defs: make(map[uuid.UUID]*catalog.ProcedureDefinition),
		mats: make(map[uuid.UUID]*catalog.Material),
	}
}

func (m *mockCatalog) GetProcedureDefinition(_ context.Context, id uuid.UUID) (*catalog.ProcedureDefinition, error) {
	d, ok := m.defs[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	return d, nil
}

func (m *mockCatalog) GetMaterial(_ context.Context, id uuid.UUID) (*catalog.Material, error) {
	mat, ok := m.mats[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	return mat, nil
}

func passthroughTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixture struct {
	svc   *Service
	plans *mockPlanRepo
	procs *mockProcedureRepo
	uses  *mockUsageRepo
	cat   *mockCatalog
}

func newFixture() *fixture {
	plans := newMockPlanRepo()
	procs := newMockProcedureRepo()
	uses := newMockUsageRepo()
	cat := newMockCatalog()
	return &fixture{
		svc:   NewService(plans, procs, uses, cat, passthroughTx),
		plans: plans,
		procs: procs,
		uses:  uses,
		cat:   cat,
	}
}

func (f *fixture) seedPlan(status PlanStatus) *TreatmentPlan {
	p := &TreatmentPlan{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		DoctorID:  uuid.New(),
		Title:     "Restoration",
		Status:    status,
	}
	f.plans.byID[p.ID] = p
	return p
}

func (f *fixture) seedDef(cost int64) *catalog.ProcedureDefinition {
	d := &catalog.ProcedureDefinition{
		ID:          uuid.New(),
		Code:        "FILL",
		Name:        "Composite filling",
		DefaultCost: decimal.NewFromInt(cost),
		Active:      true,
	}
	f.cat.defs[d.ID] = d
	return d
}

func TestCreatePlan(t *testing.T) {
	f := newFixture()

	p := &TreatmentPlan{PatientID: uuid.New(), DoctorID: uuid.New(), Title: "Crown work"}
	if err := f.svc.CreatePlan(context.Background(), p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Status != PlanDraft {
		t.Errorf("status = %s, want DRAFT", p.Status)
	}
	if !p.EstimatedCost.Equal(decimal.Zero) {
		t.Errorf("estimated cost = %s, want 0", p.EstimatedCost)
	}

	err := f.svc.CreatePlan(context.Background(), &TreatmentPlan{PatientID: uuid.New(), DoctorID: uuid.New()})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("kind = %v, want KindValidation", apperr.KindOf(err))
	}
}

func TestAddProcedureDefaultsCostAndRecomputes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	plan := f.seedPlan(PlanDraft)
	def := f.seedDef(500)

	proc, err := f.svc.AddProcedure(ctx, plan.ID, AddProcedureInput{CatalogID: def.ID})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !proc.EstimatedCost.Equal(decimal.NewFromInt(500)) {
		t.Errorf("cost = %s, want catalog default 500", proc.EstimatedCost)
	}
	if proc.Status != ProcedurePending {
		t.Errorf("status = %s, want PENDING", proc.Status)
	}
	if !plan.EstimatedCost.Equal(decimal.NewFromInt(500)) {
		t.Errorf("plan cost = %s, want 500", plan.EstimatedCost)
	}

	override := decimal.NewFromInt(750)
	if _, err := f.svc.AddProcedure(ctx, plan.ID, AddProcedureInput{CatalogID: def.ID, Cost: &override}); err != nil {
		t.Fatalf("add with override: %v", err)
	}
	if !plan.EstimatedCost.Equal(decimal.NewFromInt(1250)) {
		t.Errorf("plan cost = %s, want 1250", plan.EstimatedCost)
	}
}

func TestAddProcedurePriorityAndToothReference(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	plan := f.seedPlan(PlanDraft)
	def := f.seedDef(200)

	proc, err := f.svc.AddProcedure(ctx, plan.ID, AddProcedureInput{CatalogID: def.ID})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if proc.Priority != PriorityMedium {
		t.Errorf("priority = %s, want default MEDIUM", proc.Priority)
	}
	if proc.ToothReference != nil {
		t.Errorf("tooth reference = %v, want nil", *proc.ToothReference)
	}

	tooth := "UL6"
	proc, err = f.svc.AddProcedure(ctx, plan.ID, AddProcedureInput{
		CatalogID:      def.ID,
		Priority:       PriorityHigh,
		ToothReference: &tooth,
	})
	if err != nil {
		t.Fatalf("add with priority: %v", err)
	}
	if proc.Priority != PriorityHigh {
		t.Errorf("priority = %s, want HIGH", proc.Priority)
	}
	if proc.ToothReference == nil || *proc.ToothReference != "UL6" {
		t.Errorf("tooth reference = %v, want UL6", proc.ToothReference)
	}

	_, err = f.svc.AddProcedure(ctx, plan.ID, AddProcedureInput{CatalogID: def.ID, Priority: "URGENT"})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("kind = %v, want KindValidation for bad priority", apperr.KindOf(err))
	}
}

func TestAddProcedureRejectedWhenPlanNotEditable(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	def := f.seedDef(100)

	for _, status := range []PlanStatus{PlanInProgress, PlanCompleted, PlanCancelled} {
		plan := f.seedPlan(status)
		_, err := f.svc.AddProcedure(ctx, plan.ID, AddProcedureInput{CatalogID: def.ID})
		if apperr.KindOf(err) != apperr.KindStateConflict {
			t.Errorf("plan %s: kind = %v, want KindStateConflict", status, apperr.KindOf(err))
		}
	}
}

func TestRemoveProcedureRecomputes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	plan := f.seedPlan(PlanDraft)
	def := f.seedDef(300)
	p1, err := f.svc.AddProcedure(ctx, plan.ID, AddProcedureInput{CatalogID: def.ID})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := f.svc.AddProcedure(ctx, plan.ID, AddProcedureInput{CatalogID: def.ID}); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := f.svc.RemoveProcedure(ctx, p1.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !plan.EstimatedCost.Equal(decimal.NewFromInt(300)) {
		t.Errorf("plan cost = %s, want 300", plan.EstimatedCost)
	}

	// only pending procedures can be removed
	p3, _ := f.svc.AddProcedure(ctx, plan.ID, AddProcedureInput{CatalogID: def.ID})
	f.procs.byID[p3.ID].Status = ProcedureInProgress
	err = f.svc.RemoveProcedure(ctx, p3.ID)
	if apperr.KindOf(err) != apperr.KindStateConflict {
		t.Errorf("kind = %v, want KindStateConflict", apperr.KindOf(err))
	}
}

func TestCancelProcedureDropsItsCost(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	plan := f.seedPlan(PlanDraft)
	def := f.seedDef(400)
	p1, _ := f.svc.AddProcedure(ctx, plan.ID, AddProcedureInput{CatalogID: def.ID})
	if _, err := f.svc.AddProcedure(ctx, plan.ID, AddProcedureInput{CatalogID: def.ID}); err != nil {
		t.Fatalf("add: %v", err)
	}

	if _, err := f.svc.CancelProcedure(ctx, p1.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !plan.EstimatedCost.Equal(decimal.NewFromInt(400)) {
		t.Errorf("plan cost = %s, want 400", plan.EstimatedCost)
	}

	// terminal, cannot cancel again
	_, err := f.svc.CancelProcedure(ctx, p1.ID)
	if apperr.KindOf(err) != apperr.KindStateConflict {
		t.Errorf("kind = %v, want KindStateConflict", apperr.KindOf(err))
	}
}

func TestAddMaterialUsageSnapshotsCost(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	plan := f.seedPlan(PlanDraft)
	def := f.seedDef(200)
	proc, _ := f.svc.AddProcedure(ctx, plan.ID, AddProcedureInput{CatalogID: def.ID})

	mat := &catalog.Material{ID: uuid.New(), Code: "COMP", Name: "Composite resin", Unit: "g",
		UnitCost: decimal.NewFromFloat(12.50), Active: true}
	f.cat.mats[mat.ID] = mat

	usage, err := f.svc.AddMaterialUsage(ctx, proc.ID, mat.ID, 3)
	if err != nil {
		t.Fatalf("add usage: %v", err)
	}
	if !usage.UnitCostAtTime.Equal(decimal.NewFromFloat(12.50)) {
		t.Errorf("snapshot = %s, want 12.50", usage.UnitCostAtTime)
	}
	if !usage.TotalCost.Equal(decimal.NewFromFloat(37.50)) {
		t.Errorf("total = %s, want 37.50", usage.TotalCost)
	}

	// raising the catalog price later must not touch the snapshot
	mat.UnitCost = decimal.NewFromInt(99)
	if !usage.UnitCostAtTime.Equal(decimal.NewFromFloat(12.50)) {
		t.Errorf("snapshot changed after catalog edit")
	}
}

func TestAddMaterialUsageRejectedOnTerminalProcedure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	plan := f.seedPlan(PlanDraft)
	def := f.seedDef(200)
	proc, _ := f.svc.AddProcedure(ctx, plan.ID, AddProcedureInput{CatalogID: def.ID})
	f.procs.byID[proc.ID].Status = ProcedureCompleted

	mat := &catalog.Material{ID: uuid.New(), UnitCost: decimal.NewFromInt(1)}
	f.cat.mats[mat.ID] = mat

	_, err := f.svc.AddMaterialUsage(ctx, proc.ID, mat.ID, 1)
	if apperr.KindOf(err) != apperr.KindStateConflict {
		t.Errorf("kind = %v, want KindStateConflict", apperr.KindOf(err))
	}
}

func TestUpdatePlanStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	plan := f.seedPlan(PlanDraft)

	p, err := f.svc.UpdatePlanStatus(ctx, plan.ID, PlanApproved)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if p.Status != PlanApproved {
		t.Errorf("status = %s, want APPROVED", p.Status)
	}

	// skipping APPROVED -> COMPLETED is not allowed
	_, err = f.svc.UpdatePlanStatus(ctx, plan.ID, PlanCompleted)
	if apperr.KindOf(err) != apperr.KindStateConflict {
		t.Errorf("kind = %v, want KindStateConflict", apperr.KindOf(err))
	}

	if _, err := f.svc.UpdatePlanStatus(ctx, plan.ID, PlanCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err = f.svc.UpdatePlanStatus(ctx, plan.ID, PlanApproved)
	if apperr.KindOf(err) != apperr.KindStateConflict {
		t.Errorf("kind = %v, want KindStateConflict", apperr.KindOf(err))
	}
}

func TestStartProcedureMovesPlanInProgress(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	plan := f.seedPlan(PlanApproved)
	def := f.seedDef(100)
	proc, _ := f.svc.AddProcedure(ctx, plan.ID, AddProcedureInput{CatalogID: def.ID})

	got, err := f.svc.StartProcedure(ctx, proc.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if got.Status != ProcedureInProgress {
		t.Errorf("procedure status = %s, want IN_PROGRESS", got.Status)
	}
	if plan.Status != PlanInProgress {
		t.Errorf("plan status = %s, want IN_PROGRESS", plan.Status)
	}

	_, err = f.svc.StartProcedure(ctx, proc.ID)
	if apperr.KindOf(err) != apperr.KindStateConflict {
		t.Errorf("kind = %v, want KindStateConflict", apperr.KindOf(err))
	}
}

func TestGetPlanLoadsProceduresAndUsages(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	plan := f.seedPlan(PlanDraft)
	def := f.seedDef(100)
	proc, _ := f.svc.AddProcedure(ctx, plan.ID, AddProcedureInput{CatalogID: def.ID})

	mat := &catalog.Material{ID: uuid.New(), UnitCost: decimal.NewFromInt(2)}
	f.cat.mats[mat.ID] = mat
	if _, err := f.svc.AddMaterialUsage(ctx, proc.ID, mat.ID, 4); err != nil {
		t.Fatalf("usage: %v", err)
	}

	got, err := f.svc.GetPlan(ctx, plan.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Procedures) != 1 {
		t.Fatalf("procedures = %d, want 1", len(got.Procedures))
	}
	if len(got.Procedures[0].Usages) != 1 {
		t.Errorf("usages = %d, want 1", len(got.Procedures[0].Usages))
	}
}
