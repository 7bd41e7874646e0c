package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinova/hms/pkg/apperr"
)

type Service struct {
	procedures ProcedureDefinitionRepository
	materials  MaterialRepository
}

func NewService(procedures ProcedureDefinitionRepository, materials MaterialRepository) *Service {
	return &Service{procedures: procedures, materials: materials}
}

// -- Procedure catalog --

func (s *Service) CreateProcedureDefinition(ctx context.Context, p *ProcedureDefinition) error {
	if p.Code == "" {
		return apperr.New(apperr.KindValidation, "code is required")
	}
	if p.Name == "" {
		return apperr.New(apperr.KindValidation, "name is required")
	}
	if p.DefaultCost.IsNegative() {
		return apperr.New(apperr.KindValidation, "default_cost must not be negative")
	}
	if _, err := s.procedures.GetByCode(ctx, p.Code); err == nil {
		return apperr.New(apperr.KindStateConflict,
			fmt.Sprintf("procedure code %q already in use", p.Code))
	}
	return s.procedures.Create(ctx, p)
}

func (s *Service) GetProcedureDefinition(ctx context.Context, id uuid.UUID) (*ProcedureDefinition, error) {
	p, err := s.procedures.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, err, "procedure definition not found")
	}
	return p, nil
}

func (s *Service) UpdateProcedureDefinition(ctx context.Context, p *ProcedureDefinition) error {
	if p.DefaultCost.IsNegative() {
		return apperr.New(apperr.KindValidation, "default_cost must not be negative")
	}
	return s.procedures.Update(ctx, p)
}

func (s *Service) ListProcedureDefinitions(ctx context.Context, activeOnly bool, limit, offset int) ([]*ProcedureDefinition, int, error) {
	return s.procedures.List(ctx, activeOnly, limit, offset)
}

// -- Materials --

func (s *Service) CreateMaterial(ctx context.Context, m *Material) error {
	if m.Code == "" {
		return apperr.New(apperr.KindValidation, "code is required")
	}
	if m.Name == "" {
		return apperr.New(apperr.KindValidation, "name is required")
	}
	if m.Unit == "" {
		m.Unit = "unit"
	}
	if m.UnitCost.IsNegative() {
		return apperr.New(apperr.KindValidation, "unit_cost must not be negative")
	}
	if m.ReorderLevel < 0 {
		return apperr.New(apperr.KindValidation, "reorder_level must not be negative")
	}
	if _, err := s.materials.GetByCode(ctx, m.Code); err == nil {
		return apperr.New(apperr.KindStateConflict,
			fmt.Sprintf("material code %q already in use", m.Code))
	}
	return s.materials.Create(ctx, m)
}

func (s *Service) GetMaterial(ctx context.Context, id uuid.UUID) (*Material, error) {
	m, err := s.materials.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, err, "material not found")
	}
	return m, nil
}

func (s *Service) UpdateMaterial(ctx context.Context, m *Material) error {
	if m.UnitCost.IsNegative() {
		return apperr.New(apperr.KindValidation, "unit_cost must not be negative")
	}
	if m.ReorderLevel < 0 {
		return apperr.New(apperr.KindValidation, "reorder_level must not be negative")
	}
	return s.materials.Update(ctx, m)
}

func (s *Service) ListMaterials(ctx context.Context, activeOnly bool, limit, offset int) ([]*Material, int, error) {
	return s.materials.List(ctx, activeOnly, limit, offset)
}
