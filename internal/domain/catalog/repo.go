package catalog

import (
	"context"

	"github.com/google/uuid"
)

type ProcedureDefinitionRepository interface {
	Create(ctx context.Context, p *ProcedureDefinition) error
	GetByID(ctx context.Context, id uuid.UUID) (*ProcedureDefinition, error)
	GetByCode(ctx context.Context, code string) (*ProcedureDefinition, error)
	Update(ctx context.Context, p *ProcedureDefinition) error
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]*ProcedureDefinition, int, error)
}

type MaterialRepository interface {
	Create(ctx context.Context, m *Material) error
	GetByID(ctx context.Context, id uuid.UUID) (*Material, error)
	GetByCode(ctx context.Context, code string) (*Material, error)
	Update(ctx context.Context, m *Material) error
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Material, int, error)
}
