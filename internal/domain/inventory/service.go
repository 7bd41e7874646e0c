package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinova/hms/pkg/apperr"
)

type Service struct {
	stock StockRepository
}

func NewService(stock StockRepository) *Service {
	return &Service{stock: stock}
}

// RecordMovement validates and persists one ledger movement. The quantity
// is an unsigned magnitude; the kind determines the direction.
func (s *Service) RecordMovement(ctx context.Context, e *StockLedgerEntry) error {
	if e.MaterialID == uuid.Nil {
		return apperr.New(apperr.KindValidation, "material_id is required")
	}
	if !e.Kind.Valid() {
		return apperr.New(apperr.KindValidation, fmt.Sprintf("invalid movement kind %q", e.Kind))
	}
	if e.Quantity <= 0 {
		return apperr.New(apperr.KindValidation, "quantity must be positive")
	}
	if e.CreatedBy == "" {
		return apperr.New(apperr.KindValidation, "created_by is required")
	}
	return s.stock.RecordMovement(ctx, e)
}

func (s *Service) OnHand(ctx context.Context, materialID uuid.UUID) (int, error) {
	return s.stock.OnHand(ctx, materialID)
}

func (s *Service) Balance(ctx context.Context, materialID uuid.UUID) (int, error) {
	return s.stock.Balance(ctx, materialID)
}

// AuditBalance recomputes the ledger sum and compares it with the cached
// counter. A mismatch means a movement bypassed the ledger.
func (s *Service) AuditBalance(ctx context.Context, materialID uuid.UUID) (onHand, balance int, err error) {
	onHand, err = s.stock.OnHand(ctx, materialID)
	if err != nil {
		return 0, 0, err
	}
	balance, err = s.stock.Balance(ctx, materialID)
	if err != nil {
		return 0, 0, err
	}
	if onHand != balance {
		return onHand, balance, apperr.New(apperr.KindStateConflict,
			fmt.Sprintf("stock counter %d does not match ledger sum %d", onHand, balance))
	}
	return onHand, balance, nil
}

func (s *Service) LowStock(ctx context.Context) ([]*LowStockItem, error) {
	return s.stock.LowStock(ctx)
}

func (s *Service) History(ctx context.Context, materialID uuid.UUID, limit, offset int) ([]*StockLedgerEntry, int, error) {
	return s.stock.History(ctx, materialID, limit, offset)
}
