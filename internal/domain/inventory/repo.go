package inventory

import (
	"context"

	"github.com/google/uuid"
)

// StockRepository persists movements and balances. RecordMovement must run
// inside a transaction: it joins one found in context, otherwise it opens
// its own.
type StockRepository interface {
	RecordMovement(ctx context.Context, e *StockLedgerEntry) error
	OnHand(ctx context.Context, materialID uuid.UUID) (int, error)
	Balance(ctx context.Context, materialID uuid.UUID) (int, error)
	LowStock(ctx context.Context) ([]*LowStockItem, error)
	History(ctx context.Context, materialID uuid.UUID, limit, offset int) ([]*StockLedgerEntry, int, error)
}
