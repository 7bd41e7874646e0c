package inventory

import (
	"time"

	"github.com/google/uuid"
)

type MovementKind string

const (
	MovementIn         MovementKind = "IN"
	MovementOut        MovementKind = "OUT"
	MovementAdjustment MovementKind = "ADJUSTMENT"
	MovementReturn     MovementKind = "RETURN"
)

func (k MovementKind) Valid() bool {
	switch k {
	case MovementIn, MovementOut, MovementAdjustment, MovementReturn:
		return true
	}
	return false
}

// Delta returns the signed effect of a movement of this kind on on-hand
// quantity. Quantities are stored unsigned; the kind carries the sign.
func (k MovementKind) Delta(quantity int) int {
	if k == MovementOut {
		return -quantity
	}
	return quantity
}

// StockLedgerEntry is one immutable movement. Corrections are new entries,
// never edits.
type StockLedgerEntry struct {
	ID            uuid.UUID    `db:"id" json:"id"`
	MaterialID    uuid.UUID    `db:"material_id" json:"material_id"`
	Kind          MovementKind `db:"kind" json:"kind"`
	Quantity      int          `db:"quantity" json:"quantity"`
	ReferenceType *string      `db:"reference_type" json:"reference_type,omitempty"`
	ReferenceID   *uuid.UUID   `db:"reference_id" json:"reference_id,omitempty"`
	Note          *string      `db:"note" json:"note,omitempty"`
	CreatedBy     string       `db:"created_by" json:"created_by"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
}

// LowStockItem pairs a material with its current on-hand count when that
// count has fallen to or below the material's reorder level.
type LowStockItem struct {
	MaterialID   uuid.UUID `db:"material_id" json:"material_id"`
	Code         string    `db:"code" json:"code"`
	Name         string    `db:"name" json:"name"`
	Unit         string    `db:"unit" json:"unit"`
	OnHand       int       `db:"on_hand_quantity" json:"on_hand_quantity"`
	ReorderLevel int       `db:"reorder_level" json:"reorder_level"`
}
