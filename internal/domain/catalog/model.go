package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProcedureDefinition maps to the procedure_catalog table. Plans copy the
// default cost at the moment a procedure is added; later edits here never
// reprice existing plans.
type ProcedureDefinition struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	Code            string          `db:"code" json:"code"`
	Name            string          `db:"name" json:"name"`
	Description     *string         `db:"description" json:"description,omitempty"`
	DefaultCost     decimal.Decimal `db:"default_cost" json:"default_cost"`
	DurationMinutes *int            `db:"duration_minutes" json:"duration_minutes,omitempty"`
	Active          bool            `db:"active" json:"active"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// Material maps to the materials table. UnitCost is the current list cost;
// usages snapshot it, the stock ledger holds quantities.
type Material struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	Code         string          `db:"code" json:"code"`
	Name         string          `db:"name" json:"name"`
	Unit         string          `db:"unit" json:"unit"`
	UnitCost     decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	ReorderLevel int             `db:"reorder_level" json:"reorder_level"`
	Active       bool            `db:"active" json:"active"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}
