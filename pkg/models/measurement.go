package models

import (
	"time"

	"github.com/google/uuid"
)

// Measurement is a single logged observation of a user variable: a numeric
// value in a unit at a point in time. The variable id is denormalized from the
// binding so day queries do not need an extra join. Value, unit, and notes may
// be edited after the fact; the timestamp and ownership never change.
type Measurement struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	UserVariableID uuid.UUID  `json:"user_variable_id"`
	VariableID     uuid.UUID  `json:"variable_id"`
	Value          float64    `json:"value"`
	UnitID         uuid.UUID  `json:"unit_id"`
	StartAt        time.Time  `json:"start_at"`
	Notes          string     `json:"notes,omitempty"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// MeasurementWithUnit is a measurement joined with its unit's display name,
// as returned by the day-window fetch.
type MeasurementWithUnit struct {
	Measurement
	UnitName string `json:"unit_name,omitempty"`
}
