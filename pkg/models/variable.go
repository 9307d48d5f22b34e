package models

import (
	"github.com/google/uuid"
)

// Variable is an immutable catalog entry describing a trackable health factor
// (a symptom, medication, or activity). Variables live in the shared directory
// and are read-only to the engine.
type Variable struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	CategoryID    uuid.UUID  `json:"category_id"`
	DefaultUnitID *uuid.UUID `json:"default_unit_id,omitempty"`
	Emoji         string     `json:"emoji,omitempty"`
	Description   string     `json:"description,omitempty"`
}

// Unit is a measurement unit from the reference catalog.
type Unit struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Abbreviation string    `json:"abbreviation,omitempty"`
}

// VariableDisplay carries the denormalized display fields for one
// user-variable binding: everything the timeline needs to render an item.
type VariableDisplay struct {
	UserVariableID uuid.UUID `json:"user_variable_id"`
	VariableID     uuid.UUID `json:"variable_id"`
	Name           string    `json:"name"`
	Emoji          string    `json:"emoji,omitempty"`
	CategoryName   string    `json:"category_name,omitempty"`
	UnitName       string    `json:"unit_name,omitempty"`
}
