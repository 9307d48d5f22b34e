package models

import (
	"time"

	"github.com/google/uuid"
)

// UserVariable binds a user to a variable from the directory and carries the
// user's unit preference. At most one active binding exists per
// (user, variable) pair, enforced by a unique constraint in the store.
// Bindings are created lazily on first measurement or first reminder schedule
// and are never deleted by the engine (the soft-delete flag is managed
// elsewhere).
type UserVariable struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	VariableID      uuid.UUID  `json:"variable_id"`
	PreferredUnitID *uuid.UUID `json:"preferred_unit_id,omitempty"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
