package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OccurrenceStatus is the closed set of states a reminder occurrence can be
// in. Unknown values coming out of the store survive the scan; readers drop
// the affected row instead of failing the whole fetch.
type OccurrenceStatus string

const (
	OccurrenceStatusPending   OccurrenceStatus = "pending"
	OccurrenceStatusCompleted OccurrenceStatus = "completed"
	OccurrenceStatusSkipped   OccurrenceStatus = "skipped"
	OccurrenceStatusError     OccurrenceStatus = "error"
)

// ParseOccurrenceStatus validates a raw status value from the store.
func ParseOccurrenceStatus(raw string) (OccurrenceStatus, error) {
	switch OccurrenceStatus(raw) {
	case OccurrenceStatusPending, OccurrenceStatusCompleted, OccurrenceStatusSkipped, OccurrenceStatusError:
		return OccurrenceStatus(raw), nil
	default:
		return "", fmt.Errorf("unknown occurrence status %q", raw)
	}
}

// ReminderSchedule is a recurring rule bound to exactly one user variable.
// The recurrence expression is opaque to the engine; occurrence generation
// happens elsewhere. Schedules are read-only input to the timeline.
type ReminderSchedule struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	UserVariableID  uuid.UUID  `json:"user_variable_id"`
	Recurrence      string     `json:"recurrence"`
	TimeOfDay       string     `json:"time_of_day"`
	DefaultValue    *float64   `json:"default_value,omitempty"`
	Active          bool       `json:"active"`
	StartDate       time.Time  `json:"start_date"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	TitleTemplate   string     `json:"title_template,omitempty"`
	MessageTemplate string     `json:"message_template,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ReminderOccurrence is one concrete, dated instance of a schedule. The
// engine transitions it pending -> completed (when a measurement satisfies
// it) or pending -> skipped; both states are terminal. A completed occurrence
// records the satisfying measurement's id, a skipped one may record a reason.
type ReminderOccurrence struct {
	ID            uuid.UUID        `json:"id"`
	ScheduleID    uuid.UUID        `json:"schedule_id"`
	UserID        uuid.UUID        `json:"user_id"`
	TriggerAt     time.Time        `json:"trigger_at"`
	Status        OccurrenceStatus `json:"status"`
	MeasurementID *uuid.UUID       `json:"measurement_id,omitempty"`
	SkipReason    string           `json:"skip_reason,omitempty"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}
