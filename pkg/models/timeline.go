package models

import (
	"time"

	"github.com/google/uuid"
)

// TimelineSource identifies which stream a timeline item came from.
type TimelineSource string

const (
	TimelineSourceMeasurement TimelineSource = "measurement"
	TimelineSourceReminder    TimelineSource = "reminder"
)

// TimelineStatus is the display status of a timeline item. Directly logged
// measurements are "recorded"; reminder-sourced items carry their occurrence
// status.
type TimelineStatus string

const (
	TimelineStatusRecorded  TimelineStatus = "recorded"
	TimelineStatusPending   TimelineStatus = "pending"
	TimelineStatusCompleted TimelineStatus = "completed"
	TimelineStatusSkipped   TimelineStatus = "skipped"
)

// TimelineItem is one entry in a user's merged daily view. It is derived
// fresh on every reconciliation and never persisted. For reminder-sourced
// items ScheduleID and OccurrenceID identify the owning rows.
type TimelineItem struct {
	ID             uuid.UUID      `json:"id"`
	Source         TimelineSource `json:"source"`
	Timestamp      time.Time      `json:"timestamp"`
	Status         TimelineStatus `json:"status"`
	UserVariableID uuid.UUID      `json:"user_variable_id"`
	VariableID     uuid.UUID      `json:"variable_id"`
	Name           string         `json:"name"`
	Emoji          string         `json:"emoji,omitempty"`
	UnitName       string         `json:"unit_name,omitempty"`
	Value          *float64       `json:"value,omitempty"`
	Notes          string         `json:"notes,omitempty"`
	ScheduleID     *uuid.UUID     `json:"schedule_id,omitempty"`
	OccurrenceID   *uuid.UUID     `json:"occurrence_id,omitempty"`
}
