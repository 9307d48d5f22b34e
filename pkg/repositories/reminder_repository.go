package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vitalog-inc/vitalog-engine/pkg/database"
	"github.com/vitalog-inc/vitalog-engine/pkg/models"
)

// OccurrenceTransition reports the outcome of a conditional occurrence
// status update. Matched is false when the occurrence was not pending (or not
// owned by the user) at update time.
type OccurrenceTransition struct {
	Matched   bool
	TriggerAt time.Time
}

// ReminderRepository provides data access for reminder schedules and their
// generated occurrences. Occurrence rows are created externally; this
// repository only reads them and performs the two terminal transitions.
type ReminderRepository interface {
	// ListScheduleBindings returns scheduleID -> userVariableID for the
	// user's schedules over the given bindings.
	ListScheduleBindings(ctx context.Context, userID uuid.UUID, userVariableIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)

	// ListOccurrencesForDay returns the user's occurrences for the given
	// schedules with trigger timestamps within [start, end).
	ListOccurrencesForDay(ctx context.Context, userID uuid.UUID, scheduleIDs []uuid.UUID, start, end time.Time) ([]*models.ReminderOccurrence, error)

	// CompleteOccurrence transitions pending -> completed, recording the
	// satisfying measurement. The update is conditional on the occurrence
	// being pending and owned by userID; a non-matching update returns
	// Matched=false rather than an error.
	CompleteOccurrence(ctx context.Context, userID, occurrenceID, measurementID uuid.UUID, completedAt time.Time) (*OccurrenceTransition, error)

	// SkipOccurrence transitions pending -> skipped with an optional reason,
	// under the same conditional contract as CompleteOccurrence.
	SkipOccurrence(ctx context.Context, userID, occurrenceID uuid.UUID, reason string) (*OccurrenceTransition, error)
}

type reminderRepository struct {
	db *database.DB
}

// NewReminderRepository creates a new ReminderRepository.
func NewReminderRepository(db *database.DB) ReminderRepository {
	return &reminderRepository{db: db}
}

var _ ReminderRepository = (*reminderRepository)(nil)

func (r *reminderRepository) ListScheduleBindings(ctx context.Context, userID uuid.UUID, userVariableIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	bindings := make(map[uuid.UUID]uuid.UUID)
	if len(userVariableIDs) == 0 {
		return bindings, nil
	}

	query := `
		SELECT id, user_variable_id
		FROM reminder_schedules
		WHERE user_id = $1 AND user_variable_id = ANY($2)`

	rows, err := r.db.Query(ctx, query, userID, userVariableIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminder schedules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var scheduleID, userVariableID uuid.UUID
		if err := rows.Scan(&scheduleID, &userVariableID); err != nil {
			return nil, fmt.Errorf("failed to scan schedule binding: %w", err)
		}
		bindings[scheduleID] = userVariableID
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedule bindings: %w", err)
	}

	return bindings, nil
}

func (r *reminderRepository) ListOccurrencesForDay(ctx context.Context, userID uuid.UUID, scheduleIDs []uuid.UUID, start, end time.Time) ([]*models.ReminderOccurrence, error) {
	if len(scheduleIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, schedule_id, user_id, trigger_at, status, measurement_id,
		       skip_reason, completed_at, created_at, updated_at
		FROM reminder_occurrences
		WHERE user_id = $1
		  AND schedule_id = ANY($2)
		  AND trigger_at >= $3 AND trigger_at < $4
		ORDER BY trigger_at`

	rows, err := r.db.Query(ctx, query, userID, scheduleIDs, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminder occurrences: %w", err)
	}
	defer rows.Close()

	var occurrences []*models.ReminderOccurrence
	for rows.Next() {
		occ, err := scanOccurrence(rows)
		if err != nil {
			return nil, err
		}
		occurrences = append(occurrences, occ)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reminder occurrences: %w", err)
	}

	return occurrences, nil
}

func (r *reminderRepository) CompleteOccurrence(ctx context.Context, userID, occurrenceID, measurementID uuid.UUID, completedAt time.Time) (*OccurrenceTransition, error) {
	query := `
		UPDATE reminder_occurrences
		SET status = 'completed', measurement_id = $3, completed_at = $4, updated_at = now()
		WHERE id = $1 AND user_id = $2 AND status = 'pending'
		RETURNING trigger_at`

	var triggerAt time.Time
	err := r.db.QueryRow(ctx, query, occurrenceID, userID, measurementID, completedAt).Scan(&triggerAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			// Lost the race or the occurrence was never pending for this user.
			return &OccurrenceTransition{Matched: false}, nil
		}
		return nil, fmt.Errorf("failed to complete occurrence: %w", err)
	}

	return &OccurrenceTransition{Matched: true, TriggerAt: triggerAt}, nil
}

func (r *reminderRepository) SkipOccurrence(ctx context.Context, userID, occurrenceID uuid.UUID, reason string) (*OccurrenceTransition, error) {
	query := `
		UPDATE reminder_occurrences
		SET status = 'skipped', skip_reason = $3, completed_at = now(), updated_at = now()
		WHERE id = $1 AND user_id = $2 AND status = 'pending'
		RETURNING trigger_at`

	var triggerAt time.Time
	err := r.db.QueryRow(ctx, query, occurrenceID, userID, reason).Scan(&triggerAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return &OccurrenceTransition{Matched: false}, nil
		}
		return nil, fmt.Errorf("failed to skip occurrence: %w", err)
	}

	return &OccurrenceTransition{Matched: true, TriggerAt: triggerAt}, nil
}

// scanOccurrence decodes one occurrence row.
func scanOccurrence(row pgx.Row) (*models.ReminderOccurrence, error) {
	var occ models.ReminderOccurrence
	var rawStatus string

	err := row.Scan(
		&occ.ID,
		&occ.ScheduleID,
		&occ.UserID,
		&occ.TriggerAt,
		&rawStatus,
		&occ.MeasurementID,
		&occ.SkipReason,
		&occ.CompletedAt,
		&occ.CreatedAt,
		&occ.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan reminder occurrence: %w", err)
	}

	// Unknown statuses are carried through as-is; the reconciler drops such
	// items individually instead of failing the whole fetch.
	if status, err := models.ParseOccurrenceStatus(rawStatus); err == nil {
		occ.Status = status
	} else {
		occ.Status = models.OccurrenceStatus(rawStatus)
	}

	return &occ, nil
}
