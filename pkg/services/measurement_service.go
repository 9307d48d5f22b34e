package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitalog-inc/vitalog-engine/pkg/apperrors"
	"github.com/vitalog-inc/vitalog-engine/pkg/logging"
	"github.com/vitalog-inc/vitalog-engine/pkg/models"
	"github.com/vitalog-inc/vitalog-engine/pkg/repositories"
)

// LogMeasurementInput carries one observation to record. Value is a pointer
// so that zero is accepted as a legitimate reading; only an absent value is
// rejected. OccurrenceID, when set, links the measurement to the reminder
// occurrence it satisfies.
type LogMeasurementInput struct {
	UserID       uuid.UUID
	VariableID   uuid.UUID
	Value        *float64
	UnitID       *uuid.UUID
	Timestamp    *time.Time
	Notes        string
	OccurrenceID *uuid.UUID
}

// UpdateMeasurementInput carries an edit to an existing measurement. The
// timestamp and ownership of the measurement never change.
type UpdateMeasurementInput struct {
	Value  float64
	UnitID uuid.UUID
	Notes  string
}

// MeasurementService records, edits, and soft-deletes observations. It is
// the only writer that can establish the occurrence linkage the timeline
// reconciler depends on.
type MeasurementService interface {
	// Log validates the input, resolves the user-variable binding and unit,
	// writes the measurement, and - when an occurrence id is supplied -
	// completes the referenced reminder occurrence. The occurrence linkage
	// is best-effort relative to the measurement write: losing the
	// completion race logs a warning but never fails the call, because the
	// measurement is already durable by then.
	Log(ctx context.Context, input *LogMeasurementInput) (uuid.UUID, error)

	Update(ctx context.Context, userID, measurementID uuid.UUID, input *UpdateMeasurementInput) error

	Delete(ctx context.Context, userID, measurementID uuid.UUID) error
}

// TimelineInvalidator is notified when a write changes a user's day so
// cached reconciliations can be dropped. A nil invalidator disables
// notification.
type TimelineInvalidator interface {
	InvalidateDay(ctx context.Context, userID uuid.UUID, day time.Time)
}

type measurementService struct {
	measurementRepo repositories.MeasurementRepository
	reminderRepo    repositories.ReminderRepository
	binder          UserVariableBinder
	invalidator     TimelineInvalidator
	logger          *zap.Logger
	now             func() time.Time
}

// NewMeasurementService creates a new MeasurementService. invalidator may be
// nil when no timeline cache is configured.
func NewMeasurementService(
	measurementRepo repositories.MeasurementRepository,
	reminderRepo repositories.ReminderRepository,
	binder UserVariableBinder,
	invalidator TimelineInvalidator,
	logger *zap.Logger,
) MeasurementService {
	return &measurementService{
		measurementRepo: measurementRepo,
		reminderRepo:    reminderRepo,
		binder:          binder,
		invalidator:     invalidator,
		logger:          logger.Named("measurement-service"),
		now:             time.Now,
	}
}

var _ MeasurementService = (*measurementService)(nil)

func (s *measurementService) Log(ctx context.Context, input *LogMeasurementInput) (uuid.UUID, error) {
	if input.UserID == uuid.Nil {
		return uuid.Nil, apperrors.NewValidationError("user_id", "is required")
	}
	if input.VariableID == uuid.Nil {
		return uuid.Nil, apperrors.NewValidationError("variable_id", "is required")
	}
	if input.Value == nil {
		return uuid.Nil, apperrors.NewValidationError("value", "is required")
	}

	userVariableID, unitID, err := s.binder.ResolveOrCreate(ctx, input.UserID, input.VariableID, input.UnitID)
	if err != nil {
		s.logger.Error("Failed to resolve user variable binding",
			zap.String("user_id", input.UserID.String()),
			zap.String("variable_id", input.VariableID.String()),
			zap.Error(err))
		return uuid.Nil, fmt.Errorf("resolve user variable: %w", err)
	}

	startAt := s.now()
	if input.Timestamp != nil {
		startAt = *input.Timestamp
	}

	measurement := &models.Measurement{
		UserID:         input.UserID,
		UserVariableID: userVariableID,
		VariableID:     input.VariableID,
		Value:          *input.Value,
		UnitID:         unitID,
		StartAt:        startAt,
		Notes:          input.Notes,
	}
	if err := s.measurementRepo.Insert(ctx, measurement); err != nil {
		s.logger.Error("Failed to insert measurement",
			zap.String("user_id", input.UserID.String()),
			zap.String("user_variable_id", userVariableID.String()),
			zap.Error(err))
		return uuid.Nil, fmt.Errorf("insert measurement: %w", err)
	}

	s.logger.Info("Logged measurement",
		zap.String("measurement_id", measurement.ID.String()),
		zap.String("user_variable_id", userVariableID.String()),
		zap.Time("start_at", startAt),
		zap.Int("notes_len", logging.NoteSummary(input.Notes)))

	// The measurement is durable from here on; the linkage below must not
	// undo that.
	if input.OccurrenceID != nil {
		s.completeOccurrence(ctx, input.UserID, *input.OccurrenceID, measurement.ID)
	}

	s.invalidateDay(ctx, input.UserID, startAt)

	return measurement.ID, nil
}

// completeOccurrence performs the conditional pending -> completed
// transition. Zero matched rows means a concurrent call already resolved the
// occurrence (or it was never pending for this user); that is logged and
// absorbed.
func (s *measurementService) completeOccurrence(ctx context.Context, userID, occurrenceID, measurementID uuid.UUID) {
	transition, err := s.reminderRepo.CompleteOccurrence(ctx, userID, occurrenceID, measurementID, s.now())
	if err != nil {
		s.logger.Warn("Failed to complete reminder occurrence, measurement kept",
			zap.String("occurrence_id", occurrenceID.String()),
			zap.String("measurement_id", measurementID.String()),
			zap.Error(err))
		return
	}

	if !transition.Matched {
		s.logger.Warn("Reminder occurrence no longer pending, linkage skipped",
			zap.String("occurrence_id", occurrenceID.String()),
			zap.String("measurement_id", measurementID.String()))
		return
	}

	s.logger.Info("Completed reminder occurrence",
		zap.String("occurrence_id", occurrenceID.String()),
		zap.String("measurement_id", measurementID.String()))

	s.invalidateDay(ctx, userID, transition.TriggerAt)
}

func (s *measurementService) Update(ctx context.Context, userID, measurementID uuid.UUID, input *UpdateMeasurementInput) error {
	if input.UnitID == uuid.Nil {
		return apperrors.NewValidationError("unit_id", "is required")
	}

	existing, err := s.measurementRepo.GetByID(ctx, userID, measurementID)
	if err != nil {
		return fmt.Errorf("get measurement: %w", err)
	}
	if existing == nil {
		return apperrors.ErrNotFound
	}

	if err := s.measurementRepo.Update(ctx, userID, measurementID, input.Value, input.UnitID, input.Notes); err != nil {
		return fmt.Errorf("update measurement: %w", err)
	}

	s.logger.Info("Updated measurement",
		zap.String("measurement_id", measurementID.String()))

	s.invalidateDay(ctx, userID, existing.StartAt)
	return nil
}

func (s *measurementService) Delete(ctx context.Context, userID, measurementID uuid.UUID) error {
	existing, err := s.measurementRepo.GetByID(ctx, userID, measurementID)
	if err != nil {
		return fmt.Errorf("get measurement: %w", err)
	}
	if existing == nil {
		return apperrors.ErrNotFound
	}

	if err := s.measurementRepo.SoftDelete(ctx, userID, measurementID); err != nil {
		return fmt.Errorf("delete measurement: %w", err)
	}

	s.logger.Info("Deleted measurement",
		zap.String("measurement_id", measurementID.String()))

	s.invalidateDay(ctx, userID, existing.StartAt)
	return nil
}

func (s *measurementService) invalidateDay(ctx context.Context, userID uuid.UUID, day time.Time) {
	if s.invalidator == nil {
		return
	}
	s.invalidator.InvalidateDay(ctx, userID, day)
}
