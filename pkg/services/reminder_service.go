package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitalog-inc/vitalog-engine/pkg/apperrors"
	"github.com/vitalog-inc/vitalog-engine/pkg/repositories"
)

// ReminderService exposes the user-initiated occurrence transitions that do
// not involve a measurement. Completion with a measurement goes through the
// MeasurementService instead.
type ReminderService interface {
	// SkipOccurrence transitions a pending occurrence to skipped with an
	// optional reason. Unlike the completion linkage during measurement
	// logging, a skip has no durable side effect to protect, so a
	// non-pending occurrence is surfaced as apperrors.ErrOccurrenceNotPending.
	SkipOccurrence(ctx context.Context, userID, occurrenceID uuid.UUID, reason string) error
}

type reminderService struct {
	reminderRepo repositories.ReminderRepository
	invalidator  TimelineInvalidator
	logger       *zap.Logger
}

// NewReminderService creates a new ReminderService. invalidator may be nil
// when no timeline cache is configured.
func NewReminderService(
	reminderRepo repositories.ReminderRepository,
	invalidator TimelineInvalidator,
	logger *zap.Logger,
) ReminderService {
	return &reminderService{
		reminderRepo: reminderRepo,
		invalidator:  invalidator,
		logger:       logger.Named("reminder-service"),
	}
}

var _ ReminderService = (*reminderService)(nil)

func (s *reminderService) SkipOccurrence(ctx context.Context, userID, occurrenceID uuid.UUID, reason string) error {
	if occurrenceID == uuid.Nil {
		return apperrors.NewValidationError("occurrence_id", "is required")
	}

	transition, err := s.reminderRepo.SkipOccurrence(ctx, userID, occurrenceID, reason)
	if err != nil {
		s.logger.Error("Failed to skip reminder occurrence",
			zap.String("occurrence_id", occurrenceID.String()),
			zap.Error(err))
		return fmt.Errorf("skip occurrence: %w", err)
	}

	if !transition.Matched {
		return apperrors.ErrOccurrenceNotPending
	}

	s.logger.Info("Skipped reminder occurrence",
		zap.String("occurrence_id", occurrenceID.String()))

	if s.invalidator != nil {
		s.invalidator.InvalidateDay(ctx, userID, transition.TriggerAt)
	}

	return nil
}
