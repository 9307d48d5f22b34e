package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vitalog-inc/vitalog-engine/pkg/apperrors"
	"github.com/vitalog-inc/vitalog-engine/pkg/models"
	"github.com/vitalog-inc/vitalog-engine/pkg/repositories"
)

// TimelineService merges the two independently stored event streams for a
// user - directly logged measurements and scheduled reminder occurrences -
// into a single time-ordered daily view.
type TimelineService interface {
	// ReconcileDay returns the user's merged timeline for the local calendar
	// day containing `day`, over the given bindings. A measurement linked
	// from a completed or skipped occurrence appears exactly once, attached
	// to the reminder-sourced item. Display-details failures abort the call
	// with apperrors.ErrReferenceData; failures of either source stream
	// degrade that stream to empty. An empty result is valid.
	ReconcileDay(ctx context.Context, userID uuid.UUID, userVariableIDs []uuid.UUID, day time.Time) ([]*models.TimelineItem, error)
}

type timelineService struct {
	measurementRepo  repositories.MeasurementRepository
	reminderRepo     repositories.ReminderRepository
	userVariableRepo repositories.UserVariableRepository
	logger           *zap.Logger
}

// NewTimelineService creates a new TimelineService.
func NewTimelineService(
	measurementRepo repositories.MeasurementRepository,
	reminderRepo repositories.ReminderRepository,
	userVariableRepo repositories.UserVariableRepository,
	logger *zap.Logger,
) TimelineService {
	return &timelineService{
		measurementRepo:  measurementRepo,
		reminderRepo:     reminderRepo,
		userVariableRepo: userVariableRepo,
		logger:           logger.Named("timeline-service"),
	}
}

var _ TimelineService = (*timelineService)(nil)

// DayBounds returns the [start, end) boundaries of the local calendar day
// containing t, in t's location.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

func (s *timelineService) ReconcileDay(ctx context.Context, userID uuid.UUID, userVariableIDs []uuid.UUID, day time.Time) ([]*models.TimelineItem, error) {
	dayStart, dayEnd := DayBounds(day)

	// Schedule ownership map first: occurrences are attributed to bindings
	// through their schedule. An empty map just means no reminder-sourced
	// items; a fetch failure degrades the same way.
	scheduleBindings, err := s.reminderRepo.ListScheduleBindings(ctx, userID, userVariableIDs)
	if err != nil {
		s.logger.Warn("Failed to fetch reminder schedules, continuing without reminder items",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		scheduleBindings = map[uuid.UUID]uuid.UUID{}
	}
	scheduleIDs := make([]uuid.UUID, 0, len(scheduleBindings))
	for id := range scheduleBindings {
		scheduleIDs = append(scheduleIDs, id)
	}

	// The three fetches are independent reads; issue them concurrently.
	// Only the display-details fetch is allowed to fail the call: without
	// names and units nothing can be rendered meaningfully. The two source
	// streams degrade to empty instead (partial-result policy).
	var (
		measurements []*models.MeasurementWithUnit
		occurrences  []*models.ReminderOccurrence
		displays     map[uuid.UUID]*models.VariableDisplay
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fetched, err := s.measurementRepo.ListForDay(gctx, userID, userVariableIDs, dayStart, dayEnd)
		if err != nil {
			s.logger.Warn("Failed to fetch measurements, continuing with empty set",
				zap.String("user_id", userID.String()),
				zap.Time("day_start", dayStart),
				zap.Error(err))
			return nil
		}
		measurements = fetched
		return nil
	})
	g.Go(func() error {
		fetched, err := s.reminderRepo.ListOccurrencesForDay(gctx, userID, scheduleIDs, dayStart, dayEnd)
		if err != nil {
			s.logger.Warn("Failed to fetch reminder occurrences, continuing with empty set",
				zap.String("user_id", userID.String()),
				zap.Time("day_start", dayStart),
				zap.Error(err))
			return nil
		}
		occurrences = fetched
		return nil
	})
	g.Go(func() error {
		fetched, err := s.userVariableRepo.GetDisplayDetails(gctx, userVariableIDs)
		if err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrReferenceData, err)
		}
		displays = fetched
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("Failed to fetch display details",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return nil, err
	}

	// Measurements already claimed by a resolved occurrence must not also
	// appear as standalone items.
	linkedMeasurementIDs := make(map[uuid.UUID]struct{})
	for _, occ := range occurrences {
		if occ.MeasurementID == nil {
			continue
		}
		if occ.Status == models.OccurrenceStatusCompleted || occ.Status == models.OccurrenceStatusSkipped {
			linkedMeasurementIDs[*occ.MeasurementID] = struct{}{}
		}
	}

	measurementsByID := make(map[uuid.UUID]*models.MeasurementWithUnit, len(measurements))
	for _, m := range measurements {
		measurementsByID[m.ID] = m
	}

	items := make([]*models.TimelineItem, 0, len(measurements)+len(occurrences))
	for _, m := range measurements {
		if _, linked := linkedMeasurementIDs[m.ID]; linked {
			continue
		}
		item, ok := s.measurementItem(m, displays)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	for _, occ := range occurrences {
		item, ok := s.occurrenceItem(occ, scheduleBindings, displays, measurementsByID)
		if !ok {
			continue
		}
		items = append(items, item)
	}

	// Stable: equal timestamps keep fetch order, so repeated reads are
	// deterministic.
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp.Before(items[j].Timestamp)
	})

	return items, nil
}

func (s *timelineService) measurementItem(m *models.MeasurementWithUnit, displays map[uuid.UUID]*models.VariableDisplay) (*models.TimelineItem, bool) {
	display, ok := displays[m.UserVariableID]
	if !ok {
		s.logger.Warn("Missing display details for measurement, item skipped",
			zap.String("measurement_id", m.ID.String()),
			zap.String("user_variable_id", m.UserVariableID.String()))
		return nil, false
	}

	value := m.Value
	unitName := m.UnitName
	if unitName == "" {
		unitName = display.UnitName
	}

	return &models.TimelineItem{
		ID:             m.ID,
		Source:         models.TimelineSourceMeasurement,
		Timestamp:      m.StartAt,
		Status:         models.TimelineStatusRecorded,
		UserVariableID: m.UserVariableID,
		VariableID:     m.VariableID,
		Name:           display.Name,
		Emoji:          display.Emoji,
		UnitName:       unitName,
		Value:          &value,
		Notes:          m.Notes,
	}, true
}

func (s *timelineService) occurrenceItem(
	occ *models.ReminderOccurrence,
	scheduleBindings map[uuid.UUID]uuid.UUID,
	displays map[uuid.UUID]*models.VariableDisplay,
	measurementsByID map[uuid.UUID]*models.MeasurementWithUnit,
) (*models.TimelineItem, bool) {
	userVariableID, ok := scheduleBindings[occ.ScheduleID]
	if !ok {
		s.logger.Warn("Occurrence schedule not attributable to a binding, item skipped",
			zap.String("occurrence_id", occ.ID.String()),
			zap.String("schedule_id", occ.ScheduleID.String()))
		return nil, false
	}

	display, ok := displays[userVariableID]
	if !ok {
		s.logger.Warn("Missing display details for occurrence, item skipped",
			zap.String("occurrence_id", occ.ID.String()),
			zap.String("user_variable_id", userVariableID.String()))
		return nil, false
	}

	var status models.TimelineStatus
	switch occ.Status {
	case models.OccurrenceStatusPending:
		status = models.TimelineStatusPending
	case models.OccurrenceStatusCompleted:
		status = models.TimelineStatusCompleted
	case models.OccurrenceStatusSkipped:
		status = models.TimelineStatusSkipped
	default:
		s.logger.Warn("Occurrence has invalid status, item skipped",
			zap.String("occurrence_id", occ.ID.String()),
			zap.String("status", string(occ.Status)))
		return nil, false
	}

	scheduleID := occ.ScheduleID
	occurrenceID := occ.ID
	item := &models.TimelineItem{
		ID:             occ.ID,
		Source:         models.TimelineSourceReminder,
		Timestamp:      occ.TriggerAt,
		Status:         status,
		UserVariableID: userVariableID,
		VariableID:     display.VariableID,
		Name:           display.Name,
		Emoji:          display.Emoji,
		UnitName:       display.UnitName,
		ScheduleID:     &scheduleID,
		OccurrenceID:   &occurrenceID,
	}

	// A completed occurrence adopts the linked measurement's value and
	// notes when that measurement is part of the day's fetch. A linkage to
	// another calendar day leaves the item without a value rather than
	// widening the fetch window.
	if occ.Status == models.OccurrenceStatusCompleted && occ.MeasurementID != nil {
		if m, ok := measurementsByID[*occ.MeasurementID]; ok {
			value := m.Value
			item.Value = &value
			item.Notes = m.Notes
			if m.UnitName != "" {
				item.UnitName = m.UnitName
			}
		}
	}

	return item, true
}
