package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vitalog-inc/vitalog-engine/pkg/models"
	"github.com/vitalog-inc/vitalog-engine/pkg/repositories"
)

// Configurable repository mocks shared by the service tests.

type mockVariableRepo struct {
	variable *models.Variable
	getErr   error

	getCalls int
}

func (m *mockVariableRepo) GetByID(ctx context.Context, variableID uuid.UUID) (*models.Variable, error) {
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.variable, nil
}

type mockUserVariableRepo struct {
	existing   *models.UserVariable
	getErr     error
	upsertErr  error
	displays   map[uuid.UUID]*models.VariableDisplay
	displayErr error

	// upsertResult, when set, overrides the row returned by Upsert to
	// simulate losing the insert race to a concurrent caller.
	upsertResult *models.UserVariable

	capturedUpsert *models.UserVariable
}

func (m *mockUserVariableRepo) GetByUserAndVariable(ctx context.Context, userID, variableID uuid.UUID) (*models.UserVariable, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.existing, nil
}

func (m *mockUserVariableRepo) Upsert(ctx context.Context, uv *models.UserVariable) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	captured := *uv
	m.capturedUpsert = &captured
	if m.upsertResult != nil {
		uv.ID = m.upsertResult.ID
		uv.PreferredUnitID = m.upsertResult.PreferredUnitID
	} else if uv.ID == uuid.Nil {
		uv.ID = uuid.New()
	}
	return nil
}

func (m *mockUserVariableRepo) GetDisplayDetails(ctx context.Context, userVariableIDs []uuid.UUID) (map[uuid.UUID]*models.VariableDisplay, error) {
	if m.displayErr != nil {
		return nil, m.displayErr
	}
	if m.displays == nil {
		return map[uuid.UUID]*models.VariableDisplay{}, nil
	}
	return m.displays, nil
}

type mockMeasurementRepo struct {
	insertErr error
	listed    []*models.MeasurementWithUnit
	listErr   error
	got       *models.Measurement
	getErr    error
	updateErr error
	deleteErr error

	inserted      *models.Measurement
	capturedValue float64
	capturedUnit  uuid.UUID
	capturedNotes string
}

func (m *mockMeasurementRepo) Insert(ctx context.Context, measurement *models.Measurement) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	measurement.ID = uuid.New()
	measurement.CreatedAt = time.Now()
	measurement.UpdatedAt = measurement.CreatedAt
	captured := *measurement
	m.inserted = &captured
	return nil
}

func (m *mockMeasurementRepo) ListForDay(ctx context.Context, userID uuid.UUID, userVariableIDs []uuid.UUID, start, end time.Time) ([]*models.MeasurementWithUnit, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.listed, nil
}

func (m *mockMeasurementRepo) GetByID(ctx context.Context, userID, measurementID uuid.UUID) (*models.Measurement, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.got, nil
}

func (m *mockMeasurementRepo) Update(ctx context.Context, userID, measurementID uuid.UUID, value float64, unitID uuid.UUID, notes string) error {
	m.capturedValue = value
	m.capturedUnit = unitID
	m.capturedNotes = notes
	return m.updateErr
}

func (m *mockMeasurementRepo) SoftDelete(ctx context.Context, userID, measurementID uuid.UUID) error {
	return m.deleteErr
}

type mockReminderRepo struct {
	bindings    map[uuid.UUID]uuid.UUID
	bindingsErr error
	occurrences []*models.ReminderOccurrence
	occListErr  error

	completeTransition *repositories.OccurrenceTransition
	completeErr        error
	skipTransition     *repositories.OccurrenceTransition
	skipErr            error

	completeCalls         int
	capturedMeasurementID uuid.UUID
	capturedSkipReason    string
}

func (m *mockReminderRepo) ListScheduleBindings(ctx context.Context, userID uuid.UUID, userVariableIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	if m.bindingsErr != nil {
		return nil, m.bindingsErr
	}
	if m.bindings == nil {
		return map[uuid.UUID]uuid.UUID{}, nil
	}
	return m.bindings, nil
}

func (m *mockReminderRepo) ListOccurrencesForDay(ctx context.Context, userID uuid.UUID, scheduleIDs []uuid.UUID, start, end time.Time) ([]*models.ReminderOccurrence, error) {
	if m.occListErr != nil {
		return nil, m.occListErr
	}
	return m.occurrences, nil
}

func (m *mockReminderRepo) CompleteOccurrence(ctx context.Context, userID, occurrenceID, measurementID uuid.UUID, completedAt time.Time) (*repositories.OccurrenceTransition, error) {
	m.completeCalls++
	m.capturedMeasurementID = measurementID
	if m.completeErr != nil {
		return nil, m.completeErr
	}
	if m.completeTransition != nil {
		return m.completeTransition, nil
	}
	return &repositories.OccurrenceTransition{Matched: true, TriggerAt: completedAt}, nil
}

func (m *mockReminderRepo) SkipOccurrence(ctx context.Context, userID, occurrenceID uuid.UUID, reason string) (*repositories.OccurrenceTransition, error) {
	m.capturedSkipReason = reason
	if m.skipErr != nil {
		return nil, m.skipErr
	}
	if m.skipTransition != nil {
		return m.skipTransition, nil
	}
	return &repositories.OccurrenceTransition{Matched: true, TriggerAt: time.Now()}, nil
}

type mockInvalidator struct {
	invalidated []time.Time
}

func (m *mockInvalidator) InvalidateDay(ctx context.Context, userID uuid.UUID, day time.Time) {
	m.invalidated = append(m.invalidated, day)
}
