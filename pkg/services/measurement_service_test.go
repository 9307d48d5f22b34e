package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitalog-inc/vitalog-engine/pkg/apperrors"
	"github.com/vitalog-inc/vitalog-engine/pkg/models"
	"github.com/vitalog-inc/vitalog-engine/pkg/repositories"
)

type measurementFixture struct {
	measurementRepo *mockMeasurementRepo
	reminderRepo    *mockReminderRepo
	uvRepo          *mockUserVariableRepo
	invalidator     *mockInvalidator
	service         MeasurementService
}

func newMeasurementFixture(t *testing.T) *measurementFixture {
	t.Helper()
	preferred := uuid.New()
	f := &measurementFixture{
		measurementRepo: &mockMeasurementRepo{},
		reminderRepo:    &mockReminderRepo{},
		uvRepo: &mockUserVariableRepo{
			existing: &models.UserVariable{ID: uuid.New(), PreferredUnitID: &preferred},
		},
		invalidator: &mockInvalidator{},
	}
	binder := NewUserVariableBinder(f.uvRepo, &mockVariableRepo{}, zap.NewNop())
	f.service = NewMeasurementService(f.measurementRepo, f.reminderRepo, binder, f.invalidator, zap.NewNop())
	return f
}

func floatPtr(v float64) *float64 { return &v }

func validLogInput() *LogMeasurementInput {
	return &LogMeasurementInput{
		UserID:     uuid.New(),
		VariableID: uuid.New(),
		Value:      floatPtr(98.6),
	}
}

func TestLog_Success(t *testing.T) {
	f := newMeasurementFixture(t)

	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	input := validLogInput()
	input.Timestamp = &ts
	input.Notes = "after breakfast"

	id, err := f.service.Log(context.Background(), input)
	if err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if id == uuid.Nil {
		t.Fatal("expected a measurement id")
	}

	inserted := f.measurementRepo.inserted
	if inserted == nil {
		t.Fatal("expected an insert")
	}
	if inserted.Value != 98.6 {
		t.Errorf("expected value 98.6, got %v", inserted.Value)
	}
	if !inserted.StartAt.Equal(ts) {
		t.Errorf("expected start_at %v, got %v", ts, inserted.StartAt)
	}
	if inserted.UserVariableID != f.uvRepo.existing.ID {
		t.Errorf("expected binding %v, got %v", f.uvRepo.existing.ID, inserted.UserVariableID)
	}
	if inserted.UnitID != *f.uvRepo.existing.PreferredUnitID {
		t.Errorf("expected preferred unit, got %v", inserted.UnitID)
	}
	if len(f.invalidator.invalidated) != 1 {
		t.Errorf("expected one cache invalidation, got %d", len(f.invalidator.invalidated))
	}
}

func TestLog_ZeroValueAccepted(t *testing.T) {
	f := newMeasurementFixture(t)

	input := validLogInput()
	input.Value = floatPtr(0)

	if _, err := f.service.Log(context.Background(), input); err != nil {
		t.Fatalf("zero is a legitimate reading, got error: %v", err)
	}
	if f.measurementRepo.inserted.Value != 0 {
		t.Errorf("expected value 0, got %v", f.measurementRepo.inserted.Value)
	}
}

func TestLog_Validation(t *testing.T) {
	f := newMeasurementFixture(t)

	tests := []struct {
		name   string
		mutate func(*LogMeasurementInput)
		field  string
	}{
		{"missing user", func(in *LogMeasurementInput) { in.UserID = uuid.Nil }, "user_id"},
		{"missing variable", func(in *LogMeasurementInput) { in.VariableID = uuid.Nil }, "variable_id"},
		{"missing value", func(in *LogMeasurementInput) { in.Value = nil }, "value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validLogInput()
			tt.mutate(input)

			_, err := f.service.Log(context.Background(), input)
			var verr *apperrors.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, verr.Field)
			}
		})
	}
}

func TestLog_DefaultsTimestampToNow(t *testing.T) {
	f := newMeasurementFixture(t)
	frozen := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	f.service.(*measurementService).now = func() time.Time { return frozen }

	if _, err := f.service.Log(context.Background(), validLogInput()); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if !f.measurementRepo.inserted.StartAt.Equal(frozen) {
		t.Errorf("expected default start_at %v, got %v", frozen, f.measurementRepo.inserted.StartAt)
	}
}

func TestLog_UnresolvedUnit(t *testing.T) {
	f := newMeasurementFixture(t)
	f.uvRepo.existing = nil

	_, err := f.service.Log(context.Background(), validLogInput())
	if !errors.Is(err, apperrors.ErrUnresolvedUnit) {
		t.Fatalf("expected ErrUnresolvedUnit, got %v", err)
	}
	if f.measurementRepo.inserted != nil {
		t.Error("no measurement should be written without a unit")
	}
}

func TestLog_InsertError(t *testing.T) {
	f := newMeasurementFixture(t)
	f.measurementRepo.insertErr = errors.New("disk full")

	_, err := f.service.Log(context.Background(), validLogInput())
	if err == nil {
		t.Fatal("expected insert error to propagate")
	}
	if len(f.invalidator.invalidated) != 0 {
		t.Error("failed write must not invalidate the cache")
	}
}

func TestLog_CompletesLinkedOccurrence(t *testing.T) {
	f := newMeasurementFixture(t)

	trigger := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	f.reminderRepo.completeTransition = &repositories.OccurrenceTransition{Matched: true, TriggerAt: trigger}

	input := validLogInput()
	occID := uuid.New()
	input.OccurrenceID = &occID

	id, err := f.service.Log(context.Background(), input)
	if err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	if f.reminderRepo.completeCalls != 1 {
		t.Fatalf("expected one completion attempt, got %d", f.reminderRepo.completeCalls)
	}
	if f.reminderRepo.capturedMeasurementID != id {
		t.Errorf("occurrence should link the new measurement %v, got %v", id, f.reminderRepo.capturedMeasurementID)
	}
	// One invalidation for the measurement day, one for the occurrence day.
	if len(f.invalidator.invalidated) != 2 {
		t.Errorf("expected two invalidations, got %d", len(f.invalidator.invalidated))
	}
}

func TestLog_LostCompletionRaceKeepsMeasurement(t *testing.T) {
	f := newMeasurementFixture(t)
	f.reminderRepo.completeTransition = &repositories.OccurrenceTransition{Matched: false}

	input := validLogInput()
	occID := uuid.New()
	input.OccurrenceID = &occID

	id, err := f.service.Log(context.Background(), input)
	if err != nil {
		t.Fatalf("losing the completion race must not fail the log call: %v", err)
	}
	if id == uuid.Nil {
		t.Fatal("expected a measurement id")
	}
	if f.measurementRepo.inserted == nil {
		t.Fatal("measurement must stay durable")
	}
}

func TestLog_CompletionErrorKeepsMeasurement(t *testing.T) {
	f := newMeasurementFixture(t)
	f.reminderRepo.completeErr = errors.New("connection reset")

	input := validLogInput()
	occID := uuid.New()
	input.OccurrenceID = &occID

	if _, err := f.service.Log(context.Background(), input); err != nil {
		t.Fatalf("completion failure must not fail the log call: %v", err)
	}
}

func TestLog_NoOccurrenceNoCompletion(t *testing.T) {
	f := newMeasurementFixture(t)

	if _, err := f.service.Log(context.Background(), validLogInput()); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if f.reminderRepo.completeCalls != 0 {
		t.Errorf("no occurrence id supplied, expected no completion attempt, got %d", f.reminderRepo.completeCalls)
	}
}

func TestLog_NilInvalidator(t *testing.T) {
	preferred := uuid.New()
	uvRepo := &mockUserVariableRepo{existing: &models.UserVariable{ID: uuid.New(), PreferredUnitID: &preferred}}
	binder := NewUserVariableBinder(uvRepo, &mockVariableRepo{}, zap.NewNop())
	service := NewMeasurementService(&mockMeasurementRepo{}, &mockReminderRepo{}, binder, nil, zap.NewNop())

	if _, err := service.Log(context.Background(), validLogInput()); err != nil {
		t.Fatalf("nil invalidator must be tolerated: %v", err)
	}
}

func TestUpdate_Success(t *testing.T) {
	f := newMeasurementFixture(t)
	startAt := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	f.measurementRepo.got = &models.Measurement{ID: uuid.New(), StartAt: startAt}

	unitID := uuid.New()
	err := f.service.Update(context.Background(), uuid.New(), uuid.New(), &UpdateMeasurementInput{
		Value:  72,
		UnitID: unitID,
		Notes:  "corrected",
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if f.measurementRepo.capturedValue != 72 {
		t.Errorf("expected value 72, got %v", f.measurementRepo.capturedValue)
	}
	if f.measurementRepo.capturedUnit != unitID {
		t.Errorf("expected unit %v, got %v", unitID, f.measurementRepo.capturedUnit)
	}
	if len(f.invalidator.invalidated) != 1 || !f.invalidator.invalidated[0].Equal(startAt) {
		t.Error("update should invalidate the day of the original timestamp")
	}
}

func TestUpdate_NotFound(t *testing.T) {
	f := newMeasurementFixture(t)
	f.measurementRepo.got = nil

	err := f.service.Update(context.Background(), uuid.New(), uuid.New(), &UpdateMeasurementInput{
		Value:  1,
		UnitID: uuid.New(),
	})
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdate_MissingUnit(t *testing.T) {
	f := newMeasurementFixture(t)

	err := f.service.Update(context.Background(), uuid.New(), uuid.New(), &UpdateMeasurementInput{Value: 1})
	if !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDelete_Success(t *testing.T) {
	f := newMeasurementFixture(t)
	startAt := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	f.measurementRepo.got = &models.Measurement{ID: uuid.New(), StartAt: startAt}

	if err := f.service.Delete(context.Background(), uuid.New(), uuid.New()); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(f.invalidator.invalidated) != 1 {
		t.Error("delete should invalidate the measurement's day")
	}
}

func TestDelete_NotFound(t *testing.T) {
	f := newMeasurementFixture(t)
	f.measurementRepo.got = nil

	err := f.service.Delete(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete_RepoError(t *testing.T) {
	f := newMeasurementFixture(t)
	f.measurementRepo.got = &models.Measurement{ID: uuid.New()}
	f.measurementRepo.deleteErr = errors.New("database error")

	if err := f.service.Delete(context.Background(), uuid.New(), uuid.New()); err == nil {
		t.Fatal("expected delete error to propagate")
	}
}
