package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vitalog-inc/vitalog-engine/pkg/apperrors"
	"github.com/vitalog-inc/vitalog-engine/pkg/database"
	"github.com/vitalog-inc/vitalog-engine/pkg/models"
)

// MeasurementRepository provides data access for logged observations.
type MeasurementRepository interface {
	Insert(ctx context.Context, m *models.Measurement) error

	// ListForDay returns the user's non-deleted measurements for the given
	// bindings within [start, end), each joined with its unit name.
	ListForDay(ctx context.Context, userID uuid.UUID, userVariableIDs []uuid.UUID, start, end time.Time) ([]*models.MeasurementWithUnit, error)

	GetByID(ctx context.Context, userID, measurementID uuid.UUID) (*models.Measurement, error)

	// Update edits value, unit, and notes. Timestamp and ownership are
	// immutable.
	Update(ctx context.Context, userID, measurementID uuid.UUID, value float64, unitID uuid.UUID, notes string) error

	// SoftDelete marks the measurement deleted without removing the row.
	SoftDelete(ctx context.Context, userID, measurementID uuid.UUID) error
}

type measurementRepository struct {
	db *database.DB
}

// NewMeasurementRepository creates a new MeasurementRepository.
func NewMeasurementRepository(db *database.DB) MeasurementRepository {
	return &measurementRepository{db: db}
}

var _ MeasurementRepository = (*measurementRepository)(nil)

func (r *measurementRepository) Insert(ctx context.Context, m *models.Measurement) error {
	query := `
		INSERT INTO measurements (
			user_id, user_variable_id, variable_id, value, unit_id, start_at, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		m.UserID,
		m.UserVariableID,
		m.VariableID,
		m.Value,
		m.UnitID,
		m.StartAt,
		m.Notes,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert measurement: %w", err)
	}

	return nil
}

func (r *measurementRepository) ListForDay(ctx context.Context, userID uuid.UUID, userVariableIDs []uuid.UUID, start, end time.Time) ([]*models.MeasurementWithUnit, error) {
	if len(userVariableIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT m.id, m.user_id, m.user_variable_id, m.variable_id, m.value,
		       m.unit_id, m.start_at, m.notes, m.created_at, m.updated_at,
		       COALESCE(u.name, '')
		FROM measurements m
		LEFT JOIN units u ON u.id = m.unit_id
		WHERE m.user_id = $1
		  AND m.user_variable_id = ANY($2)
		  AND m.start_at >= $3 AND m.start_at < $4
		  AND m.deleted_at IS NULL
		ORDER BY m.start_at`

	rows, err := r.db.Query(ctx, query, userID, userVariableIDs, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query measurements: %w", err)
	}
	defer rows.Close()

	var measurements []*models.MeasurementWithUnit
	for rows.Next() {
		var m models.MeasurementWithUnit
		if err := rows.Scan(
			&m.ID,
			&m.UserID,
			&m.UserVariableID,
			&m.VariableID,
			&m.Value,
			&m.UnitID,
			&m.StartAt,
			&m.Notes,
			&m.CreatedAt,
			&m.UpdatedAt,
			&m.UnitName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan measurement: %w", err)
		}
		measurements = append(measurements, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating measurements: %w", err)
	}

	return measurements, nil
}

func (r *measurementRepository) GetByID(ctx context.Context, userID, measurementID uuid.UUID) (*models.Measurement, error) {
	query := `
		SELECT id, user_id, user_variable_id, variable_id, value, unit_id,
		       start_at, notes, deleted_at, created_at, updated_at
		FROM measurements
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`

	var m models.Measurement
	err := r.db.QueryRow(ctx, query, measurementID, userID).Scan(
		&m.ID,
		&m.UserID,
		&m.UserVariableID,
		&m.VariableID,
		&m.Value,
		&m.UnitID,
		&m.StartAt,
		&m.Notes,
		&m.DeletedAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil // Measurement not found
		}
		return nil, fmt.Errorf("failed to query measurement: %w", err)
	}

	return &m, nil
}

func (r *measurementRepository) Update(ctx context.Context, userID, measurementID uuid.UUID, value float64, unitID uuid.UUID, notes string) error {
	query := `
		UPDATE measurements
		SET value = $3, unit_id = $4, notes = $5, updated_at = now()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`

	result, err := r.db.Exec(ctx, query, measurementID, userID, value, unitID, notes)
	if err != nil {
		return fmt.Errorf("failed to update measurement: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *measurementRepository) SoftDelete(ctx context.Context, userID, measurementID uuid.UUID) error {
	query := `
		UPDATE measurements
		SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`

	result, err := r.db.Exec(ctx, query, measurementID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete measurement: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}
