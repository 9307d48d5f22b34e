package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vitalog-inc/vitalog-engine/pkg/database"
	"github.com/vitalog-inc/vitalog-engine/pkg/models"
)

// UserVariableRepository provides data access for per-user variable bindings.
type UserVariableRepository interface {
	// GetByUserAndVariable returns the active binding for (user, variable),
	// or nil if none exists.
	GetByUserAndVariable(ctx context.Context, userID, variableID uuid.UUID) (*models.UserVariable, error)

	// Upsert inserts the binding or, on conflict with an existing
	// (user, variable) row, returns that row. The conflict path is how
	// concurrent first-time writes converge on a single binding. On return
	// uv.ID and uv.PreferredUnitID reflect the winning row.
	Upsert(ctx context.Context, uv *models.UserVariable) error

	// GetDisplayDetails returns the denormalized display fields for the given
	// bindings, keyed by user-variable id. Bindings without a preferred unit
	// fall back to the variable's default unit for the unit name.
	GetDisplayDetails(ctx context.Context, userVariableIDs []uuid.UUID) (map[uuid.UUID]*models.VariableDisplay, error)
}

type userVariableRepository struct {
	db *database.DB
}

// NewUserVariableRepository creates a new UserVariableRepository.
func NewUserVariableRepository(db *database.DB) UserVariableRepository {
	return &userVariableRepository{db: db}
}

var _ UserVariableRepository = (*userVariableRepository)(nil)

func (r *userVariableRepository) GetByUserAndVariable(ctx context.Context, userID, variableID uuid.UUID) (*models.UserVariable, error) {
	query := `
		SELECT id, user_id, variable_id, preferred_unit_id, deleted_at, created_at, updated_at
		FROM user_variables
		WHERE user_id = $1 AND variable_id = $2 AND deleted_at IS NULL`

	var uv models.UserVariable
	err := r.db.QueryRow(ctx, query, userID, variableID).Scan(
		&uv.ID,
		&uv.UserID,
		&uv.VariableID,
		&uv.PreferredUnitID,
		&uv.DeletedAt,
		&uv.CreatedAt,
		&uv.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil // No binding yet
		}
		return nil, fmt.Errorf("failed to query user variable: %w", err)
	}

	return &uv, nil
}

func (r *userVariableRepository) Upsert(ctx context.Context, uv *models.UserVariable) error {
	// DO UPDATE is a no-op touch so RETURNING yields the existing row's id
	// and preferred unit when the insert loses the race.
	query := `
		INSERT INTO user_variables (user_id, variable_id, preferred_unit_id)
		VALUES ($1, $2, $3)
		ON CONFLICT ON CONSTRAINT user_variables_user_variable_key
		DO UPDATE SET updated_at = now()
		RETURNING id, preferred_unit_id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		uv.UserID,
		uv.VariableID,
		uv.PreferredUnitID,
	).Scan(&uv.ID, &uv.PreferredUnitID, &uv.CreatedAt, &uv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user variable: %w", err)
	}

	return nil
}

func (r *userVariableRepository) GetDisplayDetails(ctx context.Context, userVariableIDs []uuid.UUID) (map[uuid.UUID]*models.VariableDisplay, error) {
	if len(userVariableIDs) == 0 {
		return map[uuid.UUID]*models.VariableDisplay{}, nil
	}

	query := `
		SELECT uv.id, v.id, v.name, v.emoji, c.name,
		       COALESCE(u.name, '')
		FROM user_variables uv
		JOIN variables v ON v.id = uv.variable_id
		JOIN variable_categories c ON c.id = v.category_id
		LEFT JOIN units u ON u.id = COALESCE(uv.preferred_unit_id, v.default_unit_id)
		WHERE uv.id = ANY($1)`

	rows, err := r.db.Query(ctx, query, userVariableIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query display details: %w", err)
	}
	defer rows.Close()

	details := make(map[uuid.UUID]*models.VariableDisplay, len(userVariableIDs))
	for rows.Next() {
		var d models.VariableDisplay
		if err := rows.Scan(
			&d.UserVariableID,
			&d.VariableID,
			&d.Name,
			&d.Emoji,
			&d.CategoryName,
			&d.UnitName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan display details: %w", err)
		}
		details[d.UserVariableID] = &d
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating display details: %w", err)
	}

	return details, nil
}
