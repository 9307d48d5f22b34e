package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vitalog-inc/vitalog-engine/pkg/database"
	"github.com/vitalog-inc/vitalog-engine/pkg/models"
)

// VariableRepository provides read-only access to the variable directory.
type VariableRepository interface {
	GetByID(ctx context.Context, variableID uuid.UUID) (*models.Variable, error)
}

type variableRepository struct {
	db *database.DB
}

// NewVariableRepository creates a new VariableRepository.
func NewVariableRepository(db *database.DB) VariableRepository {
	return &variableRepository{db: db}
}

var _ VariableRepository = (*variableRepository)(nil)

func (r *variableRepository) GetByID(ctx context.Context, variableID uuid.UUID) (*models.Variable, error) {
	query := `
		SELECT id, name, category_id, default_unit_id, emoji, description
		FROM variables
		WHERE id = $1`

	var v models.Variable
	err := r.db.QueryRow(ctx, query, variableID).Scan(
		&v.ID,
		&v.Name,
		&v.CategoryID,
		&v.DefaultUnitID,
		&v.Emoji,
		&v.Description,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil // Variable not found
		}
		return nil, fmt.Errorf("failed to query variable: %w", err)
	}

	return &v, nil
}
