package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitalog-inc/vitalog-engine/pkg/apperrors"
	"github.com/vitalog-inc/vitalog-engine/pkg/models"
	"github.com/vitalog-inc/vitalog-engine/pkg/repositories"
)

// UserVariableBinder resolves or lazily creates the binding between a user
// and a directory variable, including unit-preference resolution.
type UserVariableBinder interface {
	// ResolveOrCreate returns the binding id for (userID, variableID),
	// creating the binding on first use, together with the unit resolved as
	// explicit ?? preferred ?? variable default. It fails with
	// apperrors.ErrUnresolvedUnit when no path yields a unit; a measurement
	// without a unit is meaningless, so callers must treat that as fatal for
	// the write.
	ResolveOrCreate(ctx context.Context, userID, variableID uuid.UUID, explicitUnitID *uuid.UUID) (uuid.UUID, uuid.UUID, error)
}

type userVariableBinder struct {
	userVariableRepo repositories.UserVariableRepository
	variableRepo     repositories.VariableRepository
	logger           *zap.Logger
}

// NewUserVariableBinder creates a new UserVariableBinder.
func NewUserVariableBinder(
	userVariableRepo repositories.UserVariableRepository,
	variableRepo repositories.VariableRepository,
	logger *zap.Logger,
) UserVariableBinder {
	return &userVariableBinder{
		userVariableRepo: userVariableRepo,
		variableRepo:     variableRepo,
		logger:           logger.Named("user-variable-binder"),
	}
}

var _ UserVariableBinder = (*userVariableBinder)(nil)

func (b *userVariableBinder) ResolveOrCreate(ctx context.Context, userID, variableID uuid.UUID, explicitUnitID *uuid.UUID) (uuid.UUID, uuid.UUID, error) {
	existing, err := b.userVariableRepo.GetByUserAndVariable(ctx, userID, variableID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("get user variable: %w", err)
	}

	if existing != nil {
		unitID, err := b.resolveUnit(ctx, variableID, explicitUnitID, existing.PreferredUnitID)
		if err != nil {
			return uuid.Nil, uuid.Nil, err
		}
		return existing.ID, unitID, nil
	}

	// First write for this (user, variable) pair. The directory lookup is
	// best-effort: a missing variable leaves the preference empty rather
	// than blocking the binding, provided an explicit unit was supplied.
	var defaultUnitID *uuid.UUID
	variable, err := b.variableRepo.GetByID(ctx, variableID)
	if err != nil {
		b.logger.Warn("Variable directory lookup failed, creating binding without default unit",
			zap.String("variable_id", variableID.String()),
			zap.Error(err))
	} else if variable != nil {
		defaultUnitID = variable.DefaultUnitID
	}

	preferredUnitID := explicitUnitID
	if preferredUnitID == nil {
		preferredUnitID = defaultUnitID
	}
	if preferredUnitID == nil {
		// Do not create a binding that could never carry a unit.
		return uuid.Nil, uuid.Nil, apperrors.ErrUnresolvedUnit
	}

	uv := &models.UserVariable{
		UserID:          userID,
		VariableID:      variableID,
		PreferredUnitID: preferredUnitID,
	}
	if err := b.userVariableRepo.Upsert(ctx, uv); err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("create user variable: %w", err)
	}

	// On a lost insert race the upsert returns the competing row, whose
	// preference wins over our computed one.
	unitID, err := b.resolveUnit(ctx, variableID, explicitUnitID, uv.PreferredUnitID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	b.logger.Debug("Created user variable binding",
		zap.String("user_id", userID.String()),
		zap.String("variable_id", variableID.String()),
		zap.String("user_variable_id", uv.ID.String()))

	return uv.ID, unitID, nil
}

// resolveUnit applies the precedence explicit ?? preferred ?? variable
// default. The directory is only consulted when the cheaper paths miss.
func (b *userVariableBinder) resolveUnit(ctx context.Context, variableID uuid.UUID, explicitUnitID, preferredUnitID *uuid.UUID) (uuid.UUID, error) {
	if explicitUnitID != nil {
		return *explicitUnitID, nil
	}
	if preferredUnitID != nil {
		return *preferredUnitID, nil
	}

	variable, err := b.variableRepo.GetByID(ctx, variableID)
	if err != nil {
		b.logger.Warn("Variable directory lookup failed during unit resolution",
			zap.String("variable_id", variableID.String()),
			zap.Error(err))
		return uuid.Nil, apperrors.ErrUnresolvedUnit
	}
	if variable == nil || variable.DefaultUnitID == nil {
		return uuid.Nil, apperrors.ErrUnresolvedUnit
	}

	return *variable.DefaultUnitID, nil
}
