package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"membergate/internal/domain/opsflag"
	"membergate/internal/infrastructure/persistence/mappers"
	"membergate/internal/infrastructure/persistence/models"
	"membergate/internal/shared/errors"
	"membergate/internal/shared/logger"
)

// OperationFlagRepositoryImpl implements the opsflag.Repository interface
type OperationFlagRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.EntitlementMapper
	logger logger.Interface
}

// NewOperationFlagRepository creates a new operation flag repository instance
func NewOperationFlagRepository(db *gorm.DB, log logger.Interface) opsflag.Repository {
	return &OperationFlagRepositoryImpl{
		db:     db,
		mapper: mappers.NewEntitlementMapper(),
		logger: log,
	}
}

// GetFlag loads the flag by operation name
func (r *OperationFlagRepositoryImpl) GetFlag(ctx context.Context, name string) (*opsflag.OperationFlag, error) {
	var model models.OperationFlagModel
	if err := r.db.WithContext(ctx).
		Where("name = ?", name).
		First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("operation flag not found")
		}
		r.logger.Errorw("failed to get operation flag", "name", name, "error", err)
		return nil, fmt.Errorf("failed to get operation flag: %w", err)
	}

	return r.mapper.FlagToDomain(&model)
}

// SetFlag inserts or updates the flag row for its name
func (r *OperationFlagRepositoryImpl) SetFlag(ctx context.Context, flag *opsflag.OperationFlag) error {
	model := r.mapper.FlagToModel(flag)

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"state",
				"completed_at",
				"affected_count",
				"updated_at",
			}),
		}).
		Create(model).Error
	if err != nil {
		r.logger.Errorw("failed to set operation flag",
			"name", flag.Name(),
			"state", flag.State(),
			"error", err)
		return fmt.Errorf("failed to set operation flag: %w", err)
	}

	r.logger.Infow("operation flag set",
		"name", flag.Name(),
		"state", flag.State())
	return nil
}
