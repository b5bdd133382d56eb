package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"membergate/internal/domain/entitlement"
	"membergate/internal/infrastructure/persistence/mappers"
	"membergate/internal/infrastructure/persistence/models"
	"membergate/internal/shared/errors"
	"membergate/internal/shared/logger"
)

// EntitlementRepositoryImpl implements the entitlement.Repository interface
type EntitlementRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.EntitlementMapper
	logger logger.Interface
}

// NewEntitlementRepository creates a new entitlement repository instance
func NewEntitlementRepository(db *gorm.DB, log logger.Interface) entitlement.Repository {
	return &EntitlementRepositoryImpl{
		db:     db,
		mapper: mappers.NewEntitlementMapper(),
		logger: log,
	}
}

// GetByIdentity loads the entitlement for a chat-platform identity
func (r *EntitlementRepositoryImpl) GetByIdentity(ctx context.Context, identity string) (*entitlement.Entitlement, error) {
	var model models.EntitlementModel
	if err := r.db.WithContext(ctx).
		Where("identity = ?", identity).
		First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("entitlement not found")
		}
		r.logger.Errorw("failed to get entitlement", "identity", identity, "error", err)
		return nil, fmt.Errorf("failed to get entitlement: %w", err)
	}

	return r.mapper.ToDomain(&model)
}

// Upsert inserts the entitlement or updates the existing row for its identity
func (r *EntitlementRepositoryImpl) Upsert(ctx context.Context, e *entitlement.Entitlement) error {
	model := r.mapper.ToModel(e)

	if model.ID != 0 {
		err := r.db.WithContext(ctx).
			Model(&models.EntitlementModel{}).
			Where("id = ?", model.ID).
			Updates(map[string]interface{}{
				"billing_customer_id":     model.BillingCustomerID,
				"billing_subscription_id": model.BillingSubscriptionID,
				"status":                  model.Status,
				"period_end":              model.PeriodEnd,
				"legacy_grant":            model.LegacyGrant,
				"updated_at":              model.UpdatedAt,
			}).Error
		if err != nil {
			r.logger.Errorw("failed to update entitlement",
				"identity", e.Identity(),
				"status", e.Status(),
				"error", err)
			return fmt.Errorf("failed to update entitlement: %w", err)
		}
		r.logger.Debugw("entitlement updated",
			"identity", e.Identity(),
			"status", e.Status())
		return nil
	}

	// Fresh aggregate: insert, or converge an existing row for the identity
	// left behind by a concurrent or resumed run.
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "identity"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"billing_customer_id",
				"billing_subscription_id",
				"status",
				"period_end",
				"legacy_grant",
				"updated_at",
			}),
		}).
		Create(model).Error
	if err != nil {
		r.logger.Errorw("failed to upsert entitlement",
			"identity", e.Identity(),
			"status", e.Status(),
			"error", err)
		return fmt.Errorf("failed to upsert entitlement: %w", err)
	}

	if model.ID != 0 {
		if err := e.SetID(model.ID); err != nil {
			r.logger.Errorw("failed to set entitlement ID", "error", err)
			return fmt.Errorf("failed to set entitlement ID: %w", err)
		}
	}

	r.logger.Debugw("entitlement upserted",
		"identity", e.Identity(),
		"status", e.Status())
	return nil
}

// Delete removes the entitlement row for the identity
func (r *EntitlementRepositoryImpl) Delete(ctx context.Context, identity string) error {
	result := r.db.WithContext(ctx).
		Where("identity = ?", identity).
		Delete(&models.EntitlementModel{})
	if result.Error != nil {
		r.logger.Errorw("failed to delete entitlement", "identity", identity, "error", result.Error)
		return fmt.Errorf("failed to delete entitlement: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("entitlement not found")
	}

	r.logger.Infow("entitlement deleted", "identity", identity)
	return nil
}

// ListByStatuses returns all entitlements currently in any of the statuses
func (r *EntitlementRepositoryImpl) ListByStatuses(ctx context.Context, statuses []entitlement.Status) ([]*entitlement.Entitlement, error) {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = s.String()
	}

	var rows []models.EntitlementModel
	if err := r.db.WithContext(ctx).
		Where("status IN ?", values).
		Find(&rows).Error; err != nil {
		r.logger.Errorw("failed to list entitlements", "statuses", values, "error", err)
		return nil, fmt.Errorf("failed to list entitlements: %w", err)
	}

	return r.toDomainList(rows)
}

// ListLegacyExpiring returns legacy grants whose grace deadline has elapsed
func (r *EntitlementRepositoryImpl) ListLegacyExpiring(ctx context.Context, now time.Time) ([]*entitlement.Entitlement, error) {
	var rows []models.EntitlementModel
	if err := r.db.WithContext(ctx).
		Where("legacy_grant = ? AND status = ? AND period_end IS NOT NULL AND period_end < ?",
			true, entitlement.StatusTrialing.String(), now).
		Find(&rows).Error; err != nil {
		r.logger.Errorw("failed to list expiring legacy grants", "error", err)
		return nil, fmt.Errorf("failed to list expiring legacy grants: %w", err)
	}

	return r.toDomainList(rows)
}

func (r *EntitlementRepositoryImpl) toDomainList(rows []models.EntitlementModel) ([]*entitlement.Entitlement, error) {
	out := make([]*entitlement.Entitlement, len(rows))
	for i := range rows {
		e, err := r.mapper.ToDomain(&rows[i])
		if err != nil {
			r.logger.Errorw("failed to reconstruct entitlement", "id", rows[i].ID, "error", err)
			return nil, fmt.Errorf("failed to reconstruct entitlement: %w", err)
		}
		out[i] = e
	}
	return out, nil
}
