package mappers

import (
	"membergate/internal/domain/entitlement"
	"membergate/internal/domain/opsflag"
	"membergate/internal/infrastructure/persistence/models"
)

// EntitlementMapper handles the conversion between entitlement domain
// entities and persistence models.
type EntitlementMapper interface {
	ToModel(e *entitlement.Entitlement) *models.EntitlementModel
	ToDomain(model *models.EntitlementModel) (*entitlement.Entitlement, error)

	FlagToModel(f *opsflag.OperationFlag) *models.OperationFlagModel
	FlagToDomain(model *models.OperationFlagModel) (*opsflag.OperationFlag, error)
}

// EntitlementMapperImpl is the concrete implementation of EntitlementMapper.
type EntitlementMapperImpl struct{}

// NewEntitlementMapper creates a new EntitlementMapper.
func NewEntitlementMapper() EntitlementMapper {
	return &EntitlementMapperImpl{}
}

// ToModel converts an entitlement domain entity to a persistence model.
func (m *EntitlementMapperImpl) ToModel(e *entitlement.Entitlement) *models.EntitlementModel {
	return &models.EntitlementModel{
		ID:                    e.ID(),
		Identity:              e.Identity(),
		BillingCustomerID:     e.BillingCustomerID(),
		BillingSubscriptionID: e.BillingSubscriptionID(),
		Status:                e.Status().String(),
		PeriodEnd:             e.PeriodEnd(),
		LegacyGrant:           e.IsLegacyGrant(),
		CreatedAt:             e.CreatedAt(),
		UpdatedAt:             e.UpdatedAt(),
	}
}

// ToDomain converts an entitlement persistence model to a domain entity.
func (m *EntitlementMapperImpl) ToDomain(model *models.EntitlementModel) (*entitlement.Entitlement, error) {
	return entitlement.ReconstructEntitlement(
		model.ID,
		model.Identity,
		model.BillingCustomerID,
		model.BillingSubscriptionID,
		entitlement.Status(model.Status),
		model.PeriodEnd,
		model.LegacyGrant,
		model.CreatedAt,
		model.UpdatedAt,
	)
}

// FlagToModel converts an operation flag domain entity to a persistence model.
func (m *EntitlementMapperImpl) FlagToModel(f *opsflag.OperationFlag) *models.OperationFlagModel {
	return &models.OperationFlagModel{
		Name:          f.Name(),
		State:         string(f.State()),
		CompletedAt:   f.CompletedAt(),
		AffectedCount: f.AffectedCount(),
		CreatedAt:     f.CreatedAt(),
		UpdatedAt:     f.UpdatedAt(),
	}
}

// FlagToDomain converts an operation flag persistence model to a domain entity.
func (m *EntitlementMapperImpl) FlagToDomain(model *models.OperationFlagModel) (*opsflag.OperationFlag, error) {
	return opsflag.ReconstructOperationFlag(
		model.Name,
		opsflag.FlagState(model.State),
		model.CompletedAt,
		model.AffectedCount,
		model.CreatedAt,
		model.UpdatedAt,
	)
}
