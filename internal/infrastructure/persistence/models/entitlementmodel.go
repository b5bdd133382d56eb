package models

import (
	"time"

	"membergate/internal/shared/constants"
)

// EntitlementModel is the database persistence model for entitlements.
// This is the anti-corruption layer between domain and database.
type EntitlementModel struct {
	ID                    uint       `gorm:"primarykey"`
	Identity              string     `gorm:"not null;size:32;uniqueIndex"`
	BillingCustomerID     *string    `gorm:"size:64;index"`
	BillingSubscriptionID *string    `gorm:"size:64;index"`
	Status                string     `gorm:"not null;size:20;index"`
	PeriodEnd             *time.Time `gorm:"index"`
	LegacyGrant           bool       `gorm:"not null;default:false;index"`
	CreatedAt             time.Time  `gorm:"not null"`
	UpdatedAt             time.Time  `gorm:"not null"`

	// Note: No foreign key constraints or associations.
	// All relationships are managed by application business logic.
}

func (EntitlementModel) TableName() string {
	return constants.TableEntitlements
}
