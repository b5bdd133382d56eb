package models

import (
	"time"

	"membergate/internal/shared/constants"
)

// OperationFlagModel is the database persistence model for one-time
// operation flags.
type OperationFlagModel struct {
	ID            uint       `gorm:"primarykey"`
	Name          string     `gorm:"not null;size:64;uniqueIndex"`
	State         string     `gorm:"not null;size:20"`
	CompletedAt   *time.Time `gorm:""`
	AffectedCount int        `gorm:"not null;default:0"`
	CreatedAt     time.Time  `gorm:"not null"`
	UpdatedAt     time.Time  `gorm:"not null"`
}

func (OperationFlagModel) TableName() string {
	return constants.TableOperationFlags
}
