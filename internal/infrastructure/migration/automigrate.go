// Package migration applies the database schema.
package migration

import (
	"fmt"

	"gorm.io/gorm"

	"membergate/internal/infrastructure/persistence/models"
	"membergate/internal/shared/logger"
)

// AutoMigrateModels returns every persistence model in migration order.
func AutoMigrateModels() []interface{} {
	return []interface{}{
		&models.EntitlementModel{},
		&models.OperationFlagModel{},
	}
}

// Run applies the schema with GORM AutoMigrate.
func Run(db *gorm.DB, log logger.Interface) error {
	mds := AutoMigrateModels()
	log.Infow("starting database migration", "models_count", len(mds))

	if err := db.AutoMigrate(mds...); err != nil {
		log.Errorw("migration failed", "error", err)
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Infow("database migration completed")
	return nil
}
