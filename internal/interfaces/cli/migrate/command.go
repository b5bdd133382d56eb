// Package migrate implements the database migration command.
package migrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"membergate/internal/infrastructure/config"
	"membergate/internal/infrastructure/database"
	"membergate/internal/infrastructure/migration"
	"membergate/internal/shared/logger"
)

func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE:  run,
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.NewLogger()

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	return migration.Run(database.Get(), log)
}
