// Package reset implements the one-time administrative mass reset command.
package reset

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"membergate/internal/application/access"
	"membergate/internal/application/maintenance"
	"membergate/internal/domain/opsflag"
	"membergate/internal/infrastructure/billing"
	"membergate/internal/infrastructure/chat"
	"membergate/internal/infrastructure/config"
	"membergate/internal/infrastructure/database"
	"membergate/internal/infrastructure/repository"
	"membergate/internal/shared/logger"
)

var confirm bool

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Cancel all subscriptions and strip all premium roles (runs at most once)",
		Long:  `Cancel every member's subscription, revoke their premium roles, reset their entitlement records, and notify them. The operation is guarded by a persisted flag: once it has completed it can never run again.`,
		RunE:  run,
	}

	cmd.Flags().BoolVar(&confirm, "confirm", false, "Required acknowledgement that every premium member will lose access")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if !confirm {
		return fmt.Errorf("refusing to run without --confirm")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.NewLogger()

	if !cfg.Stripe.IsConfigured() {
		return fmt.Errorf("stripe api key is required")
	}

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	chatClient, err := chat.NewDiscordClient(cfg.Discord, log)
	if err != nil {
		return fmt.Errorf("failed to create discord client: %w", err)
	}
	billingClient := billing.NewStripeClient(cfg.Stripe, log)

	entRepo := repository.NewEntitlementRepository(database.Get(), log)
	flagRepo := repository.NewOperationFlagRepository(database.Get(), log)
	dispatcher := access.NewDispatcher(chatClient, cfg.Discord, log)

	massReset := maintenance.NewMassReset(
		entRepo,
		billingClient,
		dispatcher,
		chatClient,
		cfg.Discord.PremiumRoleIDs(),
		maintenance.DefaultItemDelay,
		log,
	)
	guard := maintenance.NewGuard(flagRepo, log)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
	defer cancel()

	affected, err := guard.RunOnce(ctx, maintenance.MassResetFlag, massReset.Execute)
	if err == opsflag.ErrAlreadyCompleted {
		log.Warnw("mass reset was already completed, nothing to do")
		return nil
	}
	if err != nil {
		return err
	}

	log.Infow("mass reset done", "affected", affected)
	return nil
}
