// Package run implements the main long-running reconciliation command.
package run

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"membergate/internal/application/access"
	"membergate/internal/application/maintenance"
	"membergate/internal/application/reconcile"
	"membergate/internal/domain/entitlement"
	"membergate/internal/infrastructure/billing"
	"membergate/internal/infrastructure/chat"
	"membergate/internal/infrastructure/config"
	"membergate/internal/infrastructure/database"
	"membergate/internal/infrastructure/migration"
	"membergate/internal/infrastructure/repository"
	"membergate/internal/shared/biztime"
	"membergate/internal/shared/logger"
	"membergate/internal/shared/utils"
)

var autoMigrate bool

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the entitlement reconciliation engine",
		Long:  `Start the reconciliation engine: the slow sweep converges guild roles with billing status on a fixed cadence, and pending checkouts are polled on a fast cadence until they resolve.`,
		RunE:  run,
	}

	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "Run database migrations on startup")

	return cmd
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

	log.Infow("starting membergate",
		"slow_interval_minutes", cfg.Reconcile.SlowIntervalMinutes,
		"fast_interval_seconds", cfg.Reconcile.FastIntervalSeconds,
		"stripe_key", utils.MaskSecret(cfg.Stripe.APIKey),
		"guild_id", cfg.Discord.GuildID)

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	if autoMigrate {
		if err := migration.Run(database.Get(), log); err != nil {
			return err
		}
	}

	// Missing credentials degrade the affected subsystem to inert instead of
	// failing startup.
	var chatClient access.ChatClient
	if cfg.Discord.IsConfigured() {
		discordClient, err := chat.NewDiscordClient(cfg.Discord, log)
		if err != nil {
			return fmt.Errorf("failed to create discord client: %w", err)
		}
		chatClient = discordClient
	} else {
		chatClient = chat.NewInertClient(log)
	}
	billingClient := billing.NewStripeClient(cfg.Stripe, log)

	entRepo := repository.NewEntitlementRepository(database.Get(), log)
	flagRepo := repository.NewOperationFlagRepository(database.Get(), log)
	dispatcher := access.NewDispatcher(chatClient, cfg.Discord, log)

	engine := reconcile.NewEngine(
		entRepo,
		billingClient,
		dispatcher,
		time.Duration(cfg.Reconcile.CheckoutExpiryMinutes)*time.Minute,
		log,
	)
	scheduler, err := reconcile.NewScheduler(
		engine,
		time.Duration(cfg.Reconcile.SlowIntervalMinutes)*time.Minute,
		time.Duration(cfg.Reconcile.FastIntervalSeconds)*time.Second,
		log,
	)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	if cfg.Stripe.IsConfigured() {
		scheduler.Start()
	} else {
		log.Warnw("stripe is not configured, billing reconciliation is disabled")
	}

	guard := maintenance.NewGuard(flagRepo, log)
	if cancelMigration, err := scheduleLegacyMigration(cfg, guard, entRepo, chatClient, dispatcher, log); err != nil {
		log.Errorw("legacy migration not scheduled", "error", err)
	} else if cancelMigration != nil {
		defer cancelMigration()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down")
	if err := scheduler.Stop(); err != nil {
		log.Errorw("scheduler shutdown failed", "error", err)
		return err
	}

	log.Infow("membergate exited gracefully")
	return nil
}

// scheduleLegacyMigration arms the one-time grandfather migration when both
// the migration instant and the grace deadline are configured. Returns a nil
// cancel func when the migration is not configured.
func scheduleLegacyMigration(
	cfg *config.Config,
	guard *maintenance.Guard,
	entRepo entitlement.Repository,
	chatClient access.ChatClient,
	dispatcher *access.Dispatcher,
	log logger.Interface,
) (func(), error) {
	if cfg.Legacy.MigrationAt == "" {
		return nil, nil
	}
	if cfg.Legacy.GraceDeadline == "" {
		return nil, fmt.Errorf("legacy.grace_deadline is required when legacy.migration_at is set")
	}

	at, err := biztime.ParseTimestamp(cfg.Legacy.MigrationAt)
	if err != nil {
		return nil, fmt.Errorf("invalid legacy.migration_at: %w", err)
	}
	deadline, err := biztime.ParseTimestamp(cfg.Legacy.GraceDeadline)
	if err != nil {
		return nil, fmt.Errorf("invalid legacy.grace_deadline: %w", err)
	}

	legacyMigration := maintenance.NewLegacyMigration(
		entRepo,
		chatClient,
		dispatcher,
		cfg.Discord.PremiumRoleIDs(),
		deadline,
		maintenance.DefaultItemDelay,
		log,
	)
	cancel := guard.ScheduleAt(at, maintenance.LegacyMigrationFlag, legacyMigration.Execute)
	return cancel, nil
}
