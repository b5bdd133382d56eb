package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"

	sharedConfig "membergate/internal/shared/config"
)

type Config struct {
	Database  sharedConfig.DatabaseConfig  `mapstructure:"database"`
	Logger    sharedConfig.LoggerConfig    `mapstructure:"logger"`
	Discord   sharedConfig.DiscordConfig   `mapstructure:"discord"`
	Stripe    sharedConfig.StripeConfig    `mapstructure:"stripe"`
	Reconcile sharedConfig.ReconcileConfig `mapstructure:"reconcile"`
	Legacy    sharedConfig.LegacyConfig    `mapstructure:"legacy"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../configs")
	viper.AddConfigPath("../../configs")

	viper.SetEnvPrefix("MEMBERGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	appConfigMu.Lock()
	appConfig = &config
	appConfigMu.Unlock()

	return &config, nil
}

// Get returns the loaded configuration
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

// setDefaults sets default configuration values
func setDefaults() {
	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)
	viper.SetDefault("database.username", "root")
	viper.SetDefault("database.password", "password")
	viper.SetDefault("database.database", "membergate_dev")
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.max_open_conns", 100)
	viper.SetDefault("database.conn_max_lifetime", 60)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("logger.output_path", "stdout")

	// Discord defaults (must be configured for the dispatcher to act)
	viper.SetDefault("discord.bot_token", "")
	viper.SetDefault("discord.guild_id", "")
	viper.SetDefault("discord.restricted_role_id", "")
	viper.SetDefault("discord.default_premium_role_id", "")

	// Stripe defaults
	viper.SetDefault("stripe.api_key", "")
	viper.SetDefault("stripe.identity_metadata_key", "discord_id")

	// Reconciliation cadence defaults
	viper.SetDefault("reconcile.slow_interval_minutes", 60)
	viper.SetDefault("reconcile.fast_interval_seconds", 30)
	viper.SetDefault("reconcile.checkout_expiry_minutes", 25)

	// Legacy migration defaults (disabled until an instant is configured)
	viper.SetDefault("legacy.migration_at", "")
	viper.SetDefault("legacy.grace_deadline", "")
}
