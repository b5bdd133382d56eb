package config

import "fmt"

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// DiscordConfig holds the chat-platform credentials and role wiring.
// PremiumRoleByLocale maps an auxiliary locale role id (already held by the
// member) to the premium role id that should be granted alongside it.
type DiscordConfig struct {
	BotToken             string            `mapstructure:"bot_token"`
	GuildID              string            `mapstructure:"guild_id"`
	RestrictedRoleID     string            `mapstructure:"restricted_role_id"`
	DefaultPremiumRoleID string            `mapstructure:"default_premium_role_id"`
	PremiumRoleByLocale  map[string]string `mapstructure:"premium_role_by_locale"`
}

// IsConfigured reports whether the Discord subsystem can operate at all.
func (d *DiscordConfig) IsConfigured() bool {
	return d.BotToken != "" && d.GuildID != ""
}

// PremiumRoleIDs returns every role id this system may grant, used by revoke
// and by bulk operations that target current premium members.
func (d *DiscordConfig) PremiumRoleIDs() []string {
	ids := make([]string, 0, len(d.PremiumRoleByLocale)+1)
	if d.DefaultPremiumRoleID != "" {
		ids = append(ids, d.DefaultPremiumRoleID)
	}
	for _, id := range d.PremiumRoleByLocale {
		if id != "" && id != d.DefaultPremiumRoleID {
			ids = append(ids, id)
		}
	}
	return ids
}

type StripeConfig struct {
	APIKey string `mapstructure:"api_key"`
	// IdentityMetadataKey is the subscription metadata key carrying the
	// Discord user id set at checkout-session creation time.
	IdentityMetadataKey string `mapstructure:"identity_metadata_key"`
}

func (s *StripeConfig) IsConfigured() bool {
	return s.APIKey != ""
}

// ReconcileConfig drives the dual-cadence scheduler.
type ReconcileConfig struct {
	SlowIntervalMinutes   int `mapstructure:"slow_interval_minutes"`
	FastIntervalSeconds   int `mapstructure:"fast_interval_seconds"`
	CheckoutExpiryMinutes int `mapstructure:"checkout_expiry_minutes"`
}

// LegacyConfig configures the one-time grandfather migration.
// MigrationAt is an RFC3339 instant at which the migration fires once;
// GraceDeadline is the RFC3339 instant at which legacy grants expire.
type LegacyConfig struct {
	MigrationAt   string `mapstructure:"migration_at"`
	GraceDeadline string `mapstructure:"grace_deadline"`
}
