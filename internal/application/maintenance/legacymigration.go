package maintenance

import (
	"context"
	"time"

	"membergate/internal/application/access"
	"membergate/internal/domain/entitlement"
	"membergate/internal/shared/errors"
	"membergate/internal/shared/logger"
)

// LegacyMigrationFlag names the one-time grandfather migration.
const LegacyMigrationFlag = "legacy_migration"

// DefaultItemDelay spaces out per-member DM and role traffic during bulk
// operations.
const DefaultItemDelay = 500 * time.Millisecond

// GraceNotifier sends the grandfather-grant notification.
type GraceNotifier interface {
	NotifyLegacyGrace(ctx context.Context, identity string, deadline time.Time)
}

// LegacyMigration grandfathers existing privileged members into the billing
// regime: every guild member already holding a premium role but having no
// entitlement record gets a legacy grant valid until the grace deadline, and
// a message explaining it. Members with records are left alone, which makes
// the migration safe to resume after a partial run.
type LegacyMigration struct {
	repo      entitlement.Repository
	chat      access.ChatClient
	notifier  GraceNotifier
	roleIDs   []string
	deadline  time.Time
	itemDelay time.Duration
	logger    logger.Interface
}

// NewLegacyMigration creates the migration over the given premium role set.
func NewLegacyMigration(
	repo entitlement.Repository,
	chat access.ChatClient,
	notifier GraceNotifier,
	roleIDs []string,
	deadline time.Time,
	itemDelay time.Duration,
	log logger.Interface,
) *LegacyMigration {
	return &LegacyMigration{
		repo:      repo,
		chat:      chat,
		notifier:  notifier,
		roleIDs:   roleIDs,
		deadline:  deadline,
		itemDelay: itemDelay,
		logger:    log,
	}
}

// Execute runs the migration and returns the number of grants issued.
func (m *LegacyMigration) Execute(ctx context.Context) (int, error) {
	targets, err := resolveRoleMembers(ctx, m.chat, m.roleIDs)
	if err != nil {
		return 0, err
	}

	m.logger.Infow("legacy migration started",
		"candidates", len(targets),
		"deadline", m.deadline)

	granted := 0
	for _, identity := range targets {
		if err := ctx.Err(); err != nil {
			return granted, err
		}

		_, err := m.repo.GetByIdentity(ctx, identity)
		if err == nil {
			continue // already migrated or already a subscriber
		}
		if !errors.IsNotFoundError(err) {
			m.logger.Errorw("failed to check entitlement",
				"identity", identity,
				"error", err)
			continue
		}

		rec, err := entitlement.NewLegacyGrant(identity, m.deadline)
		if err != nil {
			m.logger.Errorw("failed to build legacy grant",
				"identity", identity,
				"error", err)
			continue
		}
		if err := m.repo.Upsert(ctx, rec); err != nil {
			m.logger.Errorw("failed to persist legacy grant",
				"identity", identity,
				"error", err)
			continue
		}

		m.notifier.NotifyLegacyGrace(ctx, identity, m.deadline)
		granted++
		m.logger.Debugw("legacy grant issued", "identity", identity)

		pause(ctx, m.itemDelay)
	}

	m.logger.Infow("legacy migration finished", "granted", granted)
	return granted, nil
}

// resolveRoleMembers collects the deduplicated identities holding any of the
// given roles.
func resolveRoleMembers(ctx context.Context, chat access.ChatClient, roleIDs []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, roleID := range roleIDs {
		if roleID == "" {
			continue
		}
		members, err := chat.ListRoleMembers(ctx, roleID)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if seen[m.Identity] {
				continue
			}
			seen[m.Identity] = true
			out = append(out, m.Identity)
		}
	}
	return out, nil
}

// pause sleeps between items so bulk DM and role traffic stays under the
// chat platform's rate limits.
func pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
