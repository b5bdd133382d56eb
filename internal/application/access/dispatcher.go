// Package access applies desired entitlement state to the chat platform:
// idempotent role grant/revoke plus best-effort direct-message notification.
package access

import (
	"context"
	"fmt"
	"time"

	"membergate/internal/domain/entitlement"
	"membergate/internal/shared/config"
	"membergate/internal/shared/logger"
)

// Dispatcher translates a desired entitlement state into privilege role
// mutations and user notifications. Grant and Revoke are idempotent: the
// target role set is computed from the member's current roles, and a member
// who already matches it is left untouched. A missing guild member is a
// no-op success since there is no one to act on.
type Dispatcher struct {
	chat   ChatClient
	cfg    config.DiscordConfig
	logger logger.Interface
}

// NewDispatcher creates a new access dispatcher.
func NewDispatcher(chat ChatClient, cfg config.DiscordConfig, log logger.Interface) *Dispatcher {
	return &Dispatcher{
		chat:   chat,
		cfg:    cfg,
		logger: log,
	}
}

// Grant gives the identity its premium role. The concrete role is resolved
// from an auxiliary locale role the member already holds, falling back to the
// configured default. Any restricted marker role is removed first.
func (d *Dispatcher) Grant(ctx context.Context, identity string) error {
	member, err := d.chat.GetMember(ctx, identity)
	if err != nil {
		return fmt.Errorf("failed to fetch member %s: %w", identity, err)
	}
	if member == nil {
		d.logger.Debugw("grant skipped: identity not in guild", "identity", identity)
		return nil
	}

	premiumRole := d.resolvePremiumRole(member)
	if premiumRole == "" {
		d.logger.Warnw("grant skipped: no premium role configured", "identity", identity)
		return nil
	}

	if d.cfg.RestrictedRoleID != "" && member.HasRole(d.cfg.RestrictedRoleID) {
		if err := d.chat.RemoveRole(ctx, identity, d.cfg.RestrictedRoleID); err != nil {
			return fmt.Errorf("failed to remove restricted role from %s: %w", identity, err)
		}
		d.logger.Debugw("restricted role removed", "identity", identity, "role_id", d.cfg.RestrictedRoleID)
	}

	if member.HasRole(premiumRole) {
		d.logger.Debugw("premium role already held", "identity", identity, "role_id", premiumRole)
		return nil
	}

	if err := d.chat.AddRole(ctx, identity, premiumRole); err != nil {
		return fmt.Errorf("failed to add premium role to %s: %w", identity, err)
	}

	d.logger.Infow("premium role granted", "identity", identity, "role_id", premiumRole)
	return nil
}

// Revoke removes every known premium role from the identity and re-adds the
// restricted marker role.
func (d *Dispatcher) Revoke(ctx context.Context, identity string) error {
	member, err := d.chat.GetMember(ctx, identity)
	if err != nil {
		return fmt.Errorf("failed to fetch member %s: %w", identity, err)
	}
	if member == nil {
		d.logger.Debugw("revoke skipped: identity not in guild", "identity", identity)
		return nil
	}

	removed := 0
	for _, roleID := range d.cfg.PremiumRoleIDs() {
		if !member.HasRole(roleID) {
			continue
		}
		if err := d.chat.RemoveRole(ctx, identity, roleID); err != nil {
			return fmt.Errorf("failed to remove premium role from %s: %w", identity, err)
		}
		d.logger.Debugw("premium role removed", "identity", identity, "role_id", roleID)
		removed++
	}

	if d.cfg.RestrictedRoleID != "" && !member.HasRole(d.cfg.RestrictedRoleID) {
		if err := d.chat.AddRole(ctx, identity, d.cfg.RestrictedRoleID); err != nil {
			return fmt.Errorf("failed to add restricted role to %s: %w", identity, err)
		}
		d.logger.Debugw("restricted role added", "identity", identity, "role_id", d.cfg.RestrictedRoleID)
	}

	if removed > 0 {
		d.logger.Infow("premium roles revoked", "identity", identity, "removed", removed)
	}
	return nil
}

// Notify sends a best-effort direct message for the notice kind. Failures
// (left guild, DMs disabled) are logged and swallowed, never retried.
func (d *Dispatcher) Notify(ctx context.Context, identity string, notice entitlement.Notice) {
	content := MessageFor(notice)
	if content == "" {
		return
	}
	d.send(ctx, identity, notice.String(), content)
}

// NotifyLegacyGrace sends the grandfather-grant message naming the deadline.
func (d *Dispatcher) NotifyLegacyGrace(ctx context.Context, identity string, deadline time.Time) {
	d.send(ctx, identity, entitlement.NoticeLegacyGrace.String(), MessageForLegacyGrace(deadline))
}

func (d *Dispatcher) send(ctx context.Context, identity, kind, content string) {
	if err := d.chat.SendDirectMessage(ctx, identity, content); err != nil {
		d.logger.Warnw("failed to send notification",
			"identity", identity,
			"notice", kind,
			"error", err)
		return
	}
	d.logger.Debugw("notification sent", "identity", identity, "notice", kind)
}

// resolvePremiumRole maps a locale role the member already holds to its
// premium counterpart, falling back to the configured default role.
func (d *Dispatcher) resolvePremiumRole(member *Member) string {
	for localeRole, premiumRole := range d.cfg.PremiumRoleByLocale {
		if premiumRole != "" && member.HasRole(localeRole) {
			return premiumRole
		}
	}
	return d.cfg.DefaultPremiumRoleID
}
