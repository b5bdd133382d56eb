// Package reconcile implements the entitlement reconciliation engine: it
// pulls billing truth, diffs it against persisted entitlement records, and
// drives idempotent side effects through the access dispatcher.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"membergate/internal/domain/entitlement"
	"membergate/internal/shared/biztime"
	"membergate/internal/shared/errors"
	"membergate/internal/shared/logger"
)

// Engine owns the reconciliation sweeps and the pending-checkout tracker.
// Sweeps process identities sequentially; a failure on one identity is
// logged and never aborts the remainder of the sweep. Only a failure of the
// top-level provider fetch aborts a tick, deferring to the next.
type Engine struct {
	repo           entitlement.Repository
	billing        BillingClient
	access         AccessDispatcher
	tracker        *Tracker
	checkoutExpiry time.Duration
	logger         logger.Interface
}

// NewEngine creates a reconciliation engine. checkoutExpiry bounds how long a
// pending checkout stays tracked before it is dropped unpaid.
func NewEngine(
	repo entitlement.Repository,
	billing BillingClient,
	access AccessDispatcher,
	checkoutExpiry time.Duration,
	log logger.Interface,
) *Engine {
	return &Engine{
		repo:           repo,
		billing:        billing,
		access:         access,
		tracker:        NewTracker(),
		checkoutExpiry: checkoutExpiry,
		logger:         log,
	}
}

// Tracker returns the engine's pending-checkout tracker.
func (e *Engine) Tracker() *Tracker {
	return e.tracker
}

// ReconcileAll sweeps every provider subscription tagged with a known
// identity and converges the local record and chat-platform roles on it.
// Returns the number of records that changed.
func (e *Engine) ReconcileAll(ctx context.Context) (int, error) {
	subs, err := e.billing.ListSubscriptions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list provider subscriptions: %w", err)
	}

	changed := 0
	for _, sub := range subs {
		if sub.Identity == "" {
			continue
		}
		applied, err := e.applyBillingState(ctx, sub.Identity, sub.CustomerID, sub.SubscriptionID, sub.Status, sub.PeriodEnd)
		if err != nil {
			e.logger.Errorw("failed to reconcile identity",
				"identity", sub.Identity,
				"status", sub.Status,
				"error", err)
			continue
		}
		if applied {
			changed++
		}
	}

	if changed > 0 {
		e.logger.Infow("reconcile sweep completed",
			"subscriptions", len(subs),
			"changed", changed)
	} else {
		e.logger.Debugw("reconcile sweep completed, no changes",
			"subscriptions", len(subs))
	}
	return changed, nil
}

// ReconcileLegacyExpiry cancels legacy grants whose grace deadline elapsed,
// revoking privileges and notifying. Returns the number expired.
func (e *Engine) ReconcileLegacyExpiry(ctx context.Context) (int, error) {
	now := biztime.NowUTC()
	records, err := e.repo.ListLegacyExpiring(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list expiring legacy grants: %w", err)
	}

	expired := 0
	for _, rec := range records {
		if !rec.LegacyExpired(now) {
			continue
		}
		// Revoke before touching the record: a failed revoke leaves the grant
		// expired-but-trialing, so the next sweep lists it again and retries.
		if err := e.access.Revoke(ctx, rec.Identity()); err != nil {
			e.logger.Errorw("failed to revoke expired legacy grant",
				"identity", rec.Identity(),
				"error", err)
			continue
		}
		if err := rec.ChangeStatus(entitlement.StatusCanceled, rec.PeriodEnd()); err != nil {
			e.logger.Errorw("failed to expire legacy grant",
				"identity", rec.Identity(),
				"error", err)
			continue
		}
		if err := e.repo.Upsert(ctx, rec); err != nil {
			e.logger.Errorw("failed to persist expired legacy grant",
				"identity", rec.Identity(),
				"error", err)
			continue
		}
		e.access.Notify(ctx, rec.Identity(), entitlement.NoticeEnded)
		expired++
		e.logger.Infow("legacy grant expired",
			"identity", rec.Identity(),
			"deadline", rec.PeriodEnd())
	}

	return expired, nil
}

// ReconcilePendingCheckouts polls the provider for each tracked checkout.
// Confirmed payments run the full new-subscription transition and leave the
// tracker; entries older than the expiry bound are dropped without action.
// Returns the number of confirmed checkouts.
func (e *Engine) ReconcilePendingCheckouts(ctx context.Context) (int, error) {
	now := biztime.NowUTC()
	confirmed := 0

	for _, entry := range e.tracker.Entries() {
		session, err := e.billing.GetCheckoutSession(ctx, entry.SessionToken)
		if err != nil {
			e.logger.Warnw("failed to query checkout session",
				"identity", entry.Identity,
				"error", err)
			// Transient: keep tracked for the next tick unless expired below.
		} else if session.Paid {
			identity := session.Identity
			if identity == "" {
				identity = entry.Identity
			}
			status := session.Status
			if status == entitlement.StatusNone {
				status = entitlement.StatusActive
			}
			if _, err := e.applyBillingState(ctx, identity, session.CustomerID, session.SubscriptionID, status, session.PeriodEnd); err != nil {
				e.logger.Errorw("failed to apply confirmed checkout",
					"identity", identity,
					"error", err)
				continue
			}
			e.tracker.Remove(entry.Identity)
			confirmed++
			e.logger.Infow("checkout confirmed", "identity", identity)
			continue
		}

		if now.Sub(entry.CreatedAt) > e.checkoutExpiry {
			e.tracker.Remove(entry.Identity)
			e.logger.Infow("pending checkout expired without payment",
				"identity", entry.Identity,
				"tracked_for", now.Sub(entry.CreatedAt))
		}
	}

	return confirmed, nil
}

// applyBillingState converges one identity's local record on the fetched
// provider state. A missing record and a record missing billing linkage are
// the same case: the record (fresh or existing) is backfilled and the
// transition table is applied against its previous status.
func (e *Engine) applyBillingState(
	ctx context.Context,
	identity, customerID, subscriptionID string,
	status entitlement.Status,
	periodEnd *time.Time,
) (bool, error) {
	rec, err := e.repo.GetByIdentity(ctx, identity)
	if err != nil && !errors.IsNotFoundError(err) {
		return false, fmt.Errorf("failed to load entitlement: %w", err)
	}

	prev := entitlement.StatusNone
	hadLink := false
	if rec == nil || errors.IsNotFoundError(err) {
		rec, err = entitlement.NewEntitlement(identity)
		if err != nil {
			return false, err
		}
	} else {
		prev = rec.Status()
		hadLink = rec.HasBillingLink()
	}

	samePeriodEnd := equalTimePtr(rec.PeriodEnd(), periodEnd)
	rec.LinkBilling(customerID, subscriptionID)

	if prev == status && hadLink && samePeriodEnd {
		return false, nil
	}

	if err := rec.ChangeStatus(status, periodEnd); err != nil {
		return false, fmt.Errorf("failed to change status: %w", err)
	}

	// Roles move before the record is persisted. A failed role mutation
	// leaves the stored status unchanged, so the next sweep still sees the
	// diff and retries the whole transition. The role calls are idempotent,
	// so a persist failure after a successful mutation also converges on the
	// next sweep.
	action := entitlement.ActionFor(prev, status)
	switch action.Privilege {
	case entitlement.PrivilegeGrant:
		if err := e.access.Grant(ctx, identity); err != nil {
			return false, fmt.Errorf("grant failed, transition deferred: %w", err)
		}
	case entitlement.PrivilegeRevoke:
		if err := e.access.Revoke(ctx, identity); err != nil {
			return false, fmt.Errorf("revoke failed, transition deferred: %w", err)
		}
	}

	if err := e.repo.Upsert(ctx, rec); err != nil {
		return false, fmt.Errorf("failed to persist entitlement: %w", err)
	}
	e.access.Notify(ctx, identity, action.Notice)

	e.logger.Debugw("entitlement transition applied",
		"identity", identity,
		"from", prev,
		"to", status,
		"privilege", action.Privilege,
		"notice", action.Notice)
	return true, nil
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
