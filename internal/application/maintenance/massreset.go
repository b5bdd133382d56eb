package maintenance

import (
	"context"
	"time"

	"membergate/internal/application/access"
	"membergate/internal/domain/entitlement"
	"membergate/internal/shared/errors"
	"membergate/internal/shared/logger"
)

// MassResetFlag names the one-time administrative mass reset.
const MassResetFlag = "mass_reset"

// SubscriptionCanceler cancels a provider-side subscription.
type SubscriptionCanceler interface {
	CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) error
}

// ResetDispatcher is the access surface the reset needs.
type ResetDispatcher interface {
	Revoke(ctx context.Context, identity string) error
	Notify(ctx context.Context, identity string, notice entitlement.Notice)
}

// MassReset strips every premium member back to the unprivileged baseline:
// cancel any live subscription, revoke roles, reset the local record to no
// status, and notify. Each identity's steps are independent and best-effort:
// a failed step is recorded and the remaining steps still run, and one
// identity's failure never blocks the rest.
type MassReset struct {
	repo       entitlement.Repository
	billing    SubscriptionCanceler
	dispatcher ResetDispatcher
	chat       access.ChatClient
	roleIDs    []string
	itemDelay  time.Duration
	logger     logger.Interface
}

// NewMassReset creates the reset over the given premium role set.
func NewMassReset(
	repo entitlement.Repository,
	billing SubscriptionCanceler,
	dispatcher ResetDispatcher,
	chat access.ChatClient,
	roleIDs []string,
	itemDelay time.Duration,
	log logger.Interface,
) *MassReset {
	return &MassReset{
		repo:       repo,
		billing:    billing,
		dispatcher: dispatcher,
		chat:       chat,
		roleIDs:    roleIDs,
		itemDelay:  itemDelay,
		logger:     log,
	}
}

// Execute runs the reset and returns the number of fully reset identities.
// It satisfies the guard's Operation signature.
func (m *MassReset) Execute(ctx context.Context) (int, error) {
	report, err := m.Run(ctx)
	if err != nil {
		return 0, err
	}
	return report.Affected(), nil
}

// Run executes the reset and returns the full per-item report.
func (m *MassReset) Run(ctx context.Context) (*BatchReport, error) {
	targets, err := resolveRoleMembers(ctx, m.chat, m.roleIDs)
	if err != nil {
		return nil, err
	}

	m.logger.Infow("mass reset started", "targets", len(targets))

	report := &BatchReport{Operation: MassResetFlag}
	for _, identity := range targets {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		item := m.resetOne(ctx, identity)
		report.Items = append(report.Items, item)
		if item.Failed() {
			m.logger.Warnw("mass reset item failed",
				"identity", identity,
				"steps", len(item.Steps))
		}

		pause(ctx, m.itemDelay)
	}

	m.logger.Infow("mass reset finished",
		"affected", report.Affected(),
		"failed", len(report.Failures()))
	return report, nil
}

func (m *MassReset) resetOne(ctx context.Context, identity string) ItemReport {
	item := ItemReport{Identity: identity}

	rec, err := m.repo.GetByIdentity(ctx, identity)
	if err != nil && !errors.IsNotFoundError(err) {
		item.addStep("load_record", StepFailed, err)
		rec = nil
	}

	// Step 1: cancel any live subscription so billing stops immediately.
	if rec != nil && rec.HasBillingLink() {
		subID := *rec.BillingSubscriptionID()
		if err := m.billing.CancelSubscription(ctx, subID, true); err != nil {
			m.logger.Warnw("subscription cancel failed",
				"identity", identity,
				"subscription_id", subID,
				"error", err)
			item.addStep("cancel_subscription", StepFailed, err)
		} else {
			item.addStep("cancel_subscription", StepSuccess, nil)
		}
	} else {
		item.addStep("cancel_subscription", StepSkipped, nil)
	}

	// Step 2: strip premium roles.
	if err := m.dispatcher.Revoke(ctx, identity); err != nil {
		m.logger.Warnw("privilege revoke failed",
			"identity", identity,
			"error", err)
		item.addStep("revoke_privileges", StepFailed, err)
	} else {
		item.addStep("revoke_privileges", StepSuccess, nil)
	}

	// Step 3: reset the local record, keeping the row for history.
	if rec != nil {
		rec.Reset()
		if err := m.repo.Upsert(ctx, rec); err != nil {
			m.logger.Warnw("record reset failed",
				"identity", identity,
				"error", err)
			item.addStep("reset_record", StepFailed, err)
		} else {
			item.addStep("reset_record", StepSuccess, nil)
		}
	} else {
		item.addStep("reset_record", StepSkipped, nil)
	}

	// Step 4: tell the member what happened.
	m.dispatcher.Notify(ctx, identity, entitlement.NoticeEnded)
	item.addStep("notify", StepSuccess, nil)

	return item
}
