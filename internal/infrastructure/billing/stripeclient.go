// Package billing implements the billing-provider contract against the
// Stripe API.
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"membergate/internal/application/reconcile"
	"membergate/internal/domain/entitlement"
	"membergate/internal/shared/config"
	"membergate/internal/shared/logger"
)

// StripeClient implements reconcile.BillingClient on the Stripe API. Every
// checkout session is created with the chat-platform identity in metadata,
// which Stripe copies onto the resulting subscription; that metadata key is
// the only join between provider state and guild members.
type StripeClient struct {
	api         *client.API
	identityKey string
	logger      logger.Interface
}

// NewStripeClient creates a Stripe-backed billing client.
func NewStripeClient(cfg config.StripeConfig, log logger.Interface) *StripeClient {
	api := &client.API{}
	api.Init(cfg.APIKey, nil)

	return &StripeClient{
		api:         api,
		identityKey: cfg.IdentityMetadataKey,
		logger:      log,
	}
}

// ListSubscriptions returns every subscription carrying an identity tag,
// regardless of status, so lapses and recoveries are both observed.
func (c *StripeClient) ListSubscriptions(ctx context.Context) ([]reconcile.BillingSubscription, error) {
	params := &stripe.SubscriptionListParams{
		Status: stripe.String("all"),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(100)

	var out []reconcile.BillingSubscription
	iter := c.api.Subscriptions.List(params)
	for iter.Next() {
		sub := iter.Subscription()

		identity := sub.Metadata[c.identityKey]
		if identity == "" {
			continue
		}

		status, ok := mapSubscriptionStatus(sub.Status)
		if !ok {
			c.logger.Debugw("skipping subscription in unmapped status",
				"subscription_id", sub.ID,
				"status", sub.Status)
			continue
		}

		bs := reconcile.BillingSubscription{
			Identity:       identity,
			SubscriptionID: sub.ID,
			Status:         status,
			PeriodEnd:      unixToTime(sub.CurrentPeriodEnd),
		}
		if sub.Customer != nil {
			bs.CustomerID = sub.Customer.ID
		}
		out = append(out, bs)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list stripe subscriptions: %w", err)
	}

	return out, nil
}

// GetCheckoutSession fetches the checkout session by its token, expanding
// the subscription so a paid session carries the full billing state.
func (c *StripeClient) GetCheckoutSession(ctx context.Context, token string) (*reconcile.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("subscription")

	sess, err := c.api.CheckoutSessions.Get(token, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get checkout session: %w", err)
	}

	out := &reconcile.CheckoutSession{
		Paid:     sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Identity: sess.Metadata[c.identityKey],
	}
	if sess.Customer != nil {
		out.CustomerID = sess.Customer.ID
	}
	if sess.Subscription != nil {
		out.SubscriptionID = sess.Subscription.ID
		if status, ok := mapSubscriptionStatus(sess.Subscription.Status); ok {
			out.Status = status
		}
		out.PeriodEnd = unixToTime(sess.Subscription.CurrentPeriodEnd)
	}

	return out, nil
}

// CancelSubscription cancels a subscription, immediately or at period end.
func (c *StripeClient) CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) error {
	if immediate {
		params := &stripe.SubscriptionCancelParams{}
		params.Context = ctx
		if _, err := c.api.Subscriptions.Cancel(subscriptionID, params); err != nil {
			return fmt.Errorf("failed to cancel subscription %s: %w", subscriptionID, err)
		}
		c.logger.Infow("subscription canceled", "subscription_id", subscriptionID)
		return nil
	}

	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.Context = ctx
	if _, err := c.api.Subscriptions.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("failed to schedule cancellation for %s: %w", subscriptionID, err)
	}
	c.logger.Infow("subscription cancellation scheduled", "subscription_id", subscriptionID)
	return nil
}

// mapSubscriptionStatus translates Stripe's lifecycle into the local status
// set. Incomplete checkouts never reach the local store; they are handled by
// the pending-checkout tracker instead.
func mapSubscriptionStatus(s stripe.SubscriptionStatus) (entitlement.Status, bool) {
	switch s {
	case stripe.SubscriptionStatusTrialing:
		return entitlement.StatusTrialing, true
	case stripe.SubscriptionStatusActive:
		return entitlement.StatusActive, true
	case stripe.SubscriptionStatusPastDue:
		return entitlement.StatusPastDue, true
	case stripe.SubscriptionStatusCanceled:
		return entitlement.StatusCanceled, true
	case stripe.SubscriptionStatusUnpaid:
		return entitlement.StatusUnpaid, true
	default:
		return entitlement.StatusNone, false
	}
}

func unixToTime(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
