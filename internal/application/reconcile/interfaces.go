package reconcile

import (
	"context"
	"time"

	"membergate/internal/domain/entitlement"
)

// BillingSubscription is one provider-side subscription tagged with a known
// identity via checkout metadata.
type BillingSubscription struct {
	Identity       string
	CustomerID     string
	SubscriptionID string
	Status         entitlement.Status
	PeriodEnd      *time.Time
}

// CheckoutSession is the provider's view of a checkout by session token.
type CheckoutSession struct {
	Paid           bool
	Identity       string
	CustomerID     string
	SubscriptionID string
	Status         entitlement.Status
	PeriodEnd      *time.Time
}

// BillingClient is the billing-provider contract consumed by the engine.
type BillingClient interface {
	// ListSubscriptions returns every subscription tagged with a known
	// identity, regardless of status, so lapses are observed too.
	ListSubscriptions(ctx context.Context) ([]BillingSubscription, error)
	GetCheckoutSession(ctx context.Context, token string) (*CheckoutSession, error)
	CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) error
}

// AccessDispatcher applies privilege changes and notifications.
type AccessDispatcher interface {
	Grant(ctx context.Context, identity string) error
	Revoke(ctx context.Context, identity string) error
	Notify(ctx context.Context, identity string, notice entitlement.Notice)
}
