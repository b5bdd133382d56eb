package entitlement

import (
	"fmt"
	"time"
)

// Entitlement is the aggregate root for a single identity's membership
// entitlement. It is the locally persisted truth about whether and why the
// identity currently holds privileges.
type Entitlement struct {
	id                    uint
	identity              string // opaque chat-platform user id
	billingCustomerID     *string
	billingSubscriptionID *string
	status                Status
	periodEnd             *time.Time // renewal or expiry instant
	legacyGrant           bool       // granted without a live subscription
	createdAt             time.Time
	updatedAt             time.Time
}

// NewEntitlement creates a new entitlement in StatusNone for the identity.
func NewEntitlement(identity string) (*Entitlement, error) {
	if identity == "" {
		return nil, fmt.Errorf("identity is required")
	}

	now := time.Now().UTC()
	return &Entitlement{
		identity:  identity,
		status:    StatusNone,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// NewLegacyGrant creates an entitlement issued without a live subscription,
// valid until the grace deadline.
func NewLegacyGrant(identity string, deadline time.Time) (*Entitlement, error) {
	e, err := NewEntitlement(identity)
	if err != nil {
		return nil, err
	}
	e.legacyGrant = true
	e.status = StatusTrialing
	e.periodEnd = &deadline
	return e, nil
}

// ReconstructEntitlement rebuilds an entitlement from persistence.
func ReconstructEntitlement(
	id uint,
	identity string,
	billingCustomerID, billingSubscriptionID *string,
	status Status,
	periodEnd *time.Time,
	legacyGrant bool,
	createdAt, updatedAt time.Time,
) (*Entitlement, error) {
	if id == 0 {
		return nil, fmt.Errorf("entitlement ID cannot be zero")
	}
	if identity == "" {
		return nil, fmt.Errorf("identity is required")
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid entitlement status: %s", status)
	}

	e := &Entitlement{
		id:                    id,
		identity:              identity,
		billingCustomerID:     billingCustomerID,
		billingSubscriptionID: billingSubscriptionID,
		status:                status,
		periodEnd:             periodEnd,
		legacyGrant:           legacyGrant,
		createdAt:             createdAt,
		updatedAt:             updatedAt,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Entitlement) ID() uint                        { return e.id }
func (e *Entitlement) Identity() string                { return e.identity }
func (e *Entitlement) BillingCustomerID() *string      { return e.billingCustomerID }
func (e *Entitlement) BillingSubscriptionID() *string  { return e.billingSubscriptionID }
func (e *Entitlement) Status() Status                  { return e.status }
func (e *Entitlement) PeriodEnd() *time.Time           { return e.periodEnd }
func (e *Entitlement) IsLegacyGrant() bool             { return e.legacyGrant }
func (e *Entitlement) CreatedAt() time.Time            { return e.createdAt }
func (e *Entitlement) UpdatedAt() time.Time            { return e.updatedAt }

// SetID sets the entitlement ID (only for persistence layer use)
func (e *Entitlement) SetID(id uint) error {
	if e.id != 0 {
		return fmt.Errorf("entitlement ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("entitlement ID cannot be zero")
	}
	e.id = id
	return nil
}

// LinkBilling backfills the billing references. Empty values are ignored so a
// partial provider response never erases a known reference.
func (e *Entitlement) LinkBilling(customerID, subscriptionID string) {
	if customerID != "" {
		e.billingCustomerID = &customerID
	}
	if subscriptionID != "" {
		e.billingSubscriptionID = &subscriptionID
	}
	e.updatedAt = time.Now().UTC()
}

// HasBillingLink reports whether a subscription reference is recorded.
func (e *Entitlement) HasBillingLink() bool {
	return e.billingSubscriptionID != nil && *e.billingSubscriptionID != ""
}

// ChangeStatus moves the entitlement to the fetched status and period end.
// The billing-link invariant is enforced before the state is mutated.
func (e *Entitlement) ChangeStatus(status Status, periodEnd *time.Time) error {
	if !status.IsValid() {
		return ErrInvalidStatus
	}
	if status.RequiresBillingLink() && !e.HasBillingLink() && !e.legacyGrant {
		return ErrMissingBillingLink
	}

	e.status = status
	e.periodEnd = periodEnd
	if status == StatusCanceled || status == StatusUnpaid {
		// A lapsed legacy grant behaves like any other lapsed entitlement.
		e.legacyGrant = false
	}
	e.updatedAt = time.Now().UTC()
	return nil
}

// Reset returns the entitlement to StatusNone, clearing billing references
// and the legacy flag. Used by the administrative mass reset.
func (e *Entitlement) Reset() {
	e.status = StatusNone
	e.billingCustomerID = nil
	e.billingSubscriptionID = nil
	e.periodEnd = nil
	e.legacyGrant = false
	e.updatedAt = time.Now().UTC()
}

// LegacyExpired reports whether this is a legacy grant whose grace deadline
// has elapsed at the given instant.
func (e *Entitlement) LegacyExpired(now time.Time) bool {
	if !e.legacyGrant || e.status != StatusTrialing {
		return false
	}
	return e.periodEnd != nil && e.periodEnd.Before(now)
}

// Validate enforces the aggregate invariant: a privileged status requires a
// subscription reference or a legacy grant.
func (e *Entitlement) Validate() error {
	if e.identity == "" {
		return fmt.Errorf("identity is required")
	}
	if !e.status.IsValid() {
		return ErrInvalidStatus
	}
	if e.status.RequiresBillingLink() && !e.HasBillingLink() && !e.legacyGrant {
		return ErrMissingBillingLink
	}
	return nil
}
