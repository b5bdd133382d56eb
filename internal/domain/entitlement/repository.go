package entitlement

import (
	"context"
	"time"
)

// Repository is the persistence contract for entitlements.
// GetByIdentity returns a not-found error (shared/errors) when no record
// exists for the identity.
type Repository interface {
	GetByIdentity(ctx context.Context, identity string) (*Entitlement, error)
	Upsert(ctx context.Context, e *Entitlement) error
	Delete(ctx context.Context, identity string) error
	ListByStatuses(ctx context.Context, statuses []Status) ([]*Entitlement, error)
	// ListLegacyExpiring returns legacy grants still in trialing whose period
	// end has elapsed at the given instant.
	ListLegacyExpiring(ctx context.Context, now time.Time) ([]*Entitlement, error)
}
