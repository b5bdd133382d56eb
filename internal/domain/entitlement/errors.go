package entitlement

import "errors"

var (
	// ErrInvalidStatus indicates an unknown status value.
	ErrInvalidStatus = errors.New("invalid entitlement status")

	// ErrMissingBillingLink indicates a privileged status without a
	// subscription reference or legacy grant.
	ErrMissingBillingLink = errors.New("privileged status requires a billing subscription or legacy grant")
)
