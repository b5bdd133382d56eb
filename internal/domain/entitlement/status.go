package entitlement

// Status is the locally persisted billing status of an entitlement.
// StatusNone is the zero state: no subscription is known for the identity.
type Status string

const (
	StatusNone     Status = "none"
	StatusTrialing Status = "trialing"
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
	StatusUnpaid   Status = "unpaid"
)

func (s Status) String() string {
	return string(s)
}

// HoldsPrivileges reports whether an identity in this status is entitled to
// the premium role. PastDue retains privileges during the grace period.
func (s Status) HoldsPrivileges() bool {
	return s == StatusActive || s == StatusTrialing || s == StatusPastDue
}

// RequiresBillingLink reports whether the invariant demands a subscription
// reference (or a legacy grant) for this status.
func (s Status) RequiresBillingLink() bool {
	return s == StatusActive || s == StatusTrialing || s == StatusPastDue
}

func (s Status) IsValid() bool {
	return ValidStatuses[s]
}

var ValidStatuses = map[Status]bool{
	StatusNone:     true,
	StatusTrialing: true,
	StatusActive:   true,
	StatusPastDue:  true,
	StatusCanceled: true,
	StatusUnpaid:   true,
}

// ProviderStatuses are the statuses a billing provider can report for a live
// subscription; StatusNone never arrives from the provider.
var ProviderStatuses = []Status{
	StatusTrialing,
	StatusActive,
	StatusPastDue,
	StatusCanceled,
	StatusUnpaid,
}
