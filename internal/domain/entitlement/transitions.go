package entitlement

// PrivilegeChange is the role mutation a status entry demands.
type PrivilegeChange int

const (
	PrivilegeNone PrivilegeChange = iota
	PrivilegeGrant
	PrivilegeRevoke
)

func (p PrivilegeChange) String() string {
	switch p {
	case PrivilegeGrant:
		return "grant"
	case PrivilegeRevoke:
		return "revoke"
	default:
		return "none"
	}
}

// Notice identifies the user notification a status entry demands.
type Notice int

const (
	NoticeNone Notice = iota
	NoticeWelcome
	NoticeRestored
	NoticePaymentFailed
	NoticeEnded
	// NoticeLegacyGrace is sent by the one-time legacy migration; it never
	// appears in the transition table.
	NoticeLegacyGrace
)

func (n Notice) String() string {
	switch n {
	case NoticeWelcome:
		return "welcome"
	case NoticeRestored:
		return "restored"
	case NoticePaymentFailed:
		return "payment_failed"
	case NoticeEnded:
		return "ended"
	case NoticeLegacyGrace:
		return "legacy_grace"
	default:
		return "none"
	}
}

// Transition is a (previous status, fetched status) pair.
type Transition struct {
	From Status
	To   Status
}

// EntryAction describes the side effects of entering a status from another.
type EntryAction struct {
	Privilege PrivilegeChange
	Notice    Notice
}

// actionTable is the exhaustive transition table. Keys cover every previous
// status crossed with every status the provider can report. Rules:
//   - entering active grants; from past_due the "restored" notice is sent,
//     from none (first-ever grant) "welcome", otherwise silent
//   - entering trialing grants only when privileges were not already implied
//     (first grant or resubscribe from a lapsed state), never notifies
//   - entering past_due keeps privileges and warns, except from none where
//     there is nothing to warn about yet
//   - entering canceled or unpaid always revokes (idempotent, so lapsed to
//     lapsed just re-converges roles); the "ended" notice is suppressed from
//     none (never granted) and from the other lapsed state (already sent)
var actionTable = map[Transition]EntryAction{
	// → active
	{StatusNone, StatusActive}:     {PrivilegeGrant, NoticeWelcome},
	{StatusTrialing, StatusActive}: {PrivilegeGrant, NoticeNone},
	{StatusPastDue, StatusActive}:  {PrivilegeGrant, NoticeRestored},
	{StatusCanceled, StatusActive}: {PrivilegeGrant, NoticeNone},
	{StatusUnpaid, StatusActive}:   {PrivilegeGrant, NoticeNone},

	// → trialing
	{StatusNone, StatusTrialing}:     {PrivilegeGrant, NoticeNone},
	{StatusActive, StatusTrialing}:   {PrivilegeNone, NoticeNone},
	{StatusPastDue, StatusTrialing}:  {PrivilegeNone, NoticeNone},
	{StatusCanceled, StatusTrialing}: {PrivilegeGrant, NoticeNone},
	{StatusUnpaid, StatusTrialing}:   {PrivilegeGrant, NoticeNone},

	// → past_due
	{StatusNone, StatusPastDue}:     {PrivilegeNone, NoticeNone},
	{StatusTrialing, StatusPastDue}: {PrivilegeNone, NoticePaymentFailed},
	{StatusActive, StatusPastDue}:   {PrivilegeNone, NoticePaymentFailed},
	{StatusCanceled, StatusPastDue}: {PrivilegeNone, NoticePaymentFailed},
	{StatusUnpaid, StatusPastDue}:   {PrivilegeNone, NoticePaymentFailed},

	// → canceled
	{StatusNone, StatusCanceled}:     {PrivilegeRevoke, NoticeNone},
	{StatusTrialing, StatusCanceled}: {PrivilegeRevoke, NoticeEnded},
	{StatusActive, StatusCanceled}:   {PrivilegeRevoke, NoticeEnded},
	{StatusPastDue, StatusCanceled}:  {PrivilegeRevoke, NoticeEnded},
	{StatusUnpaid, StatusCanceled}:   {PrivilegeRevoke, NoticeNone},

	// → unpaid
	{StatusNone, StatusUnpaid}:     {PrivilegeRevoke, NoticeNone},
	{StatusTrialing, StatusUnpaid}: {PrivilegeRevoke, NoticeEnded},
	{StatusActive, StatusUnpaid}:   {PrivilegeRevoke, NoticeEnded},
	{StatusPastDue, StatusUnpaid}:  {PrivilegeRevoke, NoticeEnded},
	{StatusCanceled, StatusUnpaid}: {PrivilegeRevoke, NoticeNone},
}

// ActionFor returns the side effects of moving from one status to another.
// A transition to the same status carries no action.
func ActionFor(from, to Status) EntryAction {
	if from == to {
		return EntryAction{}
	}
	return actionTable[Transition{From: from, To: to}]
}
