package reconcile

import (
	"sync"
	"time"

	"membergate/internal/shared/biztime"
)

// PendingCheckout is one identity mid-checkout. Entries are in-memory only
// and lost on restart; the slow sweep recovers any missed confirmation.
type PendingCheckout struct {
	Identity     string
	SessionToken string
	CreatedAt    time.Time
}

// Tracker is the short-lived registry of identities mid-checkout. It drives
// the fast polling cadence: the scheduler runs the fast loop only while the
// tracker is non-empty.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]PendingCheckout
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{entries: make(map[string]PendingCheckout)}
}

// Track registers or overwrites the identity's pending checkout with the
// current timestamp.
func (t *Tracker) Track(identity, sessionToken string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[identity] = PendingCheckout{
		Identity:     identity,
		SessionToken: sessionToken,
		CreatedAt:    biztime.NowUTC(),
	}
}

// Has reports whether the identity has an in-flight checkout, supporting
// duplicate-checkout suppression.
func (t *Tracker) Has(identity string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.entries[identity]
	return ok
}

// Remove drops the identity's entry if present.
func (t *Tracker) Remove(identity string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, identity)
}

// Entries returns a snapshot of all pending checkouts.
func (t *Tracker) Entries() []PendingCheckout {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]PendingCheckout, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	return out
}

// Len returns the number of pending checkouts.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Clear drops every entry, used on shutdown and reset.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]PendingCheckout)
}
