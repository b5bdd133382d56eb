package reconcile

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"membergate/internal/domain/entitlement"
	"membergate/internal/shared/errors"
	"membergate/internal/shared/logger"
)

// --- fakes ---

type fakeRepo struct {
	records map[string]*entitlement.Entitlement

	getErr    error
	upsertErr error
	listErr   error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[string]*entitlement.Entitlement)}
}

func (f *fakeRepo) GetByIdentity(ctx context.Context, identity string) (*entitlement.Entitlement, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.records[identity]
	if !ok {
		return nil, errors.NewNotFoundError("entitlement not found")
	}
	return rec, nil
}

func (f *fakeRepo) Upsert(ctx context.Context, e *entitlement.Entitlement) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.records[e.Identity()] = e
	return nil
}

func (f *fakeRepo) Delete(ctx context.Context, identity string) error {
	delete(f.records, identity)
	return nil
}

func (f *fakeRepo) ListByStatuses(ctx context.Context, statuses []entitlement.Status) ([]*entitlement.Entitlement, error) {
	var out []*entitlement.Entitlement
	for _, rec := range f.records {
		for _, st := range statuses {
			if rec.Status() == st {
				out = append(out, rec)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) ListLegacyExpiring(ctx context.Context, now time.Time) ([]*entitlement.Entitlement, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*entitlement.Entitlement
	for _, rec := range f.records {
		if rec.LegacyExpired(now) {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fakeBilling struct {
	subs     []BillingSubscription
	listErr  error
	sessions map[string]*CheckoutSession
	sessErr  error

	canceled []string
}

func newFakeBilling() *fakeBilling {
	return &fakeBilling{sessions: make(map[string]*CheckoutSession)}
}

func (f *fakeBilling) ListSubscriptions(ctx context.Context) ([]BillingSubscription, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.subs, nil
}

func (f *fakeBilling) GetCheckoutSession(ctx context.Context, token string) (*CheckoutSession, error) {
	if f.sessErr != nil {
		return nil, f.sessErr
	}
	sess, ok := f.sessions[token]
	if !ok {
		return &CheckoutSession{}, nil
	}
	return sess, nil
}

func (f *fakeBilling) CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) error {
	f.canceled = append(f.canceled, subscriptionID)
	return nil
}

type fakeAccess struct {
	grants  []string
	revokes []string
	notices map[string][]entitlement.Notice

	grantErr  error
	revokeErr error
	failFor   string // identity whose grant/revoke fails
}

func newFakeAccess() *fakeAccess {
	return &fakeAccess{notices: make(map[string][]entitlement.Notice)}
}

func (f *fakeAccess) Grant(ctx context.Context, identity string) error {
	if f.grantErr != nil && (f.failFor == "" || f.failFor == identity) {
		return f.grantErr
	}
	f.grants = append(f.grants, identity)
	return nil
}

func (f *fakeAccess) Revoke(ctx context.Context, identity string) error {
	if f.revokeErr != nil && (f.failFor == "" || f.failFor == identity) {
		return f.revokeErr
	}
	f.revokes = append(f.revokes, identity)
	return nil
}

func (f *fakeAccess) Notify(ctx context.Context, identity string, notice entitlement.Notice) {
	if notice == entitlement.NoticeNone {
		return
	}
	f.notices[identity] = append(f.notices[identity], notice)
}

// --- helpers ---

func newTestEngine(repo *fakeRepo, billing *fakeBilling, access *fakeAccess) *Engine {
	return NewEngine(repo, billing, access, 25*time.Minute, logger.NewLogger())
}

func activeSub(identity string) BillingSubscription {
	end := time.Now().UTC().Add(30 * 24 * time.Hour)
	return BillingSubscription{
		Identity:       identity,
		CustomerID:     "cus_" + identity,
		SubscriptionID: "sub_" + identity,
		Status:         entitlement.StatusActive,
		PeriodEnd:      &end,
	}
}

// --- ReconcileAll ---

func TestReconcileAllCreatesRecordAndGrants(t *testing.T) {
	repo := newFakeRepo()
	billing := newFakeBilling()
	access := newFakeAccess()
	billing.subs = []BillingSubscription{activeSub("u1")}

	engine := newTestEngine(repo, billing, access)
	changed, err := engine.ReconcileAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	rec := repo.records["u1"]
	require.NotNil(t, rec)
	assert.Equal(t, entitlement.StatusActive, rec.Status())
	assert.True(t, rec.HasBillingLink())
	assert.Equal(t, []string{"u1"}, access.grants)
	assert.Equal(t, []entitlement.Notice{entitlement.NoticeWelcome}, access.notices["u1"])
}

func TestReconcileAllBackfillsBillingLink(t *testing.T) {
	repo := newFakeRepo()
	billing := newFakeBilling()
	access := newFakeAccess()

	// Existing record without linkage, as left by an earlier migration.
	rec, err := entitlement.NewEntitlement("u1")
	require.NoError(t, err)
	repo.records["u1"] = rec
	billing.subs = []BillingSubscription{activeSub("u1")}

	engine := newTestEngine(repo, billing, access)
	changed, err := engine.ReconcileAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	assert.True(t, repo.records["u1"].HasBillingLink())
	assert.Equal(t, "sub_u1", *repo.records["u1"].BillingSubscriptionID())
}

func TestReconcileAllIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	billing := newFakeBilling()
	access := newFakeAccess()
	billing.subs = []BillingSubscription{activeSub("u1")}

	engine := newTestEngine(repo, billing, access)
	_, err := engine.ReconcileAll(context.Background())
	require.NoError(t, err)

	changed, err := engine.ReconcileAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, changed)
	assert.Len(t, access.grants, 1)
	assert.Len(t, access.notices["u1"], 1)
}

func TestReconcileAllRestoresAfterPaymentRecovered(t *testing.T) {
	repo := newFakeRepo()
	billing := newFakeBilling()
	access := newFakeAccess()

	rec, err := entitlement.NewEntitlement("u1")
	require.NoError(t, err)
	rec.LinkBilling("cus_u1", "sub_u1")
	require.NoError(t, rec.ChangeStatus(entitlement.StatusPastDue, nil))
	repo.records["u1"] = rec
	billing.subs = []BillingSubscription{activeSub("u1")}

	engine := newTestEngine(repo, billing, access)
	changed, err := engine.ReconcileAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	assert.Equal(t, entitlement.StatusActive, repo.records["u1"].Status())
	assert.Equal(t, []entitlement.Notice{entitlement.NoticeRestored}, access.notices["u1"])
}

func TestReconcileAllRevokesOnLapse(t *testing.T) {
	repo := newFakeRepo()
	billing := newFakeBilling()
	access := newFakeAccess()

	rec, err := entitlement.NewEntitlement("u1")
	require.NoError(t, err)
	rec.LinkBilling("cus_u1", "sub_u1")
	require.NoError(t, rec.ChangeStatus(entitlement.StatusActive, nil))
	repo.records["u1"] = rec

	sub := activeSub("u1")
	sub.Status = entitlement.StatusCanceled
	billing.subs = []BillingSubscription{sub}

	engine := newTestEngine(repo, billing, access)
	changed, err := engine.ReconcileAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	assert.Equal(t, entitlement.StatusCanceled, repo.records["u1"].Status())
	assert.Equal(t, []string{"u1"}, access.revokes)
	assert.Equal(t, []entitlement.Notice{entitlement.NoticeEnded}, access.notices["u1"])
}

func TestReconcileAllProviderFetchFailureAbortsTick(t *testing.T) {
	repo := newFakeRepo()
	billing := newFakeBilling()
	access := newFakeAccess()
	billing.listErr = stderrors.New("provider unavailable")

	engine := newTestEngine(repo, billing, access)
	_, err := engine.ReconcileAll(context.Background())
	assert.Error(t, err)
	assert.Empty(t, repo.records)
}

func TestReconcileAllPerIdentityFailureContinues(t *testing.T) {
	repo := newFakeRepo()
	billing := newFakeBilling()
	access := newFakeAccess()
	billing.subs = []BillingSubscription{activeSub("u1"), activeSub("u2"), activeSub("u3")}
	access.grantErr = stderrors.New("rate limited")
	access.failFor = "u2"

	engine := newTestEngine(repo, billing, access)
	changed, err := engine.ReconcileAll(context.Background())
	require.NoError(t, err)

	// u2's grant failed so its record was not persisted; the other two
	// fully converged.
	assert.Equal(t, 2, changed)
	assert.Len(t, repo.records, 2)
	assert.NotContains(t, repo.records, "u2")
	assert.ElementsMatch(t, []string{"u1", "u3"}, access.grants)
}

func TestReconcileAllRetriesFailedGrantNextSweep(t *testing.T) {
	repo := newFakeRepo()
	billing := newFakeBilling()
	access := newFakeAccess()
	billing.subs = []BillingSubscription{activeSub("u1")}
	access.grantErr = stderrors.New("rate limited")

	engine := newTestEngine(repo, billing, access)
	changed, err := engine.ReconcileAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, changed)
	assert.Empty(t, repo.records)
	assert.Empty(t, access.notices["u1"])

	// The chat platform recovers and the next sweep completes the transition.
	access.grantErr = nil
	changed, err = engine.ReconcileAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	rec := repo.records["u1"]
	require.NotNil(t, rec)
	assert.Equal(t, entitlement.StatusActive, rec.Status())
	assert.Equal(t, []string{"u1"}, access.grants)
	assert.Equal(t, []entitlement.Notice{entitlement.NoticeWelcome}, access.notices["u1"])
}

func TestReconcileAllSkipsUntaggedSubscriptions(t *testing.T) {
	repo := newFakeRepo()
	billing := newFakeBilling()
	access := newFakeAccess()
	sub := activeSub("u1")
	sub.Identity = ""
	billing.subs = []BillingSubscription{sub}

	engine := newTestEngine(repo, billing, access)
	changed, err := engine.ReconcileAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, changed)
	assert.Empty(t, repo.records)
}

// --- ReconcileLegacyExpiry ---

func TestReconcileLegacyExpiryCancelsElapsedGrants(t *testing.T) {
	repo := newFakeRepo()
	billing := newFakeBilling()
	access := newFakeAccess()

	yesterday := time.Now().UTC().Add(-24 * time.Hour)
	tomorrow := time.Now().UTC().Add(24 * time.Hour)

	expired, err := entitlement.NewLegacyGrant("old", yesterday)
	require.NoError(t, err)
	current, err := entitlement.NewLegacyGrant("fresh", tomorrow)
	require.NoError(t, err)
	repo.records["old"] = expired
	repo.records["fresh"] = current

	engine := newTestEngine(repo, billing, access)
	count, err := engine.ReconcileLegacyExpiry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Equal(t, entitlement.StatusCanceled, repo.records["old"].Status())
	assert.False(t, repo.records["old"].IsLegacyGrant())
	assert.Equal(t, entitlement.StatusTrialing, repo.records["fresh"].Status())
	assert.Equal(t, []string{"old"}, access.revokes)
	assert.Equal(t, []entitlement.Notice{entitlement.NoticeEnded}, access.notices["old"])
	assert.Empty(t, access.notices["fresh"])
}

func TestReconcileLegacyExpiryRetriesFailedRevoke(t *testing.T) {
	repo := newFakeRepo()
	billing := newFakeBilling()
	access := newFakeAccess()
	access.revokeErr = stderrors.New("rate limited")

	yesterday := time.Now().UTC().Add(-24 * time.Hour)
	rec, err := entitlement.NewLegacyGrant("old", yesterday)
	require.NoError(t, err)
	repo.records["old"] = rec

	engine := newTestEngine(repo, billing, access)
	count, err := engine.ReconcileLegacyExpiry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, entitlement.StatusTrialing, repo.records["old"].Status())
	assert.Empty(t, access.notices["old"])

	// The chat platform recovers and the next sweep finishes the expiry.
	access.revokeErr = nil
	count, err = engine.ReconcileLegacyExpiry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, entitlement.StatusCanceled, repo.records["old"].Status())
	assert.Equal(t, []entitlement.Notice{entitlement.NoticeEnded}, access.notices["old"])
}

// --- ReconcilePendingCheckouts ---

func TestReconcilePendingCheckoutsConfirmsPaid(t *testing.T) {
	repo := newFakeRepo()
	billing := newFakeBilling()
	access := newFakeAccess()
	end := time.Now().UTC().Add(30 * 24 * time.Hour)
	billing.sessions["cs_1"] = &CheckoutSession{
		Paid:           true,
		Identity:       "u1",
		CustomerID:     "cus_u1",
		SubscriptionID: "sub_u1",
		Status:         entitlement.StatusActive,
		PeriodEnd:      &end,
	}

	engine := newTestEngine(repo, billing, access)
	engine.Tracker().Track("u1", "cs_1")

	confirmed, err := engine.ReconcilePendingCheckouts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, confirmed)
	assert.False(t, engine.Tracker().Has("u1"))

	rec := repo.records["u1"]
	require.NotNil(t, rec)
	assert.Equal(t, entitlement.StatusActive, rec.Status())
	assert.Equal(t, []string{"u1"}, access.grants)
	assert.Equal(t, []entitlement.Notice{entitlement.NoticeWelcome}, access.notices["u1"])
}

func TestReconcilePendingCheckoutsKeepsUnpaid(t *testing.T) {
	repo := newFakeRepo()
	billing := newFakeBilling()
	access := newFakeAccess()
	billing.sessions["cs_1"] = &CheckoutSession{Paid: false}

	engine := newTestEngine(repo, billing, access)
	engine.Tracker().Track("u1", "cs_1")

	confirmed, err := engine.ReconcilePendingCheckouts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, confirmed)
	assert.True(t, engine.Tracker().Has("u1"))
	assert.Empty(t, repo.records)
}

func TestReconcilePendingCheckoutsExpiresStaleEntries(t *testing.T) {
	repo := newFakeRepo()
	billing := newFakeBilling()
	access := newFakeAccess()
	billing.sessions["cs_1"] = &CheckoutSession{Paid: false}

	engine := NewEngine(repo, billing, access, time.Nanosecond, logger.NewLogger())
	engine.Tracker().Track("u1", "cs_1")
	time.Sleep(time.Millisecond)

	confirmed, err := engine.ReconcilePendingCheckouts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, confirmed)
	assert.False(t, engine.Tracker().Has("u1"))
	assert.Empty(t, repo.records)
	assert.Empty(t, access.notices["u1"])
}

func TestReconcilePendingCheckoutsSessionErrorKeepsEntry(t *testing.T) {
	repo := newFakeRepo()
	billing := newFakeBilling()
	access := newFakeAccess()
	billing.sessErr = stderrors.New("provider unavailable")

	engine := newTestEngine(repo, billing, access)
	engine.Tracker().Track("u1", "cs_1")

	_, err := engine.ReconcilePendingCheckouts(context.Background())
	require.NoError(t, err)
	assert.True(t, engine.Tracker().Has("u1"))
}
