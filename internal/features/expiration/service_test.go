package expiration

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alchemyst.ke/billing/internal/common"
	"alchemyst.ke/billing/internal/events"
	"alchemyst.ke/billing/internal/features/accounts"
	"alchemyst.ke/billing/internal/features/catalog"
	"alchemyst.ke/billing/internal/features/wallet"
)

var now = time.Date(2026, 6, 1, 2, 0, 0, 0, time.UTC)

// flakyStore fails updates of selected accounts.
type flakyStore struct {
	*accounts.MemoryStore
	fail map[uuid.UUID]bool
}

func (s *flakyStore) Update(ctx context.Context, id uuid.UUID, fn func(u *accounts.Unit) error) (*accounts.Account, error) {
	if s.fail[id] {
		return nil, errors.New("write conflict")
	}
	return s.MemoryStore.Update(ctx, id, fn)
}

type recordingReporter struct {
	results []Result
}

func (r *recordingReporter) Report(_ context.Context, res Result) error {
	r.results = append(r.results, res)
	return nil
}

type emitted struct {
	mu    sync.Mutex
	types []string
}

func (e *emitted) Emit(ev events.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.types = append(e.types, ev.Type)
}

func seedAccount(t *testing.T, store accounts.Store, balance int64, pkg accounts.Package) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	a := accounts.New(accounts.CategorySpa, accounts.Profile{})
	require.NoError(t, store.Create(ctx, a))
	_, err := store.Update(ctx, a.ID, func(u *accounts.Unit) error {
		if balance > 0 {
			if err := wallet.CreditUnit(u, wallet.CreditRequest{Amount: decimal.NewFromInt(balance), TransactionID: "seed"}, now); err != nil {
				return err
			}
		}
		u.Account.Package = pkg
		return nil
	})
	require.NoError(t, err)
	return a.ID
}

func pkg(tier catalog.Tier, d catalog.Duration, cost int64, expiry time.Time, autoRenew *catalog.Duration) accounts.Package {
	return accounts.Package{
		Tier:              tier,
		Duration:          d,
		TotalCost:         decimal.NewFromInt(cost),
		PurchaseDate:      expiry.AddDate(0, 0, -catalog.DaysFor(d)),
		ExpiryDate:        expiry,
		Status:            accounts.StatusActive,
		AutoRenew:         autoRenew != nil,
		AutoRenewDuration: autoRenew,
	}
}

func newService(store accounts.Store) (*Service, *recordingReporter, *emitted) {
	rep := &recordingReporter{}
	em := &emitted{}
	s := NewService(store, NewLocalLocker(), em, rep)
	s.now = func() time.Time { return now }
	return s, rep, em
}

func TestSweep_AutoRenewsEliteWeekly(t *testing.T) {
	store := accounts.NewMemoryStore()
	id := seedAccount(t, store, 600, pkg(catalog.TierElite, catalog.Weekly, 600, now.Add(-time.Hour), catalog.Weekly.Ptr()))
	s, rep, em := newService(store)

	res, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.AutoRenewed)
	assert.Equal(t, 0, res.Expired)

	a, _ := store.Get(context.Background(), id)
	assert.Equal(t, accounts.StatusActive, a.Package.Status)
	assert.Equal(t, now.AddDate(0, 0, 7), a.Package.ExpiryDate)
	assert.True(t, a.Wallet.Balance.IsZero())

	h, _ := store.PackageHistory(context.Background(), id)
	require.Len(t, h, 1)
	assert.Equal(t, accounts.ActionAutoRenew, h[0].Action)

	pays, _ := store.PaymentHistory(context.Background(), id)
	assert.True(t, strings.HasPrefix(pays[0].TransactionID, "AUTO_RENEW_"))

	require.Len(t, rep.results, 1)
	assert.Equal(t, []string{events.SubscriptionAutoRenewed}, em.types)
}

func TestSweep_AutoRenewSwitchesToMonthly(t *testing.T) {
	store := accounts.NewMemoryStore()
	id := seedAccount(t, store, 5000, pkg(catalog.TierPremium, catalog.Weekly, 500, now, catalog.Monthly.Ptr()))
	s, _, _ := newService(store)

	res, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.AutoRenewed)

	a, _ := store.Get(context.Background(), id)
	assert.Equal(t, catalog.Monthly, a.Package.Duration)
	assert.True(t, a.Package.TotalCost.Equal(decimal.NewFromInt(1750)))
	assert.True(t, a.Wallet.Balance.Equal(decimal.NewFromInt(3250)))
	assert.Equal(t, now.AddDate(0, 0, 30), a.Package.ExpiryDate)
}

func TestSweep_ExpiresWithoutFunds(t *testing.T) {
	store := accounts.NewMemoryStore()
	poor := seedAccount(t, store, 100, pkg(catalog.TierBasic, catalog.Monthly, 1000, now.Add(-time.Minute), catalog.Monthly.Ptr()))
	manual := seedAccount(t, store, 5000, pkg(catalog.TierBasic, catalog.Weekly, 300, now.Add(-time.Minute), nil))
	future := seedAccount(t, store, 0, pkg(catalog.TierBasic, catalog.Weekly, 300, now.Add(time.Hour), nil))
	s, _, _ := newService(store)

	res, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Expired)
	assert.Equal(t, 0, res.AutoRenewed)

	for _, id := range []uuid.UUID{poor, manual} {
		a, _ := store.Get(context.Background(), id)
		assert.Equal(t, accounts.StatusExpired, a.Package.Status)
		assert.False(t, a.IsActive)
		h, _ := store.PackageHistory(context.Background(), id)
		require.Len(t, h, 1)
		assert.Equal(t, accounts.ActionExpire, h[0].Action)
	}
	a, _ := store.Get(context.Background(), poor)
	assert.True(t, a.Wallet.Balance.Equal(decimal.NewFromInt(100)), "no partial debit")

	f, _ := store.Get(context.Background(), future)
	assert.Equal(t, accounts.StatusActive, f.Package.Status)
}

func TestSweep_Converges(t *testing.T) {
	store := accounts.NewMemoryStore()
	id := seedAccount(t, store, 1000, pkg(catalog.TierElite, catalog.Weekly, 600, now.Add(-time.Hour), catalog.Weekly.Ptr()))
	seedAccount(t, store, 0, pkg(catalog.TierBasic, catalog.Weekly, 100, now.Add(-time.Hour), nil))
	s, _, _ := newService(store)

	first, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.AutoRenewed)
	assert.Equal(t, 1, first.Expired)

	second, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.AutoRenewed)
	assert.Zero(t, second.Expired)

	a, _ := store.Get(context.Background(), id)
	assert.True(t, a.Wallet.Balance.Equal(decimal.NewFromInt(400)), "debited once")
}

func TestSweep_IsolatesFailures(t *testing.T) {
	mem := accounts.NewMemoryStore()
	bad := seedAccount(t, mem, 0, pkg(catalog.TierBasic, catalog.Weekly, 100, now.Add(-time.Hour), nil))
	good := seedAccount(t, mem, 0, pkg(catalog.TierBasic, catalog.Weekly, 100, now.Add(-time.Minute), nil))
	store := &flakyStore{MemoryStore: mem, fail: map[uuid.UUID]bool{bad: true}}
	s, _, _ := newService(store)

	res, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Expired)

	g, _ := mem.Get(context.Background(), good)
	assert.Equal(t, accounts.StatusExpired, g.Package.Status)

	// still due, retried next run
	delete(store.fail, bad)
	res, err = s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Expired)
}

// renewingStore renews the package between listing and locking.
type renewingStore struct {
	*accounts.MemoryStore
	once sync.Once
}

func (s *renewingStore) ListDue(ctx context.Context, at time.Time) ([]uuid.UUID, error) {
	ids, err := s.MemoryStore.ListDue(ctx, at)
	s.once.Do(func() {
		for _, id := range ids {
			_, _ = s.MemoryStore.Update(ctx, id, func(u *accounts.Unit) error {
				u.Account.Package.ExpiryDate = at.AddDate(0, 0, 7)
				return nil
			})
		}
	})
	return ids, err
}

func TestSweep_SkipsAccountsRenewedMeanwhile(t *testing.T) {
	mem := accounts.NewMemoryStore()
	id := seedAccount(t, mem, 0, pkg(catalog.TierBasic, catalog.Weekly, 100, now.Add(-time.Hour), nil))
	s, _, _ := newService(&renewingStore{MemoryStore: mem})

	res, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Expired)

	a, _ := mem.Get(context.Background(), id)
	assert.Equal(t, accounts.StatusActive, a.Package.Status)
}

func TestSweep_Overlap(t *testing.T) {
	lock := NewLocalLocker()
	release, err := lock.Acquire(context.Background())
	require.NoError(t, err)

	s := NewService(accounts.NewMemoryStore(), lock, nil, nil)
	_, err = s.Sweep(context.Background())
	require.ErrorIs(t, err, common.ErrSweepInProgress)

	release()
	_, err = s.Sweep(context.Background())
	require.NoError(t, err)
}

type staticGuard struct{ err error }

func (g staticGuard) Check(*http.Request) error { return g.err }

func TestHandleCheckExpirations(t *testing.T) {
	store := accounts.NewMemoryStore()
	seedAccount(t, store, 0, pkg(catalog.TierBasic, catalog.Weekly, 100, now.Add(-time.Hour), nil))
	s, _, _ := newService(store)

	rec := httptest.NewRecorder()
	NewHandler(s, staticGuard{common.ErrInvalidCronKey}).
		HandleCheckExpirations(rec, httptest.NewRequest(http.MethodPost, "/user/check-expirations", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	NewHandler(s, staticGuard{}).
		HandleCheckExpirations(rec, httptest.NewRequest(http.MethodPost, "/user/check-expirations", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"expiredCount":1`)
	assert.Contains(t, rec.Body.String(), "1 expired, 0 auto-renewed")
}
