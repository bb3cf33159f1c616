package accounts

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"alchemyst.ke/billing/internal/common"
)

// MemoryStore keeps accounts in process memory.
// Used in local mode and in tests; every account has its own lock.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*memoryRecord
	now     func() time.Time
}

type memoryRecord struct {
	mu        sync.Mutex
	account   *Account
	payments  []PaymentEntry
	events    []PackageEvent
	processed map[string]struct{}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[uuid.UUID]*memoryRecord),
		now:     time.Now,
	}
}

func (s *MemoryStore) record(id uuid.UUID) (*memoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, common.ErrAccountNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Create(_ context.Context, a *Account) error {
	if !a.Wallet.Balance.IsZero() {
		return common.Invalid("wallet.balance", "money only enters through the ledger")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[a.ID]; exists {
		return common.Invalid("id", "account already exists")
	}
	stored := a.Clone()
	stored.IsActive = RecomputeActivation(stored)
	s.records[a.ID] = &memoryRecord{
		account:   stored,
		processed: make(map[string]struct{}),
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Account, error) {
	rec, err := s.record(id)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.account.Clone(), nil
}

// Update applies fn to a copy of the account and swaps it in only if fn
// succeeded and the result keeps the ledger invariants.
func (s *MemoryStore) Update(ctx context.Context, id uuid.UUID, fn func(u *Unit) error) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, err := s.record(id)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	u := newUnit(rec.account.Clone())
	if err := fn(u); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(u.processed))
	for _, txID := range u.processed {
		if _, dup := rec.processed[txID]; dup {
			return nil, common.ErrDuplicateTransaction
		}
		if _, dup := seen[txID]; dup {
			return nil, common.ErrDuplicateTransaction
		}
		seen[txID] = struct{}{}
	}
	if u.Account.Wallet.Balance.IsNegative() {
		return nil, common.ErrInsufficientBalance
	}

	u.seal(s.now().UTC())

	rec.account = u.Account
	rec.payments = append(rec.payments, u.payments...)
	rec.events = append(rec.events, u.events...)
	for txID := range seen {
		rec.processed[txID] = struct{}{}
	}
	return rec.account.Clone(), nil
}

func (s *MemoryStore) ListDue(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	s.mu.RLock()
	recs := make([]*memoryRecord, 0, len(s.records))
	for _, rec := range s.records {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	type due struct {
		id     uuid.UUID
		expiry time.Time
	}
	var list []due
	for _, rec := range recs {
		rec.mu.Lock()
		if rec.account.Package.DueAt(now) {
			list = append(list, due{rec.account.ID, rec.account.Package.ExpiryDate})
		}
		rec.mu.Unlock()
	}
	sort.Slice(list, func(i, j int) bool { return list[i].expiry.Before(list[j].expiry) })

	ids := make([]uuid.UUID, len(list))
	for i, d := range list {
		ids[i] = d.id
	}
	return ids, nil
}

func (s *MemoryStore) PaymentHistory(_ context.Context, id uuid.UUID) ([]PaymentEntry, error) {
	rec, err := s.record(id)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]PaymentEntry, len(rec.payments))
	for i, e := range rec.payments {
		out[len(out)-1-i] = e
	}
	return out, nil
}

func (s *MemoryStore) PackageHistory(_ context.Context, id uuid.UUID) ([]PackageEvent, error) {
	rec, err := s.record(id)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]PackageEvent(nil), rec.events...), nil
}

func (s *MemoryStore) Close() {}
