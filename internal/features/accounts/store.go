package accounts

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Unit is one atomic mutation of an account.
// The callback passed to Store.Update edits Account in place and appends
// history entries; the store commits all of it or nothing.
type Unit struct {
	Account *Account

	payments  []PaymentEntry
	events    []PackageEvent
	processed []string
}

func newUnit(a *Account) *Unit {
	return &Unit{Account: a}
}

// AppendPayment queues a payment history entry.
func (u *Unit) AppendPayment(e PaymentEntry) {
	u.payments = append(u.payments, e)
}

// AppendPackageEvent queues a package history entry.
func (u *Unit) AppendPackageEvent(e PackageEvent) {
	u.events = append(u.events, e)
}

// MarkProcessed queues an external transaction id for the processed set.
// Committing fails with common.ErrDuplicateTransaction if it is already there.
func (u *Unit) MarkProcessed(transactionID string) {
	u.processed = append(u.processed, transactionID)
}

// Payments returns the queued payment entries.
func (u *Unit) Payments() []PaymentEntry { return u.payments }

// PackageEvents returns the queued package history entries.
func (u *Unit) PackageEvents() []PackageEvent { return u.events }

// seal runs once after the callback succeeded, before the write.
func (u *Unit) seal(now time.Time) {
	u.Account.IsActive = RecomputeActivation(u.Account)
	u.Account.UpdatedAt = now
}

// Store persists accounts. Update is the only way to change one.
type Store interface {
	Create(ctx context.Context, a *Account) error
	Get(ctx context.Context, id uuid.UUID) (*Account, error)
	Update(ctx context.Context, id uuid.UUID, fn func(u *Unit) error) (*Account, error)
	// ListDue returns ids of accounts whose active package expired at or before now.
	ListDue(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	// PaymentHistory returns entries newest first.
	PaymentHistory(ctx context.Context, id uuid.UUID) ([]PaymentEntry, error)
	// PackageHistory returns entries oldest first.
	PackageHistory(ctx context.Context, id uuid.UUID) ([]PackageEvent, error)
	Close()
}

// New prepares an account for Create.
func New(category Category, profile Profile) *Account {
	now := time.Now().UTC()
	return &Account{
		ID:        uuid.New(),
		Category:  category,
		Profile:   profile,
		Wallet:    Wallet{Currency: DefaultCurrency},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
