package accounts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alchemyst.ke/billing/internal/common"
)

func seed(t *testing.T, s *MemoryStore) *Account {
	t.Helper()
	a := New(CategoryEscort, completeProfile())
	require.NoError(t, s.Create(context.Background(), a))
	return a
}

func credit(u *Unit, amount int64, txID string) error {
	amt := decimal.NewFromInt(amount)
	u.Account.Wallet.Balance = u.Account.Wallet.Balance.Add(amt)
	u.AppendPayment(PaymentEntry{TransactionID: txID, Amount: amt, Type: PaymentDeposit, Status: PaymentCompleted})
	u.MarkProcessed(txID)
	return nil
}

func TestMemoryStore_CreateRejectsOpeningBalance(t *testing.T) {
	s := NewMemoryStore()
	a := New(CategorySpa, Profile{})
	a.Wallet.Balance = decimal.NewFromInt(10)

	err := s.Create(context.Background(), a)
	assert.Equal(t, common.KindValidation, common.KindOf(err))
}

func TestMemoryStore_GetMissing(t *testing.T) {
	_, err := NewMemoryStore().Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrAccountNotFound)
}

func TestMemoryStore_UpdateCommitsEverything(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := seed(t, s)

	got, err := s.Update(ctx, a.ID, func(u *Unit) error {
		if err := credit(u, 1000, "MP1"); err != nil {
			return err
		}
		u.Account.Package = activePackage()
		u.AppendPackageEvent(NewPackageEvent(u.Account.Package, ActionSubscribe, time.Now()))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "1000", got.Wallet.Balance.String())
	assert.True(t, got.IsActive, "activation recomputed on commit")

	pays, _ := s.PaymentHistory(ctx, a.ID)
	evs, _ := s.PackageHistory(ctx, a.ID)
	assert.Len(t, pays, 1)
	assert.Len(t, evs, 1)
}

func TestMemoryStore_FailedUnitLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := seed(t, s)

	boom := errors.New("boom")
	_, err := s.Update(ctx, a.ID, func(u *Unit) error {
		_ = credit(u, 500, "MP1")
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, _ := s.Get(ctx, a.ID)
	assert.True(t, got.Wallet.Balance.IsZero())
	pays, _ := s.PaymentHistory(ctx, a.ID)
	assert.Empty(t, pays)

	// the id was not consumed by the failed unit
	_, err = s.Update(ctx, a.ID, func(u *Unit) error { return credit(u, 500, "MP1") })
	require.NoError(t, err)
}

func TestMemoryStore_DuplicateProcessedID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := seed(t, s)

	_, err := s.Update(ctx, a.ID, func(u *Unit) error { return credit(u, 100, "MP1") })
	require.NoError(t, err)

	_, err = s.Update(ctx, a.ID, func(u *Unit) error { return credit(u, 100, "MP1") })
	assert.ErrorIs(t, err, common.ErrDuplicateTransaction)

	got, _ := s.Get(ctx, a.ID)
	assert.Equal(t, "100", got.Wallet.Balance.String())
}

func TestMemoryStore_NegativeBalanceRejected(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := seed(t, s)

	_, err := s.Update(ctx, a.ID, func(u *Unit) error {
		u.Account.Wallet.Balance = decimal.NewFromInt(-1)
		return nil
	})
	assert.ErrorIs(t, err, common.ErrInsufficientBalance)
}

func TestMemoryStore_ConcurrentUpdatesSerialize(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := seed(t, s)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, a.ID, func(u *Unit) error { return credit(u, 1, uuid.NewString()) })
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, _ := s.Get(ctx, a.ID)
	assert.Equal(t, "50", got.Wallet.Balance.String())
}

func TestMemoryStore_ListDue(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now().UTC()

	mk := func(expiry time.Time, status Status) uuid.UUID {
		a := seed(t, s)
		_, err := s.Update(ctx, a.ID, func(u *Unit) error {
			u.Account.Package = Package{Tier: "basic", Duration: "weekly", ExpiryDate: expiry, Status: status}
			return nil
		})
		require.NoError(t, err)
		return a.ID
	}
	later := mk(now.Add(-time.Hour), StatusActive)
	earlier := mk(now.Add(-2*time.Hour), StatusActive)
	mk(now.Add(time.Hour), StatusActive)
	mk(now.Add(-time.Hour), StatusExpired)
	seed(t, s)

	ids, err := s.ListDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{earlier, later}, ids)
}

func TestMemoryStore_PaymentHistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := seed(t, s)

	for _, id := range []string{"A", "B", "C"} {
		_, err := s.Update(ctx, a.ID, func(u *Unit) error { return credit(u, 1, id) })
		require.NoError(t, err)
	}
	pays, err := s.PaymentHistory(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, pays, 3)
	assert.Equal(t, "C", pays[0].TransactionID)
	assert.Equal(t, "A", pays[2].TransactionID)
}
