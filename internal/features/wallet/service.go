package wallet

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"alchemyst.ke/billing/internal/common"
	"alchemyst.ke/billing/internal/events"
	"alchemyst.ke/billing/internal/features/accounts"
)

// Service exposes the ledger as standalone operations.
type Service struct {
	store  accounts.Store
	events events.Emitter
	now    func() time.Time
}

// NewService creates a wallet service.
func NewService(store accounts.Store, emitter events.Emitter) *Service {
	if emitter == nil {
		emitter = events.Discard
	}
	return &Service{store: store, events: emitter, now: time.Now}
}

// Credit adds an external deposit. A replayed transaction id fails with
// common.ErrDuplicateTransaction and leaves the balance untouched.
func (s *Service) Credit(ctx context.Context, accountID uuid.UUID, req CreditRequest) (Balance, error) {
	now := s.now().UTC()
	acc, err := s.store.Update(ctx, accountID, func(u *accounts.Unit) error {
		return CreditUnit(u, req, now)
	})
	if err != nil {
		return Balance{}, err
	}

	log.WithFields(log.Fields{
		"account":     accountID,
		"transaction": req.TransactionID,
		"amount":      common.FormatAmount(req.Amount, acc.Wallet.Currency),
	}).Info("wallet credited")

	s.events.Emit(events.New(events.WalletCredited, accountID, now, map[string]any{
		"transactionId": req.TransactionID,
		"amount":        req.Amount.String(),
		"balance":       acc.Wallet.Balance.String(),
	}))
	return balanceOf(acc), nil
}

// Debit charges the wallet. It fails with common.ErrInsufficientBalance when
// amount exceeds the balance.
func (s *Service) Debit(ctx context.Context, accountID uuid.UUID, req DebitRequest) (Balance, error) {
	now := s.now().UTC()
	acc, err := s.store.Update(ctx, accountID, func(u *accounts.Unit) error {
		return DebitUnit(u, req, now)
	})
	if err != nil {
		return Balance{}, err
	}
	return balanceOf(acc), nil
}

func (s *Service) GetBalance(ctx context.Context, accountID uuid.UUID) (Balance, error) {
	acc, err := s.store.Get(ctx, accountID)
	if err != nil {
		return Balance{}, err
	}
	return balanceOf(acc), nil
}

// PaymentHistory returns ledger entries, most recent first.
func (s *Service) PaymentHistory(ctx context.Context, accountID uuid.UUID) ([]accounts.PaymentEntry, error) {
	entries, err := s.store.PaymentHistory(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []accounts.PaymentEntry{}
	}
	return entries, nil
}

// Reconcile checks that the balance equals the sum of the signed entries.
func (s *Service) Reconcile(ctx context.Context, accountID uuid.UUID) (Reconciliation, error) {
	acc, err := s.store.Get(ctx, accountID)
	if err != nil {
		return Reconciliation{}, err
	}
	entries, err := s.store.PaymentHistory(ctx, accountID)
	if err != nil {
		return Reconciliation{}, err
	}

	sum := decimal.Zero
	for _, e := range entries {
		if e.Status == accounts.PaymentCompleted {
			sum = sum.Add(e.Amount)
		}
	}

	rec := Reconciliation{
		Balance:    acc.Wallet.Balance,
		LedgerSum:  sum,
		Entries:    len(entries),
		Consistent: sum.Equal(acc.Wallet.Balance),
		CheckedAt:  s.now().UTC(),
	}
	if !rec.Consistent {
		log.WithFields(log.Fields{
			"account": accountID,
			"balance": rec.Balance.String(),
			"ledger":  rec.LedgerSum.String(),
		}).Error("wallet balance does not match ledger")
	}
	return rec, nil
}

func balanceOf(a *accounts.Account) Balance {
	return Balance{Balance: a.Wallet.Balance, Currency: a.Wallet.Currency}
}
