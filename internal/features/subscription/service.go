package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"alchemyst.ke/billing/internal/common"
	"alchemyst.ke/billing/internal/events"
	"alchemyst.ke/billing/internal/features/accounts"
	"alchemyst.ke/billing/internal/features/catalog"
	"alchemyst.ke/billing/internal/features/wallet"
)

// Service applies package transitions. Each transition is one account unit:
// the debit, the slot write and the history entries commit together.
type Service struct {
	store  accounts.Store
	prices catalog.PriceList
	events events.Emitter
	now    func() time.Time
}

// NewService creates a subscription service. An empty price list trusts the
// quoted costs.
func NewService(store accounts.Store, prices catalog.PriceList, emitter events.Emitter) *Service {
	if emitter == nil {
		emitter = events.Discard
	}
	return &Service{store: store, prices: prices, events: emitter, now: time.Now}
}

func reference(prefix string) string {
	return prefix + uuid.NewString()
}

func expiryFrom(from time.Time, d catalog.Duration) time.Time {
	return from.AddDate(0, 0, catalog.DaysFor(d))
}

// Subscribe buys a new package. It fails with common.ErrAlreadySubscribed
// while an active package is unexpired.
func (s *Service) Subscribe(ctx context.Context, accountID uuid.UUID, req PurchaseRequest) (Result, error) {
	cost, err := s.prices.Quote(req.Tier, req.Duration, req.TotalCost)
	if err != nil {
		return Result{}, err
	}

	now := s.now().UTC()
	acc, err := s.store.Update(ctx, accountID, func(u *accounts.Unit) error {
		if u.Account.Package.ActiveAt(now) {
			return common.ErrAlreadySubscribed
		}
		err := wallet.DebitUnit(u, wallet.DebitRequest{
			Amount:      cost,
			Type:        accounts.PaymentSubscription,
			Description: fmt.Sprintf("New Subscription: %s %s", req.Tier, req.Duration),
			Reference:   reference(RefSubscribe),
		}, now)
		if err != nil {
			return err
		}

		u.Account.Package = accounts.Package{
			Tier:         req.Tier,
			Duration:     req.Duration,
			TotalCost:    cost,
			PurchaseDate: now,
			ExpiryDate:   expiryFrom(now, req.Duration),
			Status:       accounts.StatusActive,
		}
		u.AppendPackageEvent(accounts.NewPackageEvent(u.Account.Package, accounts.ActionSubscribe, now))
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.emit(events.SubscriptionSubscribed, acc, now)
	return resultOf(acc), nil
}

// Upgrade replaces an active package with a strictly higher tier.
func (s *Service) Upgrade(ctx context.Context, accountID uuid.UUID, req PurchaseRequest) (Result, error) {
	cost, err := s.prices.Quote(req.Tier, req.Duration, req.TotalCost)
	if err != nil {
		return Result{}, err
	}

	now := s.now().UTC()
	acc, err := s.store.Update(ctx, accountID, func(u *accounts.Unit) error {
		cur := u.Account.Package
		if !cur.ActiveAt(now) {
			return common.ErrNoActivePackage
		}
		if req.Tier.Priority() <= cur.Tier.Priority() {
			return common.ErrMustUpgradeToHigherTier
		}
		err := wallet.DebitUnit(u, wallet.DebitRequest{
			Amount:      cost,
			Type:        accounts.PaymentSubscription,
			Description: fmt.Sprintf("Upgrade to: %s %s", req.Tier, req.Duration),
			Reference:   reference(RefUpgrade),
		}, now)
		if err != nil {
			return err
		}

		next := accounts.Package{
			Tier:         req.Tier,
			Duration:     req.Duration,
			TotalCost:    cost,
			PurchaseDate: now,
			ExpiryDate:   expiryFrom(now, req.Duration),
			Status:       accounts.StatusActive,
			AutoRenew:    cur.AutoRenew,
		}
		if cur.AutoRenew {
			next.AutoRenewDuration = req.Duration.Ptr()
		}
		u.Account.Package = next
		u.AppendPackageEvent(accounts.NewPackageEvent(next, accounts.ActionUpgrade, now))
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.emit(events.SubscriptionUpgraded, acc, now)
	return resultOf(acc), nil
}

// Renew extends the current package. Remaining time stacks when the package
// is still active; otherwise the new period starts now.
func (s *Service) Renew(ctx context.Context, accountID uuid.UUID, req RenewRequest) (Result, error) {
	now := s.now().UTC()
	acc, err := s.store.Update(ctx, accountID, func(u *accounts.Unit) error {
		cur := u.Account.Package
		if !cur.Exists() {
			return common.ErrNoPackage
		}
		cost, err := s.prices.Quote(cur.Tier, req.Duration, req.TotalCost)
		if err != nil {
			return err
		}
		err = wallet.DebitUnit(u, wallet.DebitRequest{
			Amount:      cost,
			Type:        accounts.PaymentSubscription,
			Description: fmt.Sprintf("Renewal: %s %s", cur.Tier, req.Duration),
			Reference:   reference(RefRenew),
		}, now)
		if err != nil {
			return err
		}

		from := now
		if cur.ActiveAt(now) {
			from = cur.ExpiryDate
		}
		next := cur
		next.Duration = req.Duration
		next.TotalCost = cost
		next.ExpiryDate = expiryFrom(from, req.Duration)
		next.Status = accounts.StatusActive
		u.Account.Package = next

		ev := accounts.NewPackageEvent(next, accounts.ActionRenew, now)
		ev.PurchaseDate = now
		u.AppendPackageEvent(ev)
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.emit(events.SubscriptionRenewed, acc, now)
	return resultOf(acc), nil
}

// SetAutoRenew toggles auto-renewal on an active package.
// It touches neither the wallet nor the history.
func (s *Service) SetAutoRenew(ctx context.Context, accountID uuid.UUID, req AutoRenewRequest) (Result, error) {
	acc, err := s.store.Update(ctx, accountID, func(u *accounts.Unit) error {
		p := &u.Account.Package
		if !p.Exists() || p.Status != accounts.StatusActive {
			return common.ErrNoActivePackage
		}
		if !req.Enabled {
			p.AutoRenew = false
			p.AutoRenewDuration = nil
			return nil
		}
		d := req.Duration
		if d == "" {
			d = p.Duration
		}
		if !d.Valid() {
			return common.ErrUnknownDuration
		}
		p.AutoRenew = true
		p.AutoRenewDuration = d.Ptr()
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	log.WithFields(log.Fields{
		"account": accountID,
		"enabled": req.Enabled,
	}).Info("auto-renew toggled")
	return resultOf(acc), nil
}

// Cancel ends an active package immediately and turns auto-renew off.
func (s *Service) Cancel(ctx context.Context, accountID uuid.UUID) (Result, error) {
	now := s.now().UTC()
	acc, err := s.store.Update(ctx, accountID, func(u *accounts.Unit) error {
		p := &u.Account.Package
		if !p.Exists() || p.Status != accounts.StatusActive {
			return common.ErrNoActivePackage
		}
		p.AutoRenew = false
		p.AutoRenewDuration = nil
		p.Status = accounts.StatusCancelled
		u.AppendPackageEvent(accounts.NewPackageEvent(*p, accounts.ActionCancel, now))
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.emit(events.SubscriptionCancelled, acc, now)
	return resultOf(acc), nil
}

// Current returns the package slot and its history.
func (s *Service) Current(ctx context.Context, accountID uuid.UUID) (Overview, error) {
	acc, err := s.store.Get(ctx, accountID)
	if err != nil {
		return Overview{}, err
	}
	history, err := s.store.PackageHistory(ctx, accountID)
	if err != nil {
		return Overview{}, err
	}
	if history == nil {
		history = []accounts.PackageEvent{}
	}

	ov := Overview{History: history, Wallet: acc.Wallet, IsActive: acc.IsActive}
	if acc.Package.Exists() {
		p := acc.Package
		ov.Package = &p
	}
	return ov, nil
}

func (s *Service) emit(eventType string, acc *accounts.Account, at time.Time) {
	p := acc.Package
	log.WithFields(log.Fields{
		"account": acc.ID,
		"event":   eventType,
		"tier":    p.Tier,
		"cost":    common.FormatAmount(p.TotalCost, acc.Wallet.Currency),
		"balance": common.FormatAmount(acc.Wallet.Balance, acc.Wallet.Currency),
		"expiry":  p.ExpiryDate.Format(time.RFC3339),
	}).Info("package updated")

	s.events.Emit(events.New(eventType, acc.ID, at, map[string]any{
		"tier":      string(p.Tier),
		"duration":  string(p.Duration),
		"totalCost": p.TotalCost.String(),
		"expiry":    p.ExpiryDate,
		"status":    string(p.Status),
		"balance":   acc.Wallet.Balance.String(),
	}))
}
