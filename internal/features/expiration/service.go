// Package expiration runs the sweep that expires or auto-renews every package
// whose expiry date has passed.
package expiration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"alchemyst.ke/billing/internal/events"
	"alchemyst.ke/billing/internal/features/accounts"
	"alchemyst.ke/billing/internal/features/catalog"
	"alchemyst.ke/billing/internal/features/subscription"
	"alchemyst.ke/billing/internal/features/wallet"
)

// Result counts what one sweep did.
type Result struct {
	Expired     int           `json:"expiredCount"`
	AutoRenewed int           `json:"autoRenewedCount"`
	Failed      int           `json:"failedCount"`
	Skipped     int           `json:"skippedCount"`
	StartedAt   time.Time     `json:"startedAt"`
	Took        time.Duration `json:"-"`
}

// Reporter receives a summary after each sweep.
type Reporter interface {
	Report(ctx context.Context, r Result) error
}

type outcome int

const (
	outcomeExpired outcome = iota
	outcomeAutoRenewed
	outcomeSkipped
)

// errNotDue aborts a unit whose package was changed after it was listed.
var errNotDue = errors.New("package no longer due")

const reportTimeout = 10 * time.Second

// Service runs sweeps.
type Service struct {
	store    accounts.Store
	lock     Locker
	events   events.Emitter
	reporter Reporter
	now      func() time.Time
}

// NewService creates a sweeper. reporter may be nil.
func NewService(store accounts.Store, lock Locker, emitter events.Emitter, reporter Reporter) *Service {
	if emitter == nil {
		emitter = events.Discard
	}
	return &Service{store: store, lock: lock, events: emitter, reporter: reporter, now: time.Now}
}

// Sweep processes every due account in its own unit. A failing account is
// logged and counted; it stays due and is picked up by the next run.
func (s *Service) Sweep(ctx context.Context) (Result, error) {
	release, err := s.lock.Acquire(ctx)
	if err != nil {
		return Result{}, err
	}
	defer release()

	now := s.now().UTC()
	res := Result{StartedAt: now}

	ids, err := s.store.ListDue(ctx, now)
	if err != nil {
		return res, fmt.Errorf("list due accounts: %w", err)
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			log.WithField("remaining", len(ids)-res.Expired-res.AutoRenewed-res.Failed-res.Skipped).
				Warn("sweep interrupted")
			break
		}
		out, err := s.process(ctx, id, now)
		switch {
		case err != nil:
			res.Failed++
			log.WithError(err).WithField("account", id).Error("failed to process expired package")
		case out == outcomeAutoRenewed:
			res.AutoRenewed++
		case out == outcomeExpired:
			res.Expired++
		default:
			res.Skipped++
		}
	}

	res.Took = s.now().Sub(now)
	log.WithFields(log.Fields{
		"expired":      res.Expired,
		"auto_renewed": res.AutoRenewed,
		"failed":       res.Failed,
		"skipped":      res.Skipped,
		"took":         res.Took,
	}).Info("expiration sweep finished")

	s.report(res)
	return res, nil
}

func (s *Service) process(ctx context.Context, id uuid.UUID, now time.Time) (outcome, error) {
	var out outcome
	acc, err := s.store.Update(ctx, id, func(u *accounts.Unit) error {
		p := &u.Account.Package
		if !p.DueAt(now) {
			return errNotDue
		}

		if p.AutoRenew && p.AutoRenewDuration != nil {
			next := *p.AutoRenewDuration
			cost := catalog.PriceFor(catalog.WeeklyFromTotal(p.TotalCost, p.Duration), next)
			if cost.IsPositive() && u.Account.Wallet.Balance.GreaterThanOrEqual(cost) {
				err := wallet.DebitUnit(u, wallet.DebitRequest{
					Amount:      cost,
					Type:        accounts.PaymentSubscription,
					Description: fmt.Sprintf("Auto-renewal: %s %s", p.Tier, next),
					Reference:   subscription.RefAutoRenew + uuid.NewString(),
				}, now)
				if err != nil {
					return err
				}
				p.Duration = next
				p.TotalCost = cost
				p.ExpiryDate = now.AddDate(0, 0, catalog.DaysFor(next))
				p.Status = accounts.StatusActive

				ev := accounts.NewPackageEvent(*p, accounts.ActionAutoRenew, now)
				ev.PurchaseDate = now
				u.AppendPackageEvent(ev)
				out = outcomeAutoRenewed
				return nil
			}
		}

		p.Status = accounts.StatusExpired
		u.AppendPackageEvent(accounts.NewPackageEvent(*p, accounts.ActionExpire, now))
		out = outcomeExpired
		return nil
	})
	if errors.Is(err, errNotDue) {
		return outcomeSkipped, nil
	}
	if err != nil {
		return 0, err
	}

	eventType := events.SubscriptionExpired
	if out == outcomeAutoRenewed {
		eventType = events.SubscriptionAutoRenewed
	}
	s.events.Emit(events.New(eventType, id, now, map[string]any{
		"tier":     string(acc.Package.Tier),
		"duration": string(acc.Package.Duration),
		"expiry":   acc.Package.ExpiryDate,
		"balance":  acc.Wallet.Balance.String(),
	}))
	return out, nil
}

func (s *Service) report(res Result) {
	if s.reporter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()
	if err := s.reporter.Report(ctx, res); err != nil {
		log.WithError(err).Warn("failed to report sweep summary")
	}
}
