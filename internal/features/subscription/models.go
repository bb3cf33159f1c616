// Package subscription runs the package slot state machine:
// subscribe, upgrade, renew, auto-renew toggle and cancel.
package subscription

import (
	"github.com/shopspring/decimal"

	"alchemyst.ke/billing/internal/features/accounts"
	"alchemyst.ke/billing/internal/features/catalog"
)

// Payment reference prefixes of internal debits.
const (
	RefSubscribe = "SUB_"
	RefUpgrade   = "UPGRADE_"
	RefRenew     = "RENEW_"
	RefAutoRenew = "AUTO_RENEW_"
)

// PurchaseRequest is a subscribe or upgrade order.
type PurchaseRequest struct {
	Tier      catalog.Tier
	Duration  catalog.Duration
	TotalCost decimal.Decimal
}

// RenewRequest extends the current package.
type RenewRequest struct {
	Duration  catalog.Duration
	TotalCost decimal.Decimal
}

// AutoRenewRequest toggles auto-renewal. Duration is ignored when disabling;
// when enabling without one the package duration is used.
type AutoRenewRequest struct {
	Enabled  bool
	Duration catalog.Duration
}

// Result is the state after a transition.
type Result struct {
	Package  accounts.Package `json:"currentPackage"`
	Balance  decimal.Decimal  `json:"newBalance"`
	IsActive bool             `json:"isActive"`
}

// Overview is the current slot with its history.
type Overview struct {
	Package  *accounts.Package       `json:"currentPackage"`
	History  []accounts.PackageEvent `json:"packageHistory"`
	Wallet   accounts.Wallet         `json:"wallet"`
	IsActive bool                    `json:"isActive"`
}

func resultOf(a *accounts.Account) Result {
	return Result{Package: a.Package, Balance: a.Wallet.Balance, IsActive: a.IsActive}
}
