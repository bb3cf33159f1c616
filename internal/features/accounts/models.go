// Package accounts owns the marketplace account record shared by the wallet,
// subscription and expiration features.
// models.go describes accounts, their package slot and their history entries.
package accounts

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"alchemyst.ke/billing/internal/common"
	"alchemyst.ke/billing/internal/features/catalog"
)

// Category is the profile category of an account.
// It only changes which profile fields are required for activation.
type Category string

const (
	CategoryEscort   Category = "escort"
	CategoryMasseuse Category = "masseuse"
	CategoryOFModel  Category = "of-model"
	CategorySpa      Category = "spa"
)

// Categories lists every known category.
var Categories = []Category{CategoryEscort, CategoryMasseuse, CategoryOFModel, CategorySpa}

// ParseCategory resolves a category name at the system boundary.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", common.ErrUnknownCategory
}

// Status is the state of the package slot.
type Status string

const (
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// DefaultCurrency is used when an account is created without one.
const DefaultCurrency = "KES"

// Wallet is the internal balance of an account.
// Balance is only changed by ledger operations and never goes negative.
type Wallet struct {
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

// Package is the single current-package slot of an account.
// A zero Tier means no package was ever purchased.
type Package struct {
	Tier              catalog.Tier      `json:"packageType,omitempty"`
	Duration          catalog.Duration  `json:"durationType,omitempty"`
	TotalCost         decimal.Decimal   `json:"totalCost"`
	PurchaseDate      time.Time         `json:"purchaseDate"`
	ExpiryDate        time.Time         `json:"expiryDate"`
	Status            Status            `json:"status,omitempty"`
	AutoRenew         bool              `json:"autoRenew"`
	AutoRenewDuration *catalog.Duration `json:"autoRenewDurationType"`
}

// Exists reports whether the slot was ever filled.
func (p Package) Exists() bool { return p.Tier != "" }

// ActiveAt reports whether the package is active and unexpired at now.
func (p Package) ActiveAt(now time.Time) bool {
	return p.Exists() && p.Status == StatusActive && p.ExpiryDate.After(now)
}

// DueAt reports whether the sweep must process the package at now.
func (p Package) DueAt(now time.Time) bool {
	return p.Exists() && p.Status == StatusActive && !p.ExpiryDate.After(now)
}

// Location is where a listing is shown.
type Location struct {
	Country  string `json:"country,omitempty"`
	County   string `json:"county,omitempty"`
	Location string `json:"location,omitempty"`
	Area     string `json:"area,omitempty"`
}

// Profile holds the listing fields the activation predicate looks at.
type Profile struct {
	Username          string   `json:"username,omitempty"`
	EmailVerified     bool     `json:"emailVerified"`
	Gender            string   `json:"gender,omitempty"`
	SexualOrientation string   `json:"sexualOrientation,omitempty"`
	Age               int      `json:"age,omitempty"`
	Nationality       string   `json:"nationality,omitempty"`
	ServiceType       string   `json:"serviceType,omitempty"`
	Location          Location `json:"location"`
	Phone             string   `json:"phone,omitempty"`
	ProfileImage      string   `json:"profileImage,omitempty"`
	Services          int      `json:"services"`
}

// Account is a marketplace profile with its wallet and package slot.
type Account struct {
	ID            uuid.UUID `json:"id"`
	Category      Category  `json:"userType"`
	Profile       Profile   `json:"profile"`
	Wallet        Wallet    `json:"wallet"`
	Package       Package   `json:"currentPackage"`
	IsActive      bool      `json:"isActive"`
	IsDeactivated bool      `json:"isDeactivated"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	c := *a
	if a.Package.AutoRenewDuration != nil {
		c.Package.AutoRenewDuration = a.Package.AutoRenewDuration.Ptr()
	}
	return &c
}

// Action is what happened to the package slot.
type Action string

const (
	ActionSubscribe Action = "subscribe"
	ActionUpgrade   Action = "upgrade"
	ActionRenew     Action = "renew"
	ActionAutoRenew Action = "auto-renew"
	ActionExpire    Action = "expire"
	ActionCancel    Action = "cancel"
)

// PackageEvent is an immutable snapshot appended to the package history.
type PackageEvent struct {
	Tier         catalog.Tier     `json:"packageType"`
	Duration     catalog.Duration `json:"durationType"`
	TotalCost    decimal.Decimal  `json:"totalCost"`
	PurchaseDate time.Time        `json:"purchaseDate"`
	ExpiryDate   time.Time        `json:"expiryDate"`
	Action       Action           `json:"action"`
	Timestamp    time.Time        `json:"timestamp"`
}

// NewPackageEvent snapshots p for the history.
func NewPackageEvent(p Package, action Action, at time.Time) PackageEvent {
	return PackageEvent{
		Tier:         p.Tier,
		Duration:     p.Duration,
		TotalCost:    p.TotalCost,
		PurchaseDate: p.PurchaseDate,
		ExpiryDate:   p.ExpiryDate,
		Action:       action,
		Timestamp:    at,
	}
}

// PaymentType classifies a payment history entry.
type PaymentType string

const (
	PaymentDeposit      PaymentType = "deposit"
	PaymentWithdrawal   PaymentType = "withdrawal"
	PaymentPayment      PaymentType = "payment"
	PaymentSubscription PaymentType = "subscription"
)

// PaymentStatus of a history entry. Ledger entries are always completed.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// PaymentEntry is one signed ledger movement: negative for debits.
type PaymentEntry struct {
	TransactionID     string          `json:"transactionId"`
	CheckoutRequestID string          `json:"checkoutRequestId,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	Phone             string          `json:"phone,omitempty"`
	Type              PaymentType     `json:"type"`
	Status            PaymentStatus   `json:"status"`
	Description       string          `json:"description"`
	Timestamp         time.Time       `json:"timestamp"`
}
