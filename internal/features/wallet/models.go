// Package wallet is the account ledger: every balance change goes through
// here and leaves a payment history entry.
package wallet

import (
	"time"

	"github.com/shopspring/decimal"

	"alchemyst.ke/billing/internal/features/accounts"
)

// CreditRequest is an external deposit to apply to a wallet.
type CreditRequest struct {
	Amount            decimal.Decimal `json:"amount"`
	TransactionID     string          `json:"transactionId"`
	CheckoutRequestID string          `json:"checkoutRequestId"`
	Phone             string          `json:"phone"`
	Description       string          `json:"description,omitempty"`
}

// DebitRequest is an internal charge against a wallet.
type DebitRequest struct {
	Amount      decimal.Decimal
	Type        accounts.PaymentType
	Description string
	Reference   string
}

// Balance is the public view of a wallet.
type Balance struct {
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

// Reconciliation compares the stored balance with the sum of its history.
type Reconciliation struct {
	Balance    decimal.Decimal `json:"balance"`
	LedgerSum  decimal.Decimal `json:"ledgerSum"`
	Entries    int             `json:"entries"`
	Consistent bool            `json:"consistent"`
	CheckedAt  time.Time       `json:"checkedAt"`
}

const defaultDepositDescription = "M-Pesa deposit"
