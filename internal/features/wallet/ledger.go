package wallet

import (
	"time"

	"alchemyst.ke/billing/internal/common"
	"alchemyst.ke/billing/internal/features/accounts"
)

// CreditUnit applies req to the account inside u.
// The transaction id is claimed in the processed set, so committing u twice
// with the same id fails with common.ErrDuplicateTransaction.
func CreditUnit(u *accounts.Unit, req CreditRequest, at time.Time) error {
	if !req.Amount.IsPositive() {
		return common.ErrInvalidAmount
	}
	if err := common.CheckMoney("amount", req.Amount); err != nil {
		return err
	}
	if req.TransactionID == "" {
		return common.Invalid("transactionId", "is required")
	}

	desc := req.Description
	if desc == "" {
		desc = defaultDepositDescription
	}

	u.MarkProcessed(req.TransactionID)
	u.Account.Wallet.Balance = u.Account.Wallet.Balance.Add(req.Amount)
	u.AppendPayment(accounts.PaymentEntry{
		TransactionID:     req.TransactionID,
		CheckoutRequestID: req.CheckoutRequestID,
		Amount:            req.Amount,
		Phone:             req.Phone,
		Type:              accounts.PaymentDeposit,
		Status:            accounts.PaymentCompleted,
		Description:       desc,
		Timestamp:         at,
	})
	return nil
}

// DebitUnit charges the account inside u. The balance check runs against
// the locked account, so it cannot race with another unit.
func DebitUnit(u *accounts.Unit, req DebitRequest, at time.Time) error {
	if !req.Amount.IsPositive() {
		return common.ErrInvalidAmount
	}
	if err := common.CheckMoney("amount", req.Amount); err != nil {
		return err
	}
	if u.Account.Wallet.Balance.LessThan(req.Amount) {
		return common.ErrInsufficientBalance
	}

	typ := req.Type
	if typ == "" {
		typ = accounts.PaymentPayment
	}

	u.Account.Wallet.Balance = u.Account.Wallet.Balance.Sub(req.Amount)
	u.AppendPayment(accounts.PaymentEntry{
		TransactionID: req.Reference,
		Amount:        req.Amount.Neg(),
		Type:          typ,
		Status:        accounts.PaymentCompleted,
		Description:   req.Description,
		Timestamp:     at,
	})
	return nil
}
