// Package payments receives M-Pesa STK push results, keeps their receipts and
// tells the waiting client what happened. Wallet credits go through the
// ledger in the wallet package.
package payments

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Callback is the body the provider posts to the callback URL.
type Callback struct {
	Body struct {
		STKCallback STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

// STKCallback is the result of one STK push.
type STKCallback struct {
	MerchantRequestID string    `json:"MerchantRequestID"`
	CheckoutRequestID string    `json:"CheckoutRequestID"`
	ResultCode        int       `json:"ResultCode"`
	ResultDesc        string    `json:"ResultDesc"`
	CallbackMetadata  *Metadata `json:"CallbackMetadata,omitempty"`
}

// Metadata carries the payment details of a successful push.
type Metadata struct {
	Item []MetadataItem `json:"Item"`
}

// MetadataItem values are numbers or strings depending on Name.
type MetadataItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value,omitempty"`
}

// Lookup returns the item value as text, or "" when absent.
func (m *Metadata) Lookup(name string) string {
	if m == nil {
		return ""
	}
	for _, it := range m.Item {
		if it.Name != name || len(it.Value) == 0 {
			continue
		}
		if s, err := strconv.Unquote(string(it.Value)); err == nil {
			return s
		}
		return string(it.Value)
	}
	return ""
}

// Metadata item names.
const (
	ItemAmount  = "Amount"
	ItemReceipt = "MpesaReceiptNumber"
	ItemPhone   = "PhoneNumber"
)

// Result codes of an STK push.
const (
	CodeSuccess      = 0
	CodeInsufficient = 1
	CodeCancelled    = 1032
	CodeTimedOut     = 1037
	CodeFailed       = 2001
)

// Status labels pushed to the client.
const (
	StatusSuccess      = "success"
	StatusInsufficient = "insufficient"
	StatusCancelled    = "cancelled"
	StatusFailed       = "failed"
	StatusTimedOut     = "timedout"
	StatusUnknown      = "unknown"
)

// StatusFor maps a result code to the label and message shown to the client.
func StatusFor(code int) (status, message string) {
	switch code {
	case CodeSuccess:
		return StatusSuccess, "Payment received"
	case CodeInsufficient:
		return StatusInsufficient, "Balance is insufficient for the transaction. Please top up and try again."
	case CodeCancelled:
		return StatusCancelled, "Request cancelled by user"
	case CodeFailed:
		return StatusFailed, "The initiator information is invalid. Please check your PIN and try again"
	case CodeTimedOut:
		return StatusTimedOut, "DS Timeout. Please initiate again and respond Quicker"
	default:
		return StatusUnknown, "Unknown payment result"
	}
}

// Receipt is a raw record of money received by the provider.
// It does not change any wallet by itself.
type Receipt struct {
	TransactionID     string          `json:"transactionId"`
	CheckoutRequestID string          `json:"checkoutRequestId"`
	Phone             string          `json:"phone"`
	Amount            decimal.Decimal `json:"amount"`
	ReceivedAt        time.Time       `json:"receivedAt"`
}

// StatusMessage is what the waiting client receives.
type StatusMessage struct {
	CheckoutRequestID string   `json:"checkoutRequestId"`
	Status            string   `json:"status"`
	Message           string   `json:"message,omitempty"`
	Data              *Receipt `json:"data,omitempty"`
}
