package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"alchemyst.ke/billing/internal/common"
	"alchemyst.ke/billing/internal/events"
)

const notifyTimeout = 5 * time.Second

// Service handles provider callbacks.
type Service struct {
	receipts ReceiptStore
	notifier Notifier
	events   events.Emitter
	now      func() time.Time
}

func NewService(receipts ReceiptStore, notifier Notifier, emitter events.Emitter) *Service {
	if emitter == nil {
		emitter = events.Discard
	}
	return &Service{receipts: receipts, notifier: notifier, events: emitter, now: time.Now}
}

// HandleCallback records a successful payment and pushes the result to the
// client waiting on the checkout id. It never touches a wallet.
func (s *Service) HandleCallback(ctx context.Context, cb Callback) (StatusMessage, error) {
	stk := cb.Body.STKCallback
	if stk.CheckoutRequestID == "" {
		return StatusMessage{}, common.Invalid("CheckoutRequestID", "is required")
	}

	status, message := StatusFor(stk.ResultCode)
	msg := StatusMessage{CheckoutRequestID: stk.CheckoutRequestID, Status: status, Message: message}

	logger := log.WithFields(log.Fields{
		"checkout": stk.CheckoutRequestID,
		"code":     stk.ResultCode,
		"status":   status,
	})

	if stk.ResultCode == CodeSuccess {
		receipt, err := s.receiptFrom(stk)
		if err != nil {
			return StatusMessage{}, err
		}
		created, err := s.receipts.Save(ctx, receipt)
		if err != nil {
			return StatusMessage{}, err
		}
		msg.Message = ""
		msg.Data = &receipt
		if created {
			s.events.Emit(events.New(events.PaymentReceived, uuid.Nil, receipt.ReceivedAt, map[string]any{
				"transactionId":     receipt.TransactionID,
				"checkoutRequestId": receipt.CheckoutRequestID,
				"amount":            receipt.Amount.String(),
			}))
		}
		logger = logger.WithFields(log.Fields{"receipt": receipt.TransactionID, "duplicate": !created})
	}
	logger.Info("payment callback received")

	s.notify(msg)
	return msg, nil
}

func (s *Service) receiptFrom(stk STKCallback) (Receipt, error) {
	md := stk.CallbackMetadata
	txID := md.Lookup(ItemReceipt)
	if txID == "" {
		return Receipt{}, common.Invalid(ItemReceipt, "is required on a successful callback")
	}
	amount, err := decimal.NewFromString(md.Lookup(ItemAmount))
	if err != nil {
		return Receipt{}, common.Invalid(ItemAmount, fmt.Sprintf("malformed: %v", err))
	}
	return Receipt{
		TransactionID:     txID,
		CheckoutRequestID: stk.CheckoutRequestID,
		Phone:             md.Lookup(ItemPhone),
		Amount:            amount,
		ReceivedAt:        s.now().UTC(),
	}, nil
}

// notify is best effort: a missing or broken channel is only logged.
func (s *Service) notify(msg StatusMessage) {
	ch, ok := s.notifier.Lookup(msg.CheckoutRequestID)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := ch.Send(ctx, msg); err != nil {
		log.WithError(err).WithField("checkout", msg.CheckoutRequestID).Warn("failed to notify client")
	}
}
