// Package events carries domain events out of the billing core.
// Delivery is best effort: emitting never blocks a request and a failed
// publish is only logged.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event types, also used as routing keys.
const (
	SubscriptionSubscribed  = "subscription.subscribed"
	SubscriptionUpgraded    = "subscription.upgraded"
	SubscriptionRenewed     = "subscription.renewed"
	SubscriptionAutoRenewed = "subscription.auto_renewed"
	SubscriptionExpired     = "subscription.expired"
	SubscriptionCancelled   = "subscription.cancelled"
	WalletCredited          = "wallet.credited"
	PaymentReceived         = "payment.received"
)

// Event is one domain fact.
type Event struct {
	ID         uuid.UUID      `json:"id"`
	Type       string         `json:"type"`
	AccountID  uuid.UUID      `json:"accountId,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
	Data       map[string]any `json:"data,omitempty"`
}

// New stamps an event with a fresh id.
func New(eventType string, accountID uuid.UUID, at time.Time, data map[string]any) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		AccountID:  accountID,
		OccurredAt: at.UTC(),
		Data:       data,
	}
}

// Emitter accepts events without blocking.
type Emitter interface {
	Emit(e Event)
}

// Discard drops every event.
var Discard Emitter = discard{}

type discard struct{}

func (discard) Emit(Event) {}
