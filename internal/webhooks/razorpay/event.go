package razorpaywebhook

import (
	"encoding/json"
	"fmt"
)

// EventKind is the dispatch tag derived from the gateway event name.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventPaymentCaptured
	EventPaymentFailed
	EventPaymentAuthorized
	EventRefundProcessed
)

const (
	eventNamePaymentCaptured   = "payment.captured"
	eventNamePaymentFailed     = "payment.failed"
	eventNamePaymentAuthorized = "payment.authorized"
	eventNameRefundProcessed   = "refund.processed"
)

// PaymentEntity is the payment object embedded in gateway events. Amount is
// in minor units (paise).
type PaymentEntity struct {
	ID               string  `json:"id"`
	OrderID          string  `json:"order_id"`
	Amount           int64   `json:"amount"`
	Currency         string  `json:"currency"`
	Status           string  `json:"status"`
	Method           *string `json:"method"`
	ErrorCode        *string `json:"error_code"`
	ErrorDescription *string `json:"error_description"`
}

// RefundEntity is the refund object embedded in refund events.
type RefundEntity struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
}

// Event is the typed form of one webhook body, mapped immediately after
// signature verification so downstream code never branches on raw JSON.
type Event struct {
	Name    string
	Payment *PaymentEntity
	Refund  *RefundEntity
	Raw     json.RawMessage
}

type wireEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment"`
		Refund *struct {
			Entity RefundEntity `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

// ParseEvent decodes a raw webhook body into a typed Event.
func ParseEvent(raw []byte) (*Event, error) {
	var wire wireEvent
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decoding webhook body: %w", err)
	}
	if wire.Event == "" {
		return nil, fmt.Errorf("webhook body has no event name")
	}

	event := &Event{Name: wire.Event, Raw: raw}
	if wire.Payload.Payment != nil {
		payment := wire.Payload.Payment.Entity
		event.Payment = &payment
	}
	if wire.Payload.Refund != nil {
		refund := wire.Payload.Refund.Entity
		event.Refund = &refund
	}
	return event, nil
}

// Kind maps the event name onto the dispatch tag.
func (e *Event) Kind() EventKind {
	switch e.Name {
	case eventNamePaymentCaptured:
		return EventPaymentCaptured
	case eventNamePaymentFailed:
		return EventPaymentFailed
	case eventNamePaymentAuthorized:
		return EventPaymentAuthorized
	case eventNameRefundProcessed:
		return EventRefundProcessed
	default:
		return EventUnknown
	}
}
