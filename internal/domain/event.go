package domain

import (
	"strings"
	"time"
)

// EventKind identifies a payment state change.
type EventKind string

const (
	PaymentCreated   EventKind = "payment.created"
	PaymentCompleted EventKind = "payment.completed"
	PaymentFailed    EventKind = "payment.failed"
	PaymentExpired   EventKind = "payment.expired"
	PaymentRefunded  EventKind = "payment.refunded"
)

// SupportedEvents lists every kind the core can emit, in lifecycle order.
var SupportedEvents = []EventKind{
	PaymentCreated,
	PaymentCompleted,
	PaymentFailed,
	PaymentExpired,
	PaymentRefunded,
}

// Valid reports whether k is one of the supported kinds.
func (k EventKind) Valid() bool {
	for _, s := range SupportedEvents {
		if k == s {
			return true
		}
	}
	return false
}

// Status returns the part of the kind after the dot ("completed" for payment.completed).
func (k EventKind) Status() string {
	s := string(k)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Event is an immutable record of one payment state change. Field order is
// the wire order of the webhook body.
type Event struct {
	ID            string            `json:"id"`
	Type          EventKind         `json:"type"`
	PaymentID     string            `json:"payment_id"`
	MerchantID    string            `json:"merchant_id"`
	Amount        string            `json:"amount"`
	Currency      string            `json:"currency"`
	OrderID       string            `json:"order_id,omitempty"`
	CustomerEmail string            `json:"customer_email,omitempty"`
	TxHash        string            `json:"tx_hash,omitempty"`
	Status        string            `json:"status"`
	Timestamp     time.Time         `json:"timestamp"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Redacted returns a copy without customer details, for frames that reach
// clients other than the merchant's own endpoint.
func (e Event) Redacted() Event {
	e.CustomerEmail = ""
	e.Metadata = nil
	return e
}

// TriggerRequest carries the inputs of a payment state change.
type TriggerRequest struct {
	MerchantID    string            `json:"merchant_id" validate:"required"`
	PaymentID     string            `json:"payment_id" validate:"required"`
	Type          EventKind         `json:"type" validate:"required,event_kind"`
	Amount        string            `json:"amount,omitempty" validate:"omitempty,numeric"`
	Currency      string            `json:"currency,omitempty"`
	OrderID       string            `json:"order_id,omitempty"`
	CustomerEmail string            `json:"customer_email,omitempty" validate:"omitempty,email"`
	TxHash        string            `json:"tx_hash,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}
