package domain

import (
	"time"
)

// DeliveryOutcome is the result of the single POST made for one event.
type DeliveryOutcome struct {
	Event      Event     `json:"event"`
	Signature  string    `json:"signature"`
	SentAt     time.Time `json:"sent_at"`
	Delivered  bool      `json:"delivered"`
	HTTPStatus *int      `json:"http_status,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
}

// Receipt is returned by every accepted trigger, whether or not a webhook went out.
type Receipt struct {
	EventID     string           `json:"event_id"`
	Event       Event            `json:"event"`
	WebhookSent bool             `json:"webhook_sent"`
	Delivery    *DeliveryOutcome `json:"delivery,omitempty"`
}

type EventListResponse struct {
	Events []Event `json:"events"`
	Total  int     `json:"total"`
}

type DeliveryStats struct {
	MerchantID      string  `json:"merchant_id"`
	TotalEvents     int     `json:"total_events"`
	TotalDeliveries int     `json:"total_deliveries"`
	Delivered       int     `json:"delivered"`
	Failed          int     `json:"failed"`
	SuccessRate     float64 `json:"success_rate"`
}
