package worker

import (
	"time"

	"github.com/Priya8975/payment-notification-core/internal/domain"
)

// Realtime frame types for delivery outcomes. Payment events are published
// as-is, so their frame type is the event kind.
const (
	FrameWebhookDelivered = "webhook.delivered"
	FrameWebhookFailed    = "webhook.failed"
)

// DeliveryFrame is the realtime update sent to dashboards after a webhook POST.
type DeliveryFrame struct {
	Type       string           `json:"type"`
	EventID    string           `json:"event_id"`
	MerchantID string           `json:"merchant_id"`
	EventType  domain.EventKind `json:"event_type"`
	PaymentID  string           `json:"payment_id"`
	StatusCode *int             `json:"status_code,omitempty"`
	DurationMs int64            `json:"duration_ms"`
	Error      string           `json:"error,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

func NewDeliveryFrame(outcome domain.DeliveryOutcome) DeliveryFrame {
	frameType := FrameWebhookFailed
	if outcome.Delivered {
		frameType = FrameWebhookDelivered
	}
	return DeliveryFrame{
		Type:       frameType,
		EventID:    outcome.Event.ID,
		MerchantID: outcome.Event.MerchantID,
		EventType:  outcome.Event.Type,
		PaymentID:  outcome.Event.PaymentID,
		StatusCode: outcome.HTTPStatus,
		DurationMs: outcome.DurationMs,
		Error:      outcome.Error,
		Timestamp:  outcome.SentAt,
	}
}
