package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Priya8975/payment-notification-core/internal/domain"
	"github.com/Priya8975/payment-notification-core/internal/signature"
	"github.com/Priya8975/payment-notification-core/internal/store"
	"github.com/google/uuid"
)

// Webhook request headers.
const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderTimestamp = "X-Webhook-Timestamp"
	HeaderEvent     = "X-Webhook-Event"
	HeaderEventID   = "X-Webhook-ID"
)

const (
	defaultAmount   = "0"
	defaultCurrency = "USD"
	defaultTimeout  = 10 * time.Second
)

// SubscriptionLookup finds the merchant's active subscription, or nil.
type SubscriptionLookup interface {
	GetActive(ctx context.Context, merchantID string) (*domain.Subscription, error)
}

// HealthRecorder observes raw delivery outcomes per merchant endpoint.
type HealthRecorder interface {
	RecordSuccess(ctx context.Context, merchantID string, statusCode int)
	RecordFailure(ctx context.Context, merchantID string, statusCode int)
}

// Publisher pushes realtime frames to dashboard clients.
type Publisher interface {
	Publish(ctx context.Context, frame any) error
}

// Options configures optional dispatcher collaborators. Zero values pick defaults.
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Health     HealthRecorder
	Publisher  Publisher
	Now        func() time.Time
	NewID      func() string
}

// Dispatcher turns a payment state change into a logged event and, when the
// merchant subscribed to it, a single signed webhook POST. It never retries.
type Dispatcher struct {
	httpClient *http.Client
	registry   SubscriptionLookup
	events     store.EventLog
	outcomes   store.OutcomeLog
	health     HealthRecorder
	publisher  Publisher
	now        func() time.Time
	newID      func() string
	logger     *slog.Logger
}

// NewDispatcher creates a dispatcher with a bounded-timeout HTTP client.
func NewDispatcher(registry SubscriptionLookup, events store.EventLog, outcomes store.OutcomeLog, logger *slog.Logger, opts Options) *Dispatcher {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return "evt_" + uuid.NewString() }
	}

	return &Dispatcher{
		httpClient: client,
		registry:   registry,
		events:     events,
		outcomes:   outcomes,
		health:     opts.Health,
		publisher:  opts.Publisher,
		now:        now,
		newID:      newID,
		logger:     logger,
	}
}

// Trigger validates the request, appends the event to the merchant's log and
// delivers it if the merchant has an active subscription for its kind.
// Only invalid input or a failure to log the event returns an error; delivery
// problems are reported in the receipt.
func (d *Dispatcher) Trigger(ctx context.Context, req domain.TriggerRequest) (*domain.Receipt, error) {
	if err := domain.Validate(req); err != nil {
		return nil, err
	}

	event := d.buildEvent(req)

	if err := d.events.AppendEvent(ctx, event.MerchantID, event); err != nil {
		return nil, fmt.Errorf("logging event: %w", err)
	}
	d.publish(ctx, event.Redacted())

	receipt := &domain.Receipt{EventID: event.ID, Event: event}

	sub, err := d.registry.GetActive(ctx, event.MerchantID)
	if err != nil {
		d.logger.Error("failed to look up subscription",
			"error", err,
			"merchant_id", event.MerchantID,
			"event_id", event.ID,
		)
		return receipt, nil
	}
	if sub == nil || !sub.Wants(event.Type) {
		d.logger.Debug("no subscription for event",
			"merchant_id", event.MerchantID,
			"event_id", event.ID,
			"event_type", event.Type,
		)
		return receipt, nil
	}

	outcome := d.Deliver(ctx, sub, event)
	receipt.WebhookSent = outcome.Delivered
	receipt.Delivery = &outcome

	return receipt, nil
}

func (d *Dispatcher) buildEvent(req domain.TriggerRequest) domain.Event {
	amount := req.Amount
	if amount == "" {
		amount = defaultAmount
	}
	currency := req.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	var metadata map[string]string
	if len(req.Metadata) > 0 {
		metadata = make(map[string]string, len(req.Metadata))
		for k, v := range req.Metadata {
			metadata[k] = v
		}
	}

	return domain.Event{
		ID:            d.newID(),
		Type:          req.Type,
		PaymentID:     req.PaymentID,
		MerchantID:    req.MerchantID,
		Amount:        amount,
		Currency:      currency,
		OrderID:       req.OrderID,
		CustomerEmail: req.CustomerEmail,
		TxHash:        req.TxHash,
		Status:        req.Type.Status(),
		Timestamp:     d.now().UTC().Truncate(time.Millisecond),
		Metadata:      metadata,
	}
}

// Deliver signs the event and POSTs it once to the subscription's callback.
// A non-2xx response or transport error marks the outcome undelivered.
func (d *Dispatcher) Deliver(ctx context.Context, sub *domain.Subscription, event domain.Event) domain.DeliveryOutcome {
	// The webhook should go out even if the triggering request goes away;
	// the client timeout still bounds it.
	ctx = context.WithoutCancel(ctx)

	sentAt := d.now().UTC()
	outcome := domain.DeliveryOutcome{Event: event, SentAt: sentAt}

	payload, err := json.Marshal(event)
	if err != nil {
		outcome.Error = fmt.Sprintf("failed to encode event: %v", err)
		d.record(ctx, sub.MerchantID, outcome)
		return outcome
	}
	outcome.Signature = signature.Sign(payload, sub.SecretKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.CallbackURL, bytes.NewReader(payload))
	if err != nil {
		outcome.Error = fmt.Sprintf("failed to create request: %v", err)
		d.record(ctx, sub.MerchantID, outcome)
		return outcome
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, outcome.Signature)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(sentAt.UnixMilli(), 10))
	req.Header.Set(HeaderEvent, string(event.Type))
	req.Header.Set(HeaderEventID, event.ID)

	start := time.Now()
	resp, err := d.httpClient.Do(req)
	outcome.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		outcome.Error = fmt.Sprintf("request failed: %v", err)
		d.record(ctx, sub.MerchantID, outcome)
		return outcome
	}
	defer resp.Body.Close()

	// Drain a little so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	status := resp.StatusCode
	outcome.HTTPStatus = &status
	outcome.Delivered = status >= 200 && status < 300
	if !outcome.Delivered {
		outcome.Error = fmt.Sprintf("endpoint returned %d", status)
	}

	d.record(ctx, sub.MerchantID, outcome)
	return outcome
}

// record stores the outcome and feeds health tracking and realtime clients.
// Errors here are logged only.
func (d *Dispatcher) record(ctx context.Context, merchantID string, outcome domain.DeliveryOutcome) {
	if err := d.outcomes.RecordOutcome(ctx, merchantID, outcome); err != nil {
		d.logger.Error("failed to record delivery outcome",
			"error", err,
			"event_id", outcome.Event.ID,
			"merchant_id", merchantID,
		)
	}

	statusCode := 0
	if outcome.HTTPStatus != nil {
		statusCode = *outcome.HTTPStatus
	}

	if d.health != nil {
		if outcome.Delivered {
			d.health.RecordSuccess(ctx, merchantID, statusCode)
		} else {
			d.health.RecordFailure(ctx, merchantID, statusCode)
		}
	}

	d.publish(ctx, NewDeliveryFrame(outcome))

	if outcome.Delivered {
		d.logger.Info("webhook delivered",
			"event_id", outcome.Event.ID,
			"merchant_id", merchantID,
			"event_type", outcome.Event.Type,
			"status_code", statusCode,
			"response_time_ms", outcome.DurationMs,
		)
	} else {
		d.logger.Warn("webhook delivery failed",
			"event_id", outcome.Event.ID,
			"merchant_id", merchantID,
			"event_type", outcome.Event.Type,
			"error", outcome.Error,
			"status_code", statusCode,
			"response_time_ms", outcome.DurationMs,
		)
	}
}

func (d *Dispatcher) publish(ctx context.Context, frame any) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.Publish(ctx, frame); err != nil {
		d.logger.Error("failed to publish realtime frame", "error", err)
	}
}
