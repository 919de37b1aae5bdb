package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Priya8975/payment-notification-core/internal/domain"
	"github.com/Priya8975/payment-notification-core/internal/engine"
	"github.com/Priya8975/payment-notification-core/internal/signature"
	"github.com/Priya8975/payment-notification-core/internal/store"
	"github.com/Priya8975/payment-notification-core/internal/worker"
)

// HealthReader reports endpoint health for a merchant.
type HealthReader interface {
	GetState(ctx context.Context, merchantID string) engine.EndpointHealthState
}

// Core wires the registry, the event log and the dispatcher together and is
// the single entry point used by the HTTP surface.
type Core struct {
	registry   *engine.Registry
	backend    store.Backend
	dispatcher *worker.Dispatcher
	health     HealthReader
	logger     *slog.Logger
}

// New builds a Core. health may be nil when no endpoint health tracking is configured.
func New(registry *engine.Registry, backend store.Backend, dispatcher *worker.Dispatcher, health HealthReader, logger *slog.Logger) *Core {
	return &Core{
		registry:   registry,
		backend:    backend,
		dispatcher: dispatcher,
		health:     health,
		logger:     logger,
	}
}

func (c *Core) Subscribe(ctx context.Context, req domain.SubscribeRequest) (*domain.SubscribeResponse, error) {
	return c.registry.Subscribe(ctx, req)
}

func (c *Core) GetSubscription(ctx context.Context, merchantID string) (*domain.Subscription, error) {
	return c.registry.Get(ctx, merchantID)
}

func (c *Core) SetActive(ctx context.Context, merchantID string, active bool) (*domain.Subscription, error) {
	return c.registry.SetActive(ctx, merchantID, active)
}

func (c *Core) Trigger(ctx context.Context, req domain.TriggerRequest) (*domain.Receipt, error) {
	return c.dispatcher.Trigger(ctx, req)
}

// ListEvents returns the merchant's event log, oldest first. Unknown merchants
// have an empty log.
func (c *Core) ListEvents(ctx context.Context, merchantID string) (*domain.EventListResponse, error) {
	events, err := c.backend.ListEvents(ctx, merchantID)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	if events == nil {
		events = []domain.Event{}
	}
	return &domain.EventListResponse{Events: events, Total: len(events)}, nil
}

// ListDeliveries returns recorded delivery outcomes, newest first.
func (c *Core) ListDeliveries(ctx context.Context, merchantID string, limit int) ([]domain.DeliveryOutcome, error) {
	outcomes, err := c.backend.ListOutcomes(ctx, merchantID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing deliveries: %w", err)
	}
	if outcomes == nil {
		outcomes = []domain.DeliveryOutcome{}
	}
	return outcomes, nil
}

// VerifySignature checks a received webhook body against its signature header.
// A mismatch is reported as false; only missing inputs are errors.
func (c *Core) VerifySignature(rawBody []byte, signatureHeader, secret string) (bool, error) {
	if signatureHeader == "" {
		return false, fmt.Errorf("%w: signature header is required", domain.ErrInvalidRequest)
	}
	if secret == "" {
		return false, fmt.Errorf("%w: secret is required", domain.ErrInvalidRequest)
	}
	return signature.Verify(rawBody, signatureHeader, secret), nil
}

// SupportedEvents lists the kinds a merchant can subscribe to.
func (c *Core) SupportedEvents() []domain.EventKind {
	out := make([]domain.EventKind, len(domain.SupportedEvents))
	copy(out, domain.SupportedEvents)
	return out
}

// Stats aggregates the merchant's event and delivery counts.
func (c *Core) Stats(ctx context.Context, merchantID string) (*domain.DeliveryStats, error) {
	events, err := c.backend.ListEvents(ctx, merchantID)
	if err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}
	outcomes, err := c.backend.ListOutcomes(ctx, merchantID, 0)
	if err != nil {
		return nil, fmt.Errorf("counting deliveries: %w", err)
	}

	stats := &domain.DeliveryStats{
		MerchantID:      merchantID,
		TotalEvents:     len(events),
		TotalDeliveries: len(outcomes),
	}
	for _, o := range outcomes {
		if o.Delivered {
			stats.Delivered++
		} else {
			stats.Failed++
		}
	}
	if stats.TotalDeliveries > 0 {
		stats.SuccessRate = float64(stats.Delivered) / float64(stats.TotalDeliveries) * 100
	}
	return stats, nil
}

// EndpointHealth returns the merchant's endpoint health. Without health
// tracking every endpoint reports healthy.
func (c *Core) EndpointHealth(ctx context.Context, merchantID string) engine.EndpointHealthState {
	if c.health == nil {
		return engine.EndpointHealthState{MerchantID: merchantID, State: engine.HealthHealthy}
	}
	return c.health.GetState(ctx, merchantID)
}
