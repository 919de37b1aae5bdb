package store

import (
	"context"

	"github.com/Priya8975/payment-notification-core/internal/domain"
)

// SubscriptionStore keeps at most one subscription per merchant.
// GetSubscription returns nil, nil when the merchant has none.
type SubscriptionStore interface {
	PutSubscription(ctx context.Context, sub domain.Subscription) error
	GetSubscription(ctx context.Context, merchantID string) (*domain.Subscription, error)
	SetSubscriptionActive(ctx context.Context, merchantID string, active bool) (*domain.Subscription, error)
}

// EventLog is the append-only per-merchant event history. List returns
// events in insertion order, oldest first.
type EventLog interface {
	AppendEvent(ctx context.Context, merchantID string, event domain.Event) error
	ListEvents(ctx context.Context, merchantID string) ([]domain.Event, error)
}

// OutcomeLog records one entry per webhook POST. ListOutcomes returns the
// newest first; limit <= 0 means all.
type OutcomeLog interface {
	RecordOutcome(ctx context.Context, merchantID string, outcome domain.DeliveryOutcome) error
	ListOutcomes(ctx context.Context, merchantID string, limit int) ([]domain.DeliveryOutcome, error)
}

// Backend bundles the three logs a notification core needs.
type Backend interface {
	SubscriptionStore
	EventLog
	OutcomeLog
}

var (
	_ Backend = (*MemoryStore)(nil)
	_ Backend = (*PostgresStore)(nil)
	_ Backend = (*RedisStore)(nil)
)
