package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/Priya8975/payment-notification-core/internal/domain"
	"github.com/puzpuzpuz/xsync/v3"
)

// MemoryStore is an in-process backend. Each merchant gets its own entry
// with its own lock, so writes for different merchants never contend.
type MemoryStore struct {
	merchants *xsync.MapOf[string, *merchantEntry]
}

type merchantEntry struct {
	mu       sync.RWMutex
	sub      *domain.Subscription
	events   []domain.Event
	outcomes []domain.DeliveryOutcome
}

func NewMemory() *MemoryStore {
	return &MemoryStore{merchants: xsync.NewMapOf[string, *merchantEntry]()}
}

func (s *MemoryStore) entry(merchantID string) *merchantEntry {
	e, _ := s.merchants.LoadOrCompute(merchantID, func() *merchantEntry {
		return &merchantEntry{}
	})
	return e
}

func (s *MemoryStore) PutSubscription(_ context.Context, sub domain.Subscription) error {
	e := s.entry(sub.MerchantID)
	sub.Events = slices.Clone(sub.Events)

	e.mu.Lock()
	e.sub = &sub
	e.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetSubscription(_ context.Context, merchantID string) (*domain.Subscription, error) {
	e, ok := s.merchants.Load(merchantID)
	if !ok {
		return nil, nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.sub == nil {
		return nil, nil
	}
	sub := *e.sub
	sub.Events = slices.Clone(e.sub.Events)
	return &sub, nil
}

func (s *MemoryStore) SetSubscriptionActive(ctx context.Context, merchantID string, active bool) (*domain.Subscription, error) {
	e, ok := s.merchants.Load(merchantID)
	if !ok {
		return nil, fmt.Errorf("subscription %s: %w", merchantID, domain.ErrNotFound)
	}

	e.mu.Lock()
	if e.sub == nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("subscription %s: %w", merchantID, domain.ErrNotFound)
	}
	e.sub.Active = active
	e.mu.Unlock()

	return s.GetSubscription(ctx, merchantID)
}

func (s *MemoryStore) AppendEvent(_ context.Context, merchantID string, event domain.Event) error {
	e := s.entry(merchantID)

	e.mu.Lock()
	e.events = append(e.events, event)
	e.mu.Unlock()
	return nil
}

func (s *MemoryStore) ListEvents(_ context.Context, merchantID string) ([]domain.Event, error) {
	e, ok := s.merchants.Load(merchantID)
	if !ok {
		return []domain.Event{}, nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	events := make([]domain.Event, len(e.events))
	copy(events, e.events)
	return events, nil
}

func (s *MemoryStore) RecordOutcome(_ context.Context, merchantID string, outcome domain.DeliveryOutcome) error {
	e := s.entry(merchantID)

	e.mu.Lock()
	e.outcomes = append(e.outcomes, outcome)
	e.mu.Unlock()
	return nil
}

func (s *MemoryStore) ListOutcomes(_ context.Context, merchantID string, limit int) ([]domain.DeliveryOutcome, error) {
	e, ok := s.merchants.Load(merchantID)
	if !ok {
		return []domain.DeliveryOutcome{}, nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	n := len(e.outcomes)
	if limit > 0 && limit < n {
		n = limit
	}
	outcomes := make([]domain.DeliveryOutcome, 0, n)
	for i := len(e.outcomes) - 1; i >= 0 && len(outcomes) < n; i-- {
		outcomes = append(outcomes, e.outcomes[i])
	}
	return outcomes, nil
}
