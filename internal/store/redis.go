package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Priya8975/payment-notification-core/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each merchant's state under its own keys: a hash for the
// subscription, a list for the event log and a list for delivery outcomes.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func subKey(merchantID string) string      { return "sub:" + merchantID }
func eventsKey(merchantID string) string   { return "events:" + merchantID }
func outcomesKey(merchantID string) string { return "deliveries:" + merchantID }

func (s *RedisStore) PutSubscription(ctx context.Context, sub domain.Subscription) error {
	key := subKey(sub.MerchantID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"callback_url", sub.CallbackURL,
			"secret_key", sub.SecretKey,
			"events", strings.Join(kindsToStrings(sub.Events), ","),
			"active", formatBool(sub.Active),
			"created_at", sub.CreatedAt.Format(time.RFC3339Nano),
			"updated_at", sub.UpdatedAt.Format(time.RFC3339Nano),
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("storing subscription: %w", err)
	}
	return nil
}

func (s *RedisStore) GetSubscription(ctx context.Context, merchantID string) (*domain.Subscription, error) {
	data, err := s.client.HGetAll(ctx, subKey(merchantID)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading subscription: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	sub := &domain.Subscription{
		MerchantID:  merchantID,
		CallbackURL: data["callback_url"],
		SecretKey:   data["secret_key"],
		Active:      data["active"] == "1",
		Events:      []domain.EventKind{},
	}
	if ev := data["events"]; ev != "" {
		sub.Events = stringsToKinds(strings.Split(ev, ","))
	}
	sub.CreatedAt, _ = time.Parse(time.RFC3339Nano, data["created_at"])
	sub.UpdatedAt, _ = time.Parse(time.RFC3339Nano, data["updated_at"])
	return sub, nil
}

func (s *RedisStore) SetSubscriptionActive(ctx context.Context, merchantID string, active bool) (*domain.Subscription, error) {
	key := subKey(merchantID)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("checking subscription: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("subscription %s: %w", merchantID, domain.ErrNotFound)
	}

	err = s.client.HSet(ctx, key,
		"active", formatBool(active),
		"updated_at", time.Now().UTC().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return nil, fmt.Errorf("updating subscription: %w", err)
	}
	return s.GetSubscription(ctx, merchantID)
}

func (s *RedisStore) AppendEvent(ctx context.Context, merchantID string, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if err := s.client.RPush(ctx, eventsKey(merchantID), data).Err(); err != nil {
		return fmt.Errorf("appending event: %w", err)
	}
	return nil
}

func (s *RedisStore) ListEvents(ctx context.Context, merchantID string) ([]domain.Event, error) {
	items, err := s.client.LRange(ctx, eventsKey(merchantID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading events: %w", err)
	}

	events := make([]domain.Event, 0, len(items))
	for _, item := range items {
		var e domain.Event
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("decoding event: %w", err)
		}
		events = append(events, e)
	}
	return events, nil
}

// RecordOutcome pushes to the head of the list so reads come back newest first.
func (s *RedisStore) RecordOutcome(ctx context.Context, merchantID string, outcome domain.DeliveryOutcome) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("encoding delivery outcome: %w", err)
	}
	if err := s.client.LPush(ctx, outcomesKey(merchantID), data).Err(); err != nil {
		return fmt.Errorf("recording delivery outcome: %w", err)
	}
	return nil
}

func (s *RedisStore) ListOutcomes(ctx context.Context, merchantID string, limit int) ([]domain.DeliveryOutcome, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	items, err := s.client.LRange(ctx, outcomesKey(merchantID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("reading delivery outcomes: %w", err)
	}

	outcomes := make([]domain.DeliveryOutcome, 0, len(items))
	for _, item := range items {
		var o domain.DeliveryOutcome
		if err := json.Unmarshal([]byte(item), &o); err != nil {
			return nil, fmt.Errorf("decoding delivery outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
