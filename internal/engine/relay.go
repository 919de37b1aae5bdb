package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RealtimeChannel is the Redis pub/sub channel realtime frames travel on.
const RealtimeChannel = "payment_events"

// Broadcaster receives frames relayed from Redis.
type Broadcaster interface {
	BroadcastRaw(data []byte)
}

// Relay fans realtime frames out to every server instance through Redis
// pub/sub, so a dashboard connected to any instance sees every event.
type Relay struct {
	redisClient *redis.Client
	channel     string
	logger      *slog.Logger

	readyOnce sync.Once
	ready     chan struct{}
}

func NewRelay(redisClient *redis.Client, logger *slog.Logger) *Relay {
	return &Relay{
		redisClient: redisClient,
		channel:     RealtimeChannel,
		logger:      logger,
		ready:       make(chan struct{}),
	}
}

// Publish encodes frame as JSON and publishes it to all subscribed instances.
func (r *Relay) Publish(ctx context.Context, frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encoding realtime frame: %w", err)
	}
	if err := r.redisClient.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("publishing realtime frame: %w", err)
	}
	return nil
}

// Ready is closed once Run holds an active subscription.
func (r *Relay) Ready() <-chan struct{} {
	return r.ready
}

// Run forwards every frame published on the channel to hub until ctx is cancelled.
func (r *Relay) Run(ctx context.Context, hub Broadcaster) error {
	sub := r.redisClient.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", r.channel, err)
	}
	r.readyOnce.Do(func() { close(r.ready) })
	r.logger.Info("realtime relay subscribed", "channel", r.channel)

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("realtime relay stopping")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			hub.BroadcastRaw([]byte(msg.Payload))
		}
	}
}
