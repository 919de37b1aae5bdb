package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type recordingBroadcaster struct {
	mu     sync.Mutex
	frames [][]byte
	got    chan struct{}
}

func (b *recordingBroadcaster) BroadcastRaw(data []byte) {
	b.mu.Lock()
	b.frames = append(b.frames, data)
	b.mu.Unlock()
	b.got <- struct{}{}
}

func TestRelay_ForwardsPublishedFrames(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	relay := NewRelay(client, testLogger())
	hub := &recordingBroadcaster{got: make(chan struct{}, 1)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx, hub) }()

	select {
	case <-relay.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("relay never subscribed")
	}

	// A second instance publishing through its own relay reaches this hub.
	publisher := NewRelay(client, testLogger())
	frame := map[string]string{"type": "payment.completed", "merchant_id": "M1"}
	if err := publisher.Publish(ctx, frame); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case <-hub.got:
	case <-time.After(2 * time.Second):
		t.Fatal("frame was not forwarded to the hub")
	}

	hub.mu.Lock()
	got := string(hub.frames[0])
	hub.mu.Unlock()
	want := `{"merchant_id":"M1","type":"payment.completed"}`
	if got != want {
		t.Errorf("frame = %s, want %s", got, want)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop after cancel")
	}
}

func TestRelay_PublishWithoutSubscribers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	relay := NewRelay(client, testLogger())
	if err := relay.Publish(context.Background(), map[string]int{"n": 1}); err != nil {
		t.Fatalf("publishing with no subscribers should succeed: %v", err)
	}
}

func TestRealtimeChannel_Constant(t *testing.T) {
	if RealtimeChannel != "payment_events" {
		t.Errorf("expected RealtimeChannel = %q, got %q", "payment_events", RealtimeChannel)
	}
}
