// Command watch follows the realtime feed of a notification server and,
// optionally, polls a status URL, printing every frame it receives.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Priya8975/payment-notification-core/internal/config"
	"github.com/Priya8975/payment-notification-core/internal/realtime"
)

const pollID = "status"

func main() {
	cfg, err := config.LoadWatch()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ch := realtime.New(realtime.Config{
		URL:                  cfg.WSURL,
		PollInterval:         cfg.PollInterval,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		ReconnectDelay:       cfg.ReconnectDelay,
	}, logger)

	done := make(chan struct{}, 1)

	printFrame := func(m realtime.Message) {
		fmt.Printf("%-18s %s\n", m.Topic, m.Data)
	}
	for _, topic := range []realtime.Topic{
		realtime.TopicPaymentCreated,
		realtime.TopicPaymentCompleted,
		realtime.TopicPaymentFailed,
		realtime.TopicPaymentExpired,
		realtime.TopicPaymentRefunded,
		realtime.TopicWebhookDelivered,
		realtime.TopicWebhookFailed,
		realtime.TopicMessage,
		realtime.PollTopic(pollID),
	} {
		ch.On(topic, printFrame)
	}

	ch.On(realtime.TopicConnected, func(realtime.Message) {
		logger.Info("connected", "url", cfg.WSURL)
	})
	ch.On(realtime.TopicDisconnected, func(realtime.Message) {
		logger.Info("disconnected")
	})
	ch.On(realtime.TopicError, func(m realtime.Message) {
		logger.Warn("channel error", "error", m.Err)
	})
	ch.On(realtime.TopicReconnectFailed, func(realtime.Message) {
		logger.Error("giving up after repeated reconnect failures", "max_attempts", cfg.MaxReconnectAttempts)
		select {
		case done <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch.Connect(ctx)
	if cfg.PollURL != "" {
		ch.StartPolling(pollID, cfg.PollURL, 0, func(data json.RawMessage) {
			logger.Debug("poll result", "bytes", len(data))
		})
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-quit:
	case <-done:
		exitCode = 1
	}

	ch.Disconnect()
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
