package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Priya8975/payment-notification-core/internal/api"
	"github.com/Priya8975/payment-notification-core/internal/config"
	"github.com/Priya8975/payment-notification-core/internal/engine"
	"github.com/Priya8975/payment-notification-core/internal/notify"
	"github.com/Priya8975/payment-notification-core/internal/store"
	ws "github.com/Priya8975/payment-notification-core/internal/websocket"
	"github.com/Priya8975/payment-notification-core/internal/worker"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis is optional unless it is the storage backend; when present it
	// carries the realtime relay, endpoint health and the trigger rate limit.
	var redisStore *store.RedisStore
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisStore, err = store.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		redisClient = redisStore.Client()
		logger.Info("connected to Redis")
	}

	var backend store.Backend
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pgStore.Close()
		logger.Info("connected to PostgreSQL")

		if err := pgStore.RunMigrations(ctx, cfg.MigrationsDir); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("database migrations applied")
		backend = pgStore
	case config.BackendRedis:
		backend = redisStore
	default:
		backend = store.NewMemory()
	}
	logger.Info("storage backend ready", "backend", cfg.StoreBackend)

	hub := ws.NewHub(logger)
	go hub.Run(ctx)

	registry := engine.NewRegistry(backend, nil, nil, logger)

	opts := worker.Options{Timeout: cfg.WebhookTimeout, Publisher: hub}
	routerOpts := api.RouterOptions{Hub: hub}
	var health notify.HealthReader

	if redisClient != nil {
		relay := engine.NewRelay(redisClient, logger)
		go func() {
			if err := relay.Run(ctx, hub); err != nil {
				logger.Error("realtime relay stopped", "error", err)
			}
		}()
		opts.Publisher = relay

		endpointHealth := engine.NewEndpointHealth(redisClient, cfg.HealthFailureThreshold, logger)
		opts.Health = endpointHealth
		health = endpointHealth

		if cfg.TriggerRateLimit > 0 {
			routerOpts.Limiter = engine.NewRateLimiter(redisClient, cfg.TriggerRateWindow, logger)
			routerOpts.TriggerLimit = cfg.TriggerRateLimit
		}
	} else if cfg.TriggerRateLimit > 0 {
		logger.Warn("TRIGGER_RATE_LIMIT needs REDIS_URL; rate limiting disabled")
	}

	dispatcher := worker.NewDispatcher(registry, backend, backend, logger, opts)
	core := notify.New(registry, backend, dispatcher, health, logger)

	router := api.NewRouter(core, logger, routerOpts)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.WebhookTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	cancel()

	logger.Info("server stopped")
}
