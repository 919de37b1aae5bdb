package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds all configuration for the notification server.
type Config struct {
	Port                   string
	StoreBackend           string
	DatabaseURL            string
	RedisURL               string
	WebhookTimeout         time.Duration
	HealthFailureThreshold int
	TriggerRateLimit       int
	TriggerRateWindow      time.Duration
	MigrationsDir          string
	LogLevel               slog.Level
}

// WatchConfig configures the realtime watch client.
type WatchConfig struct {
	WSURL                string
	PollURL              string
	PollInterval         time.Duration
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	LogLevel             slog.Level
}

// Load reads configuration from environment variables, after loading a
// .env file from the working directory if one exists.
func Load() (*Config, error) {
	loadDotEnv()

	cfg := &Config{
		Port:                   getEnv("PORT", "8080"),
		StoreBackend:           strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		RedisURL:               getEnv("REDIS_URL", ""),
		WebhookTimeout:         getEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second),
		HealthFailureThreshold: getEnvInt("HEALTH_FAILURE_THRESHOLD", 5),
		TriggerRateLimit:       getEnvInt("TRIGGER_RATE_LIMIT", 0),
		TriggerRateWindow:      getEnvDuration("TRIGGER_RATE_WINDOW", time.Second),
		MigrationsDir:          getEnv("MIGRATIONS_DIR", "migrations"),
		LogLevel:               getEnvLevel("LOG_LEVEL", slog.LevelInfo),
	}

	switch cfg.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the %s backend", BackendPostgres)
		}
	case BackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required for the %s backend", BackendRedis)
		}
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	if cfg.WebhookTimeout <= 0 {
		return nil, fmt.Errorf("WEBHOOK_TIMEOUT must be positive")
	}
	if cfg.TriggerRateLimit < 0 {
		return nil, fmt.Errorf("TRIGGER_RATE_LIMIT must not be negative")
	}
	if cfg.TriggerRateWindow <= 0 {
		return nil, fmt.Errorf("TRIGGER_RATE_WINDOW must be positive")
	}

	return cfg, nil
}

// LoadWatch reads the realtime client configuration.
func LoadWatch() (*WatchConfig, error) {
	loadDotEnv()

	cfg := &WatchConfig{
		WSURL:                getEnv("WATCH_WS_URL", "ws://localhost:8080/ws"),
		PollURL:              getEnv("WATCH_POLL_URL", ""),
		PollInterval:         getEnvDuration("WATCH_POLL_INTERVAL", 5*time.Second),
		MaxReconnectAttempts: getEnvInt("WATCH_MAX_RECONNECTS", 5),
		ReconnectDelay:       getEnvDuration("WATCH_RECONNECT_DELAY", 3*time.Second),
		LogLevel:             getEnvLevel("LOG_LEVEL", slog.LevelInfo),
	}

	if !strings.HasPrefix(cfg.WSURL, "ws://") && !strings.HasPrefix(cfg.WSURL, "wss://") {
		return nil, fmt.Errorf("WATCH_WS_URL must be a ws:// or wss:// URL")
	}
	if cfg.PollURL != "" && cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("WATCH_POLL_INTERVAL must be positive")
	}

	return cfg, nil
}

// loadDotEnv never overrides variables already set in the environment.
func loadDotEnv() {
	_ = godotenv.Load()
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("10s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if n, err := strconv.Atoi(val); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(val)); err != nil {
		return fallback
	}
	return level
}
