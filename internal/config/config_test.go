package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inTempDir keeps a developer's .env out of the test.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	inTempDir(t)
	for _, key := range []string{"PORT", "STORE_BACKEND", "WEBHOOK_TIMEOUT", "TRIGGER_RATE_LIMIT", "TRIGGER_RATE_WINDOW", "LOG_LEVEL", "REDIS_URL", "DATABASE_URL", "HEALTH_FAILURE_THRESHOLD", "MIGRATIONS_DIR"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, 10*time.Second, cfg.WebhookTimeout)
	assert.Equal(t, 5, cfg.HealthFailureThreshold)
	assert.Equal(t, 0, cfg.TriggerRateLimit)
	assert.Equal(t, time.Second, cfg.TriggerRateWindow)
	assert.Equal(t, "migrations", cfg.MigrationsDir)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoad_BackendRequirements(t *testing.T) {
	inTempDir(t)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")

	tests := []struct {
		backend string
		env     map[string]string
		wantErr bool
	}{
		{"postgres", nil, true},
		{"postgres", map[string]string{"DATABASE_URL": "postgres://localhost/notify"}, false},
		{"redis", nil, true},
		{"REDIS", map[string]string{"REDIS_URL": "redis://localhost:6379"}, false},
		{"cassandra", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			t.Setenv("STORE_BACKEND", tt.backend)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_ParsesValues(t *testing.T) {
	inTempDir(t)
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("WEBHOOK_TIMEOUT", "2500ms")
	t.Setenv("TRIGGER_RATE_LIMIT", "20")
	t.Setenv("TRIGGER_RATE_WINDOW", "1m")
	t.Setenv("HEALTH_FAILURE_THRESHOLD", "abc")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2500*time.Millisecond, cfg.WebhookTimeout)
	assert.Equal(t, 20, cfg.TriggerRateLimit)
	assert.Equal(t, time.Minute, cfg.TriggerRateWindow)
	assert.Equal(t, 5, cfg.HealthFailureThreshold, "invalid ints fall back to the default")
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_RejectsNegativeRateLimit(t *testing.T) {
	inTempDir(t)
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("TRIGGER_RATE_LIMIT", "-1")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	dir := inTempDir(t)
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("PORT", "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PORT=9191\nWEBHOOK_TIMEOUT=3\n"), 0o600))
	t.Setenv("WEBHOOK_TIMEOUT", "")
	// godotenv only fills variables that are absent, not empty.
	os.Unsetenv("PORT")
	os.Unsetenv("WEBHOOK_TIMEOUT")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9191", cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.WebhookTimeout, "bare numbers are seconds")
}

func TestLoadWatch(t *testing.T) {
	inTempDir(t)
	t.Setenv("WATCH_WS_URL", "")
	t.Setenv("WATCH_POLL_URL", "")
	t.Setenv("WATCH_MAX_RECONNECTS", "3")
	t.Setenv("WATCH_RECONNECT_DELAY", "250ms")

	cfg, err := LoadWatch()
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws", cfg.WSURL)
	assert.Equal(t, 3, cfg.MaxReconnectAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.ReconnectDelay)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)

	t.Setenv("WATCH_WS_URL", "http://localhost:8080/ws")
	_, err = LoadWatch()
	assert.Error(t, err)
}
