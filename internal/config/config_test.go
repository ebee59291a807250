package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "helpdesk-service", cfg.App.Name)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.True(t, cfg.Postgres.RunMigrations)
	assert.Equal(t, "America/Sao_Paulo", cfg.Lifecycle.TimeZone)
	assert.Equal(t, 3, cfg.Lifecycle.ProtocolRetries)
	assert.Equal(t, 5*time.Second, cfg.Notification.Timeout())
	assert.Equal(t, 5*time.Minute, cfg.Notification.NameCacheTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_HOST", "127.0.0.1")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("POSTGRES_RUN_MIGRATIONS", "false")
	t.Setenv("LIFECYCLE_TIME_ZONE", "UTC")
	t.Setenv("NOTIFY_TIMEOUT_SECONDS", "10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.App.Addr())
	assert.False(t, cfg.Postgres.RunMigrations)
	assert.Equal(t, "UTC", cfg.Lifecycle.TimeZone)
	assert.Equal(t, 10*time.Second, cfg.Notification.Timeout())
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")
	_, err := Load()
	assert.Error(t, err)
}

func TestNotificationTimeoutFallback(t *testing.T) {
	cfg := NotificationConfig{TimeoutSeconds: 0}
	assert.Equal(t, 5*time.Second, cfg.Timeout())
}
