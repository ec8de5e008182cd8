package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE", "")
	t.Setenv("APP_ENV", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, time.Hour, cfg.CheckoutSessionTTL)
	assert.Equal(t, 24*time.Hour, cfg.PendingTTL)
	assert.Equal(t, 30*time.Minute, cfg.SyncInterval)
	assert.True(t, cfg.EnforceAvailability)
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}, cfg.RetryBackoff)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("ENFORCE_AVAILABILITY", "off")
	t.Setenv("SYNC_INTERVAL", "0")
	t.Setenv("REDIS_DB", "2")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.False(t, cfg.EnforceAvailability)
	assert.Zero(t, cfg.SyncInterval)
	assert.Equal(t, 2, cfg.RedisDB)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("mongo without uri", func(t *testing.T) {
		t.Setenv("STORAGE", "mongo")
		t.Setenv("MONGO_URI", "")
		_, err := Load()
		require.ErrorContains(t, err, "MONGO_URI")
	})
	t.Run("session ttl out of range", func(t *testing.T) {
		t.Setenv("CHECKOUT_SESSION_TTL", "5m")
		_, err := Load()
		require.ErrorContains(t, err, "CHECKOUT_SESSION_TTL")
	})
	t.Run("bad bool", func(t *testing.T) {
		t.Setenv("S3_USE_SSL", "maybe")
		_, err := Load()
		require.ErrorContains(t, err, "S3_USE_SSL")
	})
	t.Run("production needs stripe", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		t.Setenv("STRIPE_SECRET_KEY", "")
		t.Setenv("STRIPE_WEBHOOK_SECRET", "")
		_, err := Load()
		require.ErrorContains(t, err, "STRIPE_SECRET_KEY")
		require.ErrorContains(t, err, "STRIPE_WEBHOOK_SECRET")
	})
}
