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

	assert.Equal(t, "cloudassure-engine", cfg.App.Name)
	assert.False(t, cfg.Database.Enabled)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 300*time.Second, cfg.Discovery.Interval)
	assert.Equal(t, 10, cfg.Discovery.MaxConcurrentScans)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DISCOVERY_INTERVAL", "30s")
	t.Setenv("DISCOVERY_MAX_CONCURRENT_SCANS", "3")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_RESULT_TTL", "10m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Discovery.Interval)
	assert.Equal(t, 3, cfg.Discovery.MaxConcurrentScans)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Redis.ResultTTL)
}

func TestValidate(t *testing.T) {
	t.Run("rejects unknown log level", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "verbose")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("rejects non-positive concurrency", func(t *testing.T) {
		t.Setenv("DISCOVERY_MAX_CONCURRENT_SCANS", "0")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("requires db password in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		t.Setenv("DB_ENABLED", "true")
		_, err := Load()
		assert.Error(t, err)

		t.Setenv("DB_PASSWORD", "secret")
		_, err = Load()
		assert.NoError(t, err)
	})
}

func TestDSNAndAddr(t *testing.T) {
	db := DatabaseConfig{
		Host: "db.internal", Port: 5433, User: "engine",
		Password: "pw", Name: "assurance", SSLMode: "require",
	}
	assert.Equal(t,
		"host=db.internal port=5433 user=engine password=pw dbname=assurance sslmode=require",
		db.DSN())

	r := RedisConfig{Host: "cache.internal", Port: 6380}
	assert.Equal(t, "cache.internal:6380", r.Addr())
}
