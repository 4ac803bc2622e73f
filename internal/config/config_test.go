package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(m map[string]string) Lookup {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(mapLookup(nil))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, time.Hour, cfg.ResetTTL)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.ExposeReset)
	assert.True(t, cfg.JWTSecretGen)
	assert.Len(t, cfg.JWTSecret, 64)
	assert.Equal(t, "@every 1h", cfg.CleanupSchedule)
	assert.Equal(t, "admin@example.com", cfg.MasterAdminEmail)
}

func TestLoadFrom_ProductionRequiresSecret(t *testing.T) {
	_, err := LoadFrom(mapLookup(map[string]string{"APP_ENV": "production"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadFrom_ProductionHidesResetToken(t *testing.T) {
	cfg, err := LoadFrom(mapLookup(map[string]string{
		"APP_ENV":    "production",
		"JWT_SECRET": "s3cret",
	}))
	require.NoError(t, err)
	assert.False(t, cfg.ExposeReset)
	assert.False(t, cfg.JWTSecretGen)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDevelopment())

	cfg, err = LoadFrom(mapLookup(map[string]string{
		"APP_ENV":            "production",
		"JWT_SECRET":         "s3cret",
		"EXPOSE_RESET_TOKEN": "true",
	}))
	require.NoError(t, err)
	assert.False(t, cfg.ExposeReset, "production ignores EXPOSE_RESET_TOKEN")
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(mapLookup(map[string]string{
		"ACCESS_TOKEN_TTL_MIN":   "5",
		"REFRESH_TOKEN_TTL_DAYS": "1",
		"EXPOSE_RESET_TOKEN":     "off",
		"AMQP_URL":               "amqp://mq:5672/",
		"RATE_LIMIT_BURST":       "3",
		"CACHE_METHODS":          "get, head",
	}))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 24*time.Hour, cfg.RefreshTTL)
	assert.False(t, cfg.ExposeReset)
	assert.Equal(t, "amqp://mq:5672/", cfg.AMQPURL)
	assert.Equal(t, 3, cfg.RateLimit.Capacity)
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, cfg.Cache.Methods)
}

func TestLoadFrom_RejectsNonPositiveTTL(t *testing.T) {
	_, err := LoadFrom(mapLookup(map[string]string{"ACCESS_TOKEN_TTL_MIN": "0"}))
	assert.Error(t, err)
}

func TestRequireDatabase(t *testing.T) {
	cfg, err := LoadFrom(mapLookup(map[string]string{"DB_USER": "app"}))
	require.NoError(t, err)

	err = cfg.RequireDatabase()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_HOST, DB_NAME")

	cfg.DBHost, cfg.DBName = "db", "learning"
	assert.NoError(t, cfg.RequireDatabase())
}

func TestRateLimit_TTLNeverBelowFiveIntervals(t *testing.T) {
	rl := loadRateLimit(env{lookup: mapLookup(map[string]string{
		"RATE_LIMIT_REFILL_INTERVAL": "1m",
		"RATE_LIMIT_TTL":             "1m",
	})})
	assert.Equal(t, 5*time.Minute, rl.TTL)
}

func TestRedisOptions(t *testing.T) {
	opts := RedisOptions(mapLookup(map[string]string{
		"REDIS_HOST": "cache",
		"REDIS_PORT": "6380",
		"REDIS_ADDR": "ignored:1",
		"REDIS_DB":   "2",
	}))
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Nil(t, opts.TLSConfig)

	assert.Equal(t, "localhost:6379", RedisOptions(mapLookup(nil)).Addr)
}
