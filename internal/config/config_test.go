package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_NAME", "APP_ENV", "PORT", "LOG_LEVEL", "STORE_DRIVER", "DATABASE_URL", "MYSQL_DSN",
		"REDIS_URL", "AMQP_URL", "AMQP_EXCHANGE", "JWT_SECRET", "JWT_ISSUER",
		idemTTLSecondsEnvVar, idemTTLDurEnvVar, shutdownSecondsEnvVar, shutdownDurationEnvVar,
		ledgerTxTimeoutEnvVar, historyCacheTTLEnvVar, rateLimitPerMinEnvVar,
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnvDefaultsToMemoryInDevelopment(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, ":8080", cfg.Address())
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, 5*time.Second, cfg.LedgerTxTimeout)
	assert.Equal(t, defaultRateLimitPerMin, cfg.RateLimitPerMin)
	assert.True(t, cfg.IsDev())
}

func TestFromEnvInfersDriverFromURLs(t *testing.T) {
	clearEnv(t)
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/wallets?parseTime=true")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, DriverMySQL, cfg.StoreDriver)

	t.Setenv("DATABASE_URL", "postgres://localhost/wallets")
	cfg, err = FromEnv()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
}

func TestFromEnvParsesDurations(t *testing.T) {
	clearEnv(t)
	t.Setenv(shutdownSecondsEnvVar, "3")
	t.Setenv(idemTTLDurEnvVar, "90m")
	t.Setenv(ledgerTxTimeoutEnvVar, "750ms")
	t.Setenv(historyCacheTTLEnvVar, "15s")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.ShutdownPeriod)
	assert.Equal(t, 90*time.Minute, cfg.IdempotencyTTL)
	assert.Equal(t, 750*time.Millisecond, cfg.LedgerTxTimeout)
	assert.Equal(t, 15*time.Second, cfg.HistoryCacheTTL)
}

func TestFromEnvRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"bad seconds":    {shutdownSecondsEnvVar, "soon"},
		"bad duration":   {idemTTLDurEnvVar, "forever"},
		"bad rate limit": {rateLimitPerMinEnvVar, "many"},
		"unknown driver": {"STORE_DRIVER", "sqlite"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestFromEnvProductionRequirements(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")

	_, err := FromEnv()
	require.Error(t, err, "memory store must be rejected outside development")

	t.Setenv("DATABASE_URL", "postgres://db/wallets")
	_, err = FromEnv()
	require.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "s3cret")
	_, err = FromEnv()
	require.ErrorContains(t, err, "REDIS_URL")

	t.Setenv("REDIS_URL", "redis://cache:6379/0")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.False(t, cfg.IsDev())
}
