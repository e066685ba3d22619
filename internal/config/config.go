package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName         = "WalletLedger"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultAMQPExchange    = "wallet.events"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultLedgerTxTimeout = 5 * time.Second
	defaultHistoryCacheTTL = time.Minute
	defaultRateLimitPerMin = 30
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
	ledgerTxTimeoutEnvVar  = "LEDGER_TX_TIMEOUT"
	historyCacheTTLEnvVar  = "HISTORY_CACHE_TTL"
	rateLimitPerMinEnvVar  = "RATE_LIMIT_PER_MINUTE"
)

// Store drivers understood by STORE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverMemory   = "memory"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName         string
	AppEnv          string
	Port            string
	LogLevel        string
	StoreDriver     string
	DatabaseURL     string
	MySQLDSN        string
	RedisURL        string
	AMQPURL         string
	AMQPExchange    string
	JWTSecret       string
	JWTIssuer       string
	ShutdownPeriod  time.Duration
	IdempotencyTTL  time.Duration
	LedgerTxTimeout time.Duration
	HistoryCacheTTL time.Duration
	RateLimitPerMin int
}

// Load reads a .env file when present, then populates a Config from the
// environment. Variables already set in the environment win over .env.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		AppName:         getEnv("APP_NAME", defaultAppName),
		AppEnv:          getEnv("APP_ENV", defaultAppEnv),
		Port:            getEnv("PORT", defaultPort),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		StoreDriver:     strings.ToLower(os.Getenv("STORE_DRIVER")),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		MySQLDSN:        os.Getenv("MYSQL_DSN"),
		RedisURL:        os.Getenv("REDIS_URL"),
		AMQPURL:         os.Getenv("AMQP_URL"),
		AMQPExchange:    getEnv("AMQP_EXCHANGE", defaultAMQPExchange),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		JWTIssuer:       os.Getenv("JWT_ISSUER"),
		ShutdownPeriod:  defaultShutdownDelay,
		IdempotencyTTL:  defaultIdempotencyTTL,
		LedgerTxTimeout: defaultLedgerTxTimeout,
		HistoryCacheTTL: defaultHistoryCacheTTL,
		RateLimitPerMin: defaultRateLimitPerMin,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.LedgerTxTimeout, err = durationEnv("", ledgerTxTimeoutEnvVar, cfg.LedgerTxTimeout); err != nil {
		return Config{}, err
	}
	if cfg.HistoryCacheTTL, err = durationEnv("", historyCacheTTLEnvVar, cfg.HistoryCacheTTL); err != nil {
		return Config{}, err
	}

	if v := os.Getenv(rateLimitPerMinEnvVar); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", rateLimitPerMinEnvVar, err)
		}
		cfg.RateLimitPerMin = n
	}

	if cfg.StoreDriver == "" {
		switch {
		case cfg.DatabaseURL != "":
			cfg.StoreDriver = DriverPostgres
		case cfg.MySQLDSN != "":
			cfg.StoreDriver = DriverMySQL
		default:
			cfg.StoreDriver = DriverMemory
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set for STORE_DRIVER=%s", c.StoreDriver)
		}
	case DriverMySQL:
		if c.MySQLDSN == "" {
			return fmt.Errorf("MYSQL_DSN must be set for STORE_DRIVER=%s", c.StoreDriver)
		}
	case DriverMemory:
		if !c.IsDev() {
			return fmt.Errorf("STORE_DRIVER=memory is only allowed in development, APP_ENV=%s", c.AppEnv)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.JWTSecret == "" && !c.IsDev() {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if c.RedisURL == "" && !c.IsDev() {
		return fmt.Errorf("REDIS_URL must be set")
	}
	if c.LedgerTxTimeout <= 0 {
		return fmt.Errorf("%s must be positive", ledgerTxTimeoutEnvVar)
	}
	return nil
}

// IsDev reports whether the service runs in a local development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// durationEnv reads a whole-seconds variable first, then a Go duration string.
func durationEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if secondsKey != "" {
		if v := os.Getenv(secondsKey); v != "" {
			seconds, err := strconv.Atoi(v)
			if err != nil {
				return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
			}
			return time.Duration(seconds) * time.Second, nil
		}
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}
