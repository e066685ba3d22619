package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/congo-pay/wallet_ledger/internal/config"
	"github.com/congo-pay/wallet_ledger/internal/infra"
	"github.com/congo-pay/wallet_ledger/internal/ledger"
	"github.com/congo-pay/wallet_ledger/internal/logging"
	"github.com/congo-pay/wallet_ledger/internal/metrics"
	"github.com/congo-pay/wallet_ledger/internal/notification"
	"github.com/congo-pay/wallet_ledger/internal/routes"
	"github.com/congo-pay/wallet_ledger/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Error("wallet ledger stopped", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server exited cleanly")
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx := context.Background()
	checks := map[string]routes.HealthCheck{}

	var store ledger.Store
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.AppName)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = ledger.NewPostgresStore(pool, cfg.LedgerTxTimeout)
		checks["postgres"] = pool.Ping
	case config.DriverMySQL:
		db, err := infra.NewMySQL(ctx, cfg.MySQLDSN)
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		defer sqlDB.Close()
		store = ledger.NewGormStore(db, cfg.LedgerTxTimeout)
		checks["mysql"] = sqlDB.PingContext
	default:
		logger.Warn("using in-memory store; balances are lost on restart")
		store = ledger.NewInMemory()
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		c, err := infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer func() {
			if err := c.Close(); err != nil {
				logger.Warn("close redis", zap.Error(err))
			}
		}()
		cache = c
	}

	notifiers := notification.Fanout{notification.NewLoggerNotifier(logger)}
	if cfg.AMQPURL != "" {
		broker, err := infra.NewAMQP(cfg.AMQPURL, cfg.AMQPExchange, cfg.AppName)
		if err != nil {
			// Notifications are best effort; the ledger keeps serving without the broker.
			logger.Warn("amqp unavailable, notifications are logged only", zap.Error(err))
		} else {
			defer broker.Close()
			notifiers = append(notifiers, notification.NewAMQPNotifier(broker.Channel, cfg.AMQPExchange))
			checks["amqp"] = func(context.Context) error {
				if broker.Conn.IsClosed() {
					return fmt.Errorf("connection closed")
				}
				return nil
			}
		}
	}

	srv, err := server.New(routes.Deps{
		Cfg:          cfg,
		Store:        store,
		Cache:        cache,
		Logger:       logger,
		Notifier:     notifiers,
		Metrics:      metrics.New(),
		HealthChecks: checks,
	})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Address()), zap.String("store", cfg.StoreDriver))
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-srvErrCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
