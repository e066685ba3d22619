package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/congo-pay/wallet_ledger/internal/config"
	"github.com/congo-pay/wallet_ledger/internal/infra"
	"github.com/congo-pay/wallet_ledger/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod*6)
	defer cancel()

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.AppName)
		if err != nil {
			logger.Fatal("connect postgres", zap.Error(err))
		}
		defer pool.Close()
		if err := infra.MigratePostgres(ctx, pool, logger); err != nil {
			logger.Fatal("migrate postgres", zap.Error(err))
		}
	case config.DriverMySQL:
		db, err := infra.NewMySQL(ctx, cfg.MySQLDSN)
		if err != nil {
			logger.Fatal("connect mysql", zap.Error(err))
		}
		if err := infra.MigrateMySQL(db); err != nil {
			logger.Fatal("migrate mysql", zap.Error(err))
		}
	default:
		logger.Info("nothing to migrate", zap.String("store", cfg.StoreDriver))
		return
	}
	logger.Info("migrations complete", zap.String("store", cfg.StoreDriver))
}
