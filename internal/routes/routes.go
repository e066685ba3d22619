package routes

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/congo-pay/wallet_ledger/internal/config"
	"github.com/congo-pay/wallet_ledger/internal/funding"
	"github.com/congo-pay/wallet_ledger/internal/history"
	"github.com/congo-pay/wallet_ledger/internal/identity"
	"github.com/congo-pay/wallet_ledger/internal/ledger"
	"github.com/congo-pay/wallet_ledger/internal/metrics"
	"github.com/congo-pay/wallet_ledger/internal/middleware"
	"github.com/congo-pay/wallet_ledger/internal/notification"
	"github.com/congo-pay/wallet_ledger/internal/payments"
	"github.com/congo-pay/wallet_ledger/internal/reference"
	"github.com/congo-pay/wallet_ledger/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	Store  ledger.Store
	Cache  *redis.Client
	Logger *zap.Logger

	// Optional.
	Notifier     notification.Notifier
	Metrics      *metrics.Recorder
	Refs         reference.Generator
	HealthChecks map[string]HealthCheck
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Store == nil {
		return errors.New("routes: store is required")
	}
	if d.Cfg.JWTSecret == "" {
		return errors.New("routes: JWT_SECRET is required")
	}
	// Outside dev, transfers must not run without response replay.
	if !d.Cfg.IsDev() && d.Cache == nil {
		return errors.New("routes: redis is required outside development")
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Refs == nil {
		d.Refs = reference.New()
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Metrics != nil {
		app.Use(d.Metrics.Middleware())
	}
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)
	if d.Metrics != nil {
		app.Get("/metrics", d.Metrics.Handler())
	}

	historyCache := history.NewCache(d.Cache, d.Cfg.HistoryCacheTTL)
	opts := []ledger.Option{ledger.WithInvalidator(historyCache)}
	if d.Notifier != nil {
		opts = append(opts, ledger.WithNotifier(d.Notifier))
	}
	if d.Metrics != nil {
		opts = append(opts, ledger.WithObserver(d.Metrics))
	}
	engine := ledger.NewEngine(d.Store, d.Refs, d.Logger, opts...)

	repos := d.Store.Repos()
	walletHandler := wallet.NewHandler(wallet.NewService(repos.Wallets, d.Refs, d.Logger))
	fundingHandler := funding.NewHandler(engine)
	paymentHandler := payments.NewHandler(engine)
	historyHandler := history.NewHandler(history.NewService(repos.Wallets, repos.Transactions, historyCache, d.Logger))

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	protected := api.Group("", middleware.JWTAuth(identity.NewVerifier(d.Cfg.JWTSecret, d.Cfg.JWTIssuer)))
	RegisterWalletRoutes(protected, walletHandler)
	RegisterFundingRoutes(protected, fundingHandler,
		middleware.RateLimit(d.Cache, "fund", d.Cfg.RateLimitPerMin, d.Logger),
		middleware.Idempotency(d.Cache, middleware.IdempotencyConfig{TTL: d.Cfg.IdempotencyTTL}, d.Logger),
	)
	RegisterPaymentRoutes(protected, paymentHandler,
		middleware.RateLimit(d.Cache, "transfer", d.Cfg.RateLimitPerMin, d.Logger),
		middleware.Idempotency(d.Cache, middleware.IdempotencyConfig{TTL: d.Cfg.IdempotencyTTL, Required: true}, d.Logger),
	)
	RegisterHistoryRoutes(protected, historyHandler)

	return nil
}
