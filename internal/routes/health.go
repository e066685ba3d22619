package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// RegisterHealthRoutes adds the readiness endpoint. Every configured
// dependency must answer within two seconds.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := fiber.Map{"store": d.Cfg.StoreDriver}
		if d.Cache != nil {
			results["redis"] = "ok"
			if err := d.Cache.Ping(ctx).Err(); err != nil {
				results["redis"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		for name, check := range d.HealthChecks {
			results[name] = "ok"
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    results,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
