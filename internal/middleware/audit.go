package middleware

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/congo-pay/wallet_ledger/internal/identity"
)

// Audit emits one structured log entry per request. Handler errors are
// rendered here through the app's ErrorHandler so the logged status is the
// one the caller receives.
func Audit(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(http.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
		}
		if reqID := RequestIDFrom(c); reqID != "" {
			fields = append(fields, zap.String("request_id", reqID))
		}
		if caller, ok := identity.FromLocals(c); ok {
			fields = append(fields, zap.String("user_id", caller.UserID))
		}

		level := zapcore.InfoLevel
		switch {
		case status >= http.StatusInternalServerError:
			level = zapcore.ErrorLevel
		case err != nil:
			level = zapcore.WarnLevel
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		logger.Log(level, "request completed", fields...)
		return nil
	}
}
