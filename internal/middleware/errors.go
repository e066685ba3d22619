package middleware

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/congo-pay/wallet_ledger/internal/ledger"
)

const conflictMessage = "temporarily unavailable, retry"

var kindStatus = map[ledger.Kind]int{
	ledger.KindInvalidAmount:      http.StatusBadRequest,
	ledger.KindInvalidInput:       http.StatusBadRequest,
	ledger.KindSelfTransfer:       http.StatusBadRequest,
	ledger.KindNotFound:           http.StatusNotFound,
	ledger.KindDuplicateReference: http.StatusConflict,
	ledger.KindAlreadyExists:      http.StatusConflict,
	ledger.KindInsufficientFunds:  http.StatusUnprocessableEntity,
	ledger.KindStoreConflict:      http.StatusServiceUnavailable,
}

// ErrorHandler renders errors as {"error", "kind"} JSON. Fiber errors keep
// their status; ledger errors are mapped by kind; anything else is a 500
// whose cause is logged and never shown to the caller.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message, "kind": "http"})
		}

		kind := ledger.KindOf(err)
		status, ok := kindStatus[kind]
		if !ok {
			logger.Error("unhandled request error",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("request_id", RequestIDFrom(c)),
				zap.Error(err))
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal error",
				"kind":  ledger.KindUnexpected.String(),
			})
		}
		message := err.Error()
		if kind == ledger.KindStoreConflict {
			// Conflicts wrap driver messages and SQLSTATE codes.
			logger.Warn("store conflict",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("request_id", RequestIDFrom(c)),
				zap.Error(err))
			message = conflictMessage
			c.Set(fiber.HeaderRetryAfter, "1")
		}
		return c.Status(status).JSON(fiber.Map{"error": message, "kind": kind.String()})
	}
}
