package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/wallet_ledger/internal/payments"
)

// RegisterPaymentRoutes wires the wallet-to-wallet transfer endpoint behind guards.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler, guards ...fiber.Handler) {
	r.Post("/wallet/transfer", append(guards, h.Transfer)...)
}
