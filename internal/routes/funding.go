package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/wallet_ledger/internal/funding"
)

// RegisterFundingRoutes wires the external funding endpoint behind guards.
func RegisterFundingRoutes(r fiber.Router, h *funding.Handler, guards ...fiber.Handler) {
	r.Post("/wallet/fund-wallet", append(guards, h.Fund)...)
}
