package history

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/wallet_ledger/internal/identity"
)

// Handler exposes the transaction history endpoint.
type Handler struct {
	service *Service
}

// NewHandler builds a history HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// List returns the caller's ledger entries, newest first.
func (h *Handler) List(c *fiber.Ctx) error {
	caller, ok := identity.FromLocals(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}

	page := c.QueryInt("page", DefaultPage)
	limit := c.QueryInt("limit", DefaultLimit)

	result, err := h.service.GetTransactionHistory(c.UserContext(), caller.UserID, page, limit)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(result)
}
