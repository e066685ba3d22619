package wallet

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/wallet_ledger/internal/identity"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	AccountName string `json:"account_name"`
}

// Create opens a wallet for the authenticated user.
func (h *Handler) Create(c *fiber.Ctx) error {
	caller, ok := identity.FromLocals(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}

	var req createRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}

	w, err := h.service.Create(c.UserContext(), CreateInput{
		UserID:      caller.UserID,
		AccountName: req.AccountName,
		DisplayName: caller.Name,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message": "Wallet created",
		"data":    w,
	})
}

// Me returns the authenticated user's wallet and balance.
func (h *Handler) Me(c *fiber.Ctx) error {
	caller, ok := identity.FromLocals(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	w, err := h.service.GetByUserID(c.UserContext(), caller.UserID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": w})
}
