package funding

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/wallet_ledger/internal/identity"
	"github.com/congo-pay/wallet_ledger/internal/ledger"
)

// Funder is the ledger operation behind the funding endpoint.
type Funder interface {
	FundWallet(ctx context.Context, in ledger.FundInput) (ledger.FundResult, error)
}

// Handler exposes the wallet funding endpoint.
type Handler struct {
	funder Funder
}

// NewHandler constructs a funding handler.
func NewHandler(funder Funder) *Handler {
	return &Handler{funder: funder}
}

// Fund credits the authenticated caller's wallet.
func (h *Handler) Fund(c *fiber.Ctx) error {
	caller, ok := identity.FromLocals(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}

	var req FundRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	result, err := h.funder.FundWallet(c.UserContext(), ledger.FundInput{
		UserID:    caller.UserID,
		Amount:    req.Amount,
		Reference: req.Reference,
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(FundResponse{
		Message: result.Message,
		Data:    result.Transaction,
		Balance: result.Balance,
	})
}
