package payments

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/wallet_ledger/internal/identity"
	"github.com/congo-pay/wallet_ledger/internal/ledger"
	"github.com/congo-pay/wallet_ledger/internal/transaction"
)

// Transferrer is the ledger operation behind the transfer endpoint.
type Transferrer interface {
	TransferFunds(ctx context.Context, in ledger.TransferInput) (ledger.TransferResult, error)
}

// Handler exposes wallet-to-wallet payment endpoints.
type Handler struct {
	ledger Transferrer
}

// NewHandler constructs a payment handler.
func NewHandler(l Transferrer) *Handler {
	return &Handler{ledger: l}
}

type transferRequest struct {
	WalletToken string          `json:"wallet_token"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type transferResponse struct {
	Message           string                  `json:"message"`
	SenderTransaction transaction.Transaction `json:"sender_transaction"`
	Balance           decimal.Decimal         `json:"balance"`
}

// Transfer moves funds from the caller's wallet to the wallet identified by
// wallet_token.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	caller, ok := identity.FromLocals(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}

	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	res, err := h.ledger.TransferFunds(c.UserContext(), ledger.TransferInput{
		SenderUserID:   caller.UserID,
		RecipientToken: req.WalletToken,
		Amount:         req.Amount,
		Description:    req.Description,
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(transferResponse{
		Message:           res.Message,
		SenderTransaction: res.SenderTransaction,
		Balance:           res.Balance,
	})
}
