package funding

import (
	"github.com/shopspring/decimal"

	"github.com/congo-pay/wallet_ledger/internal/transaction"
)

// FundRequest credits the caller's wallet from an external source. Reference
// is the caller's idempotency key; replays with the same reference fail with
// 409 and change nothing. Amount accepts a JSON string or number.
type FundRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}

// FundResponse is the committed CREDIT entry and the new balance.
type FundResponse struct {
	Message string                  `json:"message"`
	Data    transaction.Transaction `json:"data"`
	Balance decimal.Decimal         `json:"balance"`
}
