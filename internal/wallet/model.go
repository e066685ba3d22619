package wallet

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is the only currency wallets are opened in.
const DefaultCurrency = "USD"

var (
	// ErrNotFound is returned when no wallet matches the lookup.
	ErrNotFound = errors.New("wallet not found")
	// ErrAlreadyExists is returned when the user already owns a wallet.
	ErrAlreadyExists = errors.New("wallet already exists for user")
	// ErrTokenTaken is returned when the generated account token is already in use.
	ErrTokenTaken = errors.New("wallet token already in use")
	// ErrNegativeBalance is returned when a balance adjustment would leave the wallet below zero.
	ErrNegativeBalance = errors.New("balance adjustment would overdraw wallet")
)

// Wallet is a user's single stored-value account.
type Wallet struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	AccountName string          `json:"account_name"`
	Token       string          `json:"wallet_token"`
	Balance     decimal.Decimal `json:"balance"`
	Currency    string          `json:"currency"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
