package transaction

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Type classifies a ledger entry.
type Type string

const (
	TypeCredit   Type = "CREDIT"
	TypeDebit    Type = "DEBIT"
	TypeTransfer Type = "TRANSFER"
)

// Status of a ledger entry. The engine only writes completed entries.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

var (
	// ErrNotFound is returned when no entry carries the requested reference.
	ErrNotFound = errors.New("transaction not found")
	// ErrDuplicateReference is returned when the reference was already recorded.
	ErrDuplicateReference = errors.New("duplicate transaction reference")
)

// Transaction is one immutable ledger entry.
type Transaction struct {
	ID                string          `json:"id"`
	Reference         string          `json:"reference"`
	WalletID          string          `json:"wallet_id"`
	RecipientWalletID string          `json:"recipient_wallet_id,omitempty"`
	UserID            string          `json:"user_id"`
	Type              Type            `json:"type"`
	Amount            decimal.Decimal `json:"amount"`
	Status            Status          `json:"status"`
	Description       string          `json:"description"`
	Metadata          map[string]any  `json:"metadata,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// IsOutflow reports whether the entry reduces the balance of its primary wallet.
func (t Transaction) IsOutflow() bool {
	return t.Type == TypeDebit || t.Type == TypeTransfer
}
