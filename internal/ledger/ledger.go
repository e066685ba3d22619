package ledger

import (
	"context"

	"github.com/congo-pay/wallet_ledger/internal/transaction"
	"github.com/congo-pay/wallet_ledger/internal/wallet"
)

// Repos groups the repositories a unit of work operates on.
type Repos struct {
	Wallets      wallet.Repository
	Transactions transaction.Repository
}

// UnitOfWork runs fn atomically. Every read and write made through the Repos
// handed to fn belongs to one store transaction; if fn returns an error, or
// the commit fails, none of its writes become visible.
type UnitOfWork interface {
	Run(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}

// Store is a transactional backend for wallets and ledger entries.
type Store interface {
	UnitOfWork
	// Repos returns auto-commit repositories for reads and single-row writes
	// outside a unit of work. They must not be used from inside Run.
	Repos() Repos
}
