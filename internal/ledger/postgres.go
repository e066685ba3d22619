package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/wallet_ledger/internal/transaction"
	"github.com/congo-pay/wallet_ledger/internal/wallet"
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// PostgresStore runs units of work as PostgreSQL transactions. Wallet rows
// are serialized with SELECT ... FOR UPDATE.
type PostgresStore struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

// NewPostgresStore constructs a Postgres-backed store. A positive timeout
// bounds every unit of work.
func NewPostgresStore(db *pgxpool.Pool, timeout time.Duration) *PostgresStore {
	return &PostgresStore{db: db, timeout: timeout}
}

// Repos returns pool-backed repositories.
func (s *PostgresStore) Repos() Repos {
	return Repos{
		Wallets:      wallet.NewPostgresRepository(s.db),
		Transactions: transaction.NewPostgresRepository(s.db),
	}
}

// Run executes fn inside a read-committed transaction.
func (s *PostgresStore) Run(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return translatePgError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(ctx, Repos{
		Wallets:      wallet.NewPostgresRepository(tx),
		Transactions: transaction.NewPostgresRepository(tx),
	}); err != nil {
		return translatePgError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return translatePgError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return fmt.Errorf("%w: %s (%s)", ErrStoreConflict, pgErr.Message, pgErr.Code)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: transaction timed out", ErrStoreConflict)
	}
	return err
}

var _ Store = (*PostgresStore)(nil)
