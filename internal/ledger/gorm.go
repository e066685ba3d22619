package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/congo-pay/wallet_ledger/internal/transaction"
	"github.com/congo-pay/wallet_ledger/internal/wallet"
)

const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// GormStore runs units of work as gorm transactions against MySQL (InnoDB).
type GormStore struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewGormStore constructs a gorm-backed store.
func NewGormStore(db *gorm.DB, timeout time.Duration) *GormStore {
	return &GormStore{db: db, timeout: timeout}
}

func (s *GormStore) Repos() Repos {
	return Repos{
		Wallets:      wallet.NewGormRepository(s.db),
		Transactions: transaction.NewGormRepository(s.db),
	}
}

func (s *GormStore) Run(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, Repos{
			Wallets:      wallet.NewGormRepository(tx),
			Transactions: transaction.NewGormRepository(tx),
		})
	})
	return translateMySQLError(err)
}

func translateMySQLError(err error) error {
	if err == nil {
		return nil
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && (myErr.Number == mysqlDeadlock || myErr.Number == mysqlLockWaitTimeout) {
		return fmt.Errorf("%w: %s (%d)", ErrStoreConflict, myErr.Message, myErr.Number)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: transaction timed out", ErrStoreConflict)
	}
	return err
}

var _ Store = (*GormStore)(nil)
