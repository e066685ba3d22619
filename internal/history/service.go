package history

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/congo-pay/wallet_ledger/internal/ledger"
	"github.com/congo-pay/wallet_ledger/internal/transaction"
	"github.com/congo-pay/wallet_ledger/internal/wallet"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Page is one page of a wallet's ledger, newest first.
type Page struct {
	Page  int                       `json:"page"`
	Limit int                       `json:"limit"`
	Total int                       `json:"total"`
	Data  []transaction.Transaction `json:"data"`
}

// Service answers history queries outside any mutation transaction.
type Service struct {
	wallets      wallet.Repository
	transactions transaction.Repository
	cache        *Cache
	logger       *zap.Logger
}

// NewService wires the history query. cache may be nil.
func NewService(wallets wallet.Repository, transactions transaction.Repository, cache *Cache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{wallets: wallets, transactions: transactions, cache: cache, logger: logger}
}

// GetTransactionHistory returns entries where the user's wallet is the primary
// or the recipient wallet. Zero page or limit selects the default.
func (s *Service) GetTransactionHistory(ctx context.Context, userID string, page, limit int) (Page, error) {
	if page == 0 {
		page = DefaultPage
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if page < 1 || limit < 1 {
		return Page{}, fmt.Errorf("%w: page and limit must be positive", ledger.ErrInvalidInput)
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	// The store offset is (page-1)*limit and must fit in an int.
	if page > math.MaxInt/limit {
		return Page{}, fmt.Errorf("%w: page out of range", ledger.ErrInvalidInput)
	}

	w, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return Page{}, err
	}

	cached, gen, ok, cacheErr := s.cache.get(ctx, w.ID, page, limit)
	if cacheErr != nil {
		s.logger.Warn("history cache read failed", zap.String("wallet_id", w.ID), zap.Error(cacheErr))
	}
	if ok {
		return cached, nil
	}

	items, total, err := s.transactions.ListForWallet(ctx, w.ID, page, limit)
	if err != nil {
		return Page{}, err
	}
	if items == nil {
		items = []transaction.Transaction{}
	}
	result := Page{Page: page, Limit: limit, Total: total, Data: items}

	// Without a trusted generation the page could be cached under a stale key.
	if cacheErr == nil {
		if err := s.cache.put(ctx, w.ID, gen, result); err != nil {
			s.logger.Warn("history cache write failed", zap.String("wallet_id", w.ID), zap.Error(err))
		}
	}
	return result, nil
}
