package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/congo-pay/wallet_ledger/internal/reference"
)

const (
	maxTokenAttempts     = 3
	maxAccountNameLength = 100
)

// ErrInvalidInput wraps wallet creation input that fails validation.
var ErrInvalidInput = errors.New("invalid wallet input")

// Service exposes wallet lifecycle operations. Balance changes go through the
// ledger engine, never through this service.
type Service struct {
	repo   Repository
	refs   reference.Generator
	logger *zap.Logger
}

// NewService builds a wallet service instance.
func NewService(repo Repository, refs reference.Generator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, refs: refs, logger: logger}
}

// CreateInput captures data required to create a wallet.
type CreateInput struct {
	UserID      string
	AccountName string
	// DisplayName is used when AccountName is empty.
	DisplayName string
}

// Create opens the user's wallet with a zero balance. A token collision is
// retried with a fresh token a bounded number of times.
func (s *Service) Create(ctx context.Context, input CreateInput) (Wallet, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return Wallet{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	name := strings.TrimSpace(input.AccountName)
	if name == "" {
		name = strings.TrimSpace(input.DisplayName)
	}
	if name == "" {
		name = userID
	}
	if utf8.RuneCountInString(name) > maxAccountNameLength {
		return Wallet{}, fmt.Errorf("%w: account name exceeds %d characters", ErrInvalidInput, maxAccountNameLength)
	}

	now := nowUTC()
	for attempt := 1; ; attempt++ {
		token, err := s.refs.AccountToken()
		if err != nil {
			return Wallet{}, err
		}

		created, err := s.repo.Create(ctx, Wallet{
			ID:          uuid.NewString(),
			UserID:      userID,
			AccountName: name,
			Token:       token,
			Balance:     decimal.Zero,
			Currency:    DefaultCurrency,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, ErrTokenTaken) || attempt >= maxTokenAttempts {
			return Wallet{}, err
		}
		s.logger.Warn("wallet token collision, retrying",
			zap.String("user_id", userID),
			zap.Int("attempt", attempt))
	}
}

// GetByUserID returns the wallet owned by the user.
func (s *Service) GetByUserID(ctx context.Context, userID string) (Wallet, error) {
	return s.repo.GetByUserID(ctx, userID)
}
