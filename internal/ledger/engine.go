package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/congo-pay/wallet_ledger/internal/notification"
	"github.com/congo-pay/wallet_ledger/internal/reference"
	"github.com/congo-pay/wallet_ledger/internal/transaction"
	"github.com/congo-pay/wallet_ledger/internal/wallet"
)

const (
	opFund     = "fund"
	opTransfer = "transfer"

	fundingDescription = "external funding"
	transferMessage    = "Transfer successful"

	defaultHookTimeout = 3 * time.Second
)

// Observer receives per-operation measurements.
type Observer interface {
	ObserveOperation(operation, outcome string, elapsed time.Duration)
	ObserveAmount(operation string, amount decimal.Decimal)
}

// Invalidator drops cached read models for wallets touched by a committed operation.
type Invalidator interface {
	Invalidate(ctx context.Context, walletIDs ...string) error
}

// Engine performs funding and transfers. Every balance change and its ledger
// entries are written in one unit of work.
type Engine struct {
	store       UnitOfWork
	refs        reference.Generator
	logger      *zap.Logger
	notifier    notification.Notifier
	observer    Observer
	invalidator Invalidator
	hookTimeout time.Duration
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier sends post-commit notifications.
func WithNotifier(n notification.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithObserver records metrics for every operation.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithInvalidator invalidates cached history after commits.
func WithInvalidator(i Invalidator) Option {
	return func(e *Engine) { e.invalidator = i }
}

// WithHookTimeout bounds the post-commit side effects of one operation.
func WithHookTimeout(d time.Duration) Option {
	return func(e *Engine) { e.hookTimeout = d }
}

// WithClock overrides the timestamp source for ledger entries.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine builds an engine on top of a unit of work.
func NewEngine(store UnitOfWork, refs reference.Generator, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		store:       store,
		refs:        refs,
		logger:      logger,
		hookTimeout: defaultHookTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FundInput is an external credit into the caller's wallet. Reference is the
// caller's idempotency key.
type FundInput struct {
	UserID    string
	Amount    decimal.Decimal
	Reference string
}

// FundResult is the committed CREDIT entry.
type FundResult struct {
	Message     string
	Transaction transaction.Transaction
	Balance     decimal.Decimal
}

// FundWallet credits the user's wallet once per reference. A reference that
// was already recorded fails with ErrDuplicateReference and changes nothing.
func (e *Engine) FundWallet(ctx context.Context, in FundInput) (res FundResult, err error) {
	start := time.Now()
	defer func() { e.observe(opFund, start, in.Amount, err) }()

	ref := strings.TrimSpace(in.Reference)
	if err := validateAmount(in.Amount); err != nil {
		return FundResult{}, err
	}
	if err := validateReference(ref); err != nil {
		return FundResult{}, err
	}

	var (
		target  wallet.Wallet
		entry   transaction.Transaction
		balance decimal.Decimal
	)
	err = e.store.Run(ctx, func(ctx context.Context, r Repos) error {
		if _, err := r.Transactions.FindByReference(ctx, ref); err == nil {
			return transaction.ErrDuplicateReference
		} else if !errors.Is(err, transaction.ErrNotFound) {
			return err
		}

		w, err := r.Wallets.GetByUserID(ctx, in.UserID)
		if err != nil {
			return err
		}
		target = w

		if balance, err = r.Wallets.AdjustBalance(ctx, w.ID, in.Amount); err != nil {
			return err
		}

		entry, err = r.Transactions.Create(ctx, transaction.Transaction{
			ID:          uuid.NewString(),
			Reference:   ref,
			WalletID:    w.ID,
			UserID:      w.UserID,
			Type:        transaction.TypeCredit,
			Amount:      in.Amount,
			Status:      transaction.StatusCompleted,
			Description: fundingDescription,
			Metadata: map[string]any{
				"internal_reference": e.refs.TransactionReference(),
				"source":             "external",
			},
			CreatedAt: e.now(),
		})
		return err
	})
	if err != nil {
		return FundResult{}, err
	}

	e.afterCommit(ctx, []string{target.ID}, notification.Message{
		Kind:        notification.KindWalletFunded,
		Destination: target.UserID,
		Body:        fmt.Sprintf("Your wallet was funded with %s %s", in.Amount.StringFixed(amountScale), target.Currency),
		Reference:   entry.Reference,
		WalletID:    target.ID,
		Amount:      in.Amount.StringFixed(amountScale),
		OccurredAt:  entry.CreatedAt,
	})

	return FundResult{
		Message:     fmt.Sprintf("Wallet funded for user %s with %s", in.UserID, in.Amount.StringFixed(amountScale)),
		Transaction: entry,
		Balance:     balance,
	}, nil
}

// TransferInput moves funds from the caller's wallet to the wallet addressed by RecipientToken.
type TransferInput struct {
	SenderUserID   string
	RecipientToken string
	Amount         decimal.Decimal
	Description    string
}

// TransferResult holds both committed legs. Balance is the sender's new balance.
type TransferResult struct {
	Message              string
	SenderTransaction    transaction.Transaction
	RecipientTransaction transaction.Transaction
	Balance              decimal.Decimal
}

// TransferFunds debits the sender and credits the recipient in one unit of
// work, writing a TRANSFER leg on the sender and a CREDIT leg on the
// recipient. Transfers are not idempotent: each call mints a new reference.
func (e *Engine) TransferFunds(ctx context.Context, in TransferInput) (res TransferResult, err error) {
	start := time.Now()
	defer func() { e.observe(opTransfer, start, in.Amount, err) }()

	token := strings.TrimSpace(in.RecipientToken)
	desc := strings.TrimSpace(in.Description)
	if err := validateAmount(in.Amount); err != nil {
		return TransferResult{}, err
	}
	if token == "" {
		return TransferResult{}, fmt.Errorf("%w: wallet_token is required", ErrInvalidInput)
	}
	if err := validateDescription(desc); err != nil {
		return TransferResult{}, err
	}

	var (
		sender, recipient wallet.Wallet
		debit, credit     transaction.Transaction
		balance           decimal.Decimal
	)
	err = e.store.Run(ctx, func(ctx context.Context, r Repos) error {
		var err error
		if sender, err = r.Wallets.GetByUserID(ctx, in.SenderUserID); err != nil {
			return labelNotFound("sender", err)
		}
		if recipient, err = r.Wallets.GetByToken(ctx, token); err != nil {
			return labelNotFound("recipient", err)
		}
		if sender.ID == recipient.ID {
			return ErrSelfTransfer
		}

		// Re-read both rows under lock; these balances are authoritative.
		if sender, recipient, err = lockPair(ctx, r.Wallets, sender.ID, recipient.ID); err != nil {
			return err
		}
		if sender.Balance.LessThan(in.Amount) {
			return ErrInsufficientFunds
		}

		base := e.refs.TransactionReference()
		creditRef := reference.CreditLegReference(base)

		if balance, err = r.Wallets.AdjustBalance(ctx, sender.ID, in.Amount.Neg()); err != nil {
			return err
		}
		if _, err = r.Wallets.AdjustBalance(ctx, recipient.ID, in.Amount); err != nil {
			return err
		}

		now := e.now()
		debitDesc, creditDesc := desc, desc
		if desc == "" {
			debitDesc = fmt.Sprintf("Transfer to %s (%s)", recipient.AccountName, recipient.Token)
			creditDesc = fmt.Sprintf("Transfer from %s", sender.AccountName)
		}

		if debit, err = r.Transactions.Create(ctx, transaction.Transaction{
			ID:                uuid.NewString(),
			Reference:         base,
			WalletID:          sender.ID,
			RecipientWalletID: recipient.ID,
			UserID:            sender.UserID,
			Type:              transaction.TypeTransfer,
			Amount:            in.Amount,
			Status:            transaction.StatusCompleted,
			Description:       debitDesc,
			Metadata: map[string]any{
				"counterpart_reference": creditRef,
				"recipient_token":       recipient.Token,
			},
			CreatedAt: now,
		}); err != nil {
			return err
		}

		credit, err = r.Transactions.Create(ctx, transaction.Transaction{
			ID:          uuid.NewString(),
			Reference:   creditRef,
			WalletID:    recipient.ID,
			UserID:      recipient.UserID,
			Type:        transaction.TypeCredit,
			Amount:      in.Amount,
			Status:      transaction.StatusCompleted,
			Description: creditDesc,
			Metadata: map[string]any{
				"counterpart_reference": base,
				"sender_wallet_id":      sender.ID,
			},
			CreatedAt: now,
		})
		return err
	})
	if err != nil {
		return TransferResult{}, err
	}

	amount := in.Amount.StringFixed(amountScale)
	e.afterCommit(ctx, []string{sender.ID, recipient.ID},
		notification.Message{
			Kind:        notification.KindTransferSent,
			Destination: sender.UserID,
			Body:        fmt.Sprintf("You sent %s %s to %s", amount, sender.Currency, recipient.AccountName),
			Reference:   debit.Reference,
			WalletID:    sender.ID,
			Amount:      amount,
			OccurredAt:  debit.CreatedAt,
		},
		notification.Message{
			Kind:        notification.KindTransferReceived,
			Destination: recipient.UserID,
			Body:        fmt.Sprintf("You received %s %s from %s", amount, recipient.Currency, sender.AccountName),
			Reference:   credit.Reference,
			WalletID:    recipient.ID,
			Amount:      amount,
			OccurredAt:  credit.CreatedAt,
		},
	)

	return TransferResult{
		Message:              transferMessage,
		SenderTransaction:    debit,
		RecipientTransaction: credit,
		Balance:              balance,
	}, nil
}

// lockPair locks two wallets in ascending id order so concurrent transfers in
// opposite directions cannot deadlock.
func lockPair(ctx context.Context, repo wallet.Repository, senderID, recipientID string) (wallet.Wallet, wallet.Wallet, error) {
	first, second := senderID, recipientID
	if second < first {
		first, second = second, first
	}
	a, err := repo.LockByID(ctx, first)
	if err != nil {
		return wallet.Wallet{}, wallet.Wallet{}, err
	}
	b, err := repo.LockByID(ctx, second)
	if err != nil {
		return wallet.Wallet{}, wallet.Wallet{}, err
	}
	if a.ID == senderID {
		return a, b, nil
	}
	return b, a, nil
}

func labelNotFound(role string, err error) error {
	if errors.Is(err, wallet.ErrNotFound) {
		return fmt.Errorf("%s %w", role, wallet.ErrNotFound)
	}
	return err
}

// afterCommit runs side effects of a committed operation within hookTimeout.
// Failures are logged and never reported to the caller.
func (e *Engine) afterCommit(ctx context.Context, walletIDs []string, messages ...notification.Message) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.hookTimeout)
	defer cancel()

	if e.invalidator != nil {
		if err := e.invalidator.Invalidate(ctx, walletIDs...); err != nil {
			e.logger.Warn("history cache invalidation failed",
				zap.Strings("wallet_ids", walletIDs), zap.Error(err))
		}
	}
	if e.notifier == nil {
		return
	}
	for _, msg := range messages {
		if err := e.notifier.Send(ctx, msg); err != nil {
			e.logger.Warn("notification delivery failed",
				zap.String("kind", msg.Kind),
				zap.String("reference", msg.Reference),
				zap.Error(err))
		}
	}
}

func (e *Engine) observe(op string, start time.Time, amount decimal.Decimal, err error) {
	kind := KindOf(err)
	if e.observer != nil {
		e.observer.ObserveOperation(op, kind.String(), time.Since(start))
		if err == nil {
			e.observer.ObserveAmount(op, amount)
		}
	}
	if kind == KindUnexpected {
		e.logger.Error("ledger operation failed",
			zap.String("operation", op),
			zap.String("amount", amount.String()),
			zap.Error(err))
	}
}
