package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/wallet_ledger/internal/transaction"
	"github.com/congo-pay/wallet_ledger/internal/wallet"
)

func TestInMemoryRunRollsBackEveryWriteOnError(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	w := openWallet(t, store, "user-a", "Alice", "1000000001")

	boom := errors.New("boom")
	err := store.Run(ctx, func(ctx context.Context, r Repos) error {
		if _, err := r.Wallets.AdjustBalance(ctx, w.ID, dec("25")); err != nil {
			return err
		}
		if _, err := r.Transactions.Create(ctx, transaction.Transaction{ID: uuid.NewString(), Reference: "R1", WalletID: w.ID, Amount: dec("25")}); err != nil {
			return err
		}
		if _, err := r.Wallets.Create(ctx, wallet.Wallet{ID: uuid.NewString(), UserID: "user-b", Token: "2000000002"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.True(t, balanceOf(t, store, w.ID).IsZero())
	_, err = store.Repos().Transactions.FindByReference(ctx, "R1")
	assert.ErrorIs(t, err, transaction.ErrNotFound)
	_, err = store.Repos().Wallets.GetByUserID(ctx, "user-b")
	assert.ErrorIs(t, err, wallet.ErrNotFound)
}

func TestInMemoryRunRollsBackOnPanic(t *testing.T) {
	store := NewInMemory()
	w := openWallet(t, store, "user-a", "Alice", "1000000001")

	assert.Panics(t, func() {
		_ = store.Run(context.Background(), func(ctx context.Context, r Repos) error {
			_, _ = r.Wallets.AdjustBalance(ctx, w.ID, dec("10"))
			panic("unreachable state")
		})
	})
	assert.True(t, balanceOf(t, store, w.ID).IsZero())

	// The lock must have been released.
	done := make(chan struct{})
	go func() {
		_ = store.Run(context.Background(), func(context.Context, Repos) error { return nil })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("store lock still held after panic")
	}
}

func TestInMemoryAdjustBalanceGuardsNegative(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	w := openWallet(t, store, "user-a", "Alice", "1000000001")
	repo := store.Repos().Wallets

	balance, err := repo.AdjustBalance(ctx, w.ID, dec("5.50"))
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("5.50")))

	_, err = repo.AdjustBalance(ctx, w.ID, dec("-5.51"))
	assert.ErrorIs(t, err, wallet.ErrNegativeBalance)
	assert.True(t, balanceOf(t, store, w.ID).Equal(dec("5.50")))

	_, err = repo.AdjustBalance(ctx, "missing", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, wallet.ErrNotFound)
}

func TestInMemoryWalletUniqueness(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	openWallet(t, store, "user-a", "Alice", "1000000001")
	repo := store.Repos().Wallets

	_, err := repo.Create(ctx, wallet.Wallet{ID: uuid.NewString(), UserID: "user-a", Token: "1000000009"})
	assert.ErrorIs(t, err, wallet.ErrAlreadyExists)

	_, err = repo.Create(ctx, wallet.Wallet{ID: uuid.NewString(), UserID: "user-b", Token: "1000000001"})
	assert.ErrorIs(t, err, wallet.ErrTokenTaken)

	got, err := repo.GetByToken(ctx, "1000000001")
	require.NoError(t, err)
	assert.Equal(t, "user-a", got.UserID)
}

func TestInMemoryListForWalletPaginatesNewestFirst(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	a := openWallet(t, store, "user-a", "Alice", "1000000001")
	b := openWallet(t, store, "user-b", "Bob", "2000000002")
	txns := store.Repos().Transactions

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := txns.Create(ctx, transaction.Transaction{
			ID:        uuid.NewString(),
			Reference: fmt.Sprintf("R%d", i),
			WalletID:  a.ID,
			Type:      transaction.TypeCredit,
			Amount:    dec("1"),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	_, err := txns.Create(ctx, transaction.Transaction{
		ID: uuid.NewString(), Reference: "OUT", WalletID: b.ID, RecipientWalletID: a.ID,
		Type: transaction.TypeTransfer, Amount: dec("1"), CreatedAt: base.Add(time.Hour),
	})
	require.NoError(t, err)

	first, total, err := txns.ListForWallet(ctx, a.ID, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, 6, total, "transfers naming the wallet as recipient are included")
	require.Len(t, first, 4)
	assert.Equal(t, "OUT", first[0].Reference)
	assert.Equal(t, "R4", first[1].Reference)

	second, _, err := txns.ListForWallet(ctx, a.ID, 2, 4)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, "R0", second[1].Reference)

	empty, total, err := txns.ListForWallet(ctx, a.ID, 3, 4)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Equal(t, 6, total)
}

func TestInMemoryEntriesAreCopiedOnReadAndWrite(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	meta := map[string]any{"source": "external"}

	_, err := store.Repos().Transactions.Create(ctx, transaction.Transaction{ID: uuid.NewString(), Reference: "R1", Metadata: meta})
	require.NoError(t, err)
	meta["source"] = "mutated"

	got, err := store.Repos().Transactions.FindByReference(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, "external", got.Metadata["source"])
}
