package history

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/wallet_ledger/internal/ledger"
	"github.com/congo-pay/wallet_ledger/internal/reference"
	"github.com/congo-pay/wallet_ledger/internal/transaction"
	"github.com/congo-pay/wallet_ledger/internal/wallet"
)

type fixture struct {
	store   *ledger.InMemoryStore
	engine  *ledger.Engine
	service *Service
	mr      *miniredis.Miniredis
}

func newFixture(t *testing.T, withCache bool) *fixture {
	t.Helper()
	store := ledger.NewInMemory()

	var cache *Cache
	var mr *miniredis.Miniredis
	if withCache {
		mr = miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })
		cache = NewCache(client, time.Minute)
	}

	repos := store.Repos()
	return &fixture{
		store:   store,
		engine:  ledger.NewEngine(store, reference.New(), nil, ledger.WithInvalidator(cache)),
		service: NewService(repos.Wallets, repos.Transactions, cache, nil),
		mr:      mr,
	}
}

func (f *fixture) openWallet(t *testing.T, userID, token string) wallet.Wallet {
	t.Helper()
	now := time.Now().UTC()
	w, err := f.store.Repos().Wallets.Create(context.Background(), wallet.Wallet{
		ID: uuid.NewString(), UserID: userID, AccountName: userID, Token: token,
		Balance: decimal.Zero, Currency: wallet.DefaultCurrency, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	return w
}

func (f *fixture) fund(t *testing.T, userID, ref, amount string) {
	t.Helper()
	_, err := f.engine.FundWallet(context.Background(), ledger.FundInput{
		UserID: userID, Amount: decimal.RequireFromString(amount), Reference: ref,
	})
	require.NoError(t, err)
}

func references(items []transaction.Transaction) []string {
	refs := make([]string, 0, len(items))
	for _, item := range items {
		refs = append(refs, item.Reference)
	}
	return refs
}

func TestGetTransactionHistoryPaginatesNewestFirst(t *testing.T) {
	f := newFixture(t, false)
	f.openWallet(t, "user-a", "1000000001")
	for i := 1; i <= 3; i++ {
		f.fund(t, "user-a", fmt.Sprintf("R%d", i), "10")
	}

	first, err := f.service.GetTransactionHistory(context.Background(), "user-a", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Page)
	assert.Equal(t, 2, first.Limit)
	assert.Equal(t, 3, first.Total)
	assert.Equal(t, []string{"R3", "R2"}, references(first.Data))

	second, err := f.service.GetTransactionHistory(context.Background(), "user-a", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"R1"}, references(second.Data))
}

func TestGetTransactionHistoryIncludesBothTransferSides(t *testing.T) {
	f := newFixture(t, false)
	a := f.openWallet(t, "user-a", "1000000001")
	f.openWallet(t, "user-b", "2000000002")
	f.fund(t, "user-a", "R1", "100")

	res, err := f.engine.TransferFunds(context.Background(), ledger.TransferInput{
		SenderUserID: "user-a", RecipientToken: "2000000002", Amount: decimal.NewFromInt(40),
	})
	require.NoError(t, err)

	sender, err := f.service.GetTransactionHistory(context.Background(), "user-a", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultPage, sender.Page)
	assert.Equal(t, DefaultLimit, sender.Limit)
	assert.Equal(t, []string{res.SenderTransaction.Reference, "R1"}, references(sender.Data))
	assert.Equal(t, a.ID, sender.Data[0].WalletID)

	// The recipient sees its own CREDIT leg and the sender's TRANSFER leg that names it.
	recipient, err := f.service.GetTransactionHistory(context.Background(), "user-b", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, recipient.Total)
	assert.ElementsMatch(t,
		[]string{res.SenderTransaction.Reference, res.RecipientTransaction.Reference},
		references(recipient.Data))
}

func TestGetTransactionHistoryValidation(t *testing.T) {
	f := newFixture(t, false)
	f.openWallet(t, "user-a", "1000000001")

	_, err := f.service.GetTransactionHistory(context.Background(), "user-a", -1, 20)
	assert.Equal(t, ledger.KindInvalidInput, ledger.KindOf(err))

	_, err = f.service.GetTransactionHistory(context.Background(), "user-a", 1, -5)
	assert.Equal(t, ledger.KindInvalidInput, ledger.KindOf(err))

	capped, err := f.service.GetTransactionHistory(context.Background(), "user-a", 1, 1000)
	require.NoError(t, err)
	assert.Equal(t, MaxLimit, capped.Limit)
	assert.NotNil(t, capped.Data)
	assert.Empty(t, capped.Data)

	_, err = f.service.GetTransactionHistory(context.Background(), "ghost", 1, 20)
	assert.ErrorIs(t, err, wallet.ErrNotFound)
}

func TestGetTransactionHistoryRejectsOverflowingPage(t *testing.T) {
	f := newFixture(t, false)
	f.openWallet(t, "user-a", "1000000001")
	f.fund(t, "user-a", "R1", "10")
	f.fund(t, "user-a", "R2", "10")

	for _, page := range []int{math.MaxInt/20 + 1, math.MaxInt} {
		got, err := f.service.GetTransactionHistory(context.Background(), "user-a", page, 20)
		assert.Equal(t, ledger.KindInvalidInput, ledger.KindOf(err), "page %d", page)
		assert.Empty(t, got.Data, "page %d", page)
	}

	// The last page whose offset still fits is past the end and comes back empty.
	last, err := f.service.GetTransactionHistory(context.Background(), "user-a", math.MaxInt/20, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, last.Total)
	assert.Empty(t, last.Data)
}

func TestCachedHistoryIsInvalidatedByCommits(t *testing.T) {
	f := newFixture(t, true)
	a := f.openWallet(t, "user-a", "1000000001")
	f.fund(t, "user-a", "R1", "10")

	first, err := f.service.GetTransactionHistory(context.Background(), "user-a", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Total)

	gen, err := f.mr.Get(generationPrefix + a.ID)
	require.NoError(t, err)
	assert.True(t, f.mr.Exists(pageKey(a.ID, 1, 1, 20)), "page cached under generation %s", gen)

	f.fund(t, "user-a", "R2", "10")

	second, err := f.service.GetTransactionHistory(context.Background(), "user-a", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Total)
	assert.Equal(t, []string{"R2", "R1"}, references(second.Data))
}

func TestCachedHistoryServesFromRedis(t *testing.T) {
	f := newFixture(t, true)
	a := f.openWallet(t, "user-a", "1000000001")

	f.mr.Set(pageKey(a.ID, 0, 1, 20), `{"page":1,"limit":20,"total":7,"data":[]}`)

	got, err := f.service.GetTransactionHistory(context.Background(), "user-a", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Total)
}

func TestHistoryFallsBackToStoreWhenRedisIsDown(t *testing.T) {
	f := newFixture(t, true)
	f.openWallet(t, "user-a", "1000000001")
	f.fund(t, "user-a", "R1", "10")
	f.mr.Close()

	got, err := f.service.GetTransactionHistory(context.Background(), "user-a", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"R1"}, references(got.Data))
}

func TestNilCacheIsNoop(t *testing.T) {
	var c *Cache
	assert.Nil(t, NewCache(nil, time.Minute))
	assert.NoError(t, c.Invalidate(context.Background(), "w1"))
	assert.NoError(t, c.put(context.Background(), "w1", 0, Page{}))
}
