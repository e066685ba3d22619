package ledger

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/wallet_ledger/internal/transaction"
	"github.com/congo-pay/wallet_ledger/internal/wallet"
)

// InMemoryStore is a concurrency-safe store for development and tests.
// A unit of work holds the store mutex for its whole duration, so units are
// fully serialized; writes are undone in reverse order on failure.
type InMemoryStore struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	wallets map[string]wallet.Wallet
	byUser  map[string]string
	byToken map[string]string
	entries []transaction.Transaction
	byRef   map[string]int
}

type memTx struct {
	state *memState
	undo  []func()
}

func (t *memTx) onRollback(fn func()) {
	t.undo = append(t.undo, fn)
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// NewInMemory creates an empty in-memory store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{state: &memState{
		wallets: make(map[string]wallet.Wallet),
		byUser:  make(map[string]string),
		byToken: make(map[string]string),
		byRef:   make(map[string]int),
	}}
}

// Repos returns auto-commit repositories. Each call locks the store.
func (s *InMemoryStore) Repos() Repos {
	return Repos{
		Wallets:      &memWallets{store: s},
		Transactions: &memTransactions{store: s},
	}
}

// Run executes fn while holding the store lock.
func (s *InMemoryStore) Run(ctx context.Context, fn func(ctx context.Context, r Repos) error) (err error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ErrStoreConflict, ctxErr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{state: s.state}
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
		if err != nil {
			tx.rollback()
		}
	}()

	if err = fn(ctx, Repos{
		Wallets:      &memWallets{tx: tx},
		Transactions: &memTransactions{tx: tx},
	}); err != nil {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("%w: %v", ErrStoreConflict, ctxErr)
		return err
	}
	return nil
}

// autoCommit runs fn under the store lock. Its writes are never undone.
func (s *InMemoryStore) autoCommit(fn func(tx *memTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&memTx{state: s.state})
}

type memWallets struct {
	store *InMemoryStore
	tx    *memTx
}

func (r *memWallets) run(fn func(tx *memTx) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	return r.store.autoCommit(fn)
}

func (r *memWallets) GetByID(_ context.Context, id string) (w wallet.Wallet, err error) {
	err = r.run(func(tx *memTx) error {
		found, ok := tx.state.wallets[id]
		if !ok {
			return wallet.ErrNotFound
		}
		w = found
		return nil
	})
	return w, err
}

func (r *memWallets) GetByUserID(ctx context.Context, userID string) (wallet.Wallet, error) {
	var id string
	err := r.run(func(tx *memTx) error {
		found, ok := tx.state.byUser[userID]
		if !ok {
			return wallet.ErrNotFound
		}
		id = found
		return nil
	})
	if err != nil {
		return wallet.Wallet{}, err
	}
	return r.GetByID(ctx, id)
}

func (r *memWallets) GetByToken(ctx context.Context, token string) (wallet.Wallet, error) {
	var id string
	err := r.run(func(tx *memTx) error {
		found, ok := tx.state.byToken[token]
		if !ok {
			return wallet.ErrNotFound
		}
		id = found
		return nil
	})
	if err != nil {
		return wallet.Wallet{}, err
	}
	return r.GetByID(ctx, id)
}

// LockByID is a plain read: the unit already holds the store lock.
func (r *memWallets) LockByID(ctx context.Context, id string) (wallet.Wallet, error) {
	return r.GetByID(ctx, id)
}

func (r *memWallets) Create(_ context.Context, w wallet.Wallet) (wallet.Wallet, error) {
	err := r.run(func(tx *memTx) error {
		st := tx.state
		if _, exists := st.byUser[w.UserID]; exists {
			return wallet.ErrAlreadyExists
		}
		if _, exists := st.byToken[w.Token]; exists {
			return wallet.ErrTokenTaken
		}
		if _, exists := st.wallets[w.ID]; exists {
			return fmt.Errorf("wallet id %s already present", w.ID)
		}
		st.wallets[w.ID] = w
		st.byUser[w.UserID] = w.ID
		st.byToken[w.Token] = w.ID
		tx.onRollback(func() {
			delete(st.wallets, w.ID)
			delete(st.byUser, w.UserID)
			delete(st.byToken, w.Token)
		})
		return nil
	})
	if err != nil {
		return wallet.Wallet{}, err
	}
	return w, nil
}

func (r *memWallets) AdjustBalance(_ context.Context, id string, delta decimal.Decimal) (balance decimal.Decimal, err error) {
	err = r.run(func(tx *memTx) error {
		st := tx.state
		prev, ok := st.wallets[id]
		if !ok {
			return wallet.ErrNotFound
		}
		next := prev.Balance.Add(delta)
		if next.IsNegative() {
			return wallet.ErrNegativeBalance
		}
		updated := prev
		updated.Balance = next
		updated.UpdatedAt = time.Now().UTC()
		st.wallets[id] = updated
		tx.onRollback(func() { st.wallets[id] = prev })
		balance = next
		return nil
	})
	return balance, err
}

type memTransactions struct {
	store *InMemoryStore
	tx    *memTx
}

func (r *memTransactions) run(fn func(tx *memTx) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	return r.store.autoCommit(fn)
}

func (r *memTransactions) FindByReference(_ context.Context, reference string) (t transaction.Transaction, err error) {
	err = r.run(func(tx *memTx) error {
		idx, ok := tx.state.byRef[reference]
		if !ok {
			return transaction.ErrNotFound
		}
		t = cloneEntry(tx.state.entries[idx])
		return nil
	})
	return t, err
}

func (r *memTransactions) Create(_ context.Context, t transaction.Transaction) (transaction.Transaction, error) {
	stored := cloneEntry(t)
	err := r.run(func(tx *memTx) error {
		st := tx.state
		if _, exists := st.byRef[stored.Reference]; exists {
			return transaction.ErrDuplicateReference
		}
		n := len(st.entries)
		st.entries = append(st.entries, stored)
		st.byRef[stored.Reference] = n
		tx.onRollback(func() {
			st.entries = st.entries[:n]
			delete(st.byRef, stored.Reference)
		})
		return nil
	})
	if err != nil {
		return transaction.Transaction{}, err
	}
	return cloneEntry(stored), nil
}

func (r *memTransactions) ListForWallet(_ context.Context, walletID string, page, pageSize int) (items []transaction.Transaction, total int, err error) {
	err = r.run(func(tx *memTx) error {
		offset := (page - 1) * pageSize
		items = make([]transaction.Transaction, 0, pageSize)
		// Entries are appended in commit order, so walking backwards is newest first.
		for i := len(tx.state.entries) - 1; i >= 0; i-- {
			e := tx.state.entries[i]
			if e.WalletID != walletID && e.RecipientWalletID != walletID {
				continue
			}
			if total >= offset && len(items) < pageSize {
				items = append(items, cloneEntry(e))
			}
			total++
		}
		return nil
	})
	return items, total, err
}

func cloneEntry(t transaction.Transaction) transaction.Transaction {
	if t.Metadata != nil {
		t.Metadata = maps.Clone(t.Metadata)
	}
	return t
}

var _ Store = (*InMemoryStore)(nil)
