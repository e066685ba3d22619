package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/wallet_ledger/internal/transaction"
	"github.com/congo-pay/wallet_ledger/internal/wallet"
)

// Snapshot returns every wallet (sorted by id) and every ledger entry in
// commit order. Test helper for the in-memory store.
func (s *InMemoryStore) Snapshot() ([]wallet.Wallet, []transaction.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wallets := make([]wallet.Wallet, 0, len(s.state.wallets))
	for _, w := range s.state.wallets {
		wallets = append(wallets, w)
	}
	sort.Slice(wallets, func(i, j int) bool { return wallets[i].ID < wallets[j].ID })

	entries := make([]transaction.Transaction, 0, len(s.state.entries))
	for _, e := range s.state.entries {
		entries = append(entries, cloneEntry(e))
	}
	return wallets, entries
}

// LedgerBalance recomputes a wallet's balance from its ledger entries:
// credits received minus outflows recorded against it.
func LedgerBalance(walletID string, entries []transaction.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		if e.WalletID != walletID {
			continue
		}
		if e.IsOutflow() {
			total = total.Sub(e.Amount)
		} else {
			total = total.Add(e.Amount)
		}
	}
	return total
}
