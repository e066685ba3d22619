package reference

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionReferenceFormat(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	g := Default{now: func() time.Time { return fixed }}

	ref := g.TransactionReference()
	require.True(t, strings.HasPrefix(ref, TransactionPrefix), ref)

	id, err := ulid.ParseStrict(strings.TrimPrefix(ref, TransactionPrefix))
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(fixed), id.Time())
}

func TestTransactionReferenceUniqueUnderConcurrency(t *testing.T) {
	g := New()
	const workers, perWorker = 8, 500

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, perWorker)
			for j := 0; j < perWorker; j++ {
				local = append(local, g.TransactionReference())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, ref := range local {
				seen[ref] = struct{}{}
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}

func TestCreditLegReference(t *testing.T) {
	assert.Equal(t, "TRNX-ABC_CREDIT", CreditLegReference("TRNX-ABC"))
}

func TestAccountTokenShape(t *testing.T) {
	g := New()
	for i := 0; i < 200; i++ {
		token, err := g.AccountToken()
		require.NoError(t, err)
		require.Len(t, token, 10)
		assert.NotEqual(t, byte('0'), token[0])
		for _, r := range token {
			assert.True(t, r >= '0' && r <= '9', "non digit in %q", token)
		}
	}
}
