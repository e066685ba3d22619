package infra

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsDeclareConstraintsTheRepositoriesMatchOn(t *testing.T) {
	names, err := MigrationNames()
	require.NoError(t, err)
	require.Equal(t, []string{"migrations/0001_wallets.sql", "migrations/0002_transactions.sql"}, names)

	var all strings.Builder
	for _, name := range names {
		body, err := migrationFiles.ReadFile(name)
		require.NoError(t, err)
		all.Write(body)
	}
	schema := all.String()
	for _, constraint := range []string{"wallets_user_id_key", "wallets_token_key", "transactions_reference_key"} {
		assert.Contains(t, schema, "CONSTRAINT "+constraint)
	}
	assert.Contains(t, schema, "CHECK (balance >= 0)")
}
