package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/envelope-ledger/ledger"
	"github.com/warp/envelope-ledger/store/sqlite"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func tempDB(t *testing.T) string {
	t.Helper()
	t.Setenv("LEDGER_CONFIG", "")
	t.Setenv("LEDGER_DB_DRIVER", "")
	return filepath.Join(t.TempDir(), "ledger.db")
}

func TestScenarioList(t *testing.T) {
	out, err := run(t, "scenario", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "credit-card-payoff")
	assert.Contains(t, out, "paycheck-basics")
	assert.Contains(t, out, "savings-goals")
}

func TestScenarioLoad_ThenValidateAndBalances(t *testing.T) {
	// GIVEN: a fresh database file
	db := tempDB(t)

	// WHEN: a scenario is loaded
	out, err := run(t, "--db", db, "scenario", "load", "credit-card-payoff")
	require.NoError(t, err)
	assert.Contains(t, out, "Loaded credit-card-payoff: 2 accounts")

	// THEN: it validates cleanly
	out, err = run(t, "--db", db, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "OK")

	// AND: balances list both accounts
	out, err = run(t, "--db", db, "balances")
	require.NoError(t, err)
	assert.Contains(t, out, "Checking")
	assert.Contains(t, out, "Visa")
	assert.Contains(t, out, "129.75")

	out, err = run(t, "--db", db, "balances", "--envelopes")
	require.NoError(t, err)
	assert.Contains(t, out, "Credit Card Groceries")
}

func TestValidate_FailsOnDiscrepancy(t *testing.T) {
	// GIVEN: an account whose balance no envelope holds
	db := tempDB(t)
	st, err := sqlite.New(db)
	require.NoError(t, err)
	require.NoError(t, st.InsertAccount(context.Background(), ledger.Account{
		ID: "acct-1", Name: "Legacy", Type: ledger.AccountSavings,
		CurrentBalance: decimal.NewFromInt(75),
	}))
	require.NoError(t, st.Close())

	// WHEN: validated
	out, err := run(t, "--db", db, "validate")

	// THEN: the command fails and prints the account
	require.ErrorIs(t, err, ErrDiscrepancies)
	assert.Contains(t, out, "Legacy")
	assert.Contains(t, out, "75.00")

	// AND: repair gives it an Unassigned envelope holding the difference
	out, err = run(t, "--db", db, "repair")
	require.NoError(t, err)
	assert.Contains(t, out, "Unassigned Legacy")

	out, err = run(t, "--db", db, "repair")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to repair")
}

func TestInvalidConfigIsRejected(t *testing.T) {
	db := tempDB(t)
	t.Setenv("LEDGER_DB_DRIVER", "postgres")

	_, err := run(t, "--db", db, "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
}
