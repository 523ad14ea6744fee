package seed_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/envelope-ledger/ledger"
	memstore "github.com/warp/envelope-ledger/ledger/store"
	"github.com/warp/envelope-ledger/logging"
	"github.com/warp/envelope-ledger/seed"
	"github.com/warp/envelope-ledger/store/sqlite"
)

func newMemoryService() (*ledger.Service, *memstore.TxMemory) {
	st := memstore.NewTxMemory()
	return ledger.NewService(st, ledger.WithLogger(logging.Discard())), st
}

func available(t *testing.T, svc *ledger.Service, envelopeID string) string {
	t.Helper()
	b, err := svc.Projector().Envelope(context.Background(), envelopeID)
	require.NoError(t, err)
	return b.AvailableBalance.StringFixed(2)
}

func TestParse_Errors(t *testing.T) {
	_, err := seed.Parse([]byte("accounts: [\n"))
	assert.Error(t, err)

	_, err = seed.Parse([]byte("id: empty\n"))
	assert.ErrorContains(t, err, "defines no accounts")
}

func TestApply_ResolvesNames(t *testing.T) {
	// GIVEN: a budget with a checking account, two envelopes and a transfer
	// WHEN: it is applied
	// THEN: every row goes through the ledger rules and names map to ids

	ctx := context.Background()
	svc, _ := newMemoryService()
	b, err := seed.Parse([]byte(`
id: tiny
accounts:
  - name: Checking
    type: checking
    balance: 1000
    envelopes:
      - {name: Groceries, balance: 500, target: {type: monthly_minimum, amount: 600}}
      - {name: Dining, balance: 100}
transactions:
  - {account: Checking, envelope: Groceries, amount: -40, status: pending, date: 2025-01-02}
transfers:
  - {account: Checking, from: Dining, to: Groceries, amount: "25.50"}
`))
	require.NoError(t, err)

	res, err := seed.Apply(ctx, svc, b)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Transactions)
	assert.Equal(t, 1, res.Transfers)
	require.Contains(t, res.Envelopes, "Checking/Unassigned Checking")

	assert.Equal(t, "485.50", available(t, svc, res.Envelopes["Checking/Groceries"]))
	assert.Equal(t, "74.50", available(t, svc, res.Envelopes["Checking/Dining"]))
	assert.Equal(t, "400.00", available(t, svc, res.Envelopes["Checking/Unassigned Checking"]))

	targets, err := svc.ListFundingTargets(ctx)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, ledger.TargetMonthlyMinimum, targets[0].TargetType)

	found, err := svc.ValidateIntegrity(ctx)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestApply_UnknownReference(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryService()
	b := &seed.Budget{
		Accounts:     []seed.AccountDef{{Name: "Checking", Type: "checking", Balance: "10"}},
		Transactions: []seed.TransactionDef{{Account: "Checking", Envelope: "Nope", Amount: "-1"}},
	}

	_, err := seed.Apply(ctx, svc, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown envelope "Nope" in account "Checking"`)
}

func TestApply_LedgerRejectionIsWrapped(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryService()
	b := &seed.Budget{
		Accounts: []seed.AccountDef{{
			Name: "Checking", Type: "checking", Balance: "10",
			Envelopes: []seed.EnvelopeDef{{Name: "Rent", Balance: "50"}},
		}},
	}

	_, err := seed.Apply(ctx, svc, b)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
}

func TestScenarios_ListedAndParseable(t *testing.T) {
	list, err := seed.Scenarios()
	require.NoError(t, err)

	ids := make([]string, len(list))
	for i, s := range list {
		ids[i] = s.ID
		assert.NotEmpty(t, s.Name)
	}
	assert.Equal(t, []string{"credit-card-payoff", "paycheck-basics", "savings-goals"}, ids)
}

func TestLoadScenario_Unknown(t *testing.T) {
	for _, id := range []string{"", "missing", "../seed"} {
		_, err := seed.LoadScenario(id)
		assert.ErrorIs(t, err, seed.ErrUnknownScenario, id)
	}
}

func TestScenarios_ApplyCleanly(t *testing.T) {
	// GIVEN: every embedded scenario
	// WHEN: loaded into a fresh SQLite store
	// THEN: it applies without error and leaves no integrity discrepancy

	list, err := seed.Scenarios()
	require.NoError(t, err)
	for _, s := range list {
		t.Run(s.ID, func(t *testing.T) {
			ctx := context.Background()
			st, err := sqlite.New(":memory:")
			require.NoError(t, err)
			defer st.Close()
			svc := ledger.NewService(st, ledger.WithLogger(logging.Discard()))

			_, err = seed.ResetAndApply(ctx, svc, st, s.ID)
			require.NoError(t, err)

			found, err := svc.ValidateIntegrity(ctx)
			require.NoError(t, err)
			assert.Empty(t, found)
		})
	}
}

func TestCreditCardScenario_SplitsPartialPayment(t *testing.T) {
	ctx := context.Background()
	svc, st := newMemoryService()

	res, err := seed.ResetAndApply(ctx, svc, st, "credit-card-payoff")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Payments)

	// 150 toward Groceries debt: Kroger 120 paid, Costco 95.50 split into
	// 30 paid and 65.50 unpaid, Whole Foods 64.25 untouched.
	assert.Equal(t, "129.75", available(t, svc, res.Envelopes["Visa/Credit Card Groceries"]))
	assert.Equal(t, "0.00", available(t, svc, res.Envelopes["Visa/Fuel & Tolls"]))
	assert.Equal(t, "0.00", available(t, svc, res.Envelopes["Visa/Unassigned Visa"]))
	assert.Equal(t, "450.00", available(t, svc, res.Envelopes["Checking/Groceries"]))

	unpaid, err := svc.UnpaidTransactionsByCreditCard(ctx, res.Accounts["Visa"])
	require.NoError(t, err)
	require.Len(t, unpaid, 2)
	assert.Equal(t, "Costco "+ledger.RemainderSuffix, unpaid[0].Description)
}

func TestResetAndApply_ReplacesExistingData(t *testing.T) {
	ctx := context.Background()
	svc, st := newMemoryService()

	_, err := seed.ResetAndApply(ctx, svc, st, "savings-goals")
	require.NoError(t, err)
	_, err = seed.ResetAndApply(ctx, svc, st, "savings-goals")
	require.NoError(t, err, "second load must not collide with the first")

	accounts, err := svc.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}
