package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/envelope-ledger/ledger"
)

// =============================================================================
// PROJECTION RULES
// =============================================================================

func TestProjectAccount_BankExcludesNotPosted(t *testing.T) {
	// GIVEN: checking account with 100 not_posted, 50 pending, 200 cleared
	// WHEN: projected
	// THEN: available = pending + cleared = 250, total = 350

	b := ledger.ProjectAccount(ledger.StatusTotals{
		EntityID:         "acct-1",
		Type:             string(ledger.AccountChecking),
		NotPosted:        money("100"),
		Pending:          money("50"),
		Cleared:          money("200"),
		TransactionCount: 3,
	})

	assertMoney(t, "250", b.AvailableBalance)
	assertMoney(t, "350", b.TotalBalance)
	assert.Equal(t, ledger.KindAccount, b.Kind)
}

func TestProjectAccount_CreditCardIsUnpaidPlusCleared(t *testing.T) {
	b := ledger.ProjectAccount(ledger.StatusTotals{
		Type:             string(ledger.AccountCreditCard),
		Unpaid:           money("300"),
		Paid:             money("120"),
		Cleared:          money("-20"),
		TransactionCount: 4,
	})

	assertMoney(t, "280", b.AvailableBalance)
	assertMoney(t, "400", b.TotalBalance)
}

func TestProjectEnvelope_DebtIsUnpaidOnly(t *testing.T) {
	b := ledger.ProjectEnvelope(ledger.StatusTotals{
		Type:             string(ledger.EnvelopeDebt),
		Unpaid:           money("75.25"),
		Paid:             money("300"),
		TransactionCount: 2,
	})

	assertMoney(t, "75.25", b.AvailableBalance)
}

func TestProjectEnvelope_CashIsPendingPlusCleared(t *testing.T) {
	b := ledger.ProjectEnvelope(ledger.StatusTotals{
		Type:             string(ledger.EnvelopeCash),
		NotPosted:        money("-40"),
		Pending:          money("-10"),
		Cleared:          money("500"),
		TransactionCount: 3,
	})

	assertMoney(t, "490", b.AvailableBalance)
	assertMoney(t, "450", b.TotalBalance)
}

func TestProject_NoTransactionsFallsBackToStoredBalance(t *testing.T) {
	// GIVEN: an entity whose stored balance is 500 and no transactions
	// THEN: total and available both report 500

	acct := ledger.ProjectAccount(ledger.StatusTotals{Type: string(ledger.AccountSavings), StoredBalance: money("500")})
	env := ledger.ProjectEnvelope(ledger.StatusTotals{Type: string(ledger.EnvelopeDebt), StoredBalance: money("500")})

	assertMoney(t, "500", acct.AvailableBalance)
	assertMoney(t, "500", acct.TotalBalance)
	assertMoney(t, "500", env.AvailableBalance)
}

// =============================================================================
// PROJECTOR OVER A STORE
// =============================================================================

func TestProjector_MissingEntityIsZero(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *ledger.Service) {
		b, err := svc.Projector().Envelope(context.Background(), "no-such-envelope")
		require.NoError(t, err)
		assertMoney(t, "0", b.AvailableBalance)
		assert.Equal(t, 0, b.TransactionCount)

		a, err := svc.Projector().Account(context.Background(), "no-such-account")
		require.NoError(t, err)
		assertMoney(t, "0", a.TotalBalance)
	})
}

func TestProjector_StatusBuckets(t *testing.T) {
	// GIVEN: checking account opened with 1000 (cleared opening transaction)
	//   + 200 pending deposit, -50 not_posted purchase
	// WHEN: projected
	// THEN: cleared 1000, pending 200, not_posted -50, available 1200

	forEachStore(t, func(t *testing.T, svc *ledger.Service) {
		ctx := context.Background()
		checking := createAccount(t, svc, "Checking", ledger.AccountChecking, "1000")
		env := unassigned(t, svc, checking)

		for _, in := range []ledger.CreateTransactionInput{
			{AccountID: checking.ID, EnvelopeID: env.ID, Amount: money("200"), Status: ledger.StatusPending},
			{AccountID: checking.ID, EnvelopeID: env.ID, Amount: money("-50"), Status: ledger.StatusNotPosted},
		} {
			_, err := svc.CreateTransaction(ctx, in)
			require.NoError(t, err)
		}

		b, err := svc.Projector().Account(ctx, checking.ID)
		require.NoError(t, err)
		assertMoney(t, "1000", b.Cleared)
		assertMoney(t, "200", b.Pending)
		assertMoney(t, "-50", b.NotPosted)
		assertMoney(t, "1200", b.AvailableBalance)
		assertMoney(t, "1150", b.TotalBalance)
		assert.Equal(t, 3, b.TransactionCount)

		e, err := svc.Projector().Envelope(ctx, env.ID)
		require.NoError(t, err)
		assertMoney(t, "1200", e.AvailableBalance)
		assert.Equal(t, checking.ID, e.AccountID)
	})
}

func TestProjector_Idempotent(t *testing.T) {
	// GIVEN: a ledger with activity
	// WHEN: projected twice with no writes in between
	// THEN: both projections are identical

	forEachStore(t, func(t *testing.T, svc *ledger.Service) {
		ctx := context.Background()
		f := newBudgetFixture(t, svc)
		f.charge(t, svc, "42.17", "Pharmacy", date(2025, 2, 3))

		first, err := svc.AccountBalances(ctx)
		require.NoError(t, err)
		second, err := svc.AccountBalances(ctx)
		require.NoError(t, err)
		require.Len(t, second, len(first))
		for i := range first {
			assert.Equal(t, first[i].EntityID, second[i].EntityID)
			assertMoney(t, first[i].AvailableBalance.String(), second[i].AvailableBalance)
			assertMoney(t, first[i].TotalBalance.String(), second[i].TotalBalance)
		}

		envs1, err := svc.EnvelopeBalances(ctx)
		require.NoError(t, err)
		envs2, err := svc.EnvelopeBalances(ctx)
		require.NoError(t, err)
		require.Len(t, envs2, len(envs1))
		for i := range envs1 {
			assertMoney(t, envs1[i].AvailableBalance.String(), envs2[i].AvailableBalance)
		}
	})
}
