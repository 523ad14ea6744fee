package ledger_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/envelope-ledger/ledger"
)

func TestValidator_ConservationAcrossOperations(t *testing.T) {
	// GIVEN: a budget exercised through every mutating operation
	// WHEN: the validator runs after each step
	// THEN: no account ever drifts from the sum of its envelopes

	forEachStore(t, func(t *testing.T, svc *ledger.Service) {
		ctx := context.Background()
		f := newBudgetFixture(t, svc)
		requireConsistent(t, svc)

		fuel := createEnvelope(t, svc, f.checking, "Fuel", "150")
		requireConsistent(t, svc)

		for i := 0; i < 3; i++ {
			f.charge(t, svc, "45.50", fmt.Sprintf("Kroger #%d", i), date(2025, 2, 1+i))
			requireConsistent(t, svc)
		}

		_, err := svc.TransferBetweenEnvelopes(ctx, ledger.TransferInput{
			FromEnvelopeID: fuel.ID, ToEnvelopeID: f.groceries.ID, Amount: money("25"),
		})
		require.NoError(t, err)
		requireConsistent(t, svc)

		_, err = svc.CreatePayment(ctx, ledger.PaymentInput{
			CreditCardAccountID: f.card.ID,
			TotalAmount:         money("70"),
			Allocations:         []ledger.AllocationInput{{EnvelopeID: f.groceries.ID, Amount: money("70")}},
		})
		require.NoError(t, err)
		requireConsistent(t, svc)

		_, err = svc.CreateTransaction(ctx, ledger.CreateTransactionInput{
			AccountID: f.checking.ID, EnvelopeID: fuel.ID, Amount: money("-12.34"), Status: ledger.StatusPending,
		})
		require.NoError(t, err)
		requireConsistent(t, svc)

		_, err = svc.DeleteEnvelope(ctx, fuel.ID)
		require.NoError(t, err)
		requireConsistent(t, svc)
	})
}

func TestValidator_ReportsDriftSortedByName(t *testing.T) {
	for _, f := range storeFactories {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			st := f.open(t)
			svc := newService(st)

			for _, name := range []string{"Zeta", "Alpha"} {
				require.NoError(t, st.InsertAccount(ctx, ledger.Account{
					ID: "acct-" + name, Name: name, Type: ledger.AccountSavings,
					CurrentBalance: money("50"),
				}))
			}
			createAccount(t, svc, "Balanced", ledger.AccountChecking, "10")

			found, err := svc.ValidateIntegrity(ctx)
			require.NoError(t, err)
			require.Len(t, found, 2)
			assert.Equal(t, "Alpha", found[0].AccountName)
			assert.Equal(t, "Zeta", found[1].AccountName)
			assertMoney(t, "50", found[0].Difference)
			assertMoney(t, "0", found[0].EnvelopeTotal)
		})
	}
}

func TestValidator_ToleratesSubCentDifference(t *testing.T) {
	for _, f := range storeFactories {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			st := f.open(t)
			svc := newService(st)

			require.NoError(t, st.InsertAccount(ctx, ledger.Account{
				ID: "acct", Name: "Cash", Type: ledger.AccountCash, CurrentBalance: money("10.01"),
			}))
			require.NoError(t, st.InsertEnvelope(ctx, ledger.Envelope{
				ID: "env", Name: "Unassigned Cash", AccountID: "acct", Type: ledger.EnvelopeCash,
				CurrentBalance: money("10.00"),
			}))

			found, err := svc.ValidateIntegrity(ctx)
			require.NoError(t, err)
			assert.Empty(t, found)
		})
	}
}
