package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/envelope-ledger/ledger"
)

// =============================================================================
// SETTLE FIFO (pure)
// =============================================================================

func unpaidTx(id, amount string, day int, created time.Time) ledger.Transaction {
	return ledger.Transaction{
		ID:        id,
		Amount:    money(amount),
		Date:      date(2025, time.January, day),
		Status:    ledger.StatusUnpaid,
		CreatedAt: created,
	}
}

func TestSettleFIFO_PaysOldestFirstAndSplits(t *testing.T) {
	// GIVEN: unpaid 50 (Jan 2), 80 (Jan 1), 40 (Jan 3)
	// WHEN: 100 is applied
	// THEN: Jan 1 (80) paid, Jan 2 split into 20 paid / 30 remaining

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	plan := ledger.SettleFIFO([]ledger.Transaction{
		unpaidTx("b", "50", 2, base),
		unpaidTx("a", "80", 1, base),
		unpaidTx("c", "40", 3, base),
	}, money("100"))

	assert.Equal(t, []string{"a"}, plan.Paid)
	require.NotNil(t, plan.Split)
	assert.Equal(t, "b", plan.Split.TransactionID)
	assertMoney(t, "20", plan.Split.PaidAmount)
	assertMoney(t, "30", plan.Split.RemainingAmount)
	assertMoney(t, "100", plan.Settled)
	assertMoney(t, "0", plan.Excess)
}

func TestSettleFIFO_SameDateUsesCreationOrder(t *testing.T) {
	early := time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)
	plan := ledger.SettleFIFO([]ledger.Transaction{
		unpaidTx("late", "10", 5, late),
		unpaidTx("early", "10", 5, early),
	}, money("10"))

	assert.Equal(t, []string{"early"}, plan.Paid)
	assert.Nil(t, plan.Split)
}

func TestSortFIFO_EqualTimestampsOrderByID(t *testing.T) {
	at := time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC)
	txs := []ledger.Transaction{
		unpaidTx("c", "10", 5, at),
		unpaidTx("a", "10", 5, at),
		unpaidTx("b", "10", 5, at),
	}

	ledger.SortFIFO(txs)

	assert.Equal(t, "a", txs[0].ID)
	assert.Equal(t, "b", txs[1].ID)
	assert.Equal(t, "c", txs[2].ID)
}

func TestSettleFIFO_ExactCoverageHasNoSplit(t *testing.T) {
	base := time.Now()
	plan := ledger.SettleFIFO([]ledger.Transaction{
		unpaidTx("a", "100", 1, base),
		unpaidTx("b", "200", 2, base),
	}, money("300"))

	assert.Equal(t, []string{"a", "b"}, plan.Paid)
	assert.Nil(t, plan.Split)
	assertMoney(t, "0", plan.Excess)
}

func TestSettleFIFO_OverpaymentReportsExcess(t *testing.T) {
	plan := ledger.SettleFIFO([]ledger.Transaction{unpaidTx("a", "100", 1, time.Now())}, money("130"))

	assert.Equal(t, []string{"a"}, plan.Paid)
	assertMoney(t, "100", plan.Settled)
	assertMoney(t, "30", plan.Excess)
}

func TestSettleFIFO_SkipsRefundsAndPaid(t *testing.T) {
	base := time.Now()
	refund := unpaidTx("refund", "-25", 1, base)
	paid := unpaidTx("paid", "60", 1, base)
	paid.Status = ledger.StatusPaid

	plan := ledger.SettleFIFO([]ledger.Transaction{refund, paid, unpaidTx("a", "40", 2, base)}, money("40"))

	assert.Equal(t, []string{"a"}, plan.Paid)
}

// =============================================================================
// CREATE PAYMENT
// =============================================================================

func TestPayment_PartialPaymentSplitsOldestDebt(t *testing.T) {
	// GIVEN: cash envelope Groceries=500, debt envelope with one unpaid 300
	// WHEN: pay 100 from Groceries
	// THEN: cash=400, debt=200, original becomes 100 paid,
	//       new 200 unpaid "(Remaining after partial payment)"

	forEachStore(t, func(t *testing.T, svc *ledger.Service) {
		ctx := context.Background()
		f := newBudgetFixture(t, svc)
		charge := f.charge(t, svc, "300", "Kroger", date(2025, 2, 14))

		result, err := svc.CreatePayment(ctx, ledger.PaymentInput{
			CreditCardAccountID: f.card.ID,
			TotalAmount:         money("100"),
			Date:                date(2025, 3, 1),
			Allocations:         []ledger.AllocationInput{{EnvelopeID: f.groceries.ID, Amount: money("100")}},
		})
		require.NoError(t, err)

		assertMoney(t, "400", available(t, svc, f.groceries.ID))
		assertMoney(t, "200", available(t, svc, f.cardDebt.ID))

		txs, err := svc.ListTransactions(ctx, ledger.TransactionFilter{EnvelopeID: f.cardDebt.ID})
		require.NoError(t, err)
		require.Len(t, txs, 2)

		assert.Equal(t, charge.ID, txs[0].ID)
		assertMoney(t, "100", txs[0].Amount)
		assert.Equal(t, ledger.StatusPaid, txs[0].Status)
		assert.Equal(t, "Kroger", txs[0].Description)

		assertMoney(t, "200", txs[1].Amount)
		assert.Equal(t, ledger.StatusUnpaid, txs[1].Status)
		assert.Equal(t, "Kroger (Remaining after partial payment)", txs[1].Description)
		assert.True(t, txs[1].Date.Equal(charge.Date), "remainder keeps the original date")

		require.Len(t, result.Settlements, 1)
		s := result.Settlements[0]
		assert.Equal(t, ledger.MatchExact, s.Match)
		assert.Equal(t, txs[1].ID, s.RemainderTransactionID)
		assertMoney(t, "100", s.Settled)
		require.Len(t, result.Allocations, 1)
		assertMoney(t, "100", result.Allocations[0].Amount)

		requireConsistent(t, svc)
	})
}

func TestPayment_FullCoverageMarksEverythingPaid(t *testing.T) {
	// GIVEN: unpaid 100 (older) and 200 (newer)
	// WHEN: pay 300
	// THEN: both paid, no new transaction

	forEachStore(t, func(t *testing.T, svc *ledger.Service) {
		ctx := context.Background()
		f := newBudgetFixture(t, svc)
		f.charge(t, svc, "100", "Costco", date(2025, 2, 1))
		f.charge(t, svc, "200", "Aldi", date(2025, 2, 8))

		_, err := svc.CreatePayment(ctx, ledger.PaymentInput{
			CreditCardAccountID: f.card.ID,
			TotalAmount:         money("300"),
			Allocations:         []ledger.AllocationInput{{EnvelopeID: f.groceries.ID, Amount: money("300")}},
		})
		require.NoError(t, err)

		txs, err := svc.ListTransactions(ctx, ledger.TransactionFilter{EnvelopeID: f.cardDebt.ID})
		require.NoError(t, err)
		require.Len(t, txs, 2)
		for _, tx := range txs {
			assert.Equal(t, ledger.StatusPaid, tx.Status)
		}
		assertMoney(t, "0", available(t, svc, f.cardDebt.ID))
		assertMoney(t, "200", available(t, svc, f.groceries.ID))

		unpaid, err := svc.UnpaidTransactionsByCreditCard(ctx, f.card.ID)
		require.NoError(t, err)
		assert.Empty(t, unpaid)
		requireConsistent(t, svc)
	})
}

func TestPayment_OverpaymentIsReportedNotRejected(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *ledger.Service) {
		ctx := context.Background()
		f := newBudgetFixture(t, svc)
		f.charge(t, svc, "50", "Kroger", date(2025, 2, 1))

		result, err := svc.CreatePayment(ctx, ledger.PaymentInput{
			CreditCardAccountID: f.card.ID,
			TotalAmount:         money("80"),
			Allocations:         []ledger.AllocationInput{{EnvelopeID: f.groceries.ID, Amount: money("80")}},
		})
		require.NoError(t, err)
		assertMoney(t, "30", result.Excess)
		assertMoney(t, "420", available(t, svc, f.groceries.ID))
	})
}

func TestPayment_FallsBackToUnassignedDebtEnvelope(t *testing.T) {
	// GIVEN: cash envelope "Dining" with no "Credit Card Dining" on the card
	// WHEN: paying from Dining
	// THEN: the card's Unassigned envelope is settled

	forEachStore(t, func(t *testing.T, svc *ledger.Service) {
		ctx := context.Background()
		checking := createAccount(t, svc, "Checking", ledger.AccountChecking, "500")
		dining := createEnvelope(t, svc, checking, "Dining", "200")
		card := createAccount(t, svc, "Visa", ledger.AccountCreditCard, "150")

		result, err := svc.CreatePayment(ctx, ledger.PaymentInput{
			CreditCardAccountID: card.ID,
			TotalAmount:         money("150"),
			Allocations:         []ledger.AllocationInput{{EnvelopeID: dining.ID, Amount: money("150")}},
		})
		require.NoError(t, err)
		assert.Equal(t, ledger.MatchUnassigned, result.Settlements[0].Match)
		assertMoney(t, "0", available(t, svc, unassigned(t, svc, card).ID))
		assertMoney(t, "0", accountAvailable(t, svc, card.ID))
		requireConsistent(t, svc)
	})
}

func TestPayment_ValidationWritesNothing(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *ledger.Service) {
		ctx := context.Background()
		f := newBudgetFixture(t, svc)
		f.charge(t, svc, "300", "Kroger", date(2025, 2, 14))
		before := countTransactions(t, svc, ledger.TransactionFilter{})

		cases := []struct {
			name string
			in   ledger.PaymentInput
			want error
		}{
			{"allocation mismatch", ledger.PaymentInput{
				CreditCardAccountID: f.card.ID, TotalAmount: money("100"),
				Allocations: []ledger.AllocationInput{{EnvelopeID: f.groceries.ID, Amount: money("90")}},
			}, ledger.ErrAllocationMismatch},
			{"not a credit card", ledger.PaymentInput{
				CreditCardAccountID: f.checking.ID, TotalAmount: money("10"),
				Allocations: []ledger.AllocationInput{{EnvelopeID: f.groceries.ID, Amount: money("10")}},
			}, ledger.ErrValidation},
			{"insufficient cash", ledger.PaymentInput{
				CreditCardAccountID: f.card.ID, TotalAmount: money("600"),
				Allocations: []ledger.AllocationInput{{EnvelopeID: f.groceries.ID, Amount: money("600")}},
			}, ledger.ErrInsufficientFunds},
			{"cumulative overdraw", ledger.PaymentInput{
				CreditCardAccountID: f.card.ID, TotalAmount: money("600"),
				Allocations: []ledger.AllocationInput{
					{EnvelopeID: f.groceries.ID, Amount: money("300")},
					{EnvelopeID: f.groceries.ID, Amount: money("300")},
				},
			}, ledger.ErrInsufficientFunds},
			{"debt envelope as source", ledger.PaymentInput{
				CreditCardAccountID: f.card.ID, TotalAmount: money("10"),
				Allocations: []ledger.AllocationInput{{EnvelopeID: f.cardDebt.ID, Amount: money("10")}},
			}, ledger.ErrValidation},
			{"zero total", ledger.PaymentInput{
				CreditCardAccountID: f.card.ID, TotalAmount: money("0"),
				Allocations: []ledger.AllocationInput{{EnvelopeID: f.groceries.ID, Amount: money("0")}},
			}, ledger.ErrValidation},
			{"missing card", ledger.PaymentInput{
				CreditCardAccountID: "nope", TotalAmount: money("10"),
				Allocations: []ledger.AllocationInput{{EnvelopeID: f.groceries.ID, Amount: money("10")}},
			}, ledger.ErrNotFound},
		}

		for _, tc := range cases {
			_, err := svc.CreatePayment(ctx, tc.in)
			assert.ErrorIs(t, err, tc.want, tc.name)
		}

		assert.Equal(t, before, countTransactions(t, svc, ledger.TransactionFilter{}))
		payments, err := svc.ListPayments(ctx, f.card.ID)
		require.NoError(t, err)
		assert.Empty(t, payments)
	})
}

func TestPayment_AllocationsCheckedBeforeRounding(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *ledger.Service) {
		ctx := context.Background()
		f := newBudgetFixture(t, svc)
		f.charge(t, svc, "150", "Kroger", date(2025, 2, 14))

		// GIVEN: allocations whose raw amounts sum to the total exactly
		// WHEN: each one would round down to 33.33
		result, err := svc.CreatePayment(ctx, ledger.PaymentInput{
			CreditCardAccountID: f.card.ID,
			TotalAmount:         money("100"),
			Allocations: []ledger.AllocationInput{
				{EnvelopeID: f.groceries.ID, Amount: money("33.334")},
				{EnvelopeID: f.groceries.ID, Amount: money("33.333")},
				{EnvelopeID: f.groceries.ID, Amount: money("33.333")},
			},
		})

		// THEN: the payment is accepted and the stored cents add up to the total
		require.NoError(t, err)
		require.Len(t, result.Allocations, 3)
		sum := money("0")
		for _, a := range result.Allocations {
			sum = sum.Add(a.Amount)
		}
		assertMoney(t, "100", sum)
		assertMoney(t, "400", available(t, svc, f.groceries.ID))
		requireConsistent(t, svc)
	})
}

func TestPayment_AllocationDriftBeyondToleranceRejected(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *ledger.Service) {
		f := newBudgetFixture(t, svc)
		f.charge(t, svc, "150", "Kroger", date(2025, 2, 14))

		// GIVEN: raw allocations summing to 100.008 against a total of 100
		// WHEN: the payment is simulated
		_, err := svc.SimulatePayment(context.Background(), ledger.PaymentInput{
			CreditCardAccountID: f.card.ID,
			TotalAmount:         money("100"),
			Allocations: []ledger.AllocationInput{
				{EnvelopeID: f.groceries.ID, Amount: money("50.004")},
				{EnvelopeID: f.groceries.ID, Amount: money("50.004")},
			},
		})

		// THEN: it is rejected even though both round to 50.00
		require.ErrorIs(t, err, ledger.ErrAllocationMismatch)
	})
}

func TestPayment_AllocationWithinToleranceAccepted(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *ledger.Service) {
		f := newBudgetFixture(t, svc)
		f.charge(t, svc, "100", "Kroger", date(2025, 2, 14))

		_, err := svc.CreatePayment(context.Background(), ledger.PaymentInput{
			CreditCardAccountID: f.card.ID,
			TotalAmount:         money("33.33"),
			Allocations: []ledger.AllocationInput{
				{EnvelopeID: f.groceries.ID, Amount: money("33.3304")},
			},
		})
		require.NoError(t, err)
		assertMoney(t, "466.67", available(t, svc, f.groceries.ID))
	})
}

func TestPayment_ListedWithAllocations(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *ledger.Service) {
		ctx := context.Background()
		f := newBudgetFixture(t, svc)
		f.charge(t, svc, "100", "Kroger", date(2025, 2, 14))

		created, err := svc.CreatePayment(ctx, ledger.PaymentInput{
			CreditCardAccountID: f.card.ID,
			TotalAmount:         money("60"),
			Description:         "March statement",
			Allocations:         []ledger.AllocationInput{{EnvelopeID: f.groceries.ID, Amount: money("60")}},
		})
		require.NoError(t, err)

		payments, err := svc.ListPayments(ctx, f.card.ID)
		require.NoError(t, err)
		require.Len(t, payments, 1)
		assert.Equal(t, created.ID, payments[0].ID)
		assert.Equal(t, "March statement", payments[0].Description)
		require.Len(t, payments[0].Allocations, 1)
		assert.Equal(t, f.groceries.ID, payments[0].Allocations[0].EnvelopeID)
		assertMoney(t, "60", payments[0].Allocations[0].Amount)

		cashTxs, err := svc.ListTransactions(ctx, ledger.TransactionFilter{EnvelopeID: f.groceries.ID})
		require.NoError(t, err)
		assert.Equal(t, "Payment to Visa: March statement", cashTxs[len(cashTxs)-1].Description)
	})
}

// =============================================================================
// SIMULATE & SUGGEST
// =============================================================================

func TestSimulatePayment_ReportsWithoutWriting(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *ledger.Service) {
		ctx := context.Background()
		f := newBudgetFixture(t, svc)
		f.charge(t, svc, "300", "Kroger", date(2025, 2, 14))
		before := countTransactions(t, svc, ledger.TransactionFilter{})

		sim, err := svc.SimulatePayment(ctx, ledger.PaymentInput{
			CreditCardAccountID: f.card.ID,
			TotalAmount:         money("100"),
			Allocations:         []ledger.AllocationInput{{EnvelopeID: f.groceries.ID, Amount: money("100")}},
		})
		require.NoError(t, err)

		require.Len(t, sim.CashEnvelopes, 1)
		assertMoney(t, "500", sim.CashEnvelopes[0].Before)
		assertMoney(t, "400", sim.CashEnvelopes[0].After)
		require.Len(t, sim.DebtEnvelopes, 1)
		assertMoney(t, "300", sim.DebtEnvelopes[0].Before)
		assertMoney(t, "200", sim.DebtEnvelopes[0].After)

		assert.Equal(t, before, countTransactions(t, svc, ledger.TransactionFilter{}))
		assertMoney(t, "500", available(t, svc, f.groceries.ID))
	})
}

func TestSuggestPaymentAllocation_PrefersMatchedEnvelopes(t *testing.T) {
	// GIVEN: Groceries=500 (debt 120 on "Credit Card Groceries"), Rent=900
	// WHEN: suggesting 300
	// THEN: 120 from Groceries (its own debt), remaining 180 from the richest
	//       envelope

	forEachStore(t, func(t *testing.T, svc *ledger.Service) {
		ctx := context.Background()
		f := newBudgetFixture(t, svc)
		_, err := svc.CreateTransaction(ctx, ledger.CreateTransactionInput{
			AccountID: f.checking.ID, EnvelopeID: unassigned(t, svc, f.checking).ID,
			Amount: money("900"), Status: ledger.StatusCleared, Description: "paycheck",
		})
		require.NoError(t, err)
		rent := createEnvelope(t, svc, f.checking, "Rent", "900")
		f.charge(t, svc, "120", "Kroger", date(2025, 2, 14))

		s, err := svc.SuggestPaymentAllocation(ctx, f.card.ID, money("300"))
		require.NoError(t, err)

		require.Len(t, s.Allocations, 2)
		assert.Equal(t, f.groceries.ID, s.Allocations[0].EnvelopeID)
		assertMoney(t, "120", s.Allocations[0].Amount)
		assert.Equal(t, rent.ID, s.Allocations[1].EnvelopeID)
		assertMoney(t, "180", s.Allocations[1].Amount)
		assertMoney(t, "0", s.Unallocated)
	})
}
