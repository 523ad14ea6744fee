package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/envelope-ledger/ledger"
)

// =============================================================================
// ENVELOPE TRANSFERS
// =============================================================================

func TestTransfer_MovesMoneyWithPairedTransactions(t *testing.T) {
	// GIVEN: envelopes A=400, B=100 on one account
	// WHEN: transfer 50 from A to B
	// THEN: A=350, B=150, two new transactions, one transfer record

	forEachStore(t, func(t *testing.T, svc *ledger.Service) {
		ctx := context.Background()
		checking := createAccount(t, svc, "Checking", ledger.AccountChecking, "500")
		a := createEnvelope(t, svc, checking, "Dining", "400")
		b := createEnvelope(t, svc, checking, "Fuel", "100")
		txBefore := countTransactions(t, svc, ledger.TransactionFilter{AccountID: checking.ID})
		transfersBefore, err := svc.ListEnvelopeTransfers(ctx)
		require.NoError(t, err)

		transfer, err := svc.TransferBetweenEnvelopes(ctx, ledger.TransferInput{
			FromEnvelopeID: a.ID,
			ToEnvelopeID:   b.ID,
			Amount:         money("50"),
			Date:           date(2025, 3, 10),
			Description:    "rebalance",
		})
		require.NoError(t, err)

		assertMoney(t, "350", available(t, svc, a.ID))
		assertMoney(t, "150", available(t, svc, b.ID))
		assert.Equal(t, txBefore+2, countTransactions(t, svc, ledger.TransactionFilter{AccountID: checking.ID}))

		transfers, err := svc.ListEnvelopeTransfers(ctx)
		require.NoError(t, err)
		assert.Len(t, transfers, len(transfersBefore)+1)
		assert.Equal(t, transfer.ID, transfers[len(transfers)-1].ID)
		assertMoney(t, "50", transfer.Amount)

		debits, err := svc.ListTransactions(ctx, ledger.TransactionFilter{EnvelopeID: a.ID})
		require.NoError(t, err)
		last := debits[len(debits)-1]
		assertMoney(t, "-50", last.Amount)
		assert.Equal(t, ledger.StatusCleared, last.Status)
		assert.Equal(t, "Transfer to Fuel: rebalance", last.Description)

		requireConsistent(t, svc)
	})
}

func TestTransfer_InsufficientFundsWritesNothing(t *testing.T) {
	// GIVEN: envelope A=400
	// WHEN: transfer 10000
	// THEN: InsufficientFundsError, zero rows written

	forEachStore(t, func(t *testing.T, svc *ledger.Service) {
		ctx := context.Background()
		checking := createAccount(t, svc, "Checking", ledger.AccountChecking, "500")
		a := createEnvelope(t, svc, checking, "Dining", "400")
		b := createEnvelope(t, svc, checking, "Fuel", "100")
		txBefore := countTransactions(t, svc, ledger.TransactionFilter{})
		transfersBefore, err := svc.ListEnvelopeTransfers(ctx)
		require.NoError(t, err)

		_, err = svc.TransferBetweenEnvelopes(ctx, ledger.TransferInput{
			FromEnvelopeID: a.ID,
			ToEnvelopeID:   b.ID,
			Amount:         money("10000"),
		})

		require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
		var fe *ledger.InsufficientFundsError
		require.True(t, errors.As(err, &fe))
		assertMoney(t, "400", fe.Available)
		assertMoney(t, "10000", fe.Requested)

		assert.Equal(t, txBefore, countTransactions(t, svc, ledger.TransactionFilter{}))
		transfers, err := svc.ListEnvelopeTransfers(ctx)
		require.NoError(t, err)
		assert.Len(t, transfers, len(transfersBefore))
		assertMoney(t, "400", available(t, svc, a.ID))
	})
}

func TestTransfer_CrossAccountRejected(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *ledger.Service) {
		ctx := context.Background()
		checking := createAccount(t, svc, "Checking", ledger.AccountChecking, "500")
		savings := createAccount(t, svc, "Savings", ledger.AccountSavings, "500")
		a := createEnvelope(t, svc, checking, "Dining", "100")
		b := createEnvelope(t, svc, savings, "Vacation", "100")
		txBefore := countTransactions(t, svc, ledger.TransactionFilter{})

		_, err := svc.TransferBetweenEnvelopes(ctx, ledger.TransferInput{
			FromEnvelopeID: a.ID,
			ToEnvelopeID:   b.ID,
			Amount:         money("10"),
		})

		require.ErrorIs(t, err, ledger.ErrCrossAccount)
		require.ErrorIs(t, err, ledger.ErrValidation)
		assert.Equal(t, txBefore, countTransactions(t, svc, ledger.TransactionFilter{}))
	})
}

func TestTransfer_RejectsBadInput(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *ledger.Service) {
		ctx := context.Background()
		checking := createAccount(t, svc, "Checking", ledger.AccountChecking, "500")
		a := createEnvelope(t, svc, checking, "Dining", "100")

		_, err := svc.TransferBetweenEnvelopes(ctx, ledger.TransferInput{FromEnvelopeID: a.ID, ToEnvelopeID: a.ID, Amount: money("1")})
		assert.ErrorIs(t, err, ledger.ErrValidation)

		_, err = svc.TransferBetweenEnvelopes(ctx, ledger.TransferInput{FromEnvelopeID: a.ID, ToEnvelopeID: "missing", Amount: money("1")})
		assert.True(t, ledger.IsNotFound(err))

		_, err = svc.TransferBetweenEnvelopes(ctx, ledger.TransferInput{FromEnvelopeID: a.ID, ToEnvelopeID: unassigned(t, svc, checking).ID, Amount: money("0")})
		assert.ErrorIs(t, err, ledger.ErrValidation)
	})
}

func TestTransfer_CreditCardUsesUnpaid(t *testing.T) {
	// GIVEN: card with 200 of debt in its Unassigned envelope
	// WHEN: 80 moved into a named debt envelope
	// THEN: both legs are unpaid and the named envelope owes 80

	forEachStore(t, func(t *testing.T, svc *ledger.Service) {
		ctx := context.Background()
		card := createAccount(t, svc, "Visa", ledger.AccountCreditCard, "200")
		debt := createEnvelope(t, svc, card, "Credit Card Dining", "0")

		_, err := svc.TransferBetweenEnvelopes(ctx, ledger.TransferInput{
			FromEnvelopeID: unassigned(t, svc, card).ID,
			ToEnvelopeID:   debt.ID,
			Amount:         money("80"),
		})
		require.NoError(t, err)

		txs, err := svc.ListTransactions(ctx, ledger.TransactionFilter{EnvelopeID: debt.ID})
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, ledger.StatusUnpaid, txs[0].Status)
		assertMoney(t, "80", available(t, svc, debt.ID))
		assertMoney(t, "120", available(t, svc, unassigned(t, svc, card).ID))
		requireConsistent(t, svc)
	})
}

// =============================================================================
// ACCOUNT TRANSFERS
// =============================================================================

func TestAccountTransfer_MovesBetweenBankAccounts(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *ledger.Service) {
		ctx := context.Background()
		checking := createAccount(t, svc, "Checking", ledger.AccountChecking, "1000")
		savings := createAccount(t, svc, "Savings", ledger.AccountSavings, "0")

		transfer, err := svc.TransferBetweenAccounts(ctx, ledger.AccountTransferInput{
			FromAccountID:  checking.ID,
			ToAccountID:    savings.ID,
			FromEnvelopeID: unassigned(t, svc, checking).ID,
			ToEnvelopeID:   unassigned(t, svc, savings).ID,
			Amount:         money("250"),
		})
		require.NoError(t, err)
		assert.Equal(t, checking.ID, transfer.FromAccountID)

		assertMoney(t, "750", accountAvailable(t, svc, checking.ID))
		assertMoney(t, "250", accountAvailable(t, svc, savings.ID))
		requireConsistent(t, svc)
	})
}

func TestAccountTransfer_RejectsCreditCardsAndForeignEnvelopes(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *ledger.Service) {
		ctx := context.Background()
		checking := createAccount(t, svc, "Checking", ledger.AccountChecking, "1000")
		savings := createAccount(t, svc, "Savings", ledger.AccountSavings, "0")
		card := createAccount(t, svc, "Visa", ledger.AccountCreditCard, "0")

		_, err := svc.TransferBetweenAccounts(ctx, ledger.AccountTransferInput{
			FromAccountID: checking.ID, ToAccountID: card.ID,
			FromEnvelopeID: unassigned(t, svc, checking).ID, ToEnvelopeID: unassigned(t, svc, card).ID,
			Amount: money("10"),
		})
		assert.ErrorIs(t, err, ledger.ErrValidation)

		_, err = svc.TransferBetweenAccounts(ctx, ledger.AccountTransferInput{
			FromAccountID: checking.ID, ToAccountID: savings.ID,
			FromEnvelopeID: unassigned(t, svc, savings).ID, ToEnvelopeID: unassigned(t, svc, checking).ID,
			Amount: money("10"),
		})
		assert.ErrorIs(t, err, ledger.ErrValidation)
	})
}
