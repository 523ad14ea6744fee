package ledger_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/envelope-ledger/ledger"
	"github.com/warp/envelope-ledger/ledger/store"
	"github.com/warp/envelope-ledger/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type storeFactory struct {
	name string
	open func(t *testing.T) ledger.TxStore
}

var storeFactories = []storeFactory{
	{"memory", func(t *testing.T) ledger.TxStore { return store.NewTxMemory() }},
	{"sqlite", func(t *testing.T) ledger.TxStore {
		s, err := sqlite.New(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	}},
}

// forEachStore runs fn once per store implementation.
func forEachStore(t *testing.T, fn func(t *testing.T, svc *ledger.Service)) {
	t.Helper()
	for _, f := range storeFactories {
		t.Run(f.name, func(t *testing.T) {
			fn(t, newService(f.open(t)))
		})
	}
}

func newService(st ledger.TxStore) *ledger.Service {
	return ledger.NewService(st,
		ledger.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		ledger.WithClock(steppingClock()),
	)
}

// steppingClock advances one second per call so creation order is visible
// in CreatedAt.
func steppingClock() func() time.Time {
	now := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func moneyPtr(s string) *decimal.Decimal {
	d := money(s)
	return &d
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// assertMoney compares at cent precision.
func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, money(want).StringFixed(2), got.StringFixed(2), msgAndArgs...)
}

func createAccount(t *testing.T, svc *ledger.Service, name string, typ ledger.AccountType, balance string) *ledger.Account {
	t.Helper()
	a, err := svc.CreateAccount(context.Background(), ledger.CreateAccountInput{
		Name:           name,
		Type:           typ,
		InitialBalance: money(balance),
	})
	require.NoError(t, err)
	return a
}

func createEnvelope(t *testing.T, svc *ledger.Service, account *ledger.Account, name, balance string) *ledger.Envelope {
	t.Helper()
	e, err := svc.CreateEnvelope(context.Background(), ledger.CreateEnvelopeInput{
		Name:           name,
		AccountID:      account.ID,
		CurrentBalance: moneyPtr(balance),
	})
	require.NoError(t, err)
	return e
}

func unassigned(t *testing.T, svc *ledger.Service, account *ledger.Account) *ledger.Envelope {
	t.Helper()
	envs, err := svc.ListEnvelopes(context.Background(), account.ID)
	require.NoError(t, err)
	for i := range envs {
		if envs[i].IsUnassignedFor(*account) {
			return &envs[i]
		}
	}
	t.Fatalf("account %s has no unassigned envelope", account.Name)
	return nil
}

func available(t *testing.T, svc *ledger.Service, envelopeID string) decimal.Decimal {
	t.Helper()
	d, err := svc.Projector().Available(context.Background(), envelopeID)
	require.NoError(t, err)
	return d
}

func accountAvailable(t *testing.T, svc *ledger.Service, accountID string) decimal.Decimal {
	t.Helper()
	b, err := svc.Projector().Account(context.Background(), accountID)
	require.NoError(t, err)
	return b.AvailableBalance
}

func requireConsistent(t *testing.T, svc *ledger.Service) {
	t.Helper()
	found, err := svc.ValidateIntegrity(context.Background())
	require.NoError(t, err)
	require.Empty(t, found, "ledger should have no discrepancies")
}

func countTransactions(t *testing.T, svc *ledger.Service, f ledger.TransactionFilter) int {
	t.Helper()
	txs, err := svc.ListTransactions(context.Background(), f)
	require.NoError(t, err)
	return len(txs)
}

// budgetFixture is a checking account with a Groceries envelope and a credit
// card with a matching debt envelope.
type budgetFixture struct {
	checking  *ledger.Account
	groceries *ledger.Envelope
	card      *ledger.Account
	cardDebt  *ledger.Envelope
}

func newBudgetFixture(t *testing.T, svc *ledger.Service) budgetFixture {
	t.Helper()
	ctx := context.Background()

	checking := createAccount(t, svc, "Checking", ledger.AccountChecking, "1000")
	groceries := createEnvelope(t, svc, checking, "Groceries", "500")
	card := createAccount(t, svc, "Visa", ledger.AccountCreditCard, "0")
	debt, err := svc.CreateEnvelope(ctx, ledger.CreateEnvelopeInput{
		Name:      "Credit Card Groceries",
		AccountID: card.ID,
	})
	require.NoError(t, err)

	return budgetFixture{checking: checking, groceries: groceries, card: card, cardDebt: debt}
}

func (f budgetFixture) charge(t *testing.T, svc *ledger.Service, amount, description string, day time.Time) *ledger.Transaction {
	t.Helper()
	tx, err := svc.CreateTransaction(context.Background(), ledger.CreateTransactionInput{
		AccountID:   f.card.ID,
		EnvelopeID:  f.cardDebt.ID,
		Amount:      money(amount),
		Date:        day,
		Status:      ledger.StatusUnpaid,
		Description: description,
	})
	require.NoError(t, err)
	return tx
}

// failingEnvelopeStore rejects every envelope insert made inside WithTx.
type failingEnvelopeStore struct {
	ledger.TxStore
}

var errInjected = errors.New("injected failure")

func (f failingEnvelopeStore) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	return f.TxStore.WithTx(ctx, func(st ledger.Store) error {
		return fn(failOnEnvelopeInsert{st})
	})
}

type failOnEnvelopeInsert struct {
	ledger.Store
}

func (failOnEnvelopeInsert) InsertEnvelope(context.Context, ledger.Envelope) error {
	return errInjected
}
