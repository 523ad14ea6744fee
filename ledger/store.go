/*
store.go - Persistence interface for the ledger

PURPOSE:
  Defines the boundary between the ledger rules and the database. Any
  transactional store with ACID semantics can implement it.

KEY INTERFACES:
  Store:   row CRUD plus the two status-aggregation reads the projection
           engine is built on
  TxStore: Store + WithTx for all-or-nothing multi-row mutations

CONTRACT:
  - Get* returns (nil, nil) when the row does not exist.
  - ListTransactions returns rows in FIFO order: date, then creation order.
  - AccountStatusTotals / EnvelopeStatusTotals are each ONE aggregate read,
    never an application-level loop, so they cannot observe half of a
    committed transfer.
  - Every mutating ledger operation runs inside exactly one WithTx. The
    Store handed to fn must be used for all reads and writes of that
    operation.

IMPLEMENTATIONS:
  - store/sqlite: SQLite with migrations and balance views
  - ledger/store: in-memory, for tests and development
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS TOTALS - Raw aggregation row behind the projection
// =============================================================================

// StatusTotals is the per-status sum of transaction amounts for one account
// or envelope, as produced by the store in a single query.
type StatusTotals struct {
	EntityID      string
	Name          string
	AccountID     string // envelope rows only
	Type          string // account type or envelope type
	StoredBalance decimal.Decimal

	NotPosted decimal.Decimal
	Pending   decimal.Decimal
	Cleared   decimal.Decimal
	Unpaid    decimal.Decimal
	Paid      decimal.Decimal

	TransactionCount int
}

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	InsertAccount(ctx context.Context, a Account) error
	UpdateAccount(ctx context.Context, a Account) error
	DeleteAccount(ctx context.Context, id string) error
	GetAccount(ctx context.Context, id string) (*Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)

	InsertEnvelope(ctx context.Context, e Envelope) error
	UpdateEnvelope(ctx context.Context, e Envelope) error
	DeleteEnvelope(ctx context.Context, id string) error
	DeleteEnvelopesByAccount(ctx context.Context, accountID string) error
	GetEnvelope(ctx context.Context, id string) (*Envelope, error)
	// ListEnvelopes returns envelopes ordered by name; accountID "" lists all.
	ListEnvelopes(ctx context.Context, accountID string) ([]Envelope, error)

	InsertTransaction(ctx context.Context, tx Transaction) error
	UpdateTransaction(ctx context.Context, tx Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)

	InsertEnvelopeTransfer(ctx context.Context, t EnvelopeTransfer) error
	ListEnvelopeTransfers(ctx context.Context) ([]EnvelopeTransfer, error)
	InsertAccountTransfer(ctx context.Context, t AccountTransfer) error

	InsertPayment(ctx context.Context, p CreditCardPaymentWithAllocations) error
	ListPayments(ctx context.Context, creditCardAccountID string) ([]CreditCardPaymentWithAllocations, error)

	InsertFundingTarget(ctx context.Context, t FundingTarget) error
	DeleteFundingTarget(ctx context.Context, id string) error
	ListFundingTargets(ctx context.Context) ([]FundingTarget, error)

	// AccountStatusTotals aggregates by account. No ids means all accounts.
	AccountStatusTotals(ctx context.Context, ids ...string) ([]StatusTotals, error)
	// EnvelopeStatusTotals aggregates by envelope. No ids means all envelopes.
	EnvelopeStatusTotals(ctx context.Context, ids ...string) ([]StatusTotals, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
