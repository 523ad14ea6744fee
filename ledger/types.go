/*
Package ledger provides the envelope-budgeting ledger engine.

PURPOSE:
  Accounts hold money, envelopes partition each account's balance into
  spending categories, and transactions move money in and out. This package
  owns the rules that keep those three consistent: the status-aware balance
  projection, envelope transfers, credit-card payments and the lifecycle of
  accounts and their Unassigned envelopes.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal.Decimal rounded to cents
  - Account / Envelope / Transaction: the ledger rows
  - Status: transaction lifecycle marker, legal values depend on account type
  - EnvelopeTransfer / AccountTransfer / CreditCardPayment: audit records

CENTRAL INVARIANT:
  For every account, the sum of its envelopes' available balances equals the
  account's available balance (within BalanceTolerance). Balances are never
  stored and mutated imperatively; they are projected from the transaction
  log (see balance.go). CurrentBalance fields are only a bootstrap value for
  entities that have no transactions yet.

SIGN CONVENTION:
  Positive amounts are credits: they add funds to cash envelopes and add debt
  to debt envelopes. Negative amounts are debits.

SEE ALSO:
  - balance.go: status-partitioned projection
  - transfer.go: envelope and account transfers
  - payment.go: credit-card payment engine
  - lifecycle.go: account/envelope creation and deletion
*/
package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// MoneyPlaces is the number of decimal places kept for amounts.
const MoneyPlaces = 2

var (
	// BalanceTolerance is the absolute difference tolerated between an
	// account balance and the sum of its envelopes.
	BalanceTolerance = decimal.New(1, -2)

	// AllocationTolerance is the tolerance between a payment total and the
	// sum of its allocations, and the threshold for reporting overpayment.
	AllocationTolerance = decimal.New(1, -3)
)

// NewMoney converts a float to a cent-rounded decimal.
func NewMoney(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(MoneyPlaces)
}

// RoundMoney rounds an arbitrary decimal to cents.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// MustParseMoney parses a decimal string, returning zero on malformed input.
func MustParseMoney(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d.Round(MoneyPlaces)
}

// WithinTolerance reports whether |a-b| <= tol.
func WithinTolerance(a, b, tol decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tol)
}

// NewID returns a new random identifier.
func NewID() string {
	return uuid.NewString()
}

// =============================================================================
// ACCOUNT TYPES & STATUSES
// =============================================================================

type AccountType string

const (
	AccountChecking   AccountType = "checking"
	AccountSavings    AccountType = "savings"
	AccountCreditCard AccountType = "credit_card"
	AccountCash       AccountType = "cash"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountChecking, AccountSavings, AccountCreditCard, AccountCash:
		return true
	}
	return false
}

func (t AccountType) IsCreditCard() bool { return t == AccountCreditCard }

// EnvelopeType returns the envelope type an account of this type holds:
// debt for credit cards, cash for everything else.
func (t AccountType) EnvelopeType() EnvelopeType {
	if t.IsCreditCard() {
		return EnvelopeDebt
	}
	return EnvelopeCash
}

// Statuses returns the legal transaction statuses for the account type.
func (t AccountType) Statuses() []Status {
	if t.IsCreditCard() {
		return []Status{StatusUnpaid, StatusPaid}
	}
	return []Status{StatusNotPosted, StatusPending, StatusCleared}
}

// AllowsStatus reports whether s is legal on an account of type t.
func (t AccountType) AllowsStatus(s Status) bool {
	for _, allowed := range t.Statuses() {
		if allowed == s {
			return true
		}
	}
	return false
}

// SettledStatus is the status used for ledger-generated movements
// (opening balances, transfers) on an account of this type.
func (t AccountType) SettledStatus() Status {
	if t.IsCreditCard() {
		return StatusUnpaid
	}
	return StatusCleared
}

type EnvelopeType string

const (
	EnvelopeCash EnvelopeType = "cash"
	EnvelopeDebt EnvelopeType = "debt"
)

func (t EnvelopeType) Valid() bool { return t == EnvelopeCash || t == EnvelopeDebt }

type Status string

const (
	StatusNotPosted Status = "not_posted"
	StatusPending   Status = "pending"
	StatusCleared   Status = "cleared"
	StatusUnpaid    Status = "unpaid"
	StatusPaid      Status = "paid"
)

// =============================================================================
// UNASSIGNED ENVELOPE NAMING
// =============================================================================

// UnassignedPrefix starts the name of every account's catch-all envelope.
const UnassignedPrefix = "Unassigned"

// UnassignedName returns the catch-all envelope name for an account.
func UnassignedName(accountName string) string {
	return UnassignedPrefix + " " + accountName
}

// IsReservedName reports whether an envelope name is reserved for the
// Unassigned envelope and therefore cannot be used or deleted by callers.
func IsReservedName(name string) bool {
	return strings.HasPrefix(name, UnassignedPrefix)
}

// =============================================================================
// ROWS
// =============================================================================

type Account struct {
	ID             string
	Name           string
	Type           AccountType
	InitialBalance decimal.Decimal
	CurrentBalance decimal.Decimal // bootstrap cache, see package doc
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Envelope struct {
	ID             string
	Name           string
	AccountID      string
	Type           EnvelopeType
	CurrentBalance decimal.Decimal // bootstrap cache, see package doc
	SpendingLimit  *decimal.Decimal
	Description    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsUnassignedFor reports whether e is the catch-all envelope of account a.
func (e Envelope) IsUnassignedFor(a Account) bool {
	return e.AccountID == a.ID && e.Name == UnassignedName(a.Name)
}

type Transaction struct {
	ID          string
	AccountID   string
	EnvelopeID  string
	Amount      decimal.Decimal
	Date        time.Time
	Status      Status
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TransactionFilter narrows ListTransactions. Empty fields match everything.
type TransactionFilter struct {
	AccountID  string
	EnvelopeID string
	Status     Status
}

type EnvelopeTransfer struct {
	ID             string
	FromEnvelopeID string
	ToEnvelopeID   string
	Amount         decimal.Decimal
	Date           time.Time
	Description    string
	CreatedAt      time.Time
}

type AccountTransfer struct {
	ID             string
	FromAccountID  string
	ToAccountID    string
	FromEnvelopeID string
	ToEnvelopeID   string
	Amount         decimal.Decimal
	Date           time.Time
	Description    string
	CreatedAt      time.Time
}

type CreditCardPayment struct {
	ID                  string
	CreditCardAccountID string
	TotalAmount         decimal.Decimal
	Date                time.Time
	Description         string
	CreatedAt           time.Time
}

type PaymentAllocation struct {
	ID         string
	PaymentID  string
	EnvelopeID string
	Amount     decimal.Decimal
}

type CreditCardPaymentWithAllocations struct {
	CreditCardPayment
	Allocations []PaymentAllocation
}

// =============================================================================
// FUNDING TARGETS
// =============================================================================

// TargetType names how a funding target is computed for planning reports.
type TargetType string

const (
	TargetMonthlyMinimum TargetType = "monthly_minimum"
	TargetPerPaycheck    TargetType = "per_paycheck"
	TargetMonthlyStipend TargetType = "monthly_stipend"
)

func (t TargetType) Valid() bool {
	switch t {
	case TargetMonthlyMinimum, TargetPerPaycheck, TargetMonthlyStipend:
		return true
	}
	return false
}

// FundingTarget is a planning entity. It never affects balances.
type FundingTarget struct {
	ID            string
	EnvelopeID    string
	TargetType    TargetType
	TargetAmount  decimal.Decimal
	MinimumAmount *decimal.Decimal
	Description   string
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
