/*
Package seed loads budgets described in YAML into a ledger.

PURPOSE:
  Budgets can be written by hand (or shipped as demo scenarios) instead of
  being clicked together through the API. A Budget is applied through
  ledger.Service, so every row it creates obeys the same rules as live
  traffic: Unassigned envelopes, opening transactions, funds checks and the
  payment engine.

YAML SCHEMA:
  id: paycheck-basics
  name: Paycheck Basics
  description: One checking account split into envelopes
  accounts:
    - name: Checking
      type: checking          # checking | savings | credit_card | cash
      balance: 2500
      envelopes:
        - name: Groceries
          balance: 400        # funded from Unassigned
          spending_limit: 600
          target: {type: monthly_minimum, amount: 400}
  transactions:
    - {account: Checking, envelope: Groceries, amount: -82.15, status: cleared, date: 2025-01-04}
  transfers:
    - {account: Checking, from: Groceries, to: Dining, amount: 20}
  payments:
    - card: Visa
      allocations:
        - {account: Checking, envelope: Groceries, amount: 100}

  Amounts are decimal strings or numbers. Dates use YYYY-MM-DD.

SEE ALSO:
  - scenarios.go: embedded demo budgets
*/
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/warp/envelope-ledger/ledger"
)

// =============================================================================
// YAML SCHEMA TYPES
// =============================================================================

type Budget struct {
	ID           string           `yaml:"id"`
	Name         string           `yaml:"name"`
	Description  string           `yaml:"description"`
	Accounts     []AccountDef     `yaml:"accounts"`
	Transactions []TransactionDef `yaml:"transactions"`
	Transfers    []TransferDef    `yaml:"transfers"`
	Payments     []PaymentDef     `yaml:"payments"`
}

type AccountDef struct {
	Name      string        `yaml:"name"`
	Type      string        `yaml:"type"`
	Balance   string        `yaml:"balance"`
	Envelopes []EnvelopeDef `yaml:"envelopes"`
}

type EnvelopeDef struct {
	Name          string     `yaml:"name"`
	Balance       string     `yaml:"balance"`
	SpendingLimit string     `yaml:"spending_limit"`
	Description   string     `yaml:"description"`
	Target        *TargetDef `yaml:"target"`
}

type TargetDef struct {
	Type        string `yaml:"type"`
	Amount      string `yaml:"amount"`
	Minimum     string `yaml:"minimum"`
	Description string `yaml:"description"`
}

type TransactionDef struct {
	Account     string `yaml:"account"`
	Envelope    string `yaml:"envelope"`
	Amount      string `yaml:"amount"`
	Status      string `yaml:"status"`
	Date        string `yaml:"date"`
	Description string `yaml:"description"`
}

type TransferDef struct {
	Account     string `yaml:"account"`
	From        string `yaml:"from"`
	To          string `yaml:"to"`
	Amount      string `yaml:"amount"`
	Date        string `yaml:"date"`
	Description string `yaml:"description"`
}

type PaymentDef struct {
	Card        string          `yaml:"card"`
	Date        string          `yaml:"date"`
	Description string          `yaml:"description"`
	Allocations []AllocationDef `yaml:"allocations"`
}

type AllocationDef struct {
	Account  string `yaml:"account"`
	Envelope string `yaml:"envelope"`
	Amount   string `yaml:"amount"`
}

// Parse decodes a budget document.
func Parse(data []byte) (*Budget, error) {
	var b Budget
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parsing budget: %w", err)
	}
	if len(b.Accounts) == 0 {
		return nil, fmt.Errorf("budget %q defines no accounts", b.ID)
	}
	return &b, nil
}

// =============================================================================
// APPLY
// =============================================================================

// Result maps the names used in the budget to the ids that were created.
type Result struct {
	Accounts     map[string]string // account name -> id
	Envelopes    map[string]string // "account/envelope" -> id
	Transactions int
	Transfers    int
	Payments     int
}

func envelopeKey(account, envelope string) string { return account + "/" + envelope }

// Apply creates everything the budget describes, in order: accounts and
// their envelopes, transactions, transfers, then payments. It stops at the
// first error; rows created before it stay committed.
func Apply(ctx context.Context, svc *ledger.Service, b *Budget) (*Result, error) {
	res := &Result{Accounts: map[string]string{}, Envelopes: map[string]string{}}

	for _, a := range b.Accounts {
		if err := applyAccount(ctx, svc, a, res); err != nil {
			return res, fmt.Errorf("account %q: %w", a.Name, err)
		}
	}

	for i, t := range b.Transactions {
		in, err := res.transaction(t)
		if err != nil {
			return res, fmt.Errorf("transaction %d: %w", i, err)
		}
		if _, err := svc.CreateTransaction(ctx, in); err != nil {
			return res, fmt.Errorf("transaction %d: %w", i, err)
		}
		res.Transactions++
	}

	for i, t := range b.Transfers {
		in, err := res.transfer(t)
		if err != nil {
			return res, fmt.Errorf("transfer %d: %w", i, err)
		}
		if _, err := svc.TransferBetweenEnvelopes(ctx, in); err != nil {
			return res, fmt.Errorf("transfer %d: %w", i, err)
		}
		res.Transfers++
	}

	for i, p := range b.Payments {
		in, err := res.payment(p)
		if err != nil {
			return res, fmt.Errorf("payment %d: %w", i, err)
		}
		if _, err := svc.CreatePayment(ctx, in); err != nil {
			return res, fmt.Errorf("payment %d: %w", i, err)
		}
		res.Payments++
	}
	return res, nil
}

func applyAccount(ctx context.Context, svc *ledger.Service, a AccountDef, res *Result) error {
	balance, err := parseAmount(a.Balance)
	if err != nil {
		return err
	}
	acct, err := svc.CreateAccount(ctx, ledger.CreateAccountInput{
		Name:           a.Name,
		Type:           ledger.AccountType(a.Type),
		InitialBalance: balance,
	})
	if err != nil {
		return err
	}
	res.Accounts[acct.Name] = acct.ID
	unassigned, err := unassignedID(ctx, svc, *acct)
	if err != nil {
		return err
	}
	res.Envelopes[envelopeKey(acct.Name, ledger.UnassignedName(acct.Name))] = unassigned

	for _, e := range a.Envelopes {
		in := ledger.CreateEnvelopeInput{Name: e.Name, AccountID: acct.ID, Description: e.Description}
		if in.CurrentBalance, err = parseOptional(e.Balance); err != nil {
			return fmt.Errorf("envelope %q: %w", e.Name, err)
		}
		if in.SpendingLimit, err = parseOptional(e.SpendingLimit); err != nil {
			return fmt.Errorf("envelope %q: %w", e.Name, err)
		}
		env, err := svc.CreateEnvelope(ctx, in)
		if err != nil {
			return fmt.Errorf("envelope %q: %w", e.Name, err)
		}
		res.Envelopes[envelopeKey(acct.Name, env.Name)] = env.ID

		if e.Target != nil {
			if err := applyTarget(ctx, svc, env.ID, *e.Target); err != nil {
				return fmt.Errorf("envelope %q target: %w", e.Name, err)
			}
		}
	}
	return nil
}

func unassignedID(ctx context.Context, svc *ledger.Service, a ledger.Account) (string, error) {
	envs, err := svc.ListEnvelopes(ctx, a.ID)
	if err != nil {
		return "", err
	}
	for _, e := range envs {
		if e.IsUnassignedFor(a) {
			return e.ID, nil
		}
	}
	return "", fmt.Errorf("no Unassigned envelope for %q", a.Name)
}

func applyTarget(ctx context.Context, svc *ledger.Service, envelopeID string, t TargetDef) error {
	amount, err := parseAmount(t.Amount)
	if err != nil {
		return err
	}
	minimum, err := parseOptional(t.Minimum)
	if err != nil {
		return err
	}
	_, err = svc.CreateFundingTarget(ctx, ledger.FundingTargetInput{
		EnvelopeID:    envelopeID,
		TargetType:    ledger.TargetType(t.Type),
		TargetAmount:  amount,
		MinimumAmount: minimum,
		Description:   t.Description,
	})
	return err
}

// =============================================================================
// NAME RESOLUTION
// =============================================================================

func (r *Result) account(name string) (string, error) {
	id, ok := r.Accounts[name]
	if !ok {
		return "", fmt.Errorf("unknown account %q", name)
	}
	return id, nil
}

func (r *Result) envelope(account, name string) (string, error) {
	id, ok := r.Envelopes[envelopeKey(account, name)]
	if !ok {
		return "", fmt.Errorf("unknown envelope %q in account %q", name, account)
	}
	return id, nil
}

func (r *Result) transaction(t TransactionDef) (ledger.CreateTransactionInput, error) {
	var in ledger.CreateTransactionInput
	var err error
	if in.AccountID, err = r.account(t.Account); err != nil {
		return in, err
	}
	if in.EnvelopeID, err = r.envelope(t.Account, t.Envelope); err != nil {
		return in, err
	}
	if in.Amount, err = parseAmount(t.Amount); err != nil {
		return in, err
	}
	if in.Date, err = parseDate(t.Date); err != nil {
		return in, err
	}
	in.Status = ledger.Status(t.Status)
	in.Description = t.Description
	return in, nil
}

func (r *Result) transfer(t TransferDef) (ledger.TransferInput, error) {
	var in ledger.TransferInput
	var err error
	if in.FromEnvelopeID, err = r.envelope(t.Account, t.From); err != nil {
		return in, err
	}
	if in.ToEnvelopeID, err = r.envelope(t.Account, t.To); err != nil {
		return in, err
	}
	if in.Amount, err = parseAmount(t.Amount); err != nil {
		return in, err
	}
	if in.Date, err = parseDate(t.Date); err != nil {
		return in, err
	}
	in.Description = t.Description
	return in, nil
}

func (r *Result) payment(p PaymentDef) (ledger.PaymentInput, error) {
	var in ledger.PaymentInput
	var err error
	if in.CreditCardAccountID, err = r.account(p.Card); err != nil {
		return in, err
	}
	if in.Date, err = parseDate(p.Date); err != nil {
		return in, err
	}
	in.Description = p.Description

	total := decimal.Zero
	for _, a := range p.Allocations {
		var alloc ledger.AllocationInput
		if alloc.EnvelopeID, err = r.envelope(a.Account, a.Envelope); err != nil {
			return in, err
		}
		if alloc.Amount, err = parseAmount(a.Amount); err != nil {
			return in, err
		}
		total = total.Add(alloc.Amount)
		in.Allocations = append(in.Allocations, alloc)
	}
	in.TotalAmount = total
	return in, nil
}

// =============================================================================
// SCALARS
// =============================================================================

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return ledger.RoundMoney(d), nil
}

func parseOptional(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := parseAmount(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// parseDate returns the zero time for an empty string; the ledger then uses
// the current date.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}
