/*
balance.go - Status-partitioned balance projection

PURPOSE:
  Answers "how much is in this account / envelope?" by aggregating the
  transaction log at read time. The projection is the single source of
  truth for balances; nothing writes a balance imperatively.

AVAILABILITY RULES:
  bank-like account / cash envelope:
    Available = Pending + Cleared          (NotPosted excluded)
  credit-card account:
    Available = Unpaid + Cleared           (current exposure)
  debt envelope:
    Available = Unpaid
  Total = sum over every status.

BOOTSTRAP:
  An entity with zero transactions reports its stored CurrentBalance as both
  Total and Available.

MISSING ENTITIES:
  A missing id yields a zero projection, not an error: callers treat missing
  balances as zero.

SEE ALSO:
  - store.go: StatusTotals aggregation contract
  - integrity.go: cross-checks account vs envelope projections
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// EntityKind distinguishes account and envelope projections.
type EntityKind string

const (
	KindAccount  EntityKind = "account"
	KindEnvelope EntityKind = "envelope"
)

// BalanceByStatus is the projected balance of one account or envelope.
type BalanceByStatus struct {
	Kind      EntityKind
	EntityID  string
	Name      string
	AccountID string // envelopes only
	Type      string

	NotPosted decimal.Decimal
	Pending   decimal.Decimal
	Cleared   decimal.Decimal
	Unpaid    decimal.Decimal
	Paid      decimal.Decimal

	TotalBalance     decimal.Decimal
	AvailableBalance decimal.Decimal
	TransactionCount int
}

// ProjectAccount turns raw totals into an account projection.
func ProjectAccount(t StatusTotals) BalanceByStatus {
	b := fromTotals(KindAccount, t)
	if t.TransactionCount == 0 {
		return withStored(b, t.StoredBalance)
	}
	if AccountType(t.Type).IsCreditCard() {
		b.AvailableBalance = t.Unpaid.Add(t.Cleared)
	} else {
		b.AvailableBalance = t.Pending.Add(t.Cleared)
	}
	return b
}

// ProjectEnvelope turns raw totals into an envelope projection.
func ProjectEnvelope(t StatusTotals) BalanceByStatus {
	b := fromTotals(KindEnvelope, t)
	if t.TransactionCount == 0 {
		return withStored(b, t.StoredBalance)
	}
	if EnvelopeType(t.Type) == EnvelopeDebt {
		b.AvailableBalance = t.Unpaid
	} else {
		b.AvailableBalance = t.Pending.Add(t.Cleared)
	}
	return b
}

func fromTotals(kind EntityKind, t StatusTotals) BalanceByStatus {
	return BalanceByStatus{
		Kind:             kind,
		EntityID:         t.EntityID,
		Name:             t.Name,
		AccountID:        t.AccountID,
		Type:             t.Type,
		NotPosted:        t.NotPosted,
		Pending:          t.Pending,
		Cleared:          t.Cleared,
		Unpaid:           t.Unpaid,
		Paid:             t.Paid,
		TotalBalance:     t.NotPosted.Add(t.Pending).Add(t.Cleared).Add(t.Unpaid).Add(t.Paid),
		TransactionCount: t.TransactionCount,
	}
}

func withStored(b BalanceByStatus, stored decimal.Decimal) BalanceByStatus {
	b.TotalBalance = stored
	b.AvailableBalance = stored
	return b
}

// =============================================================================
// PROJECTOR - Read-side entry point
// =============================================================================

// Projector computes projections from a Store. It holds no state, so one
// Projector may serve concurrent readers.
type Projector struct {
	Store Store
}

func NewProjector(store Store) *Projector {
	return &Projector{Store: store}
}

// Account returns the projection for one account.
func (p *Projector) Account(ctx context.Context, id string) (BalanceByStatus, error) {
	rows, err := p.Store.AccountStatusTotals(ctx, id)
	if err != nil {
		return BalanceByStatus{}, err
	}
	if len(rows) == 0 {
		return BalanceByStatus{Kind: KindAccount, EntityID: id}, nil
	}
	return ProjectAccount(rows[0]), nil
}

// Envelope returns the projection for one envelope.
func (p *Projector) Envelope(ctx context.Context, id string) (BalanceByStatus, error) {
	rows, err := p.Store.EnvelopeStatusTotals(ctx, id)
	if err != nil {
		return BalanceByStatus{}, err
	}
	if len(rows) == 0 {
		return BalanceByStatus{Kind: KindEnvelope, EntityID: id}, nil
	}
	return ProjectEnvelope(rows[0]), nil
}

// AllAccounts projects every account in one aggregate read.
func (p *Projector) AllAccounts(ctx context.Context) ([]BalanceByStatus, error) {
	rows, err := p.Store.AccountStatusTotals(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]BalanceByStatus, len(rows))
	for i, r := range rows {
		out[i] = ProjectAccount(r)
	}
	return out, nil
}

// AllEnvelopes projects every envelope in one aggregate read.
func (p *Projector) AllEnvelopes(ctx context.Context) ([]BalanceByStatus, error) {
	rows, err := p.Store.EnvelopeStatusTotals(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]BalanceByStatus, len(rows))
	for i, r := range rows {
		out[i] = ProjectEnvelope(r)
	}
	return out, nil
}

// Available is shorthand for an envelope's available balance.
func (p *Projector) Available(ctx context.Context, envelopeID string) (decimal.Decimal, error) {
	b, err := p.Envelope(ctx, envelopeID)
	if err != nil {
		return decimal.Zero, err
	}
	return b.AvailableBalance, nil
}
