/*
integrity.go - Balance-consistency validator

PURPOSE:
  Detects drift between an account and its envelopes:

    |account.Available - sum(envelope.Available)| > BalanceTolerance

  Findings are returned as data (Discrepancy), never as errors. Repair is a
  separate, explicit action (CreateMissingUnassignedEnvelopes).

CONSISTENCY:
  Both projections are single aggregate reads. They are not required to be
  snapshot-consistent with each other; a discrepancy that disappears on the
  next run was a concurrent write, not drift.
*/
package ledger

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// Discrepancy is one account whose envelopes do not add up.
type Discrepancy struct {
	AccountID      string
	AccountName    string
	AccountBalance decimal.Decimal
	EnvelopeTotal  decimal.Decimal
	Difference     decimal.Decimal // account - envelopes
}

type Validator struct {
	Projector *Projector
}

func NewValidator(store Store) *Validator {
	return &Validator{Projector: NewProjector(store)}
}

// Validate returns every account outside tolerance, ordered by account name.
func (v *Validator) Validate(ctx context.Context) ([]Discrepancy, error) {
	accounts, err := v.Projector.AllAccounts(ctx)
	if err != nil {
		return nil, err
	}
	envelopes, err := v.Projector.AllEnvelopes(ctx)
	if err != nil {
		return nil, err
	}

	sums := make(map[string]decimal.Decimal, len(accounts))
	for _, e := range envelopes {
		sums[e.AccountID] = sums[e.AccountID].Add(e.AvailableBalance)
	}

	var out []Discrepancy
	for _, a := range accounts {
		total := sums[a.EntityID]
		diff := a.AvailableBalance.Sub(total)
		if diff.Abs().GreaterThan(BalanceTolerance) {
			out = append(out, Discrepancy{
				AccountID:      a.EntityID,
				AccountName:    a.Name,
				AccountBalance: a.AvailableBalance,
				EnvelopeTotal:  total,
				Difference:     diff,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountName < out[j].AccountName })
	return out, nil
}
