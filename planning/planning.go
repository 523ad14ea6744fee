/*
Package planning turns funding targets into a funding requirement report.

PURPOSE:
  Funding targets describe how much each envelope should receive. This
  package compares them with the projected available balances and answers
  "how much do I need to set aside per month and per paycheck, and which
  envelopes are short right now?". It is read-only: nothing here moves
  money.

TARGET TYPES:
  monthly_minimum  envelope should hold at least TargetAmount
                   needed = max(0, target - available)
  per_paycheck     TargetAmount is set aside every paycheck
                   monthly = target * paychecks per month
  monthly_stipend  TargetAmount is spent every month; the envelope is
                   underfunded when it falls below MinimumAmount
                   (TargetAmount when no minimum is set)

SEE ALSO:
  - ledger/funding.go: target CRUD
  - ledger/balance.go: projected available balances
*/
package planning

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/envelope-ledger/ledger"
)

// DefaultPaychecksPerMonth is used when a schedule does not set one.
const DefaultPaychecksPerMonth = 2

type Schedule struct {
	PaychecksPerMonth int
}

type Line struct {
	TargetID     string
	EnvelopeID   string
	EnvelopeName string
	TargetType   ledger.TargetType

	Available   decimal.Decimal
	Monthly     decimal.Decimal
	PerPaycheck decimal.Decimal
	Floor       decimal.Decimal // balance below which the envelope is short
	Needed      decimal.Decimal
	Underfunded bool
}

type Report struct {
	PaychecksPerMonth int
	Lines             []Line

	TotalMonthly     decimal.Decimal
	TotalPerPaycheck decimal.Decimal
	TotalNeeded      decimal.Decimal
	Underfunded      int
}

// Build computes the report for every active target. Targets whose
// envelope has no projection count as holding zero.
func Build(targets []ledger.FundingTarget, envelopes []ledger.BalanceByStatus, s Schedule) (Report, error) {
	paychecks := s.PaychecksPerMonth
	if paychecks == 0 {
		paychecks = DefaultPaychecksPerMonth
	}
	if paychecks < 0 {
		return Report{}, fmt.Errorf("paychecks per month must be positive, got %d", paychecks)
	}

	byID := make(map[string]ledger.BalanceByStatus, len(envelopes))
	for _, e := range envelopes {
		byID[e.EntityID] = e
	}

	report := Report{
		PaychecksPerMonth: paychecks,
		TotalMonthly:      decimal.Zero,
		TotalPerPaycheck:  decimal.Zero,
		TotalNeeded:       decimal.Zero,
	}
	n := decimal.NewFromInt(int64(paychecks))

	for _, t := range targets {
		if !t.IsActive {
			continue
		}
		env := byID[t.EnvelopeID]
		line := Line{
			TargetID:     t.ID,
			EnvelopeID:   t.EnvelopeID,
			EnvelopeName: env.Name,
			TargetType:   t.TargetType,
			Available:    env.AvailableBalance,
		}

		switch t.TargetType {
		case ledger.TargetMonthlyMinimum:
			line.Monthly = t.TargetAmount
			line.PerPaycheck = t.TargetAmount.Div(n)
			line.Floor = t.TargetAmount
		case ledger.TargetPerPaycheck:
			line.PerPaycheck = t.TargetAmount
			line.Monthly = t.TargetAmount.Mul(n)
			line.Floor = line.Monthly
		case ledger.TargetMonthlyStipend:
			line.Monthly = t.TargetAmount
			line.PerPaycheck = t.TargetAmount.Div(n)
			line.Floor = t.TargetAmount
			if t.MinimumAmount != nil {
				line.Floor = *t.MinimumAmount
			}
		default:
			return Report{}, fmt.Errorf("target %s: unknown target type %q", t.ID, t.TargetType)
		}

		line.Monthly = ledger.RoundMoney(line.Monthly)
		line.PerPaycheck = ledger.RoundMoney(line.PerPaycheck)
		line.Needed = decimal.Max(decimal.Zero, line.Floor.Sub(line.Available))
		line.Underfunded = line.Available.LessThan(line.Floor)

		report.Lines = append(report.Lines, line)
		report.TotalMonthly = report.TotalMonthly.Add(line.Monthly)
		report.TotalPerPaycheck = report.TotalPerPaycheck.Add(line.PerPaycheck)
		report.TotalNeeded = report.TotalNeeded.Add(line.Needed)
		if line.Underfunded {
			report.Underfunded++
		}
	}

	sort.SliceStable(report.Lines, func(i, j int) bool {
		return report.Lines[i].EnvelopeName < report.Lines[j].EnvelopeName
	})
	return report, nil
}

// ForService loads targets and envelope balances from svc and builds the
// report.
func ForService(ctx context.Context, svc *ledger.Service, s Schedule) (Report, error) {
	targets, err := svc.ListFundingTargets(ctx)
	if err != nil {
		return Report{}, err
	}
	balances, err := svc.EnvelopeBalances(ctx)
	if err != nil {
		return Report{}, err
	}
	return Build(targets, balances, s)
}
