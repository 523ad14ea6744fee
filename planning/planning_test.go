package planning_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/envelope-ledger/ledger"
	memstore "github.com/warp/envelope-ledger/ledger/store"
	"github.com/warp/envelope-ledger/logging"
	"github.com/warp/envelope-ledger/planning"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func envelope(id, name, available string) ledger.BalanceByStatus {
	return ledger.BalanceByStatus{Kind: ledger.KindEnvelope, EntityID: id, Name: name, AvailableBalance: d(available)}
}

func TestBuild_TargetTypes(t *testing.T) {
	minimum := d("40")
	targets := []ledger.FundingTarget{
		{ID: "t1", EnvelopeID: "rent", TargetType: ledger.TargetMonthlyMinimum, TargetAmount: d("1200"), IsActive: true},
		{ID: "t2", EnvelopeID: "savings", TargetType: ledger.TargetPerPaycheck, TargetAmount: d("150"), IsActive: true},
		{ID: "t3", EnvelopeID: "fun", TargetType: ledger.TargetMonthlyStipend, TargetAmount: d("100"), MinimumAmount: &minimum, IsActive: true},
		{ID: "t4", EnvelopeID: "rent", TargetType: ledger.TargetPerPaycheck, TargetAmount: d("999"), IsActive: false},
	}
	balances := []ledger.BalanceByStatus{
		envelope("rent", "Rent", "1000"),
		envelope("savings", "Savings", "500"),
		envelope("fun", "Fun Money", "55"),
	}

	report, err := planning.Build(targets, balances, planning.Schedule{PaychecksPerMonth: 2})
	require.NoError(t, err)
	require.Len(t, report.Lines, 3, "inactive target skipped")

	fun, rent, savings := report.Lines[0], report.Lines[1], report.Lines[2]

	// GIVEN: Rent holds 1000 of a 1200 minimum
	assert.Equal(t, "Rent", rent.EnvelopeName)
	assert.Equal(t, "600.00", rent.PerPaycheck.StringFixed(2))
	assert.Equal(t, "200.00", rent.Needed.StringFixed(2))
	assert.True(t, rent.Underfunded)

	// GIVEN: 150 per paycheck, two paychecks, 500 held
	assert.Equal(t, "300.00", savings.Monthly.StringFixed(2))
	assert.Equal(t, "0.00", savings.Needed.StringFixed(2))
	assert.False(t, savings.Underfunded)

	// GIVEN: stipend of 100 with a floor of 40, 55 held
	assert.Equal(t, "40.00", fun.Floor.StringFixed(2))
	assert.False(t, fun.Underfunded)

	assert.Equal(t, "1600.00", report.TotalMonthly.StringFixed(2))
	assert.Equal(t, "200.00", report.TotalNeeded.StringFixed(2))
	assert.Equal(t, 1, report.Underfunded)
}

func TestBuild_StipendWithoutMinimumUsesTarget(t *testing.T) {
	targets := []ledger.FundingTarget{
		{ID: "t", EnvelopeID: "fun", TargetType: ledger.TargetMonthlyStipend, TargetAmount: d("100"), IsActive: true},
	}
	report, err := planning.Build(targets, []ledger.BalanceByStatus{envelope("fun", "Fun", "99.99")}, planning.Schedule{})
	require.NoError(t, err)
	assert.Equal(t, planning.DefaultPaychecksPerMonth, report.PaychecksPerMonth)
	assert.True(t, report.Lines[0].Underfunded)
	assert.Equal(t, "0.01", report.Lines[0].Needed.StringFixed(2))
}

func TestBuild_MissingEnvelopeCountsAsZero(t *testing.T) {
	targets := []ledger.FundingTarget{
		{ID: "t", EnvelopeID: "gone", TargetType: ledger.TargetMonthlyMinimum, TargetAmount: d("50"), IsActive: true},
	}
	report, err := planning.Build(targets, nil, planning.Schedule{PaychecksPerMonth: 4})
	require.NoError(t, err)
	assert.Equal(t, "50.00", report.Lines[0].Needed.StringFixed(2))
	assert.Equal(t, "12.50", report.Lines[0].PerPaycheck.StringFixed(2))
}

func TestBuild_RejectsBadInput(t *testing.T) {
	_, err := planning.Build(nil, nil, planning.Schedule{PaychecksPerMonth: -1})
	assert.Error(t, err)

	_, err = planning.Build([]ledger.FundingTarget{{ID: "t", TargetType: "weekly", IsActive: true}}, nil, planning.Schedule{})
	assert.Error(t, err)
}

func TestForService(t *testing.T) {
	ctx := context.Background()
	svc := ledger.NewService(memstore.NewTxMemory(), ledger.WithLogger(logging.Discard()))

	acct, err := svc.CreateAccount(ctx, ledger.CreateAccountInput{Name: "Checking", Type: ledger.AccountChecking, InitialBalance: d("1000")})
	require.NoError(t, err)
	opening := d("250")
	groceries, err := svc.CreateEnvelope(ctx, ledger.CreateEnvelopeInput{Name: "Groceries", AccountID: acct.ID, CurrentBalance: &opening})
	require.NoError(t, err)
	_, err = svc.CreateFundingTarget(ctx, ledger.FundingTargetInput{
		EnvelopeID: groceries.ID, TargetType: ledger.TargetMonthlyMinimum, TargetAmount: d("400"),
	})
	require.NoError(t, err)

	report, err := planning.ForService(ctx, svc, planning.Schedule{PaychecksPerMonth: 2})
	require.NoError(t, err)
	require.Len(t, report.Lines, 1)
	assert.Equal(t, "Groceries", report.Lines[0].EnvelopeName)
	assert.Equal(t, "150.00", report.Lines[0].Needed.StringFixed(2))
}
