package api

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/envelope-ledger/events"
	"github.com/warp/envelope-ledger/ledger"
)

func TestIntegrityScheduler_RunNowCleanLedger(t *testing.T) {
	ts := newTestServer(t)
	ts.createAccount(t, "Checking", "checking", "100")

	s := NewIntegrityScheduler(ts.handler)
	found, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Empty(t, found)

	assert.Equal(t, 1.0, testutil.ToFloat64(ts.handler.Metrics.IntegrityRuns))
	assert.Equal(t, 0.0, testutil.ToFloat64(ts.handler.Metrics.IntegrityDrift))
	assert.Empty(t, ts.recorder.OfType(events.TypeIntegrityDiscrepancy))
}

func TestIntegrityScheduler_PublishesEachDiscrepancy(t *testing.T) {
	// GIVEN: two accounts whose balances are not held by any envelope
	ts := newTestServer(t)
	ctx := context.Background()
	for _, name := range []string{"Orphan A", "Orphan B"} {
		require.NoError(t, ts.store.InsertAccount(ctx, ledger.Account{
			ID: "acct-" + name, Name: name, Type: ledger.AccountSavings,
			CurrentBalance: decimal.NewFromInt(25),
		}))
	}

	// WHEN: the scheduler checks
	found, err := NewIntegrityScheduler(ts.handler).RunNow(ctx)
	require.NoError(t, err)

	// THEN: both are reported, published and counted
	assert.Len(t, found, 2)
	assert.Len(t, ts.recorder.OfType(events.TypeIntegrityDiscrepancy), 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(ts.handler.Metrics.IntegrityDrift))

	// AND: nothing was repaired
	again, err := ts.handler.Service.ValidateIntegrity(ctx)
	require.NoError(t, err)
	assert.Len(t, again, 2)
}

func TestIntegrityScheduler_StartStop(t *testing.T) {
	ts := newTestServer(t)
	s := NewIntegrityScheduler(ts.handler)
	s.CheckInterval = time.Hour

	s.Start()
	s.Start() // second start is a no-op
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(ts.handler.Metrics.IntegrityRuns) >= 1
	}, time.Second, 10*time.Millisecond, "first check runs immediately")
	s.Stop()
	s.Stop()
}

func TestIntegrityScheduler_DisabledDoesNotRun(t *testing.T) {
	ts := newTestServer(t)
	s := NewIntegrityScheduler(ts.handler)
	s.Enabled = false

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Run(ctx))
	assert.Equal(t, 0.0, testutil.ToFloat64(ts.handler.Metrics.IntegrityRuns))
}
