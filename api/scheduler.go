/*
scheduler.go - Periodic integrity validation

PURPOSE:
  Re-runs the integrity validator on a fixed interval so drift between an
  account balance and the sum of its envelopes is noticed without anyone
  calling GET /api/integrity.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Checks once immediately on start
  - Logs every discrepancy, publishes one integrity.discrepancy event per
    finding and records the count on a gauge
  - Never repairs: discrepancies are reported, not corrected

CONFIGURATION:
  - CheckInterval: How often to check (default: 10 minutes)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewIntegrityScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

  or, under an errgroup:
  g.Go(func() error { return scheduler.Run(ctx) })

SEE ALSO:
  - handlers.go: GetIntegrity endpoint (manual validation)
  - ledger/integrity.go: Validator
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/envelope-ledger/events"
	"github.com/warp/envelope-ledger/ledger"
)

// IntegrityScheduler handles periodic integrity validation.
type IntegrityScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool
	Logger        *slog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewIntegrityScheduler creates a new scheduler.
func NewIntegrityScheduler(handler *Handler) *IntegrityScheduler {
	return &IntegrityScheduler{
		Handler:       handler,
		CheckInterval: 10 * time.Minute,
		Enabled:       true,
		Logger:        handler.Logger.With("component", "scheduler"),
	}
}

// Start begins the scheduler.
func (s *IntegrityScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info("integrity scheduler disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.Logger.Info("integrity scheduler started", "interval", s.CheckInterval)
}

// Stop stops the scheduler and waits for an in-flight check to finish.
func (s *IntegrityScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Logger.Info("integrity scheduler stopped")
	}
}

// Run starts the scheduler and blocks until ctx is done.
func (s *IntegrityScheduler) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	s.Stop()
	return nil
}

func (s *IntegrityScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	// Run immediately on start
	s.check(context.Background())

	for {
		select {
		case <-ticker.C:
			s.check(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow triggers an immediate check and returns what it found.
func (s *IntegrityScheduler) RunNow(ctx context.Context) ([]ledger.Discrepancy, error) {
	return s.check(ctx)
}

// GetNextRunTime returns when the next scheduled check will occur.
func (s *IntegrityScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(s.CheckInterval)
}

func (s *IntegrityScheduler) check(ctx context.Context) ([]ledger.Discrepancy, error) {
	h := s.Handler
	found, err := h.Service.ValidateIntegrity(ctx)
	if err != nil {
		s.Logger.Error("integrity check failed", "error", err)
		return nil, err
	}
	if h.Metrics != nil {
		h.Metrics.ObserveIntegrity(len(found), time.Now())
	}
	if len(found) == 0 {
		s.Logger.Debug("integrity check passed")
		return found, nil
	}

	for _, d := range found {
		s.Logger.Warn("integrity discrepancy",
			"account_id", d.AccountID,
			"account", d.AccountName,
			"account_balance", d.AccountBalance.StringFixed(ledger.MoneyPlaces),
			"envelope_total", d.EnvelopeTotal.StringFixed(ledger.MoneyPlaces),
			"difference", d.Difference.StringFixed(ledger.MoneyPlaces))
	}
	for _, dto := range toIntegrityReport(found).Discrepancies {
		h.publish(ctx, events.TypeIntegrityDiscrepancy, dto)
	}
	return found, nil
}
