package ledger

import (
	"context"
	"log/slog"
	"time"
)

// Service is the ledger's command surface. It is bound to one store handle;
// switching data stores (profiles) means building another Service, which
// keeps concurrent operations on different handles independent.
type Service struct {
	store  TxStore
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the timestamp source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides id generation (tests).
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

func NewService(store TxStore, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "ledger")
	return s
}

// Store returns the bound store handle.
func (s *Service) Store() TxStore { return s.store }

// Projector returns a projector reading from the bound store.
func (s *Service) Projector() *Projector { return NewProjector(s.store) }

// AccountBalances is getAccountBalancesByStatus.
func (s *Service) AccountBalances(ctx context.Context) ([]BalanceByStatus, error) {
	return s.Projector().AllAccounts(ctx)
}

// EnvelopeBalances is getEnvelopeBalancesByStatus.
func (s *Service) EnvelopeBalances(ctx context.Context) ([]BalanceByStatus, error) {
	return s.Projector().AllEnvelopes(ctx)
}

// ValidateIntegrity runs the integrity validator against the bound store.
func (s *Service) ValidateIntegrity(ctx context.Context) ([]Discrepancy, error) {
	return NewValidator(s.store).Validate(ctx)
}

// loadAccount returns the account or a NotFoundError.
func loadAccount(ctx context.Context, st Store, id string) (*Account, error) {
	a, err := st.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, notFound("account", id)
	}
	return a, nil
}

// loadEnvelope returns the envelope or a NotFoundError.
func loadEnvelope(ctx context.Context, st Store, id string) (*Envelope, error) {
	e, err := st.GetEnvelope(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, notFound("envelope", id)
	}
	return e, nil
}

// findUnassigned returns the account's catch-all envelope, or nil.
func findUnassigned(ctx context.Context, st Store, a Account) (*Envelope, error) {
	envs, err := st.ListEnvelopes(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	for i := range envs {
		if envs[i].IsUnassignedFor(a) {
			return &envs[i], nil
		}
	}
	return nil, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// dateOr returns t as a date, or now's date when t is unset.
func dateOr(t, now time.Time) time.Time {
	if t.IsZero() {
		return dateOnly(now)
	}
	return dateOnly(t)
}

func annotate(prefix, description string) string {
	if description == "" {
		return prefix
	}
	return prefix + ": " + description
}
