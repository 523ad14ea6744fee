/*
Package events publishes ledger facts to the outside world.

PURPOSE:
  Downstream consumers (notifications, reporting) learn about committed
  ledger mutations through events. Publishing happens after the ledger
  transaction commits; a failed publish is logged by the caller and never
  undoes the mutation.

IMPLEMENTATIONS:
  - AMQPPublisher: JSON messages on a topic exchange, routing key = Type
  - Nop: used when no broker is configured
  - Recorder: keeps events in memory (tests, the demo API)
*/
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Event types. The type doubles as the AMQP routing key.
const (
	TypeAccountCreated       = "account.created"
	TypeAccountDeleted       = "account.deleted"
	TypeEnvelopeCreated      = "envelope.created"
	TypeEnvelopeDeleted      = "envelope.deleted"
	TypeTransactionCreated   = "transaction.created"
	TypeEnvelopeTransfer     = "transfer.envelope"
	TypeAccountTransfer      = "transfer.account"
	TypePaymentCreated       = "payment.created"
	TypeIntegrityDiscrepancy = "integrity.discrepancy"
	TypeUnassignedRepaired   = "integrity.unassigned_repaired"
)

type Event struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// New marshals data into an event stamped with the current time.
func New(eventType string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, OccurredAt: time.Now().UTC(), Data: raw}, nil
}

func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func FromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// =============================================================================
// NOP
// =============================================================================

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// =============================================================================
// RECORDER
// =============================================================================

// Recorder keeps every published event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of the recorded events in publish order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events with the given type.
func (r *Recorder) OfType(eventType string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
