/*
errors.go - Centralized error types for the ledger

ERROR CATEGORIES:
  1. Not found   - referenced account/envelope/transaction does not exist
  2. Validation  - rejected before any write (status legality, type
                   mismatch, allocation mismatch, cross-account transfer)
  3. Funds       - requested amount exceeds the projected available balance
  4. Store       - propagated unchanged from the store, never retried

Integrity discrepancies are NOT errors: the validator reports them as data.

USAGE:
  if errors.Is(err, ledger.ErrInsufficientFunds) {
      var fe *ledger.InsufficientFundsError
      errors.As(err, &fe) // fe.Available, fe.Requested
  }
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrCrossAccount is returned when an envelope transfer spans two accounts.
	ErrCrossAccount = errors.New("envelopes belong to different accounts")

	// ErrAllocationMismatch is returned when payment allocations do not add
	// up to the payment total.
	ErrAllocationMismatch = errors.New("allocations do not match payment total")

	// ErrInvalidStatus is returned when a status is not legal for the
	// account type.
	ErrInvalidStatus = errors.New("invalid status for account type")

	// ErrReservedEnvelope is returned when a caller tries to create, rename
	// or delete an Unassigned envelope.
	ErrReservedEnvelope = errors.New("unassigned envelope is reserved")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing entity.
type NotFoundError struct {
	Kind string // "account", "envelope", "transaction", ...
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func notFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// ValidationError describes a rejected precondition. Err, when set, is a
// more specific sentinel (ErrCrossAccount, ErrAllocationMismatch, ...).
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// Unwrap exposes both ErrValidation and the specific sentinel.
func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrValidation, e.Err}
	}
	return []error{ErrValidation}
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func invalidWith(sentinel error, field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Err: sentinel}
}

// InsufficientFundsError carries both figures so callers can act on it.
type InsufficientFundsError struct {
	EnvelopeID   string
	EnvelopeName string
	Available    decimal.Decimal
	Requested    decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds in envelope %q: available %s, requested %s",
		e.EnvelopeName, e.Available.StringFixed(MoneyPlaces), e.Requested.StringFixed(MoneyPlaces))
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientFunds)
}
