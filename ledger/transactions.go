package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type CreateTransactionInput struct {
	AccountID   string
	EnvelopeID  string
	Amount      decimal.Decimal
	Date        time.Time
	Status      Status // empty means the account's settled status
	Description string
}

// TransactionPatch edits a transaction. Nil fields are left unchanged.
type TransactionPatch struct {
	EnvelopeID  *string
	Amount      *decimal.Decimal
	Date        *time.Time
	Status      *Status
	Description *string
}

// CreateTransaction records a manual transaction after checking the envelope
// belongs to the account and the status is legal for the account type.
func (s *Service) CreateTransaction(ctx context.Context, in CreateTransactionInput) (*Transaction, error) {
	amount := RoundMoney(in.Amount)
	if amount.IsZero() {
		return nil, invalid("amount", "must not be zero")
	}

	var tx Transaction
	err := s.store.WithTx(ctx, func(st Store) error {
		account, err := loadAccount(ctx, st, in.AccountID)
		if err != nil {
			return err
		}
		status := in.Status
		if status == "" {
			status = account.Type.SettledStatus()
		}
		now := s.now()
		tx = Transaction{
			ID:          s.newID(),
			AccountID:   account.ID,
			EnvelopeID:  in.EnvelopeID,
			Amount:      amount,
			Date:        dateOr(in.Date, now),
			Status:      status,
			Description: in.Description,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := checkTransaction(ctx, st, *account, tx); err != nil {
			return err
		}
		return st.InsertTransaction(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "transaction recorded",
		"transaction_id", tx.ID,
		"envelope_id", tx.EnvelopeID,
		"status", tx.Status,
		"amount", tx.Amount.StringFixed(MoneyPlaces))
	return &tx, nil
}

func (s *Service) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, notFound("transaction", id)
	}
	return tx, nil
}

// ListTransactions returns transactions matching filter in FIFO order.
func (s *Service) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	return s.store.ListTransactions(ctx, filter)
}

func (s *Service) UpdateTransaction(ctx context.Context, id string, patch TransactionPatch) (*Transaction, error) {
	var updated Transaction
	err := s.store.WithTx(ctx, func(st Store) error {
		tx, err := st.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if tx == nil {
			return notFound("transaction", id)
		}
		account, err := loadAccount(ctx, st, tx.AccountID)
		if err != nil {
			return err
		}
		if patch.EnvelopeID != nil {
			tx.EnvelopeID = *patch.EnvelopeID
		}
		if patch.Amount != nil {
			tx.Amount = RoundMoney(*patch.Amount)
			if tx.Amount.IsZero() {
				return invalid("amount", "must not be zero")
			}
		}
		if patch.Date != nil {
			tx.Date = dateOnly(*patch.Date)
		}
		if patch.Status != nil {
			tx.Status = *patch.Status
		}
		if patch.Description != nil {
			tx.Description = *patch.Description
		}
		if err := checkTransaction(ctx, st, *account, *tx); err != nil {
			return err
		}
		tx.UpdatedAt = s.now()
		if err := st.UpdateTransaction(ctx, *tx); err != nil {
			return err
		}
		updated = *tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteTransaction returns false when the transaction does not exist.
func (s *Service) DeleteTransaction(ctx context.Context, id string) (bool, error) {
	deleted := false
	err := s.store.WithTx(ctx, func(st Store) error {
		tx, err := st.GetTransaction(ctx, id)
		if err != nil || tx == nil {
			return err
		}
		if err := st.DeleteTransaction(ctx, id); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}

// ListEnvelopeTransfers returns the envelope-transfer audit trail.
func (s *Service) ListEnvelopeTransfers(ctx context.Context) ([]EnvelopeTransfer, error) {
	return s.store.ListEnvelopeTransfers(ctx)
}

func checkTransaction(ctx context.Context, st Store, account Account, tx Transaction) error {
	if !account.Type.AllowsStatus(tx.Status) {
		return invalidWith(ErrInvalidStatus, "status",
			"status %q is not allowed on %s account %q (allowed: %v)",
			tx.Status, account.Type, account.Name, account.Type.Statuses())
	}
	envelope, err := loadEnvelope(ctx, st, tx.EnvelopeID)
	if err != nil {
		return err
	}
	if envelope.AccountID != account.ID {
		return invalidWith(ErrCrossAccount, "envelope_id",
			"envelope %q does not belong to account %q", envelope.Name, account.Name)
	}
	return nil
}
