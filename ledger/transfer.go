/*
transfer.go - Moving money between envelopes and accounts

PURPOSE:
  A transfer never edits a balance. It inserts a paired debit/credit
  transaction (both cleared) plus an audit row, so the projection stays the
  only source of truth.

ENVELOPE TRANSFER (same account):
  1. Load both envelopes                      -> NotFoundError
  2. from.AccountID != to.AccountID           -> ErrCrossAccount
  3. Read from's available balance (projection, not the cached field)
  4. amount > available                       -> InsufficientFundsError
  5. Insert debit, credit and EnvelopeTransfer in ONE WithTx

ACCOUNT TRANSFER (bank-like to bank-like):
  Same mechanics across two accounts; each envelope must belong to the
  account it is paired with. Credit cards are settled through payments.

Validation and writes share the same WithTx so the availability check and
the inserts see one consistent state.
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type TransferInput struct {
	FromEnvelopeID string
	ToEnvelopeID   string
	Amount         decimal.Decimal
	Date           time.Time
	Description    string
}

type AccountTransferInput struct {
	FromAccountID  string
	ToAccountID    string
	FromEnvelopeID string
	ToEnvelopeID   string
	Amount         decimal.Decimal
	Date           time.Time
	Description    string
}

// TransferBetweenEnvelopes moves money between two envelopes of one account.
func (s *Service) TransferBetweenEnvelopes(ctx context.Context, in TransferInput) (*EnvelopeTransfer, error) {
	amount := RoundMoney(in.Amount)
	if !amount.IsPositive() {
		return nil, invalid("amount", "must be greater than zero, got %s", in.Amount)
	}
	if in.FromEnvelopeID == in.ToEnvelopeID {
		return nil, invalid("to_envelope_id", "source and destination are the same envelope")
	}

	var transfer EnvelopeTransfer
	err := s.store.WithTx(ctx, func(st Store) error {
		from, err := loadEnvelope(ctx, st, in.FromEnvelopeID)
		if err != nil {
			return err
		}
		to, err := loadEnvelope(ctx, st, in.ToEnvelopeID)
		if err != nil {
			return err
		}
		if from.AccountID != to.AccountID {
			return invalidWith(ErrCrossAccount, "to_envelope_id",
				"envelope %q belongs to account %s, envelope %q to account %s",
				from.Name, from.AccountID, to.Name, to.AccountID)
		}
		account, err := loadAccount(ctx, st, from.AccountID)
		if err != nil {
			return err
		}
		if err := s.checkFunds(ctx, st, *from, amount); err != nil {
			return err
		}

		now := s.now()
		date := dateOr(in.Date, now)
		status := account.Type.SettledStatus()
		if err := s.insertPair(ctx, st, now, date, status, pairLeg{*from, annotate("Transfer to "+to.Name, in.Description)},
			pairLeg{*to, annotate("Transfer from "+from.Name, in.Description)}, amount); err != nil {
			return err
		}

		transfer = EnvelopeTransfer{
			ID:             s.newID(),
			FromEnvelopeID: from.ID,
			ToEnvelopeID:   to.ID,
			Amount:         amount,
			Date:           date,
			Description:    in.Description,
			CreatedAt:      now,
		}
		return st.InsertEnvelopeTransfer(ctx, transfer)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "envelope transfer recorded",
		"transfer_id", transfer.ID,
		"from_envelope_id", transfer.FromEnvelopeID,
		"to_envelope_id", transfer.ToEnvelopeID,
		"amount", transfer.Amount.StringFixed(MoneyPlaces))
	return &transfer, nil
}

// TransferBetweenAccounts moves money between envelopes of two bank-like
// accounts.
func (s *Service) TransferBetweenAccounts(ctx context.Context, in AccountTransferInput) (*AccountTransfer, error) {
	amount := RoundMoney(in.Amount)
	if !amount.IsPositive() {
		return nil, invalid("amount", "must be greater than zero, got %s", in.Amount)
	}
	if in.FromAccountID == in.ToAccountID {
		return nil, invalid("to_account_id", "use an envelope transfer within one account")
	}

	var transfer AccountTransfer
	err := s.store.WithTx(ctx, func(st Store) error {
		fromAcct, err := loadAccount(ctx, st, in.FromAccountID)
		if err != nil {
			return err
		}
		toAcct, err := loadAccount(ctx, st, in.ToAccountID)
		if err != nil {
			return err
		}
		for _, a := range []*Account{fromAcct, toAcct} {
			if a.Type.IsCreditCard() {
				return invalid("account", "account %q is a credit card; use a credit-card payment", a.Name)
			}
		}
		from, err := loadEnvelope(ctx, st, in.FromEnvelopeID)
		if err != nil {
			return err
		}
		to, err := loadEnvelope(ctx, st, in.ToEnvelopeID)
		if err != nil {
			return err
		}
		if from.AccountID != fromAcct.ID {
			return invalid("from_envelope_id", "envelope %q does not belong to account %q", from.Name, fromAcct.Name)
		}
		if to.AccountID != toAcct.ID {
			return invalid("to_envelope_id", "envelope %q does not belong to account %q", to.Name, toAcct.Name)
		}
		if err := s.checkFunds(ctx, st, *from, amount); err != nil {
			return err
		}

		now := s.now()
		date := dateOr(in.Date, now)
		if err := s.insertPair(ctx, st, now, date, StatusCleared,
			pairLeg{*from, annotate("Transfer to "+toAcct.Name+" / "+to.Name, in.Description)},
			pairLeg{*to, annotate("Transfer from "+fromAcct.Name+" / "+from.Name, in.Description)}, amount); err != nil {
			return err
		}

		transfer = AccountTransfer{
			ID:             s.newID(),
			FromAccountID:  fromAcct.ID,
			ToAccountID:    toAcct.ID,
			FromEnvelopeID: from.ID,
			ToEnvelopeID:   to.ID,
			Amount:         amount,
			Date:           date,
			Description:    in.Description,
			CreatedAt:      now,
		}
		return st.InsertAccountTransfer(ctx, transfer)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "account transfer recorded",
		"transfer_id", transfer.ID,
		"from_account_id", transfer.FromAccountID,
		"to_account_id", transfer.ToAccountID,
		"amount", transfer.Amount.StringFixed(MoneyPlaces))
	return &transfer, nil
}

// checkFunds rejects amount when it exceeds the envelope's projected
// available balance.
func (s *Service) checkFunds(ctx context.Context, st Store, e Envelope, amount decimal.Decimal) error {
	available, err := NewProjector(st).Available(ctx, e.ID)
	if err != nil {
		return err
	}
	if amount.GreaterThan(available) {
		return &InsufficientFundsError{
			EnvelopeID:   e.ID,
			EnvelopeName: e.Name,
			Available:    available,
			Requested:    amount,
		}
	}
	return nil
}

type pairLeg struct {
	envelope    Envelope
	description string
}

// insertPair writes -amount on from and +amount on to.
func (s *Service) insertPair(ctx context.Context, st Store, now, date time.Time, status Status, from, to pairLeg, amount decimal.Decimal) error {
	debit := Transaction{
		ID:          s.newID(),
		AccountID:   from.envelope.AccountID,
		EnvelopeID:  from.envelope.ID,
		Amount:      amount.Neg(),
		Date:        date,
		Status:      status,
		Description: from.description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	credit := Transaction{
		ID:          s.newID(),
		AccountID:   to.envelope.AccountID,
		EnvelopeID:  to.envelope.ID,
		Amount:      amount,
		Date:        date,
		Status:      status,
		Description: to.description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := st.InsertTransaction(ctx, debit); err != nil {
		return err
	}
	return st.InsertTransaction(ctx, credit)
}
