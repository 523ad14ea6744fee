/*
lifecycle.go - Account and envelope lifecycle

PURPOSE:
  Creates accounts together with their Unassigned envelope, keeps the pair
  consistent through renames and deletes, and repairs accounts that lost
  their catch-all envelope.

CREATE ACCOUNT (one WithTx, all-or-nothing):
  1. insert the account
  2. derive envelope type (debt for credit_card, cash otherwise)
  3. insert "Unassigned <name>" with the same balance
  4. when the balance is non-zero, insert an opening transaction on that
     envelope so the projection stays authoritative once activity starts

DELETE ACCOUNT:
  Envelopes first, then the account, in one WithTx, even though the store
  also cascades.

ENVELOPES:
  Names starting with "Unassigned" are reserved. A non-zero opening balance
  on a new envelope is funded from the Unassigned envelope via a transfer,
  so creating an envelope never creates money. CurrentBalance is never
  written after creation.
*/
package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ACCOUNTS
// =============================================================================

type CreateAccountInput struct {
	Name           string
	Type           AccountType
	InitialBalance decimal.Decimal
	CurrentBalance *decimal.Decimal // defaults to InitialBalance
}

type AccountPatch struct {
	Name *string
}

// CreateAccount inserts an account and its Unassigned envelope atomically.
func (s *Service) CreateAccount(ctx context.Context, in CreateAccountInput) (*Account, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name", "must not be empty")
	}
	if !in.Type.Valid() {
		return nil, invalid("type", "unknown account type %q", in.Type)
	}
	initial := RoundMoney(in.InitialBalance)
	current := initial
	if in.CurrentBalance != nil {
		current = RoundMoney(*in.CurrentBalance)
	}

	now := s.now()
	account := Account{
		ID:             s.newID(),
		Name:           name,
		Type:           in.Type,
		InitialBalance: initial,
		CurrentBalance: current,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	unassigned := Envelope{
		ID:             s.newID(),
		Name:           UnassignedName(name),
		AccountID:      account.ID,
		Type:           in.Type.EnvelopeType(),
		CurrentBalance: current,
		Description:    fmt.Sprintf("Unassigned funds for %s", name),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.store.WithTx(ctx, func(st Store) error {
		if err := st.InsertAccount(ctx, account); err != nil {
			return err
		}
		if err := st.InsertEnvelope(ctx, unassigned); err != nil {
			return err
		}
		if current.IsZero() {
			return nil
		}
		return st.InsertTransaction(ctx, Transaction{
			ID:          s.newID(),
			AccountID:   account.ID,
			EnvelopeID:  unassigned.ID,
			Amount:      current,
			Date:        dateOnly(now),
			Status:      in.Type.SettledStatus(),
			Description: "Opening balance",
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "account created",
		"account_id", account.ID,
		"account_type", account.Type,
		"balance", current.StringFixed(MoneyPlaces))
	return &account, nil
}

func (s *Service) GetAccount(ctx context.Context, id string) (*Account, error) {
	return loadAccount(ctx, s.store, id)
}

func (s *Service) ListAccounts(ctx context.Context) ([]Account, error) {
	return s.store.ListAccounts(ctx)
}

// UpdateAccount renames an account and its Unassigned envelope together.
func (s *Service) UpdateAccount(ctx context.Context, id string, patch AccountPatch) (*Account, error) {
	var updated Account
	err := s.store.WithTx(ctx, func(st Store) error {
		a, err := loadAccount(ctx, st, id)
		if err != nil {
			return err
		}
		updated = *a
		if patch.Name == nil {
			return nil
		}
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return invalid("name", "must not be empty")
		}
		if name == a.Name {
			return nil
		}

		unassigned, err := findUnassigned(ctx, st, *a)
		if err != nil {
			return err
		}
		now := s.now()
		updated.Name = name
		updated.UpdatedAt = now
		if err := st.UpdateAccount(ctx, updated); err != nil {
			return err
		}
		if unassigned == nil {
			return nil
		}
		unassigned.Name = UnassignedName(name)
		unassigned.UpdatedAt = now
		return st.UpdateEnvelope(ctx, *unassigned)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteAccount removes the account, its envelopes and (by cascade) their
// transactions. Returns false when the account does not exist.
func (s *Service) DeleteAccount(ctx context.Context, id string) (bool, error) {
	deleted := false
	err := s.store.WithTx(ctx, func(st Store) error {
		a, err := st.GetAccount(ctx, id)
		if err != nil || a == nil {
			return err
		}
		if err := st.DeleteEnvelopesByAccount(ctx, id); err != nil {
			return err
		}
		if err := st.DeleteAccount(ctx, id); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if deleted {
		s.logger.InfoContext(ctx, "account deleted", "account_id", id)
	}
	return deleted, nil
}

// =============================================================================
// ENVELOPES
// =============================================================================

type CreateEnvelopeInput struct {
	Name           string
	AccountID      string
	Type           EnvelopeType // empty derives from the account
	CurrentBalance *decimal.Decimal
	SpendingLimit  *decimal.Decimal
	Description    string
}

type EnvelopePatch struct {
	Name               *string
	SpendingLimit      *decimal.Decimal
	ClearSpendingLimit bool
	Description        *string
}

// CreateEnvelope adds an envelope to an account. A positive opening balance
// is moved out of the account's Unassigned envelope.
func (s *Service) CreateEnvelope(ctx context.Context, in CreateEnvelopeInput) (*Envelope, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name", "must not be empty")
	}
	if IsReservedName(name) {
		return nil, invalidWith(ErrReservedEnvelope, "name", "%q is reserved for the account's catch-all envelope", name)
	}
	opening := decimal.Zero
	if in.CurrentBalance != nil {
		opening = RoundMoney(*in.CurrentBalance)
	}
	if opening.IsNegative() {
		return nil, invalid("current_balance", "must not be negative, got %s", opening)
	}
	if in.SpendingLimit != nil && in.SpendingLimit.IsNegative() {
		return nil, invalid("spending_limit", "must not be negative, got %s", in.SpendingLimit)
	}

	var envelope Envelope
	err := s.store.WithTx(ctx, func(st Store) error {
		account, err := loadAccount(ctx, st, in.AccountID)
		if err != nil {
			return err
		}
		envType := in.Type
		if envType == "" {
			envType = account.Type.EnvelopeType()
		}
		if !envType.Valid() {
			return invalid("type", "unknown envelope type %q", envType)
		}
		if envType != account.Type.EnvelopeType() {
			return invalid("type", "account %q (%s) only holds %s envelopes, got %s",
				account.Name, account.Type, account.Type.EnvelopeType(), envType)
		}

		siblings, err := st.ListEnvelopes(ctx, account.ID)
		if err != nil {
			return err
		}
		var unassigned *Envelope
		for i := range siblings {
			if strings.EqualFold(siblings[i].Name, name) {
				return invalid("name", "account %q already has an envelope named %q", account.Name, siblings[i].Name)
			}
			if siblings[i].IsUnassignedFor(*account) {
				unassigned = &siblings[i]
			}
		}

		now := s.now()
		envelope = Envelope{
			ID:             s.newID(),
			Name:           name,
			AccountID:      account.ID,
			Type:           envType,
			CurrentBalance: opening,
			SpendingLimit:  roundPtr(in.SpendingLimit),
			Description:    in.Description,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := st.InsertEnvelope(ctx, envelope); err != nil {
			return err
		}
		if opening.IsZero() {
			return nil
		}

		if unassigned == nil {
			return invalid("current_balance", "account %q has no Unassigned envelope to fund from", account.Name)
		}
		if err := s.checkFunds(ctx, st, *unassigned, opening); err != nil {
			return err
		}
		date := dateOnly(now)
		if err := s.insertPair(ctx, st, now, date, account.Type.SettledStatus(),
			pairLeg{*unassigned, "Transfer to " + name + ": Opening balance"},
			pairLeg{envelope, "Transfer from " + unassigned.Name + ": Opening balance"}, opening); err != nil {
			return err
		}
		return st.InsertEnvelopeTransfer(ctx, EnvelopeTransfer{
			ID:             s.newID(),
			FromEnvelopeID: unassigned.ID,
			ToEnvelopeID:   envelope.ID,
			Amount:         opening,
			Date:           date,
			Description:    "Opening balance",
			CreatedAt:      now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "envelope created",
		"envelope_id", envelope.ID,
		"account_id", envelope.AccountID,
		"opening_balance", opening.StringFixed(MoneyPlaces))
	return &envelope, nil
}

func (s *Service) GetEnvelope(ctx context.Context, id string) (*Envelope, error) {
	return loadEnvelope(ctx, s.store, id)
}

// ListEnvelopes lists envelopes of one account, or all when accountID is "".
func (s *Service) ListEnvelopes(ctx context.Context, accountID string) ([]Envelope, error) {
	return s.store.ListEnvelopes(ctx, accountID)
}

// UpdateEnvelope applies patch. It returns (nil, nil) when the envelope does
// not exist. Balances cannot be patched.
func (s *Service) UpdateEnvelope(ctx context.Context, id string, patch EnvelopePatch) (*Envelope, error) {
	var updated *Envelope
	err := s.store.WithTx(ctx, func(st Store) error {
		e, err := st.GetEnvelope(ctx, id)
		if err != nil || e == nil {
			return err
		}
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				return invalid("name", "must not be empty")
			}
			if name != e.Name && (IsReservedName(e.Name) || IsReservedName(name)) {
				return invalidWith(ErrReservedEnvelope, "name", "cannot rename %q to %q", e.Name, name)
			}
			e.Name = name
		}
		if patch.ClearSpendingLimit {
			e.SpendingLimit = nil
		} else if patch.SpendingLimit != nil {
			if patch.SpendingLimit.IsNegative() {
				return invalid("spending_limit", "must not be negative, got %s", patch.SpendingLimit)
			}
			e.SpendingLimit = roundPtr(patch.SpendingLimit)
		}
		if patch.Description != nil {
			e.Description = *patch.Description
		}
		e.UpdatedAt = s.now()
		if err := st.UpdateEnvelope(ctx, *e); err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteEnvelope removes an envelope and its transactions. Unassigned
// envelopes are refused. Returns false when the envelope does not exist.
func (s *Service) DeleteEnvelope(ctx context.Context, id string) (bool, error) {
	deleted := false
	err := s.store.WithTx(ctx, func(st Store) error {
		e, err := st.GetEnvelope(ctx, id)
		if err != nil || e == nil {
			return err
		}
		if IsReservedName(e.Name) {
			return invalidWith(ErrReservedEnvelope, "id", "envelope %q cannot be deleted", e.Name)
		}
		if err := st.DeleteEnvelope(ctx, id); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}

// CreateMissingUnassignedEnvelopes gives every account lacking a catch-all
// envelope a new one holding account balance minus the envelopes' sum.
// Running it twice creates nothing the second time.
//
// Balances are written as opening transactions, never left in the cached
// CurrentBalance alone: envelopes of the repaired account that still live on
// their cached balance get an opening transaction for it, and the new
// Unassigned envelope gets one for the difference. The account's available
// balance is unchanged by the repair.
func (s *Service) CreateMissingUnassignedEnvelopes(ctx context.Context) ([]Envelope, error) {
	var created []Envelope
	err := s.store.WithTx(ctx, func(st Store) error {
		accounts, err := st.ListAccounts(ctx)
		if err != nil {
			return err
		}
		envelopes, err := st.ListEnvelopes(ctx, "")
		if err != nil {
			return err
		}
		projector := NewProjector(st)
		accountBalances, err := projector.AllAccounts(ctx)
		if err != nil {
			return err
		}
		envelopeBalances, err := projector.AllEnvelopes(ctx)
		if err != nil {
			return err
		}

		available := make(map[string]decimal.Decimal, len(accountBalances))
		for _, b := range accountBalances {
			available[b.EntityID] = b.AvailableBalance
		}
		cachedOnly := make(map[string][]BalanceByStatus)
		for _, b := range envelopeBalances {
			available[b.AccountID] = available[b.AccountID].Sub(b.AvailableBalance)
			if b.TransactionCount == 0 && !b.AvailableBalance.IsZero() {
				cachedOnly[b.AccountID] = append(cachedOnly[b.AccountID], b)
			}
		}
		hasUnassigned := make(map[string]bool)
		for _, e := range envelopes {
			hasUnassigned[e.AccountID] = hasUnassigned[e.AccountID] || IsReservedName(e.Name)
		}

		now := s.now()
		date := dateOnly(now)
		opening := func(a Account, envelopeID string, amount decimal.Decimal) error {
			return st.InsertTransaction(ctx, Transaction{
				ID:          s.newID(),
				AccountID:   a.ID,
				EnvelopeID:  envelopeID,
				Amount:      amount,
				Date:        date,
				Status:      a.Type.SettledStatus(),
				Description: "Opening balance",
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
		for _, a := range accounts {
			if hasUnassigned[a.ID] {
				continue
			}
			for _, b := range cachedOnly[a.ID] {
				if err := opening(a, b.EntityID, RoundMoney(b.AvailableBalance)); err != nil {
					return err
				}
			}
			balance := RoundMoney(available[a.ID])
			e := Envelope{
				ID:             s.newID(),
				Name:           UnassignedName(a.Name),
				AccountID:      a.ID,
				Type:           a.Type.EnvelopeType(),
				CurrentBalance: balance,
				Description:    fmt.Sprintf("Unassigned funds for %s", a.Name),
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := st.InsertEnvelope(ctx, e); err != nil {
				return err
			}
			if !balance.IsZero() {
				if err := opening(a, e.ID, balance); err != nil {
					return err
				}
			}
			created = append(created, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(created) > 0 {
		s.logger.InfoContext(ctx, "created missing unassigned envelopes", "count", len(created))
	}
	return created, nil
}

func roundPtr(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	r := RoundMoney(*d)
	return &r
}
