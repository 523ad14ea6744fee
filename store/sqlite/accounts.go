package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/warp/envelope-ledger/ledger"
)

// =============================================================================
// ACCOUNTS
// =============================================================================

const accountColumns = `id, name, type, initial_balance_cents, current_balance_cents, created_at, updated_at`

func (s *queries) InsertAccount(ctx context.Context, a ledger.Account) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, string(a.Type),
		toCents(a.InitialBalance), toCents(a.CurrentBalance),
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

func (s *queries) UpdateAccount(ctx context.Context, a ledger.Account) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE accounts
		SET name = ?, type = ?, initial_balance_cents = ?, current_balance_cents = ?, updated_at = ?
		WHERE id = ?`,
		a.Name, string(a.Type), toCents(a.InitialBalance), toCents(a.CurrentBalance),
		formatTime(a.UpdatedAt), a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	return nil
}

func (s *queries) DeleteAccount(ctx context.Context, id string) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}

func (s *queries) GetAccount(ctx context.Context, id string) (*ledger.Account, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *queries) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (ledger.Account, error) {
	var (
		a                  ledger.Account
		typ                string
		initial, current   int64
		createdAt, updated string
	)
	if err := row.Scan(&a.ID, &a.Name, &typ, &initial, &current, &createdAt, &updated); err != nil {
		return a, err
	}
	a.Type = ledger.AccountType(typ)
	a.InitialBalance = fromCents(initial)
	a.CurrentBalance = fromCents(current)
	var td timeDecoder
	a.CreatedAt = td.time(createdAt)
	a.UpdatedAt = td.time(updated)
	return a, td.err
}

// =============================================================================
// ENVELOPES
// =============================================================================

const envelopeColumns = `id, name, account_id, type, current_balance_cents, spending_limit_cents, description, created_at, updated_at`

func (s *queries) InsertEnvelope(ctx context.Context, e ledger.Envelope) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO envelopes (`+envelopeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.AccountID, string(e.Type),
		toCents(e.CurrentBalance), nullCents(e.SpendingLimit), e.Description,
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("envelope %q already exists on account %s: %w", e.Name, e.AccountID, ledger.ErrValidation)
		}
		return fmt.Errorf("failed to insert envelope: %w", err)
	}
	return nil
}

// UpdateEnvelope writes name, spending limit and description. The stored
// balance is written once, at insert.
func (s *queries) UpdateEnvelope(ctx context.Context, e ledger.Envelope) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE envelopes
		SET name = ?, spending_limit_cents = ?, description = ?, updated_at = ?
		WHERE id = ?`,
		e.Name, nullCents(e.SpendingLimit), e.Description, formatTime(e.UpdatedAt), e.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("envelope %q already exists on account %s: %w", e.Name, e.AccountID, ledger.ErrValidation)
		}
		return fmt.Errorf("failed to update envelope: %w", err)
	}
	return nil
}

func (s *queries) DeleteEnvelope(ctx context.Context, id string) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM envelopes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete envelope: %w", err)
	}
	return nil
}

func (s *queries) DeleteEnvelopesByAccount(ctx context.Context, accountID string) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM envelopes WHERE account_id = ?`, accountID); err != nil {
		return fmt.Errorf("failed to delete envelopes: %w", err)
	}
	return nil
}

func (s *queries) GetEnvelope(ctx context.Context, id string) (*ledger.Envelope, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+envelopeColumns+` FROM envelopes WHERE id = ?`, id)
	e, err := scanEnvelope(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *queries) ListEnvelopes(ctx context.Context, accountID string) ([]ledger.Envelope, error) {
	query := `SELECT ` + envelopeColumns + ` FROM envelopes`
	var args []any
	if accountID != "" {
		query += ` WHERE account_id = ?`
		args = append(args, accountID)
	}
	query += ` ORDER BY name, id`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Envelope
	for rows.Next() {
		e, err := scanEnvelope(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEnvelope(row scanner) (ledger.Envelope, error) {
	var (
		e                  ledger.Envelope
		typ                string
		current            int64
		limit              sql.NullInt64
		createdAt, updated string
	)
	if err := row.Scan(&e.ID, &e.Name, &e.AccountID, &typ, &current, &limit, &e.Description, &createdAt, &updated); err != nil {
		return e, err
	}
	e.Type = ledger.EnvelopeType(typ)
	e.CurrentBalance = fromCents(current)
	e.SpendingLimit = centsPtr(limit)
	var td timeDecoder
	e.CreatedAt = td.time(createdAt)
	e.UpdatedAt = td.time(updated)
	return e, td.err
}
