package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/warp/envelope-ledger/ledger"
)

// =============================================================================
// TRANSACTIONS
// =============================================================================

const transactionColumns = `id, account_id, envelope_id, amount_cents, date, status, description, created_at, updated_at`

func (s *queries) InsertTransaction(ctx context.Context, tx ledger.Transaction) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.AccountID, tx.EnvelopeID, toCents(tx.Amount),
		formatDate(tx.Date), string(tx.Status), tx.Description,
		formatTime(tx.CreatedAt), formatTime(tx.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// UpdateTransaction rewrites every mutable column. created_at is kept, which
// preserves the row's FIFO position.
func (s *queries) UpdateTransaction(ctx context.Context, tx ledger.Transaction) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE transactions
		SET account_id = ?, envelope_id = ?, amount_cents = ?, date = ?, status = ?,
		    description = ?, updated_at = ?
		WHERE id = ?`,
		tx.AccountID, tx.EnvelopeID, toCents(tx.Amount), formatDate(tx.Date),
		string(tx.Status), tx.Description, formatTime(tx.UpdatedAt), tx.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return nil
}

func (s *queries) DeleteTransaction(ctx context.Context, id string) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}

func (s *queries) GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// ListTransactions returns matching rows oldest first: date, then creation
// time, then id.
func (s *queries) ListTransactions(ctx context.Context, f ledger.TransactionFilter) ([]ledger.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if f.AccountID != "" {
		where = append(where, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.EnvelopeID != "" {
		where = append(where, "envelope_id = ?")
		args = append(args, f.EnvelopeID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY date ASC, created_at ASC, id ASC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func scanTransaction(row scanner) (ledger.Transaction, error) {
	var (
		tx                   ledger.Transaction
		amount               int64
		date, status         string
		createdAt, updatedAt string
	)
	if err := row.Scan(&tx.ID, &tx.AccountID, &tx.EnvelopeID, &amount, &date, &status,
		&tx.Description, &createdAt, &updatedAt); err != nil {
		return tx, err
	}
	tx.Amount = fromCents(amount)
	var td timeDecoder
	tx.Date = td.date(date)
	tx.Status = ledger.Status(status)
	tx.CreatedAt = td.time(createdAt)
	tx.UpdatedAt = td.time(updatedAt)
	return tx, td.err
}

// =============================================================================
// TRANSFERS
// =============================================================================

func (s *queries) InsertEnvelopeTransfer(ctx context.Context, t ledger.EnvelopeTransfer) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO envelope_transfers
		(id, from_envelope_id, to_envelope_id, amount_cents, date, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.FromEnvelopeID, t.ToEnvelopeID, toCents(t.Amount),
		formatDate(t.Date), t.Description, formatTime(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert envelope transfer: %w", err)
	}
	return nil
}

func (s *queries) ListEnvelopeTransfers(ctx context.Context) ([]ledger.EnvelopeTransfer, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, from_envelope_id, to_envelope_id, amount_cents, date, description, created_at
		FROM envelope_transfers
		ORDER BY date ASC, created_at ASC, rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.EnvelopeTransfer
	for rows.Next() {
		var (
			t               ledger.EnvelopeTransfer
			amount          int64
			date, createdAt string
		)
		if err := rows.Scan(&t.ID, &t.FromEnvelopeID, &t.ToEnvelopeID, &amount, &date, &t.Description, &createdAt); err != nil {
			return nil, err
		}
		t.Amount = fromCents(amount)
		var td timeDecoder
		t.Date = td.date(date)
		t.CreatedAt = td.time(createdAt)
		if td.err != nil {
			return nil, td.err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *queries) InsertAccountTransfer(ctx context.Context, t ledger.AccountTransfer) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO account_transfers
		(id, from_account_id, to_account_id, from_envelope_id, to_envelope_id, amount_cents, date, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.FromAccountID, t.ToAccountID, t.FromEnvelopeID, t.ToEnvelopeID,
		toCents(t.Amount), formatDate(t.Date), t.Description, formatTime(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert account transfer: %w", err)
	}
	return nil
}
