package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/envelope-ledger/ledger"
)

// =============================================================================
// CREDIT-CARD PAYMENTS
// =============================================================================

// InsertPayment writes the payment row and its allocations.
func (s *queries) InsertPayment(ctx context.Context, p ledger.CreditCardPaymentWithAllocations) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO credit_card_payments
		(id, credit_card_account_id, total_amount_cents, date, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.CreditCardAccountID, toCents(p.TotalAmount),
		formatDate(p.Date), p.Description, formatTime(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	for _, a := range p.Allocations {
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO payment_allocations (id, payment_id, envelope_id, amount_cents)
			VALUES (?, ?, ?, ?)`,
			a.ID, p.ID, a.EnvelopeID, toCents(a.Amount),
		)
		if err != nil {
			return fmt.Errorf("failed to insert payment allocation: %w", err)
		}
	}
	return nil
}

// ListPayments returns payments newest first; cardID "" lists every card.
func (s *queries) ListPayments(ctx context.Context, cardID string) ([]ledger.CreditCardPaymentWithAllocations, error) {
	query := `
		SELECT id, credit_card_account_id, total_amount_cents, date, description, created_at
		FROM credit_card_payments`
	var args []any
	if cardID != "" {
		query += ` WHERE credit_card_account_id = ?`
		args = append(args, cardID)
	}
	query += ` ORDER BY date DESC, created_at DESC`

	payments, err := s.queryPayments(ctx, query, args...)
	if err != nil || len(payments) == 0 {
		return payments, err
	}

	// Rows are drained before the second query: in-memory databases have a
	// single connection.
	index := make(map[string]int, len(payments))
	ids := make([]string, len(payments))
	for i, p := range payments {
		index[p.ID] = i
		ids[i] = p.ID
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, payment_id, envelope_id, amount_cents
		FROM payment_allocations
		WHERE payment_id IN (`+placeholders(len(ids))+`)
		ORDER BY rowid ASC`, anyArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			a      ledger.PaymentAllocation
			amount int64
		)
		if err := rows.Scan(&a.ID, &a.PaymentID, &a.EnvelopeID, &amount); err != nil {
			return nil, err
		}
		a.Amount = fromCents(amount)
		i := index[a.PaymentID]
		payments[i].Allocations = append(payments[i].Allocations, a)
	}
	return payments, rows.Err()
}

func (s *queries) queryPayments(ctx context.Context, query string, args ...any) ([]ledger.CreditCardPaymentWithAllocations, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.CreditCardPaymentWithAllocations
	for rows.Next() {
		var (
			p               ledger.CreditCardPaymentWithAllocations
			total           int64
			date, createdAt string
		)
		if err := rows.Scan(&p.ID, &p.CreditCardAccountID, &total, &date, &p.Description, &createdAt); err != nil {
			return nil, err
		}
		p.TotalAmount = fromCents(total)
		var td timeDecoder
		p.Date = td.date(date)
		p.CreatedAt = td.time(createdAt)
		if td.err != nil {
			return nil, td.err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// =============================================================================
// FUNDING TARGETS
// =============================================================================

func (s *queries) InsertFundingTarget(ctx context.Context, t ledger.FundingTarget) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO funding_targets
		(id, envelope_id, target_type, target_amount_cents, minimum_amount_cents, description, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.EnvelopeID, string(t.TargetType), toCents(t.TargetAmount),
		nullCents(t.MinimumAmount), t.Description, t.IsActive,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert funding target: %w", err)
	}
	return nil
}

func (s *queries) DeleteFundingTarget(ctx context.Context, id string) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM funding_targets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete funding target: %w", err)
	}
	return nil
}

func (s *queries) ListFundingTargets(ctx context.Context) ([]ledger.FundingTarget, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, envelope_id, target_type, target_amount_cents, minimum_amount_cents,
		       description, is_active, created_at, updated_at
		FROM funding_targets
		ORDER BY rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.FundingTarget
	for rows.Next() {
		var (
			t                  ledger.FundingTarget
			typ                string
			amount             int64
			minimum            sql.NullInt64
			createdAt, updated string
		)
		if err := rows.Scan(&t.ID, &t.EnvelopeID, &typ, &amount, &minimum,
			&t.Description, &t.IsActive, &createdAt, &updated); err != nil {
			return nil, err
		}
		t.TargetType = ledger.TargetType(typ)
		t.TargetAmount = fromCents(amount)
		t.MinimumAmount = centsPtr(minimum)
		var td timeDecoder
		t.CreatedAt = td.time(createdAt)
		t.UpdatedAt = td.time(updated)
		if td.err != nil {
			return nil, td.err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
