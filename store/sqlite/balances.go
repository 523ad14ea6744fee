package sqlite

import (
	"context"

	"github.com/warp/envelope-ledger/ledger"
)

// =============================================================================
// STATUS TOTALS - one SELECT over the balance views
// =============================================================================

func (s *queries) AccountStatusTotals(ctx context.Context, ids ...string) ([]ledger.StatusTotals, error) {
	query := `
		SELECT id, name, '' AS account_id, type, stored_cents,
		       not_posted_cents, pending_cents, cleared_cents, unpaid_cents, paid_cents,
		       transaction_count
		FROM account_balances_by_status`
	return s.queryTotals(ctx, query, ids)
}

func (s *queries) EnvelopeStatusTotals(ctx context.Context, ids ...string) ([]ledger.StatusTotals, error) {
	query := `
		SELECT id, name, account_id, type, stored_cents,
		       not_posted_cents, pending_cents, cleared_cents, unpaid_cents, paid_cents,
		       transaction_count
		FROM envelope_balances_by_status`
	return s.queryTotals(ctx, query, ids)
}

func (s *queries) queryTotals(ctx context.Context, query string, ids []string) ([]ledger.StatusTotals, error) {
	if len(ids) > 0 {
		query += ` WHERE id IN (` + placeholders(len(ids)) + `)`
	}
	query += ` ORDER BY name, id`

	rows, err := s.q.QueryContext(ctx, query, anyArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.StatusTotals
	for rows.Next() {
		var (
			t                                           ledger.StatusTotals
			stored, notPosted, pending, cleared, unpaid int64
			paid                                        int64
		)
		if err := rows.Scan(&t.EntityID, &t.Name, &t.AccountID, &t.Type, &stored,
			&notPosted, &pending, &cleared, &unpaid, &paid, &t.TransactionCount); err != nil {
			return nil, err
		}
		t.StoredBalance = fromCents(stored)
		t.NotPosted = fromCents(notPosted)
		t.Pending = fromCents(pending)
		t.Cleared = fromCents(cleared)
		t.Unpaid = fromCents(unpaid)
		t.Paid = fromCents(paid)
		out = append(out, t)
	}
	return out, rows.Err()
}
