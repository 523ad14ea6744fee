// Package store provides an in-memory ledger.TxStore.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/envelope-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps every table in maps guarded by one RWMutex. Foreign keys
// behave like the SQLite schema: inserts require the parent row and deletes
// cascade to children.
type Memory struct {
	mu sync.RWMutex
	d  *tables
}

type tables struct {
	seq             int64
	accounts        map[string]ledger.Account
	envelopes       map[string]ledger.Envelope
	transactions    map[string]ledger.Transaction
	envTransfers    []ledger.EnvelopeTransfer
	acctTransfers   []ledger.AccountTransfer
	payments        []ledger.CreditCardPaymentWithAllocations
	fundingTargets  map[string]ledger.FundingTarget
	fundingSequence map[string]int64
}

func NewMemory() *Memory {
	return &Memory{d: newTables()}
}

func newTables() *tables {
	return &tables{
		accounts:        make(map[string]ledger.Account),
		envelopes:       make(map[string]ledger.Envelope),
		transactions:    make(map[string]ledger.Transaction),
		fundingTargets:  make(map[string]ledger.FundingTarget),
		fundingSequence: make(map[string]int64),
	}
}

func (m *Memory) read(fn func(*tables) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(m.d)
}

func (m *Memory) write(fn func(*tables) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.d)
}

func (m *Memory) InsertAccount(_ context.Context, a ledger.Account) error {
	return m.write(func(t *tables) error { return t.insertAccount(a) })
}

func (m *Memory) UpdateAccount(_ context.Context, a ledger.Account) error {
	return m.write(func(t *tables) error { return t.updateAccount(a) })
}

func (m *Memory) DeleteAccount(_ context.Context, id string) error {
	return m.write(func(t *tables) error { t.deleteAccount(id); return nil })
}

func (m *Memory) GetAccount(_ context.Context, id string) (a *ledger.Account, err error) {
	err = m.read(func(t *tables) error { a = t.getAccount(id); return nil })
	return a, err
}

func (m *Memory) ListAccounts(_ context.Context) (out []ledger.Account, err error) {
	err = m.read(func(t *tables) error { out = t.listAccounts(); return nil })
	return out, err
}

func (m *Memory) InsertEnvelope(_ context.Context, e ledger.Envelope) error {
	return m.write(func(t *tables) error { return t.insertEnvelope(e) })
}

func (m *Memory) UpdateEnvelope(_ context.Context, e ledger.Envelope) error {
	return m.write(func(t *tables) error { return t.updateEnvelope(e) })
}

func (m *Memory) DeleteEnvelope(_ context.Context, id string) error {
	return m.write(func(t *tables) error { t.deleteEnvelope(id); return nil })
}

func (m *Memory) DeleteEnvelopesByAccount(_ context.Context, accountID string) error {
	return m.write(func(t *tables) error { t.deleteEnvelopesByAccount(accountID); return nil })
}

func (m *Memory) GetEnvelope(_ context.Context, id string) (e *ledger.Envelope, err error) {
	err = m.read(func(t *tables) error { e = t.getEnvelope(id); return nil })
	return e, err
}

func (m *Memory) ListEnvelopes(_ context.Context, accountID string) (out []ledger.Envelope, err error) {
	err = m.read(func(t *tables) error { out = t.listEnvelopes(accountID); return nil })
	return out, err
}

func (m *Memory) InsertTransaction(_ context.Context, tx ledger.Transaction) error {
	return m.write(func(t *tables) error { return t.insertTransaction(tx) })
}

func (m *Memory) UpdateTransaction(_ context.Context, tx ledger.Transaction) error {
	return m.write(func(t *tables) error { return t.updateTransaction(tx) })
}

func (m *Memory) DeleteTransaction(_ context.Context, id string) error {
	return m.write(func(t *tables) error { delete(t.transactions, id); return nil })
}

func (m *Memory) GetTransaction(_ context.Context, id string) (tx *ledger.Transaction, err error) {
	err = m.read(func(t *tables) error { tx = t.getTransaction(id); return nil })
	return tx, err
}

func (m *Memory) ListTransactions(_ context.Context, f ledger.TransactionFilter) (out []ledger.Transaction, err error) {
	err = m.read(func(t *tables) error { out = t.listTransactions(f); return nil })
	return out, err
}

func (m *Memory) InsertEnvelopeTransfer(_ context.Context, tr ledger.EnvelopeTransfer) error {
	return m.write(func(t *tables) error { return t.insertEnvelopeTransfer(tr) })
}

func (m *Memory) ListEnvelopeTransfers(_ context.Context) (out []ledger.EnvelopeTransfer, err error) {
	err = m.read(func(t *tables) error { out = append(out, t.envTransfers...); return nil })
	return out, err
}

func (m *Memory) InsertAccountTransfer(_ context.Context, tr ledger.AccountTransfer) error {
	return m.write(func(t *tables) error { return t.insertAccountTransfer(tr) })
}

func (m *Memory) InsertPayment(_ context.Context, p ledger.CreditCardPaymentWithAllocations) error {
	return m.write(func(t *tables) error { return t.insertPayment(p) })
}

func (m *Memory) ListPayments(_ context.Context, cardID string) (out []ledger.CreditCardPaymentWithAllocations, err error) {
	err = m.read(func(t *tables) error { out = t.listPayments(cardID); return nil })
	return out, err
}

func (m *Memory) InsertFundingTarget(_ context.Context, ft ledger.FundingTarget) error {
	return m.write(func(t *tables) error { return t.insertFundingTarget(ft) })
}

func (m *Memory) DeleteFundingTarget(_ context.Context, id string) error {
	return m.write(func(t *tables) error { t.deleteFundingTarget(id); return nil })
}

func (m *Memory) ListFundingTargets(_ context.Context) (out []ledger.FundingTarget, err error) {
	err = m.read(func(t *tables) error { out = t.listFundingTargets(); return nil })
	return out, err
}

func (m *Memory) AccountStatusTotals(_ context.Context, ids ...string) (out []ledger.StatusTotals, err error) {
	err = m.read(func(t *tables) error { out = t.accountTotals(ids); return nil })
	return out, err
}

func (m *Memory) EnvelopeStatusTotals(_ context.Context, ids ...string) (out []ledger.StatusTotals, err error) {
	err = m.read(func(t *tables) error { out = t.envelopeTotals(ids); return nil })
	return out, err
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// Transactions are serialized by the write lock.
func (tm *TxMemory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.d.clone()
	if err := fn(&txView{t: tm.d}); err != nil {
		tm.d = snapshot
		return err
	}
	return nil
}

// Reset drops every row.
func (tm *TxMemory) Reset(ctx context.Context) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.d = newTables()
	return nil
}

func (t *tables) clone() *tables {
	c := &tables{
		seq:             t.seq,
		accounts:        make(map[string]ledger.Account, len(t.accounts)),
		envelopes:       make(map[string]ledger.Envelope, len(t.envelopes)),
		transactions:    make(map[string]ledger.Transaction, len(t.transactions)),
		envTransfers:    append([]ledger.EnvelopeTransfer(nil), t.envTransfers...),
		acctTransfers:   append([]ledger.AccountTransfer(nil), t.acctTransfers...),
		payments:        append([]ledger.CreditCardPaymentWithAllocations(nil), t.payments...),
		fundingTargets:  make(map[string]ledger.FundingTarget, len(t.fundingTargets)),
		fundingSequence: make(map[string]int64, len(t.fundingSequence)),
	}
	for k, v := range t.accounts {
		c.accounts[k] = v
	}
	for k, v := range t.envelopes {
		c.envelopes[k] = v
	}
	for k, v := range t.transactions {
		c.transactions[k] = v
	}
	for k, v := range t.fundingTargets {
		c.fundingTargets[k] = v
	}
	for k, v := range t.fundingSequence {
		c.fundingSequence[k] = v
	}
	return c
}

// txView is the Store handed to WithTx callbacks. The parent's write lock is
// already held, so it touches the tables directly.
type txView struct {
	t *tables
}

func (v *txView) InsertAccount(_ context.Context, a ledger.Account) error { return v.t.insertAccount(a) }
func (v *txView) UpdateAccount(_ context.Context, a ledger.Account) error { return v.t.updateAccount(a) }
func (v *txView) DeleteAccount(_ context.Context, id string) error {
	v.t.deleteAccount(id)
	return nil
}
func (v *txView) GetAccount(_ context.Context, id string) (*ledger.Account, error) {
	return v.t.getAccount(id), nil
}
func (v *txView) ListAccounts(_ context.Context) ([]ledger.Account, error) {
	return v.t.listAccounts(), nil
}

func (v *txView) InsertEnvelope(_ context.Context, e ledger.Envelope) error { return v.t.insertEnvelope(e) }
func (v *txView) UpdateEnvelope(_ context.Context, e ledger.Envelope) error { return v.t.updateEnvelope(e) }
func (v *txView) DeleteEnvelope(_ context.Context, id string) error {
	v.t.deleteEnvelope(id)
	return nil
}
func (v *txView) DeleteEnvelopesByAccount(_ context.Context, accountID string) error {
	v.t.deleteEnvelopesByAccount(accountID)
	return nil
}
func (v *txView) GetEnvelope(_ context.Context, id string) (*ledger.Envelope, error) {
	return v.t.getEnvelope(id), nil
}
func (v *txView) ListEnvelopes(_ context.Context, accountID string) ([]ledger.Envelope, error) {
	return v.t.listEnvelopes(accountID), nil
}

func (v *txView) InsertTransaction(_ context.Context, tx ledger.Transaction) error {
	return v.t.insertTransaction(tx)
}
func (v *txView) UpdateTransaction(_ context.Context, tx ledger.Transaction) error {
	return v.t.updateTransaction(tx)
}
func (v *txView) DeleteTransaction(_ context.Context, id string) error {
	delete(v.t.transactions, id)
	return nil
}
func (v *txView) GetTransaction(_ context.Context, id string) (*ledger.Transaction, error) {
	return v.t.getTransaction(id), nil
}
func (v *txView) ListTransactions(_ context.Context, f ledger.TransactionFilter) ([]ledger.Transaction, error) {
	return v.t.listTransactions(f), nil
}

func (v *txView) InsertEnvelopeTransfer(_ context.Context, tr ledger.EnvelopeTransfer) error {
	return v.t.insertEnvelopeTransfer(tr)
}
func (v *txView) ListEnvelopeTransfers(_ context.Context) ([]ledger.EnvelopeTransfer, error) {
	return append([]ledger.EnvelopeTransfer(nil), v.t.envTransfers...), nil
}
func (v *txView) InsertAccountTransfer(_ context.Context, tr ledger.AccountTransfer) error {
	return v.t.insertAccountTransfer(tr)
}

func (v *txView) InsertPayment(_ context.Context, p ledger.CreditCardPaymentWithAllocations) error {
	return v.t.insertPayment(p)
}
func (v *txView) ListPayments(_ context.Context, cardID string) ([]ledger.CreditCardPaymentWithAllocations, error) {
	return v.t.listPayments(cardID), nil
}

func (v *txView) InsertFundingTarget(_ context.Context, ft ledger.FundingTarget) error {
	return v.t.insertFundingTarget(ft)
}
func (v *txView) DeleteFundingTarget(_ context.Context, id string) error {
	v.t.deleteFundingTarget(id)
	return nil
}
func (v *txView) ListFundingTargets(_ context.Context) ([]ledger.FundingTarget, error) {
	return v.t.listFundingTargets(), nil
}

func (v *txView) AccountStatusTotals(_ context.Context, ids ...string) ([]ledger.StatusTotals, error) {
	return v.t.accountTotals(ids), nil
}
func (v *txView) EnvelopeStatusTotals(_ context.Context, ids ...string) ([]ledger.StatusTotals, error) {
	return v.t.envelopeTotals(ids), nil
}

// =============================================================================
// TABLE OPERATIONS - callers hold the lock
// =============================================================================

func (t *tables) insertAccount(a ledger.Account) error {
	if _, ok := t.accounts[a.ID]; ok {
		return fmt.Errorf("account %s already exists", a.ID)
	}
	t.accounts[a.ID] = a
	return nil
}

func (t *tables) updateAccount(a ledger.Account) error {
	if _, ok := t.accounts[a.ID]; !ok {
		return fmt.Errorf("account %s does not exist", a.ID)
	}
	t.accounts[a.ID] = a
	return nil
}

func (t *tables) deleteAccount(id string) {
	t.deleteEnvelopesByAccount(id)
	for txID, tx := range t.transactions {
		if tx.AccountID == id {
			delete(t.transactions, txID)
		}
	}
	kept := t.payments[:0]
	for _, p := range t.payments {
		if p.CreditCardAccountID != id {
			kept = append(kept, p)
		}
	}
	t.payments = kept
	keptTransfers := t.acctTransfers[:0]
	for _, tr := range t.acctTransfers {
		if tr.FromAccountID != id && tr.ToAccountID != id {
			keptTransfers = append(keptTransfers, tr)
		}
	}
	t.acctTransfers = keptTransfers
	delete(t.accounts, id)
}

func (t *tables) getAccount(id string) *ledger.Account {
	a, ok := t.accounts[id]
	if !ok {
		return nil
	}
	return &a
}

func (t *tables) listAccounts() []ledger.Account {
	out := make([]ledger.Account, 0, len(t.accounts))
	for _, a := range t.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (t *tables) insertEnvelope(e ledger.Envelope) error {
	if _, ok := t.envelopes[e.ID]; ok {
		return fmt.Errorf("envelope %s already exists", e.ID)
	}
	if _, ok := t.accounts[e.AccountID]; !ok {
		return fmt.Errorf("envelope %s: account %s does not exist", e.ID, e.AccountID)
	}
	t.envelopes[e.ID] = e
	return nil
}

func (t *tables) updateEnvelope(e ledger.Envelope) error {
	if _, ok := t.envelopes[e.ID]; !ok {
		return fmt.Errorf("envelope %s does not exist", e.ID)
	}
	t.envelopes[e.ID] = e
	return nil
}

func (t *tables) deleteEnvelope(id string) {
	for txID, tx := range t.transactions {
		if tx.EnvelopeID == id {
			delete(t.transactions, txID)
		}
	}
	for ftID, ft := range t.fundingTargets {
		if ft.EnvelopeID == id {
			delete(t.fundingTargets, ftID)
		}
	}
	kept := t.envTransfers[:0]
	for _, tr := range t.envTransfers {
		if tr.FromEnvelopeID != id && tr.ToEnvelopeID != id {
			kept = append(kept, tr)
		}
	}
	t.envTransfers = kept
	delete(t.envelopes, id)
}

func (t *tables) deleteEnvelopesByAccount(accountID string) {
	for id, e := range t.envelopes {
		if e.AccountID == accountID {
			t.deleteEnvelope(id)
		}
	}
}

func (t *tables) getEnvelope(id string) *ledger.Envelope {
	e, ok := t.envelopes[id]
	if !ok {
		return nil
	}
	return &e
}

func (t *tables) listEnvelopes(accountID string) []ledger.Envelope {
	var out []ledger.Envelope
	for _, e := range t.envelopes {
		if accountID == "" || e.AccountID == accountID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (t *tables) insertTransaction(tx ledger.Transaction) error {
	if _, ok := t.transactions[tx.ID]; ok {
		return fmt.Errorf("transaction %s already exists", tx.ID)
	}
	if err := t.checkTransactionRefs(tx); err != nil {
		return err
	}
	t.transactions[tx.ID] = tx
	return nil
}

func (t *tables) updateTransaction(tx ledger.Transaction) error {
	if _, ok := t.transactions[tx.ID]; !ok {
		return fmt.Errorf("transaction %s does not exist", tx.ID)
	}
	if err := t.checkTransactionRefs(tx); err != nil {
		return err
	}
	t.transactions[tx.ID] = tx
	return nil
}

func (t *tables) checkTransactionRefs(tx ledger.Transaction) error {
	if _, ok := t.accounts[tx.AccountID]; !ok {
		return fmt.Errorf("transaction %s: account %s does not exist", tx.ID, tx.AccountID)
	}
	if _, ok := t.envelopes[tx.EnvelopeID]; !ok {
		return fmt.Errorf("transaction %s: envelope %s does not exist", tx.ID, tx.EnvelopeID)
	}
	return nil
}

func (t *tables) getTransaction(id string) *ledger.Transaction {
	tx, ok := t.transactions[id]
	if !ok {
		return nil
	}
	return &tx
}

func (t *tables) listTransactions(f ledger.TransactionFilter) []ledger.Transaction {
	out := make([]ledger.Transaction, 0)
	for _, tx := range t.transactions {
		if f.AccountID != "" && tx.AccountID != f.AccountID {
			continue
		}
		if f.EnvelopeID != "" && tx.EnvelopeID != f.EnvelopeID {
			continue
		}
		if f.Status != "" && tx.Status != f.Status {
			continue
		}
		out = append(out, tx)
	}
	ledger.SortFIFO(out)
	return out
}

func (t *tables) insertEnvelopeTransfer(tr ledger.EnvelopeTransfer) error {
	for _, id := range []string{tr.FromEnvelopeID, tr.ToEnvelopeID} {
		if _, ok := t.envelopes[id]; !ok {
			return fmt.Errorf("envelope transfer %s: envelope %s does not exist", tr.ID, id)
		}
	}
	t.envTransfers = append(t.envTransfers, tr)
	return nil
}

func (t *tables) insertAccountTransfer(tr ledger.AccountTransfer) error {
	for _, id := range []string{tr.FromAccountID, tr.ToAccountID} {
		if _, ok := t.accounts[id]; !ok {
			return fmt.Errorf("account transfer %s: account %s does not exist", tr.ID, id)
		}
	}
	t.acctTransfers = append(t.acctTransfers, tr)
	return nil
}

func (t *tables) insertPayment(p ledger.CreditCardPaymentWithAllocations) error {
	if _, ok := t.accounts[p.CreditCardAccountID]; !ok {
		return fmt.Errorf("payment %s: account %s does not exist", p.ID, p.CreditCardAccountID)
	}
	p.Allocations = append([]ledger.PaymentAllocation(nil), p.Allocations...)
	t.payments = append(t.payments, p)
	return nil
}

func (t *tables) listPayments(cardID string) []ledger.CreditCardPaymentWithAllocations {
	var out []ledger.CreditCardPaymentWithAllocations
	for _, p := range t.payments {
		if cardID == "" || p.CreditCardAccountID == cardID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

func (t *tables) insertFundingTarget(ft ledger.FundingTarget) error {
	if _, ok := t.envelopes[ft.EnvelopeID]; !ok {
		return fmt.Errorf("funding target %s: envelope %s does not exist", ft.ID, ft.EnvelopeID)
	}
	t.seq++
	t.fundingTargets[ft.ID] = ft
	t.fundingSequence[ft.ID] = t.seq
	return nil
}

func (t *tables) deleteFundingTarget(id string) {
	delete(t.fundingTargets, id)
	delete(t.fundingSequence, id)
}

func (t *tables) listFundingTargets() []ledger.FundingTarget {
	out := make([]ledger.FundingTarget, 0, len(t.fundingTargets))
	for _, ft := range t.fundingTargets {
		out = append(out, ft)
	}
	sort.Slice(out, func(i, j int) bool {
		return t.fundingSequence[out[i].ID] < t.fundingSequence[out[j].ID]
	})
	return out
}

// =============================================================================
// STATUS TOTALS
// =============================================================================

func (t *tables) accountTotals(ids []string) []ledger.StatusTotals {
	want := idSet(ids)
	byID := make(map[string]*ledger.StatusTotals)
	var out []*ledger.StatusTotals
	for _, a := range t.listAccounts() {
		if want != nil && !want[a.ID] {
			continue
		}
		row := &ledger.StatusTotals{
			EntityID:      a.ID,
			Name:          a.Name,
			Type:          string(a.Type),
			StoredBalance: a.CurrentBalance,
		}
		byID[a.ID] = row
		out = append(out, row)
	}
	for _, tx := range t.transactions {
		if row, ok := byID[tx.AccountID]; ok {
			addStatus(row, tx)
		}
	}
	return deref(out)
}

func (t *tables) envelopeTotals(ids []string) []ledger.StatusTotals {
	want := idSet(ids)
	byID := make(map[string]*ledger.StatusTotals)
	var out []*ledger.StatusTotals
	for _, e := range t.listEnvelopes("") {
		if want != nil && !want[e.ID] {
			continue
		}
		row := &ledger.StatusTotals{
			EntityID:      e.ID,
			Name:          e.Name,
			AccountID:     e.AccountID,
			Type:          string(e.Type),
			StoredBalance: e.CurrentBalance,
		}
		byID[e.ID] = row
		out = append(out, row)
	}
	for _, tx := range t.transactions {
		if row, ok := byID[tx.EnvelopeID]; ok {
			addStatus(row, tx)
		}
	}
	return deref(out)
}

func addStatus(row *ledger.StatusTotals, tx ledger.Transaction) {
	row.TransactionCount++
	switch tx.Status {
	case ledger.StatusNotPosted:
		row.NotPosted = row.NotPosted.Add(tx.Amount)
	case ledger.StatusPending:
		row.Pending = row.Pending.Add(tx.Amount)
	case ledger.StatusCleared:
		row.Cleared = row.Cleared.Add(tx.Amount)
	case ledger.StatusUnpaid:
		row.Unpaid = row.Unpaid.Add(tx.Amount)
	case ledger.StatusPaid:
		row.Paid = row.Paid.Add(tx.Amount)
	}
}

func idSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func deref(rows []*ledger.StatusTotals) []ledger.StatusTotals {
	out := make([]ledger.StatusTotals, len(rows))
	for i, r := range rows {
		out[i] = *r
		out[i].StoredBalance = ledger.RoundMoney(r.StoredBalance)
		out[i].NotPosted = ledger.RoundMoney(r.NotPosted)
		out[i].Pending = ledger.RoundMoney(r.Pending)
		out[i].Cleared = ledger.RoundMoney(r.Cleared)
		out[i].Unpaid = ledger.RoundMoney(r.Unpaid)
		out[i].Paid = ledger.RoundMoney(r.Paid)
	}
	return out
}

var _ ledger.TxStore = (*TxMemory)(nil)
var _ ledger.Store = (*txView)(nil)
