/*
payment.go - Credit-card payment engine

PURPOSE:
  Pays a credit card from one or more cash envelopes and settles the card's
  outstanding debt oldest-first, splitting the last debt transaction when the
  payment only covers part of it.

VALIDATE, THEN COMMIT:
  Every precondition is checked before the first write:
    - target account exists and is a credit card
    - every allocation amount > 0
    - |sum(allocations) - total| <= AllocationTolerance   -> ErrAllocationMismatch
      (raw amounts; rounding to cents happens after the check)
    - every allocation envelope exists, is cash, and its projected available
      balance covers everything allocated from it          -> InsufficientFunds
    - a debt envelope can be resolved for every allocation
  Validation and writes run in the same WithTx.

COMMIT, PER ALLOCATION:
  1. cleared -amount on the cash envelope
  2. resolve the debt envelope (matching.go)
  3. load its unpaid transactions in FIFO order (date, creation, id)
  4. SettleFIFO: pay whole transactions while they fit; split the first one
     that does not:
        original.Amount = remaining payment, status paid
        new unpaid transaction = original - remaining payment,
            same date, "(Remaining after partial payment)"
  5. leftover payment (overpayment) is logged and reported, never rejected
  Finally the payment header and its allocation rows are inserted.

EXAMPLE:
  Debt envelope: unpaid 300 "Kroger". Pay 100.
    -> "Kroger" 100 paid
    -> "Kroger (Remaining after partial payment)" 200 unpaid

SEE ALSO:
  - matching.go: debt envelope lookup
  - transfer.go: checkFunds
*/
package ledger

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RemainderSuffix marks the unpaid leftover of a split debt transaction.
const RemainderSuffix = "(Remaining after partial payment)"

type AllocationInput struct {
	EnvelopeID string
	Amount     decimal.Decimal
}

type PaymentInput struct {
	CreditCardAccountID string
	TotalAmount         decimal.Decimal
	Date                time.Time
	Description         string
	Allocations         []AllocationInput
}

// Settlement describes what one allocation did to the card's debt.
type Settlement struct {
	CashEnvelopeID         string
	DebtEnvelopeID         string
	Match                  MatchTier
	Amount                 decimal.Decimal
	Settled                decimal.Decimal
	PaidTransactionIDs     []string // fully paid, plus the shrunk original of a split
	RemainderTransactionID string   // set when a split happened
	Excess                 decimal.Decimal
}

// PaymentResult is the committed payment with its settlement report.
type PaymentResult struct {
	CreditCardPaymentWithAllocations
	Settlements []Settlement
	Excess      decimal.Decimal
}

// =============================================================================
// FIFO SETTLEMENT - Pure planning, no I/O
// =============================================================================

// SortFIFO orders transactions oldest-first: by date, then creation time,
// then id.
func SortFIFO(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.Before(txs[j].Date)
		}
		if !txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].CreatedAt.Before(txs[j].CreatedAt)
		}
		return txs[i].ID < txs[j].ID
	})
}

// SplitPlan describes the partially covered transaction.
type SplitPlan struct {
	TransactionID   string
	PaidAmount      decimal.Decimal
	RemainingAmount decimal.Decimal
}

// SettlementPlan is the outcome of applying a payment amount to a list of
// unpaid transactions.
type SettlementPlan struct {
	Paid    []string
	Split   *SplitPlan
	Settled decimal.Decimal
	Excess  decimal.Decimal
}

// SettleFIFO plans how amount settles unpaid, oldest first. Only positive
// unpaid transactions are settled; refunds (negative amounts) stay unpaid.
func SettleFIFO(unpaid []Transaction, amount decimal.Decimal) SettlementPlan {
	ordered := make([]Transaction, len(unpaid))
	copy(ordered, unpaid)
	SortFIFO(ordered)

	var plan SettlementPlan
	remaining := amount
	for _, tx := range ordered {
		if !remaining.IsPositive() {
			break
		}
		if tx.Status != StatusUnpaid || !tx.Amount.IsPositive() {
			continue
		}
		if tx.Amount.LessThanOrEqual(remaining) {
			plan.Paid = append(plan.Paid, tx.ID)
			remaining = remaining.Sub(tx.Amount)
			continue
		}
		plan.Split = &SplitPlan{
			TransactionID:   tx.ID,
			PaidAmount:      remaining,
			RemainingAmount: tx.Amount.Sub(remaining),
		}
		remaining = decimal.Zero
	}
	plan.Settled = amount.Sub(remaining)
	plan.Excess = remaining
	return plan
}

// applyPlan returns the unpaid list that remains after plan is committed.
func applyPlan(unpaid []Transaction, plan SettlementPlan) []Transaction {
	paid := make(map[string]bool, len(plan.Paid))
	for _, id := range plan.Paid {
		paid[id] = true
	}
	out := make([]Transaction, 0, len(unpaid))
	for _, tx := range unpaid {
		if paid[tx.ID] {
			continue
		}
		if plan.Split != nil && tx.ID == plan.Split.TransactionID {
			tx.ID = ""
			tx.Amount = plan.Split.RemainingAmount
		}
		out = append(out, tx)
	}
	return out
}

func remainderDescription(original string) string {
	if strings.HasSuffix(original, RemainderSuffix) {
		return original
	}
	if original == "" {
		return RemainderSuffix
	}
	return original + " " + RemainderSuffix
}

// =============================================================================
// VALIDATION
// =============================================================================

type allocationPlan struct {
	amount decimal.Decimal
	cash   Envelope
	debt   Envelope
	match  MatchTier
}

type paymentPlan struct {
	card        Account
	total       decimal.Decimal
	allocations []allocationPlan
	cashBefore  map[string]decimal.Decimal
}

// planPayment checks every precondition and resolves envelopes. It performs
// no writes.
func (s *Service) planPayment(ctx context.Context, st Store, in PaymentInput) (*paymentPlan, error) {
	total := RoundMoney(in.TotalAmount)
	if !total.IsPositive() {
		return nil, invalid("total_amount", "must be greater than zero, got %s", in.TotalAmount)
	}
	if len(in.Allocations) == 0 {
		return nil, invalid("allocations", "at least one allocation is required")
	}

	card, err := loadAccount(ctx, st, in.CreditCardAccountID)
	if err != nil {
		return nil, err
	}
	if !card.Type.IsCreditCard() {
		return nil, invalid("credit_card_account_id", "account %q is %s, not credit_card", card.Name, card.Type)
	}

	sum := decimal.Zero
	for i, a := range in.Allocations {
		if !a.Amount.IsPositive() {
			return nil, invalid("allocations", "allocation %d amount must be greater than zero, got %s", i, a.Amount)
		}
		sum = sum.Add(a.Amount)
	}
	if !WithinTolerance(sum, in.TotalAmount, AllocationTolerance) {
		return nil, invalidWith(ErrAllocationMismatch, "allocations",
			"allocations sum to %s but payment total is %s",
			sum.String(), in.TotalAmount.String())
	}
	amounts, err := roundAllocations(in.Allocations, total)
	if err != nil {
		return nil, err
	}

	debtEnvelopes, err := st.ListEnvelopes(ctx, card.ID)
	if err != nil {
		return nil, err
	}

	projector := NewProjector(st)
	plan := &paymentPlan{
		card:       *card,
		total:      total,
		cashBefore: make(map[string]decimal.Decimal),
	}
	requested := make(map[string]decimal.Decimal)
	for i, a := range in.Allocations {
		amt := amounts[i]
		cash, err := loadEnvelope(ctx, st, a.EnvelopeID)
		if err != nil {
			return nil, err
		}
		if cash.Type != EnvelopeCash {
			return nil, invalid("allocations", "envelope %q is %s, payments must come from cash envelopes", cash.Name, cash.Type)
		}

		available, ok := plan.cashBefore[cash.ID]
		if !ok {
			available, err = projector.Available(ctx, cash.ID)
			if err != nil {
				return nil, err
			}
			plan.cashBefore[cash.ID] = available
		}
		requested[cash.ID] = requested[cash.ID].Add(amt)
		if requested[cash.ID].GreaterThan(available) {
			return nil, &InsufficientFundsError{
				EnvelopeID:   cash.ID,
				EnvelopeName: cash.Name,
				Available:    available,
				Requested:    requested[cash.ID],
			}
		}

		debt, match := MatchDebtEnvelope(*cash, *card, debtEnvelopes)
		if debt == nil {
			return nil, notFound("debt envelope", UnassignedName(card.Name))
		}
		plan.allocations = append(plan.allocations, allocationPlan{
			amount: amt,
			cash:   *cash,
			debt:   *debt,
			match:  match,
		})
	}
	return plan, nil
}

// roundAllocations rounds each allocation to cents. The rounding residual
// goes to the last allocation so the stored amounts add up to total.
func roundAllocations(allocs []AllocationInput, total decimal.Decimal) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(allocs))
	sum := decimal.Zero
	for i, a := range allocs {
		out[i] = RoundMoney(a.Amount)
		sum = sum.Add(out[i])
	}
	last := len(out) - 1
	out[last] = out[last].Add(total.Sub(sum))
	for i, amt := range out {
		if !amt.IsPositive() {
			return nil, invalid("allocations", "allocation %d rounds to %s, must be at least one cent", i, amt.StringFixed(MoneyPlaces))
		}
	}
	return out, nil
}

// =============================================================================
// COMMIT
// =============================================================================

// CreatePayment is createCreditCardPayment.
func (s *Service) CreatePayment(ctx context.Context, in PaymentInput) (*PaymentResult, error) {
	var result PaymentResult
	err := s.store.WithTx(ctx, func(st Store) error {
		plan, err := s.planPayment(ctx, st, in)
		if err != nil {
			return err
		}

		now := s.now()
		date := dateOr(in.Date, now)
		payment := CreditCardPayment{
			ID:                  s.newID(),
			CreditCardAccountID: plan.card.ID,
			TotalAmount:         plan.total,
			Date:                date,
			Description:         in.Description,
			CreatedAt:           now,
		}

		result = PaymentResult{Excess: decimal.Zero}
		for _, ap := range plan.allocations {
			outgoing := Transaction{
				ID:          s.newID(),
				AccountID:   ap.cash.AccountID,
				EnvelopeID:  ap.cash.ID,
				Amount:      ap.amount.Neg(),
				Date:        date,
				Status:      StatusCleared,
				Description: annotate("Payment to "+plan.card.Name, in.Description),
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := st.InsertTransaction(ctx, outgoing); err != nil {
				return err
			}

			settlement, err := s.settle(ctx, st, ap, now)
			if err != nil {
				return err
			}
			result.Settlements = append(result.Settlements, settlement)
			result.Excess = result.Excess.Add(settlement.Excess)

			result.Allocations = append(result.Allocations, PaymentAllocation{
				ID:         s.newID(),
				PaymentID:  payment.ID,
				EnvelopeID: ap.cash.ID,
				Amount:     ap.amount,
			})
		}

		result.CreditCardPayment = payment
		return st.InsertPayment(ctx, result.CreditCardPaymentWithAllocations)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "credit card payment recorded",
		"payment_id", result.ID,
		"credit_card_account_id", result.CreditCardAccountID,
		"total_amount", result.TotalAmount.StringFixed(MoneyPlaces),
		"allocations", len(result.Allocations))
	return &result, nil
}

// settle applies one allocation to its debt envelope's unpaid transactions.
func (s *Service) settle(ctx context.Context, st Store, ap allocationPlan, now time.Time) (Settlement, error) {
	settlement := Settlement{
		CashEnvelopeID: ap.cash.ID,
		DebtEnvelopeID: ap.debt.ID,
		Match:          ap.match,
		Amount:         ap.amount,
	}

	unpaid, err := st.ListTransactions(ctx, TransactionFilter{EnvelopeID: ap.debt.ID, Status: StatusUnpaid})
	if err != nil {
		return settlement, err
	}
	byID := make(map[string]Transaction, len(unpaid))
	for _, tx := range unpaid {
		byID[tx.ID] = tx
	}

	plan := SettleFIFO(unpaid, ap.amount)
	for _, id := range plan.Paid {
		tx := byID[id]
		tx.Status = StatusPaid
		tx.UpdatedAt = now
		if err := st.UpdateTransaction(ctx, tx); err != nil {
			return settlement, err
		}
		settlement.PaidTransactionIDs = append(settlement.PaidTransactionIDs, id)
	}

	if plan.Split != nil {
		original := byID[plan.Split.TransactionID]
		remainder := Transaction{
			ID:          s.newID(),
			AccountID:   original.AccountID,
			EnvelopeID:  original.EnvelopeID,
			Amount:      plan.Split.RemainingAmount,
			Date:        original.Date,
			Status:      StatusUnpaid,
			Description: remainderDescription(original.Description),
			// Inherits the original's creation time to keep its FIFO position.
			CreatedAt: original.CreatedAt,
			UpdatedAt: now,
		}

		original.Amount = plan.Split.PaidAmount
		original.Status = StatusPaid
		original.UpdatedAt = now
		if err := st.UpdateTransaction(ctx, original); err != nil {
			return settlement, err
		}
		if err := st.InsertTransaction(ctx, remainder); err != nil {
			return settlement, err
		}
		settlement.PaidTransactionIDs = append(settlement.PaidTransactionIDs, original.ID)
		settlement.RemainderTransactionID = remainder.ID
	}

	settlement.Settled = plan.Settled
	settlement.Excess = plan.Excess
	if plan.Excess.GreaterThan(AllocationTolerance) {
		s.logger.WarnContext(ctx, "payment exceeds outstanding debt",
			"cash_envelope_id", ap.cash.ID,
			"debt_envelope_id", ap.debt.ID,
			"excess", plan.Excess.StringFixed(MoneyPlaces))
	}
	return settlement, nil
}

// =============================================================================
// READ-ONLY HELPERS
// =============================================================================

// UnpaidTransactionsByCreditCard lists a card's unpaid transactions, FIFO.
func (s *Service) UnpaidTransactionsByCreditCard(ctx context.Context, accountID string) ([]Transaction, error) {
	card, err := loadAccount(ctx, s.store, accountID)
	if err != nil {
		return nil, err
	}
	if !card.Type.IsCreditCard() {
		return nil, invalid("account_id", "account %q is %s, not credit_card", card.Name, card.Type)
	}
	return s.store.ListTransactions(ctx, TransactionFilter{AccountID: card.ID, Status: StatusUnpaid})
}

// ListPayments returns recorded payments for a card ("" for all cards).
func (s *Service) ListPayments(ctx context.Context, accountID string) ([]CreditCardPaymentWithAllocations, error) {
	return s.store.ListPayments(ctx, accountID)
}

// EnvelopeChange is one envelope's available balance before and after a
// simulated payment.
type EnvelopeChange struct {
	EnvelopeID string
	Name       string
	Before     decimal.Decimal
	After      decimal.Decimal
}

type PaymentSimulation struct {
	CreditCardAccountID string
	TotalAmount         decimal.Decimal
	CashEnvelopes       []EnvelopeChange
	DebtEnvelopes       []EnvelopeChange
	Settlements         []Settlement
	Excess              decimal.Decimal
}

// SimulatePayment validates in exactly like CreatePayment and reports the
// effect without writing anything.
func (s *Service) SimulatePayment(ctx context.Context, in PaymentInput) (*PaymentSimulation, error) {
	plan, err := s.planPayment(ctx, s.store, in)
	if err != nil {
		return nil, err
	}

	sim := &PaymentSimulation{
		CreditCardAccountID: plan.card.ID,
		TotalAmount:         plan.total,
		Excess:              decimal.Zero,
	}
	projector := s.Projector()

	cashIdx := make(map[string]int)
	debtIdx := make(map[string]int)
	working := make(map[string][]Transaction)

	for _, ap := range plan.allocations {
		i, ok := cashIdx[ap.cash.ID]
		if !ok {
			before := plan.cashBefore[ap.cash.ID]
			sim.CashEnvelopes = append(sim.CashEnvelopes, EnvelopeChange{
				EnvelopeID: ap.cash.ID, Name: ap.cash.Name, Before: before, After: before,
			})
			i = len(sim.CashEnvelopes) - 1
			cashIdx[ap.cash.ID] = i
		}
		sim.CashEnvelopes[i].After = sim.CashEnvelopes[i].After.Sub(ap.amount)

		j, ok := debtIdx[ap.debt.ID]
		if !ok {
			before, err := projector.Available(ctx, ap.debt.ID)
			if err != nil {
				return nil, err
			}
			unpaid, err := s.store.ListTransactions(ctx, TransactionFilter{EnvelopeID: ap.debt.ID, Status: StatusUnpaid})
			if err != nil {
				return nil, err
			}
			working[ap.debt.ID] = unpaid
			sim.DebtEnvelopes = append(sim.DebtEnvelopes, EnvelopeChange{
				EnvelopeID: ap.debt.ID, Name: ap.debt.Name, Before: before, After: before,
			})
			j = len(sim.DebtEnvelopes) - 1
			debtIdx[ap.debt.ID] = j
		}

		settlePlan := SettleFIFO(working[ap.debt.ID], ap.amount)
		working[ap.debt.ID] = applyPlan(working[ap.debt.ID], settlePlan)
		sim.DebtEnvelopes[j].After = sim.DebtEnvelopes[j].After.Sub(settlePlan.Settled)

		paid := append([]string(nil), settlePlan.Paid...)
		if settlePlan.Split != nil && settlePlan.Split.TransactionID != "" {
			paid = append(paid, settlePlan.Split.TransactionID)
		}
		sim.Settlements = append(sim.Settlements, Settlement{
			CashEnvelopeID:     ap.cash.ID,
			DebtEnvelopeID:     ap.debt.ID,
			Match:              ap.match,
			Amount:             ap.amount,
			Settled:            settlePlan.Settled,
			PaidTransactionIDs: paid,
			Excess:             settlePlan.Excess,
		})
		sim.Excess = sim.Excess.Add(settlePlan.Excess)
	}
	return sim, nil
}

// AllocationSuggestion is a best-effort split of a payment across cash
// envelopes. It is advice, not a commitment.
type AllocationSuggestion struct {
	CreditCardAccountID string
	TotalAmount         decimal.Decimal
	Allocations         []AllocationInput
	Unallocated         decimal.Decimal
}

// SuggestPaymentAllocation proposes allocations for paying total on a card:
// first from cash envelopes whose name matches a debt envelope that carries
// debt (capped by that debt), then by draining the richest cash envelopes.
func (s *Service) SuggestPaymentAllocation(ctx context.Context, accountID string, total decimal.Decimal) (*AllocationSuggestion, error) {
	total = RoundMoney(total)
	if !total.IsPositive() {
		return nil, invalid("amount", "must be greater than zero, got %s", total)
	}
	card, err := loadAccount(ctx, s.store, accountID)
	if err != nil {
		return nil, err
	}
	if !card.Type.IsCreditCard() {
		return nil, invalid("account_id", "account %q is %s, not credit_card", card.Name, card.Type)
	}

	balances, err := s.Projector().AllEnvelopes(ctx)
	if err != nil {
		return nil, err
	}
	available := make(map[string]decimal.Decimal, len(balances))
	for _, b := range balances {
		available[b.EntityID] = b.AvailableBalance
	}

	envelopes, err := s.store.ListEnvelopes(ctx, "")
	if err != nil {
		return nil, err
	}
	var cash, debt []Envelope
	for _, e := range envelopes {
		switch {
		case e.Type == EnvelopeCash && available[e.ID].IsPositive():
			cash = append(cash, e)
		case e.Type == EnvelopeDebt && e.AccountID == card.ID:
			debt = append(debt, e)
		}
	}

	remaining := total
	allocated := make(map[string]decimal.Decimal)
	var order []string
	allocate := func(envelopeID string, amt decimal.Decimal) {
		if _, seen := allocated[envelopeID]; !seen {
			order = append(order, envelopeID)
		}
		allocated[envelopeID] = allocated[envelopeID].Add(amt)
		available[envelopeID] = available[envelopeID].Sub(amt)
		remaining = remaining.Sub(amt)
	}

	// Pass 1: name-matched envelopes pay down their own debt.
	for _, c := range cash {
		if !remaining.IsPositive() {
			break
		}
		d, match := MatchDebtEnvelope(c, *card, debt)
		if d == nil || (match != MatchExact && match != MatchSubstring) {
			continue
		}
		outstanding := available[d.ID]
		amt := decimal.Min(remaining, available[c.ID], outstanding)
		if !amt.IsPositive() {
			continue
		}
		allocate(c.ID, amt)
		available[d.ID] = outstanding.Sub(amt)
	}

	// Pass 2: drain the richest cash envelopes.
	sort.SliceStable(cash, func(i, j int) bool {
		return available[cash[i].ID].GreaterThan(available[cash[j].ID])
	})
	for _, c := range cash {
		if !remaining.IsPositive() {
			break
		}
		amt := decimal.Min(remaining, available[c.ID])
		if !amt.IsPositive() {
			continue
		}
		allocate(c.ID, amt)
	}

	suggestion := &AllocationSuggestion{
		CreditCardAccountID: card.ID,
		TotalAmount:         total,
		Unallocated:         remaining,
	}
	for _, id := range order {
		suggestion.Allocations = append(suggestion.Allocations, AllocationInput{EnvelopeID: id, Amount: allocated[id]})
	}
	return suggestion, nil
}
