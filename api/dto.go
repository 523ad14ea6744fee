/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Requests accept amounts as JSON numbers or strings ("12.50"); both decode
  into decimal.Decimal. Responses always render amounts as strings with two
  decimal places so clients never see float rounding.

DATES:
  Transaction and payment dates are YYYY-MM-DD; timestamps are RFC 3339.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/envelope-ledger/ledger"
	"github.com/warp/envelope-ledger/planning"
)

const dateLayout = "2006-01-02"

func money(d decimal.Decimal) string { return d.StringFixed(ledger.MoneyPlaces) }

func moneyPtr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := money(*d)
	return &s
}

func formatDate(t time.Time) string { return t.Format(dateLayout) }

// parseDate accepts "" (meaning today, decided by the ledger) or YYYY-MM-DD.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}

// =============================================================================
// ACCOUNTS & ENVELOPES
// =============================================================================

type AccountDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	InitialBalance string `json:"initial_balance"`
	CurrentBalance string `json:"current_balance"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

type CreateAccountRequest struct {
	Name           string           `json:"name"`
	Type           string           `json:"type"`
	InitialBalance decimal.Decimal  `json:"initial_balance"`
	CurrentBalance *decimal.Decimal `json:"current_balance,omitempty"`
}

type UpdateAccountRequest struct {
	Name *string `json:"name,omitempty"`
}

type EnvelopeDTO struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	AccountID      string  `json:"account_id"`
	Type           string  `json:"type"`
	CurrentBalance string  `json:"current_balance"`
	SpendingLimit  *string `json:"spending_limit,omitempty"`
	Description    string  `json:"description,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

type CreateEnvelopeRequest struct {
	Name           string           `json:"name"`
	AccountID      string           `json:"account_id"`
	Type           string           `json:"type,omitempty"`
	CurrentBalance *decimal.Decimal `json:"current_balance,omitempty"`
	SpendingLimit  *decimal.Decimal `json:"spending_limit,omitempty"`
	Description    string           `json:"description,omitempty"`
}

type UpdateEnvelopeRequest struct {
	Name               *string          `json:"name,omitempty"`
	SpendingLimit      *decimal.Decimal `json:"spending_limit,omitempty"`
	ClearSpendingLimit bool             `json:"clear_spending_limit,omitempty"`
	Description        *string          `json:"description,omitempty"`
}

func toAccountDTO(a ledger.Account) AccountDTO {
	return AccountDTO{
		ID:             a.ID,
		Name:           a.Name,
		Type:           string(a.Type),
		InitialBalance: money(a.InitialBalance),
		CurrentBalance: money(a.CurrentBalance),
		CreatedAt:      a.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      a.UpdatedAt.Format(time.RFC3339),
	}
}

func toEnvelopeDTO(e ledger.Envelope) EnvelopeDTO {
	return EnvelopeDTO{
		ID:             e.ID,
		Name:           e.Name,
		AccountID:      e.AccountID,
		Type:           string(e.Type),
		CurrentBalance: money(e.CurrentBalance),
		SpendingLimit:  moneyPtr(e.SpendingLimit),
		Description:    e.Description,
		CreatedAt:      e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      e.UpdatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// TRANSACTIONS & TRANSFERS
// =============================================================================

type TransactionDTO struct {
	ID          string `json:"id"`
	AccountID   string `json:"account_id"`
	EnvelopeID  string `json:"envelope_id"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type CreateTransactionRequest struct {
	AccountID   string          `json:"account_id"`
	EnvelopeID  string          `json:"envelope_id"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date,omitempty"`
	Status      string          `json:"status,omitempty"`
	Description string          `json:"description,omitempty"`
}

type UpdateTransactionRequest struct {
	EnvelopeID  *string          `json:"envelope_id,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Date        *string          `json:"date,omitempty"`
	Status      *string          `json:"status,omitempty"`
	Description *string          `json:"description,omitempty"`
}

type EnvelopeTransferRequest struct {
	FromEnvelopeID string          `json:"from_envelope_id"`
	ToEnvelopeID   string          `json:"to_envelope_id"`
	Amount         decimal.Decimal `json:"amount"`
	Date           string          `json:"date,omitempty"`
	Description    string          `json:"description,omitempty"`
}

type EnvelopeTransferDTO struct {
	ID             string `json:"id"`
	FromEnvelopeID string `json:"from_envelope_id"`
	ToEnvelopeID   string `json:"to_envelope_id"`
	Amount         string `json:"amount"`
	Date           string `json:"date"`
	Description    string `json:"description,omitempty"`
}

type AccountTransferRequest struct {
	FromAccountID  string          `json:"from_account_id"`
	ToAccountID    string          `json:"to_account_id"`
	FromEnvelopeID string          `json:"from_envelope_id"`
	ToEnvelopeID   string          `json:"to_envelope_id"`
	Amount         decimal.Decimal `json:"amount"`
	Date           string          `json:"date,omitempty"`
	Description    string          `json:"description,omitempty"`
}

type AccountTransferDTO struct {
	ID             string `json:"id"`
	FromAccountID  string `json:"from_account_id"`
	ToAccountID    string `json:"to_account_id"`
	FromEnvelopeID string `json:"from_envelope_id"`
	ToEnvelopeID   string `json:"to_envelope_id"`
	Amount         string `json:"amount"`
	Date           string `json:"date"`
}

func toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:          tx.ID,
		AccountID:   tx.AccountID,
		EnvelopeID:  tx.EnvelopeID,
		Amount:      money(tx.Amount),
		Date:        formatDate(tx.Date),
		Status:      string(tx.Status),
		Description: tx.Description,
		CreatedAt:   tx.CreatedAt.Format(time.RFC3339),
	}
}

func toTransactionDTOs(txs []ledger.Transaction) []TransactionDTO {
	out := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		out[i] = toTransactionDTO(tx)
	}
	return out
}

func toEnvelopeTransferDTO(t ledger.EnvelopeTransfer) EnvelopeTransferDTO {
	return EnvelopeTransferDTO{
		ID:             t.ID,
		FromEnvelopeID: t.FromEnvelopeID,
		ToEnvelopeID:   t.ToEnvelopeID,
		Amount:         money(t.Amount),
		Date:           formatDate(t.Date),
		Description:    t.Description,
	}
}

// =============================================================================
// PAYMENTS
// =============================================================================

type AllocationRequest struct {
	EnvelopeID string          `json:"envelope_id"`
	Amount     decimal.Decimal `json:"amount"`
}

type PaymentRequest struct {
	CreditCardAccountID string              `json:"credit_card_account_id"`
	TotalAmount         decimal.Decimal     `json:"total_amount"`
	Date                string              `json:"date,omitempty"`
	Description         string              `json:"description,omitempty"`
	Allocations         []AllocationRequest `json:"allocations"`
}

type AllocationDTO struct {
	ID         string `json:"id,omitempty"`
	EnvelopeID string `json:"envelope_id"`
	Amount     string `json:"amount"`
}

type SettlementDTO struct {
	CashEnvelopeID         string   `json:"cash_envelope_id"`
	DebtEnvelopeID         string   `json:"debt_envelope_id"`
	Match                  string   `json:"match"`
	Amount                 string   `json:"amount"`
	Settled                string   `json:"settled"`
	PaidTransactionIDs     []string `json:"paid_transaction_ids"`
	RemainderTransactionID string   `json:"remainder_transaction_id,omitempty"`
	Excess                 string   `json:"excess"`
}

type PaymentDTO struct {
	ID                  string          `json:"id"`
	CreditCardAccountID string          `json:"credit_card_account_id"`
	TotalAmount         string          `json:"total_amount"`
	Date                string          `json:"date"`
	Description         string          `json:"description,omitempty"`
	Allocations         []AllocationDTO `json:"allocations"`
	Settlements         []SettlementDTO `json:"settlements,omitempty"`
	Excess              string          `json:"excess,omitempty"`
}

type EnvelopeChangeDTO struct {
	EnvelopeID string `json:"envelope_id"`
	Name       string `json:"name"`
	Before     string `json:"before"`
	After      string `json:"after"`
}

type PaymentSimulationDTO struct {
	CreditCardAccountID string              `json:"credit_card_account_id"`
	TotalAmount         string              `json:"total_amount"`
	CashEnvelopes       []EnvelopeChangeDTO `json:"cash_envelopes"`
	DebtEnvelopes       []EnvelopeChangeDTO `json:"debt_envelopes"`
	Settlements         []SettlementDTO     `json:"settlements"`
	Excess              string              `json:"excess"`
}

type AllocationSuggestionDTO struct {
	CreditCardAccountID string          `json:"credit_card_account_id"`
	TotalAmount         string          `json:"total_amount"`
	Allocations         []AllocationDTO `json:"allocations"`
	Unallocated         string          `json:"unallocated"`
}

func (r PaymentRequest) toInput() (ledger.PaymentInput, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return ledger.PaymentInput{}, err
	}
	in := ledger.PaymentInput{
		CreditCardAccountID: r.CreditCardAccountID,
		TotalAmount:         r.TotalAmount,
		Date:                date,
		Description:         r.Description,
	}
	for _, a := range r.Allocations {
		in.Allocations = append(in.Allocations, ledger.AllocationInput{EnvelopeID: a.EnvelopeID, Amount: a.Amount})
	}
	return in, nil
}

func toSettlementDTOs(ss []ledger.Settlement) []SettlementDTO {
	out := make([]SettlementDTO, len(ss))
	for i, s := range ss {
		paid := s.PaidTransactionIDs
		if paid == nil {
			paid = []string{}
		}
		out[i] = SettlementDTO{
			CashEnvelopeID:         s.CashEnvelopeID,
			DebtEnvelopeID:         s.DebtEnvelopeID,
			Match:                  string(s.Match),
			Amount:                 money(s.Amount),
			Settled:                money(s.Settled),
			PaidTransactionIDs:     paid,
			RemainderTransactionID: s.RemainderTransactionID,
			Excess:                 money(s.Excess),
		}
	}
	return out
}

func toPaymentDTO(p ledger.CreditCardPaymentWithAllocations) PaymentDTO {
	dto := PaymentDTO{
		ID:                  p.ID,
		CreditCardAccountID: p.CreditCardAccountID,
		TotalAmount:         money(p.TotalAmount),
		Date:                formatDate(p.Date),
		Description:         p.Description,
		Allocations:         make([]AllocationDTO, len(p.Allocations)),
	}
	for i, a := range p.Allocations {
		dto.Allocations[i] = AllocationDTO{ID: a.ID, EnvelopeID: a.EnvelopeID, Amount: money(a.Amount)}
	}
	return dto
}

func toChangeDTOs(cs []ledger.EnvelopeChange) []EnvelopeChangeDTO {
	out := make([]EnvelopeChangeDTO, len(cs))
	for i, c := range cs {
		out[i] = EnvelopeChangeDTO{EnvelopeID: c.EnvelopeID, Name: c.Name, Before: money(c.Before), After: money(c.After)}
	}
	return out
}

// =============================================================================
// BALANCES & INTEGRITY
// =============================================================================

type BalanceDTO struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	AccountID        string `json:"account_id,omitempty"`
	Type             string `json:"type"`
	NotPosted        string `json:"not_posted"`
	Pending          string `json:"pending"`
	Cleared          string `json:"cleared"`
	Unpaid           string `json:"unpaid"`
	Paid             string `json:"paid"`
	TotalBalance     string `json:"total_balance"`
	AvailableBalance string `json:"available_balance"`
	TransactionCount int    `json:"transaction_count"`
}

func toBalanceDTOs(bs []ledger.BalanceByStatus) []BalanceDTO {
	out := make([]BalanceDTO, len(bs))
	for i, b := range bs {
		out[i] = BalanceDTO{
			ID:               b.EntityID,
			Name:             b.Name,
			AccountID:        b.AccountID,
			Type:             b.Type,
			NotPosted:        money(b.NotPosted),
			Pending:          money(b.Pending),
			Cleared:          money(b.Cleared),
			Unpaid:           money(b.Unpaid),
			Paid:             money(b.Paid),
			TotalBalance:     money(b.TotalBalance),
			AvailableBalance: money(b.AvailableBalance),
			TransactionCount: b.TransactionCount,
		}
	}
	return out
}

type DiscrepancyDTO struct {
	AccountID      string `json:"account_id"`
	AccountName    string `json:"account_name"`
	AccountBalance string `json:"account_balance"`
	EnvelopeTotal  string `json:"envelope_total"`
	Difference     string `json:"difference"`
}

type IntegrityReportDTO struct {
	OK            bool             `json:"ok"`
	Discrepancies []DiscrepancyDTO `json:"discrepancies"`
}

func toIntegrityReport(ds []ledger.Discrepancy) IntegrityReportDTO {
	report := IntegrityReportDTO{OK: len(ds) == 0, Discrepancies: make([]DiscrepancyDTO, len(ds))}
	for i, d := range ds {
		report.Discrepancies[i] = DiscrepancyDTO{
			AccountID:      d.AccountID,
			AccountName:    d.AccountName,
			AccountBalance: money(d.AccountBalance),
			EnvelopeTotal:  money(d.EnvelopeTotal),
			Difference:     money(d.Difference),
		}
	}
	return report
}

// =============================================================================
// FUNDING TARGETS & PLANNING
// =============================================================================

type FundingTargetRequest struct {
	EnvelopeID    string           `json:"envelope_id"`
	TargetType    string           `json:"target_type"`
	TargetAmount  decimal.Decimal  `json:"target_amount"`
	MinimumAmount *decimal.Decimal `json:"minimum_amount,omitempty"`
	Description   string           `json:"description,omitempty"`
	IsActive      *bool            `json:"is_active,omitempty"`
}

type FundingTargetDTO struct {
	ID            string  `json:"id"`
	EnvelopeID    string  `json:"envelope_id"`
	TargetType    string  `json:"target_type"`
	TargetAmount  string  `json:"target_amount"`
	MinimumAmount *string `json:"minimum_amount,omitempty"`
	Description   string  `json:"description,omitempty"`
	IsActive      bool    `json:"is_active"`
}

func toFundingTargetDTO(t ledger.FundingTarget) FundingTargetDTO {
	return FundingTargetDTO{
		ID:            t.ID,
		EnvelopeID:    t.EnvelopeID,
		TargetType:    string(t.TargetType),
		TargetAmount:  money(t.TargetAmount),
		MinimumAmount: moneyPtr(t.MinimumAmount),
		Description:   t.Description,
		IsActive:      t.IsActive,
	}
}

type PlanningLineDTO struct {
	TargetID     string `json:"target_id"`
	EnvelopeID   string `json:"envelope_id"`
	EnvelopeName string `json:"envelope_name"`
	TargetType   string `json:"target_type"`
	Available    string `json:"available"`
	Monthly      string `json:"monthly"`
	PerPaycheck  string `json:"per_paycheck"`
	Needed       string `json:"needed"`
	Underfunded  bool   `json:"underfunded"`
}

type PlanningReportDTO struct {
	PaychecksPerMonth int               `json:"paychecks_per_month"`
	Lines             []PlanningLineDTO `json:"lines"`
	TotalMonthly      string            `json:"total_monthly"`
	TotalPerPaycheck  string            `json:"total_per_paycheck"`
	TotalNeeded       string            `json:"total_needed"`
	Underfunded       int               `json:"underfunded"`
}

func toPlanningDTO(r planning.Report) PlanningReportDTO {
	dto := PlanningReportDTO{
		PaychecksPerMonth: r.PaychecksPerMonth,
		Lines:             make([]PlanningLineDTO, len(r.Lines)),
		TotalMonthly:      money(r.TotalMonthly),
		TotalPerPaycheck:  money(r.TotalPerPaycheck),
		TotalNeeded:       money(r.TotalNeeded),
		Underfunded:       r.Underfunded,
	}
	for i, l := range r.Lines {
		dto.Lines[i] = PlanningLineDTO{
			TargetID:     l.TargetID,
			EnvelopeID:   l.EnvelopeID,
			EnvelopeName: l.EnvelopeName,
			TargetType:   string(l.TargetType),
			Available:    money(l.Available),
			Monthly:      money(l.Monthly),
			PerPaycheck:  money(l.PerPaycheck),
			Needed:       money(l.Needed),
			Underfunded:  l.Underfunded,
		}
	}
	return dto
}

// =============================================================================
// SCENARIOS & ERRORS
// =============================================================================

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

type LoadScenarioResponse struct {
	ScenarioID   string            `json:"scenario_id"`
	Accounts     map[string]string `json:"accounts"`
	Transactions int               `json:"transactions"`
	Transfers    int               `json:"transfers"`
	Payments     int               `json:"payments"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
