/*
handlers.go - HTTP API handlers for the envelope ledger

PURPOSE:
  Exposes ledger.Service via REST API. Handles HTTP request/response, JSON
  serialization, and delegates every rule to the ledger. Handlers never
  touch the store directly.

ENDPOINTS:
  Accounts:
    GET    /api/accounts                 List accounts
    POST   /api/accounts                 Create account (+ Unassigned envelope)
    GET    /api/accounts/{id}            Get account
    PUT    /api/accounts/{id}            Rename account
    DELETE /api/accounts/{id}            Delete account and its envelopes
    GET    /api/accounts/{id}/unpaid     Unpaid credit-card transactions, FIFO
    GET    /api/accounts/{id}/payments   Payments made to a card

  Envelopes:
    GET    /api/envelopes?account_id=    List envelopes
    POST   /api/envelopes                Create envelope
    GET    /api/envelopes/{id}           Get envelope
    PUT    /api/envelopes/{id}           Update name/limit/description
    DELETE /api/envelopes/{id}           Delete envelope

  Transactions:
    GET    /api/transactions             Filter by account_id, envelope_id, status
    POST   /api/transactions             Record a transaction
    GET    /api/transactions/{id}        Get transaction
    PUT    /api/transactions/{id}        Edit / change status
    DELETE /api/transactions/{id}        Delete

  Transfers & payments:
    GET    /api/transfers/envelopes      Envelope transfer audit trail
    POST   /api/transfers/envelopes      Move money between envelopes
    POST   /api/transfers/accounts       Move money between bank accounts
    POST   /api/payments                 Pay a credit card from cash envelopes
    POST   /api/payments/simulate        Same validation, no writes
    GET    /api/payments/suggest         ?account_id=&amount=

  Balances, integrity, planning: see server.go.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 422: Insufficient funds
  - 500: Internal errors

SECURITY NOTE:
  No authentication. Run behind a trusted proxy.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/envelope-ledger/events"
	"github.com/warp/envelope-ledger/ledger"
	"github.com/warp/envelope-ledger/metrics"
	"github.com/warp/envelope-ledger/planning"
	"github.com/warp/envelope-ledger/seed"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *ledger.Service
	Events  events.Publisher
	Metrics *metrics.Metrics // nil disables instrumentation
	Logger  *slog.Logger

	// Resetter clears the store before a scenario load; nil disables
	// the scenario endpoints.
	Resetter seed.Resetter

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler with no-op events and the default logger.
func NewHandler(svc *ledger.Service) *Handler {
	return &Handler{
		Service: svc,
		Events:  events.Nop{},
		Logger:  slog.Default().With("component", "http"),
	}
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Service.ListAccounts(r.Context())
	if err != nil {
		h.fail(w, r, "list_accounts", err)
		return
	}
	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toAccountDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if !decode(w, r, &req) {
		return
	}
	acct, err := h.Service.CreateAccount(r.Context(), ledger.CreateAccountInput{
		Name:           req.Name,
		Type:           ledger.AccountType(req.Type),
		InitialBalance: req.InitialBalance,
		CurrentBalance: req.CurrentBalance,
	})
	if err != nil {
		h.fail(w, r, "create_account", err)
		return
	}
	h.succeed(r.Context(), "create_account", events.TypeAccountCreated, toAccountDTO(*acct))
	writeJSON(w, http.StatusCreated, toAccountDTO(*acct))
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.Service.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "get_account", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(*acct))
}

func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req UpdateAccountRequest
	if !decode(w, r, &req) {
		return
	}
	acct, err := h.Service.UpdateAccount(r.Context(), chi.URLParam(r, "id"), ledger.AccountPatch{Name: req.Name})
	if err != nil {
		h.fail(w, r, "update_account", err)
		return
	}
	h.succeed(r.Context(), "update_account", "", nil)
	writeJSON(w, http.StatusOK, toAccountDTO(*acct))
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deleted, err := h.Service.DeleteAccount(r.Context(), id)
	if err != nil {
		h.fail(w, r, "delete_account", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Account not found", nil)
		return
	}
	h.succeed(r.Context(), "delete_account", events.TypeAccountDeleted, map[string]string{"id": id})
	w.WriteHeader(http.StatusNoContent)
}

// ListUnpaid returns a card's unpaid transactions in settlement order.
func (h *Handler) ListUnpaid(w http.ResponseWriter, r *http.Request) {
	txs, err := h.Service.UnpaidTransactionsByCreditCard(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "list_unpaid", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// =============================================================================
// ENVELOPE HANDLERS
// =============================================================================

func (h *Handler) ListEnvelopes(w http.ResponseWriter, r *http.Request) {
	envs, err := h.Service.ListEnvelopes(r.Context(), r.URL.Query().Get("account_id"))
	if err != nil {
		h.fail(w, r, "list_envelopes", err)
		return
	}
	dtos := make([]EnvelopeDTO, len(envs))
	for i, e := range envs {
		dtos[i] = toEnvelopeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateEnvelope(w http.ResponseWriter, r *http.Request) {
	var req CreateEnvelopeRequest
	if !decode(w, r, &req) {
		return
	}
	env, err := h.Service.CreateEnvelope(r.Context(), ledger.CreateEnvelopeInput{
		Name:           req.Name,
		AccountID:      req.AccountID,
		Type:           ledger.EnvelopeType(req.Type),
		CurrentBalance: req.CurrentBalance,
		SpendingLimit:  req.SpendingLimit,
		Description:    req.Description,
	})
	if err != nil {
		h.fail(w, r, "create_envelope", err)
		return
	}
	h.succeed(r.Context(), "create_envelope", events.TypeEnvelopeCreated, toEnvelopeDTO(*env))
	writeJSON(w, http.StatusCreated, toEnvelopeDTO(*env))
}

func (h *Handler) GetEnvelope(w http.ResponseWriter, r *http.Request) {
	env, err := h.Service.GetEnvelope(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "get_envelope", err)
		return
	}
	writeJSON(w, http.StatusOK, toEnvelopeDTO(*env))
}

func (h *Handler) UpdateEnvelope(w http.ResponseWriter, r *http.Request) {
	var req UpdateEnvelopeRequest
	if !decode(w, r, &req) {
		return
	}
	env, err := h.Service.UpdateEnvelope(r.Context(), chi.URLParam(r, "id"), ledger.EnvelopePatch{
		Name:               req.Name,
		SpendingLimit:      req.SpendingLimit,
		ClearSpendingLimit: req.ClearSpendingLimit,
		Description:        req.Description,
	})
	if err != nil {
		h.fail(w, r, "update_envelope", err)
		return
	}
	if env == nil {
		writeError(w, http.StatusNotFound, "Envelope not found", nil)
		return
	}
	h.succeed(r.Context(), "update_envelope", "", nil)
	writeJSON(w, http.StatusOK, toEnvelopeDTO(*env))
}

func (h *Handler) DeleteEnvelope(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deleted, err := h.Service.DeleteEnvelope(r.Context(), id)
	if err != nil {
		h.fail(w, r, "delete_envelope", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Envelope not found", nil)
		return
	}
	h.succeed(r.Context(), "delete_envelope", events.TypeEnvelopeDeleted, map[string]string{"id": id})
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	txs, err := h.Service.ListTransactions(r.Context(), ledger.TransactionFilter{
		AccountID:  q.Get("account_id"),
		EnvelopeID: q.Get("envelope_id"),
		Status:     ledger.Status(q.Get("status")),
	})
	if err != nil {
		h.fail(w, r, "list_transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	tx, err := h.Service.CreateTransaction(r.Context(), ledger.CreateTransactionInput{
		AccountID:   req.AccountID,
		EnvelopeID:  req.EnvelopeID,
		Amount:      req.Amount,
		Date:        date,
		Status:      ledger.Status(req.Status),
		Description: req.Description,
	})
	if err != nil {
		h.fail(w, r, "create_transaction", err)
		return
	}
	h.succeed(r.Context(), "create_transaction", events.TypeTransactionCreated, toTransactionDTO(*tx))
	writeJSON(w, http.StatusCreated, toTransactionDTO(*tx))
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.Service.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "get_transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(*tx))
}

func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req UpdateTransactionRequest
	if !decode(w, r, &req) {
		return
	}
	patch := ledger.TransactionPatch{
		EnvelopeID:  req.EnvelopeID,
		Amount:      req.Amount,
		Description: req.Description,
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil || date.IsZero() {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
		patch.Date = &date
	}
	if req.Status != nil {
		status := ledger.Status(*req.Status)
		patch.Status = &status
	}

	tx, err := h.Service.UpdateTransaction(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.fail(w, r, "update_transaction", err)
		return
	}
	h.succeed(r.Context(), "update_transaction", "", nil)
	writeJSON(w, http.StatusOK, toTransactionDTO(*tx))
}

func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.Service.DeleteTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "delete_transaction", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Transaction not found", nil)
		return
	}
	h.succeed(r.Context(), "delete_transaction", "", nil)
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TRANSFER HANDLERS
// =============================================================================

func (h *Handler) ListEnvelopeTransfers(w http.ResponseWriter, r *http.Request) {
	transfers, err := h.Service.ListEnvelopeTransfers(r.Context())
	if err != nil {
		h.fail(w, r, "list_transfers", err)
		return
	}
	dtos := make([]EnvelopeTransferDTO, len(transfers))
	for i, t := range transfers {
		dtos[i] = toEnvelopeTransferDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) TransferEnvelopes(w http.ResponseWriter, r *http.Request) {
	var req EnvelopeTransferRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	t, err := h.Service.TransferBetweenEnvelopes(r.Context(), ledger.TransferInput{
		FromEnvelopeID: req.FromEnvelopeID,
		ToEnvelopeID:   req.ToEnvelopeID,
		Amount:         req.Amount,
		Date:           date,
		Description:    req.Description,
	})
	if err != nil {
		h.fail(w, r, "envelope_transfer", err)
		return
	}
	dto := toEnvelopeTransferDTO(*t)
	h.succeed(r.Context(), "envelope_transfer", events.TypeEnvelopeTransfer, dto)
	writeJSON(w, http.StatusCreated, dto)
}

func (h *Handler) TransferAccounts(w http.ResponseWriter, r *http.Request) {
	var req AccountTransferRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	t, err := h.Service.TransferBetweenAccounts(r.Context(), ledger.AccountTransferInput{
		FromAccountID:  req.FromAccountID,
		ToAccountID:    req.ToAccountID,
		FromEnvelopeID: req.FromEnvelopeID,
		ToEnvelopeID:   req.ToEnvelopeID,
		Amount:         req.Amount,
		Date:           date,
		Description:    req.Description,
	})
	if err != nil {
		h.fail(w, r, "account_transfer", err)
		return
	}
	dto := AccountTransferDTO{
		ID:             t.ID,
		FromAccountID:  t.FromAccountID,
		ToAccountID:    t.ToAccountID,
		FromEnvelopeID: t.FromEnvelopeID,
		ToEnvelopeID:   t.ToEnvelopeID,
		Amount:         money(t.Amount),
		Date:           formatDate(t.Date),
	}
	h.succeed(r.Context(), "account_transfer", events.TypeAccountTransfer, dto)
	writeJSON(w, http.StatusCreated, dto)
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if !decode(w, r, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	res, err := h.Service.CreatePayment(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create_payment", err)
		return
	}

	dto := toPaymentDTO(res.CreditCardPaymentWithAllocations)
	dto.Settlements = toSettlementDTOs(res.Settlements)
	dto.Excess = money(res.Excess)
	if h.Metrics != nil {
		for _, s := range res.Settlements {
			if s.Excess.GreaterThan(ledger.AllocationTolerance) {
				h.Metrics.PaymentExcess.Inc()
			}
		}
	}
	h.succeed(r.Context(), "create_payment", events.TypePaymentCreated, dto)
	writeJSON(w, http.StatusCreated, dto)
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if accountID == "" {
		accountID = r.URL.Query().Get("account_id")
	}
	payments, err := h.Service.ListPayments(r.Context(), accountID)
	if err != nil {
		h.fail(w, r, "list_payments", err)
		return
	}
	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) SimulatePayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if !decode(w, r, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	sim, err := h.Service.SimulatePayment(r.Context(), in)
	if err != nil {
		h.fail(w, r, "simulate_payment", err)
		return
	}
	writeJSON(w, http.StatusOK, PaymentSimulationDTO{
		CreditCardAccountID: sim.CreditCardAccountID,
		TotalAmount:         money(sim.TotalAmount),
		CashEnvelopes:       toChangeDTOs(sim.CashEnvelopes),
		DebtEnvelopes:       toChangeDTOs(sim.DebtEnvelopes),
		Settlements:         toSettlementDTOs(sim.Settlements),
		Excess:              money(sim.Excess),
	})
}

func (h *Handler) SuggestPayment(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := decimal.NewFromString(q.Get("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	s, err := h.Service.SuggestPaymentAllocation(r.Context(), q.Get("account_id"), amount)
	if err != nil {
		h.fail(w, r, "suggest_payment", err)
		return
	}
	dto := AllocationSuggestionDTO{
		CreditCardAccountID: s.CreditCardAccountID,
		TotalAmount:         money(s.TotalAmount),
		Allocations:         make([]AllocationDTO, len(s.Allocations)),
		Unallocated:         money(s.Unallocated),
	}
	for i, a := range s.Allocations {
		dto.Allocations[i] = AllocationDTO{EnvelopeID: a.EnvelopeID, Amount: money(a.Amount)}
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// BALANCE & INTEGRITY HANDLERS
// =============================================================================

func (h *Handler) AccountBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.Service.AccountBalances(r.Context())
	if err != nil {
		h.fail(w, r, "account_balances", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTOs(balances))
}

func (h *Handler) EnvelopeBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.Service.EnvelopeBalances(r.Context())
	if err != nil {
		h.fail(w, r, "envelope_balances", err)
		return
	}
	if accountID := r.URL.Query().Get("account_id"); accountID != "" {
		filtered := balances[:0]
		for _, b := range balances {
			if b.AccountID == accountID {
				filtered = append(filtered, b)
			}
		}
		balances = filtered
	}
	writeJSON(w, http.StatusOK, toBalanceDTOs(balances))
}

func (h *Handler) GetIntegrity(w http.ResponseWriter, r *http.Request) {
	found, err := h.Service.ValidateIntegrity(r.Context())
	if err != nil {
		h.fail(w, r, "validate_integrity", err)
		return
	}
	writeJSON(w, http.StatusOK, toIntegrityReport(found))
}

// RepairUnassigned creates the Unassigned envelope for every account that
// lost it.
func (h *Handler) RepairUnassigned(w http.ResponseWriter, r *http.Request) {
	created, err := h.Service.CreateMissingUnassignedEnvelopes(r.Context())
	if err != nil {
		h.fail(w, r, "repair_unassigned", err)
		return
	}
	dtos := make([]EnvelopeDTO, len(created))
	for i, e := range created {
		dtos[i] = toEnvelopeDTO(e)
	}
	if len(created) > 0 {
		h.succeed(r.Context(), "repair_unassigned", events.TypeUnassignedRepaired, dtos)
	}
	writeJSON(w, http.StatusOK, map[string]any{"created": dtos})
}

// =============================================================================
// FUNDING TARGET & PLANNING HANDLERS
// =============================================================================

func (h *Handler) ListFundingTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := h.Service.ListFundingTargets(r.Context())
	if err != nil {
		h.fail(w, r, "list_funding_targets", err)
		return
	}
	dtos := make([]FundingTargetDTO, len(targets))
	for i, t := range targets {
		dtos[i] = toFundingTargetDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateFundingTarget(w http.ResponseWriter, r *http.Request) {
	var req FundingTargetRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := h.Service.CreateFundingTarget(r.Context(), ledger.FundingTargetInput{
		EnvelopeID:    req.EnvelopeID,
		TargetType:    ledger.TargetType(req.TargetType),
		TargetAmount:  req.TargetAmount,
		MinimumAmount: req.MinimumAmount,
		Description:   req.Description,
		IsActive:      req.IsActive,
	})
	if err != nil {
		h.fail(w, r, "create_funding_target", err)
		return
	}
	h.succeed(r.Context(), "create_funding_target", "", nil)
	writeJSON(w, http.StatusCreated, toFundingTargetDTO(*t))
}

func (h *Handler) DeleteFundingTarget(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.Service.DeleteFundingTarget(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "delete_funding_target", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Funding target not found", nil)
		return
	}
	h.succeed(r.Context(), "delete_funding_target", "", nil)
	w.WriteHeader(http.StatusNoContent)
}

// GetPlanning reports funding requirements; ?paychecks= sets paychecks per
// month (default 2).
func (h *Handler) GetPlanning(w http.ResponseWriter, r *http.Request) {
	schedule := planning.Schedule{}
	if p := r.URL.Query().Get("paychecks"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "paychecks must be a positive integer", err)
			return
		}
		schedule.PaychecksPerMonth = n
	}
	report, err := planning.ForService(r.Context(), h.Service, schedule)
	if err != nil {
		h.fail(w, r, "planning", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanningDTO(report))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// statusFor maps ledger errors onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "Insufficient funds"
	case errors.Is(err, ledger.ErrValidation):
		return http.StatusBadRequest, "Invalid request"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

// fail writes err and records the failed operation.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, message := statusFor(err)
	result := metrics.ResultRejected
	if status == http.StatusInternalServerError {
		result = metrics.ResultError
		h.Logger.ErrorContext(r.Context(), "request failed", "operation", op, "error", err)
	}
	if h.Metrics != nil {
		h.Metrics.ObserveOperation(op, result)
	}
	writeError(w, status, message, err)
}

// succeed records a committed operation and publishes its event when
// eventType is set.
func (h *Handler) succeed(ctx context.Context, op, eventType string, data any) {
	if h.Metrics != nil {
		h.Metrics.ObserveOperation(op, metrics.ResultOK)
	}
	if eventType != "" {
		h.publish(ctx, eventType, data)
	}
}

// publish logs and counts failures instead of returning them: the ledger
// mutation has already committed.
func (h *Handler) publish(ctx context.Context, eventType string, data any) {
	if h.Events == nil {
		return
	}
	e, err := events.New(eventType, data)
	if err == nil {
		err = h.Events.Publish(ctx, e)
	}
	if err != nil {
		h.Logger.WarnContext(ctx, "event publish failed", "type", eventType, "error", err)
		if h.Metrics != nil {
			h.Metrics.EventPublishFailure.WithLabelValues(eventType).Inc()
		}
	}
}
