/*
scenarios.go - Demo scenario endpoints

PURPOSE:
  Loads the embedded demo budgets from the seed package so a fresh install
  has something to look at.

USAGE VIA API:
  GET  /api/scenarios            list scenarios
  GET  /api/scenarios/current    last loaded scenario (null when none)
  POST /api/scenarios/load       {"scenario_id": "credit-card-payoff"}

NOTE:
  Loading a scenario resets the database. Only use in development/demo
  environments.

SEE ALSO:
  - seed/scenarios.go: scenario definitions
*/
package api

import (
	"errors"
	"net/http"

	"github.com/warp/envelope-ledger/seed"
)

func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	list, err := seed.Scenarios()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list scenarios", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	b, err := seed.LoadScenario(current)
	if err != nil {
		writeJSON(w, http.StatusOK, seed.Scenario{ID: current, Name: current})
		return
	}
	writeJSON(w, http.StatusOK, seed.Scenario{ID: b.ID, Name: b.Name, Description: b.Description})
}

func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	if h.Resetter == nil {
		writeError(w, http.StatusForbidden, "Scenario loading is disabled", nil)
		return
	}
	var req LoadScenarioRequest
	if !decode(w, r, &req) {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	res, err := seed.ResetAndApply(r.Context(), h.Service, h.Resetter, req.ScenarioID)
	if errors.Is(err, seed.ErrUnknownScenario) {
		writeError(w, http.StatusNotFound, "Unknown scenario", err)
		return
	}
	if err != nil {
		h.currentScenario = ""
		h.fail(w, r, "load_scenario", err)
		return
	}
	h.currentScenario = req.ScenarioID
	h.Logger.InfoContext(r.Context(), "scenario loaded", "scenario", req.ScenarioID)

	writeJSON(w, http.StatusOK, LoadScenarioResponse{
		ScenarioID:   req.ScenarioID,
		Accounts:     res.Accounts,
		Transactions: res.Transactions,
		Transfers:    res.Transfers,
		Payments:     res.Payments,
	})
}
