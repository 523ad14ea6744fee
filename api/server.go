/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address from proxy headers
  3. Logger:     Request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. Metrics:    Per-route counters and latency, when enabled
  6. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/accounts/*       Accounts, unpaid card charges, payments per card
  /api/envelopes/*      Envelopes
  /api/transactions/*   Transactions
  /api/transfers/*      Envelope and account transfers
  /api/payments/*       Credit card payments, simulation, suggestions
  /api/balances/*       Status-bucket balance reports
  /api/integrity        Account vs envelope consistency
  /api/funding-targets  Funding targets
  /api/planning         Per-paycheck funding plan
  /api/scenarios/*      Demo scenarios
  /health               Liveness
  /metrics              Prometheus exposition

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cli/serve.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultCORSOrigins is used when Options.CORSOrigins is empty.
var DefaultCORSOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// Options configures NewRouter.
type Options struct {
	CORSOrigins []string
	// DisableRequestLog drops chi's request logger (tests).
	DisableRequestLog bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts Options) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = DefaultCORSOrigins
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if !opts.DisableRequestLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	if h.Metrics != nil {
		r.Use(h.instrument)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
			r.Post("/", h.CreateAccount)
			r.Get("/{id}", h.GetAccount)
			r.Put("/{id}", h.UpdateAccount)
			r.Delete("/{id}", h.DeleteAccount)
			r.Get("/{id}/unpaid", h.ListUnpaid)
			r.Get("/{id}/payments", h.ListPayments)
		})

		r.Route("/envelopes", func(r chi.Router) {
			r.Get("/", h.ListEnvelopes)
			r.Post("/", h.CreateEnvelope)
			r.Get("/{id}", h.GetEnvelope)
			r.Put("/{id}", h.UpdateEnvelope)
			r.Delete("/{id}", h.DeleteEnvelope)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Post("/", h.CreateTransaction)
			r.Get("/{id}", h.GetTransaction)
			r.Put("/{id}", h.UpdateTransaction)
			r.Delete("/{id}", h.DeleteTransaction)
		})

		r.Route("/transfers", func(r chi.Router) {
			r.Get("/envelopes", h.ListEnvelopeTransfers)
			r.Post("/envelopes", h.TransferEnvelopes)
			r.Post("/accounts", h.TransferAccounts)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/", h.ListPayments)
			r.Post("/", h.CreatePayment)
			r.Post("/simulate", h.SimulatePayment)
			r.Get("/suggest", h.SuggestPayment)
		})

		r.Route("/balances", func(r chi.Router) {
			r.Get("/accounts", h.AccountBalances)
			r.Get("/envelopes", h.EnvelopeBalances)
		})

		r.Get("/integrity", h.GetIntegrity)
		r.Post("/integrity/repair-unassigned", h.RepairUnassigned)

		r.Route("/funding-targets", func(r chi.Router) {
			r.Get("/", h.ListFundingTargets)
			r.Post("/", h.CreateFundingTarget)
			r.Delete("/{id}", h.DeleteFundingTarget)
		})
		r.Get("/planning", h.GetPlanning)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

// instrument records request count and latency by route pattern, so ids in
// the path do not explode label cardinality.
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.Metrics.ObserveHTTP(r.Method, route, status, time.Since(start))
	})
}
