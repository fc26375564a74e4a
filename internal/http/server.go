// Package http exposes the budget engine as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"cardbudget/internal/log"
	"cardbudget/internal/middleware/ratelimit"
	"cardbudget/internal/middleware/security"
	"cardbudget/internal/middleware/trace"
	"cardbudget/internal/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the API dispatches to.
type Deps struct {
	Budgets    *services.BudgetService
	CashOut    *services.CashOutService
	Recurrence *services.RecurrenceService
	Cards      *services.CardService
	Loans      *services.LoanService
	Store      Pinger
	Logger     *log.Logger
	// RequestsPerMinute defaults to the rate limiter default when zero.
	RequestsPerMinute int
}

type Server struct {
	http.Server

	budgets    *services.BudgetService
	cashOut    *services.CashOutService
	recurrence *services.RecurrenceService
	cards      *services.CardService
	loans      *services.LoanService
	store      Pinger

	limiter      *ratelimit.Limiter
	tracer       *trace.Middleware
	started      time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}

	s := &Server{
		budgets:    d.Budgets,
		cashOut:    d.CashOut,
		recurrence: d.Recurrence,
		cards:      d.Cards,
		loans:      d.Loans,
		store:      d.Store,
		limiter:    ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: d.RequestsPerMinute}),
		tracer:     trace.NewMiddleware(extractClientIP),
		started:    time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	api := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, requireUser(h))
	}

	api("GET /api/months/{year}/{month}", s.handleGetMonth)
	api("POST /api/months/{year}/{month}/next", s.handleNextMonth)
	api("GET /api/months/{year}/{month}/cashout", s.handleSuggestCashOut)

	api("POST /api/budgets/{budgetID}/incomes", s.handleCreateIncome)
	api("PATCH /api/incomes/{id}", s.handleUpdateIncome)
	api("DELETE /api/incomes/{id}", s.handleDeleteIncome)
	api("POST /api/incomes/{id}/toggle", s.handleToggleIncome)

	api("POST /api/budgets/{budgetID}/expenses", s.handleCreateExpense)
	api("PATCH /api/expenses/{id}", s.handleUpdateExpense)
	api("DELETE /api/expenses/{id}", s.handleDeleteExpense)
	api("POST /api/expenses/{id}/toggle", s.handleToggleExpense)

	api("POST /api/budgets/{budgetID}/cashout", s.handleApplyCashOut)
	api("POST /api/budgets/{budgetID}/cashout/validate", s.handleValidateCashOut)
	api("DELETE /api/budgets/{budgetID}/cashout", s.handleResetCashOut)

	api("GET /api/cards", s.handleListCards)
	api("POST /api/cards", s.handleCreateCard)
	api("GET /api/cards/{id}", s.handleGetCard)
	api("PATCH /api/cards/{id}", s.handleUpdateCard)
	api("DELETE /api/cards/{id}", s.handleDeleteCard)
	api("GET /api/cards/{id}/cycle", s.handleCardCycle)

	api("GET /api/loans", s.handleListLoans)
	api("POST /api/loans", s.handleCreateLoan)
	api("DELETE /api/loans/{id}", s.handleDeleteLoan)

	// Outermost first: tracing sees the final status of every response.
	var handler http.Handler = mux
	handler = s.limiter.Middleware(rateLimitKey, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
	})(handler)
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = log.Middleware(logger, trace.RequestID)(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports ready only when the store answers a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{}
	status, code := "ready", http.StatusOK
	switch {
	case s.store == nil:
		checks["store"] = "not_configured"
		status, code = "not_ready", http.StatusServiceUnavailable
	default:
		if err := s.store.Ping(ctx); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", "error", err)
			checks["store"] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}
	writeJSON(w, code, map[string]any{"status": status, "checks": checks})
}
