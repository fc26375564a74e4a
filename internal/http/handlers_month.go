package http

import (
	"net/http"

	"cardbudget/internal/core"
	"cardbudget/internal/log"
)

type withdrawalsRequest struct {
	Withdrawals []core.Withdrawal `json:"withdrawals"`
}

// handleGetMonth returns the month view, creating the month on first access.
func (s *Server) handleGetMonth(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := s.budgets.GetMonth(r.Context(), userFrom(r), year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleNextMonth creates the month after {year}/{month}.
func (s *Server) handleNextMonth(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	budget, err := s.recurrence.CreateNextMonth(r.Context(), userFrom(r), year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Next month created",
		log.FieldUserID, userFrom(r),
		log.FieldBudgetID, budget.ID,
		log.FieldYear, budget.Year,
		log.FieldMonth, budget.Month)
	writeJSON(w, http.StatusCreated, budget)
}

func (s *Server) handleSuggestCashOut(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	suggestion, err := s.cashOut.Suggest(r.Context(), userFrom(r), year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestion)
}

func (s *Server) handleApplyCashOut(w http.ResponseWriter, r *http.Request) {
	var req withdrawalsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	budget, err := s.cashOut.Apply(r.Context(), userFrom(r), r.PathValue("budgetID"), req.Withdrawals)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, budget)
}

// handleValidateCashOut checks a hand-edited plan without applying it.
func (s *Server) handleValidateCashOut(w http.ResponseWriter, r *http.Request) {
	var req withdrawalsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.cashOut.Validate(r.Context(), userFrom(r), r.PathValue("budgetID"), req.Withdrawals); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid": true,
		"total": core.PlanTotal(req.Withdrawals),
	})
}

func (s *Server) handleResetCashOut(w http.ResponseWriter, r *http.Request) {
	budget, err := s.cashOut.Reset(r.Context(), userFrom(r), r.PathValue("budgetID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, budget)
}
