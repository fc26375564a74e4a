package http

import (
	"net/http"

	"cardbudget/internal/services"
)

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	var in services.IncomeInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	inc, err := s.budgets.CreateIncome(r.Context(), userFrom(r), r.PathValue("budgetID"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inc)
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request) {
	var patch services.IncomePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	inc, err := s.budgets.UpdateIncome(r.Context(), userFrom(r), r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	if err := s.budgets.DeleteIncome(r.Context(), userFrom(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleIncome(w http.ResponseWriter, r *http.Request) {
	inc, err := s.budgets.ToggleIncome(r.Context(), userFrom(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

// handleCreateExpense creates a REGULAR expense, or a CARD_BILL when the
// body carries a statementId.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var in services.ExpenseInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	exp, err := s.budgets.CreateExpense(r.Context(), userFrom(r), r.PathValue("budgetID"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, exp)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var patch services.ExpensePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	exp, err := s.budgets.UpdateExpense(r.Context(), userFrom(r), r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

// handleDeleteExpense removes the expense, reversing its statement entry
// for card bills.
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.budgets.DeleteExpense(r.Context(), userFrom(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleExpense(w http.ResponseWriter, r *http.Request) {
	exp, err := s.budgets.ToggleExpense(r.Context(), userFrom(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}
