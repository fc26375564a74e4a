package http

import (
	"net/http"

	"cardbudget/internal/core"
	"cardbudget/internal/services"
)

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.cards.ListCards(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if cards == nil {
		cards = []core.CreditCard{}
	}
	writeJSON(w, http.StatusOK, cards)
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var in services.CardInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	card, err := s.cards.CreateCard(r.Context(), userFrom(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	card, err := s.cards.GetCard(r.Context(), userFrom(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// handleUpdateCard applies the fields present in the body on top of the
// stored card.
func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	user, id := userFrom(r), r.PathValue("id")
	card, err := s.cards.GetCard(r.Context(), user, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in := services.CardInput{
		Nickname:           card.Nickname,
		Issuer:             card.Issuer,
		Last4:              card.Last4,
		FirstStatementDate: card.FirstStatementDate,
		BillingCycleDays:   card.BillingCycleDays,
		DayDifference:      card.DayDifference,
		TotalLimit:         card.TotalLimit,
		StatementDay:       card.StatementDay,
		DueDay:             card.DueDay,
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.cards.UpdateCard(r.Context(), user, id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteCard removes the card together with its statements.
func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	if err := s.cards.DeleteCard(r.Context(), userFrom(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCardCycle previews the statement and due date for ?year=&month=.
func (s *Server) handleCardCycle(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year")
	if err != nil {
		writeError(w, r, err)
		return
	}
	month, err := queryInt(r, "month")
	if err != nil {
		writeError(w, r, err)
		return
	}
	cycle, err := s.cards.PredictCycle(r.Context(), userFrom(r), r.PathValue("id"), year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cycle)
}

func (s *Server) handleListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := s.loans.ListLoans(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if loans == nil {
		loans = []core.Loan{}
	}
	writeJSON(w, http.StatusOK, loans)
}

func (s *Server) handleCreateLoan(w http.ResponseWriter, r *http.Request) {
	var in services.LoanInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	loan, err := s.loans.CreateLoan(r.Context(), userFrom(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

// handleDeleteLoan removes the loan and its pending installments.
func (s *Server) handleDeleteLoan(w http.ResponseWriter, r *http.Request) {
	if err := s.loans.DeleteLoan(r.Context(), userFrom(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
