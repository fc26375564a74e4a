package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cardbudget/internal/core"
	"cardbudget/internal/storage"
)

// CardSummary is a card as seen from one budget month.
type CardSummary struct {
	Card        core.CreditCard `json:"card"`
	StatementID string          `json:"statementId,omitempty"`
	DueDate     core.Date       `json:"dueDate"`
	TotalDue    core.Money      `json:"totalDue"`
	CashOut     core.Money      `json:"cashOut"`
	// Available is nil for cards without a limit.
	Available *core.Money `json:"available"`
}

// MonthView is everything the month screen shows.
type MonthView struct {
	Budget     core.Budget      `json:"budget"`
	Incomes    []core.Income    `json:"incomes"`
	Expenses   []core.Expense   `json:"expenses"`
	Statements []core.Statement `json:"statements"`
	Cards      []CardSummary    `json:"cards"`
	Totals     core.Totals      `json:"totals"`
}

// ensureStatement returns the card's statement due in ym, creating it with
// predicted dates when missing. Statements are keyed by the month of their
// due date, so a cycle shared by two months resolves to one row.
func (b base) ensureStatement(ctx context.Context, tx storage.Tx, card core.CreditCard, ym core.YearMonth) (core.Statement, error) {
	cycle, err := b.predictor.DueIn(card, ym)
	if err != nil {
		return core.Statement{}, err
	}
	key := cycle.DueDate.YearMonth()
	st, ok, err := tx.FindStatement(ctx, card.ID, key.Year, key.Month)
	if err != nil {
		return st, err
	}
	if ok {
		return st, nil
	}

	st = core.NewStatement(b.newID(), card.ID, key, cycle)
	if err := tx.CreateStatement(ctx, st); err != nil {
		if !errors.Is(err, storage.ErrConflict) {
			return st, err
		}
		// Lost a race with a concurrent first view of the same month.
		existing, found, ferr := tx.FindStatement(ctx, card.ID, key.Year, key.Month)
		if ferr != nil || !found {
			return st, err
		}
		return existing, nil
	}
	slog.DebugContext(ctx, "Created statement",
		"card_id", card.ID,
		"month", key.String(),
		"statement_date", cycle.StatementDate.String(),
		"due_date", cycle.DueDate.String())
	return st, nil
}

// ensureCardStatements pre-creates the month's statement for every card.
// A card whose cycle cannot be computed is skipped so one bad
// configuration does not hide the whole month.
func (b base) ensureCardStatements(ctx context.Context, tx storage.Tx, userID string, ym core.YearMonth) error {
	cards, err := tx.ListCards(ctx, userID)
	if err != nil {
		return err
	}
	for _, card := range cards {
		if _, err := b.ensureStatement(ctx, tx, card, ym); err != nil {
			if core.IsCycleComputation(err) || core.IsValidation(err) {
				slog.WarnContext(ctx, "Skipping statement for card", "card_id", card.ID, "month", ym.String(), "error", err)
				continue
			}
			return fmt.Errorf("ensure statement for card %s: %w", card.ID, err)
		}
	}
	return nil
}

// ensureBudget returns the user's budget for ym, creating it and
// materializing the user's loans when missing.
func (b base) ensureBudget(ctx context.Context, tx storage.Tx, userID string, ym core.YearMonth) (core.Budget, bool, error) {
	budget, ok, err := tx.FindBudget(ctx, userID, ym.Year, ym.Month)
	if err != nil || ok {
		return budget, false, err
	}

	budget = core.Budget{
		ID:        b.newID(),
		UserID:    userID,
		Year:      ym.Year,
		Month:     ym.Month,
		CreatedAt: b.now(),
	}
	if err := tx.CreateBudget(ctx, budget); err != nil {
		if !core.IsDuplicateMonth(err) {
			return budget, false, err
		}
		existing, found, ferr := tx.FindBudget(ctx, userID, ym.Year, ym.Month)
		if ferr != nil || !found {
			return budget, false, err
		}
		return existing, false, nil
	}
	if err := b.materializeLoans(ctx, tx, userID, budget); err != nil {
		return budget, false, err
	}
	slog.InfoContext(ctx, "Created budget month", "user_id", userID, "month", ym.String())
	return budget, true, nil
}

// materializeLoans adds a PENDING installment for every loan already due by
// the budget's month, unless the month has one for that loan.
func (b base) materializeLoans(ctx context.Context, tx storage.Tx, userID string, budget core.Budget) error {
	loans, err := tx.ListLoans(ctx, userID)
	if err != nil {
		return err
	}
	ym := core.YearMonth{Year: budget.Year, Month: budget.Month}
	for _, loan := range loans {
		if _, err := b.materializeLoan(ctx, tx, loan, budget, ym); err != nil {
			return err
		}
	}
	return nil
}

// materializeLoan reports whether it added an installment; months before
// the loan's first due date and months that already carry it are skipped.
func (b base) materializeLoan(ctx context.Context, tx storage.Tx, loan core.Loan, budget core.Budget, ym core.YearMonth) (bool, error) {
	if ym.Before(loan.NextDueDate.YearMonth()) {
		return false, nil
	}
	exists, err := tx.HasLoanExpense(ctx, budget.ID, loan.ID)
	if err != nil || exists {
		return false, err
	}
	err = tx.CreateExpense(ctx, core.Expense{
		ID:        b.newID(),
		BudgetID:  budget.ID,
		Name:      loan.Name,
		Kind:      core.KindLoan,
		Amount:    loan.InstallmentAmount,
		Recurring: true,
		Status:    core.StatusPending,
		LoanID:    loan.ID,
		CreatedAt: b.now(),
	})
	return err == nil, err
}

// loadMonth assembles the view of an existing budget. Available limits are
// derived here on every call.
func (b base) loadMonth(ctx context.Context, tx storage.Tx, budget core.Budget) (MonthView, error) {
	view := MonthView{Budget: budget}
	var err error
	if view.Incomes, err = tx.ListIncomes(ctx, budget.ID); err != nil {
		return view, err
	}
	if view.Expenses, err = tx.ListExpenses(ctx, budget.ID); err != nil {
		return view, err
	}
	ym := yearMonthOf(budget)
	if view.Statements, err = tx.ListStatementsDueBetween(ctx, budget.UserID, ym.First(), ym.Last()); err != nil {
		return view, err
	}
	cards, err := tx.ListCards(ctx, budget.UserID)
	if err != nil {
		return view, err
	}

	taken := core.CashOutTaken(view.Incomes)
	for _, card := range cards {
		summary := CardSummary{Card: card, CashOut: taken[card.ID]}
		for _, st := range view.Statements {
			if st.CardID == card.ID {
				summary.StatementID = st.ID
				summary.DueDate = st.DueDate
				summary.TotalDue = st.TotalDue
				break
			}
		}
		if available, ok := core.AvailableLimit(card, view.Statements, taken[card.ID]); ok {
			summary.Available = &available
		}
		view.Cards = append(view.Cards, summary)
	}

	view.Totals = core.ComputeTotals(view.Incomes, view.Expenses, view.Statements)
	if view.Incomes == nil {
		view.Incomes = []core.Income{}
	}
	if view.Expenses == nil {
		view.Expenses = []core.Expense{}
	}
	if view.Statements == nil {
		view.Statements = []core.Statement{}
	}
	if view.Cards == nil {
		view.Cards = []CardSummary{}
	}
	return view, nil
}

// candidates turns the month's card summaries into cash-out candidates.
func (v MonthView) candidates() []core.CashOutCandidate {
	var out []core.CashOutCandidate
	for _, c := range v.Cards {
		if c.Available == nil {
			continue
		}
		out = append(out, core.CashOutCandidate{
			CardID:    c.Card.ID,
			Nickname:  c.Card.Nickname,
			Available: *c.Available,
			DueDate:   c.DueDate,
		})
	}
	return out
}
