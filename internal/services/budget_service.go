package services

import (
	"context"
	"fmt"
	"log/slog"

	"cardbudget/internal/amqp"
	"cardbudget/internal/core"
	"cardbudget/internal/storage"
)

// IncomeInput is the user-editable part of an income.
type IncomeInput struct {
	Source    string      `json:"source"`
	Amount    core.Money  `json:"amount"`
	Recurring bool        `json:"recurring"`
	Status    core.Status `json:"status"`
}

// IncomePatch updates only the fields that are set.
type IncomePatch struct {
	Source    *string     `json:"source"`
	Amount    *core.Money `json:"amount"`
	Recurring *bool       `json:"recurring"`
}

// ExpenseInput creates a REGULAR expense or, with StatementID, a CARD_BILL.
type ExpenseInput struct {
	Name        string           `json:"name"`
	Kind        core.ExpenseKind `json:"kind"`
	Amount      core.Money       `json:"amount"`
	Recurring   bool             `json:"recurring"`
	Status      core.Status      `json:"status"`
	StatementID string           `json:"statementId"`
}

type ExpensePatch struct {
	Name      *string     `json:"name"`
	Amount    *core.Money `json:"amount"`
	Recurring *bool       `json:"recurring"`
}

// BudgetService serves the month view and the income and expense
// lifecycle, keeping statement ledgers in step with card bills.
type BudgetService struct {
	base
}

func NewBudgetService(d Deps) *BudgetService {
	return &BudgetService{base: newBase(d)}
}

// GetMonth returns the month view, lazily creating the budget and any
// missing statements.
func (s *BudgetService) GetMonth(ctx context.Context, userID string, year, month int) (MonthView, error) {
	ym, err := core.NewYearMonth(year, month)
	if err != nil {
		return MonthView{}, err
	}

	var view MonthView
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		budget, _, err := s.ensureBudget(ctx, tx, userID, ym)
		if err != nil {
			return err
		}
		if err := s.ensureCardStatements(ctx, tx, userID, ym); err != nil {
			return err
		}
		view, err = s.loadMonth(ctx, tx, budget)
		return err
	})
	return view, err
}

// GetBudgetMonth returns the view of an existing budget without creating
// anything.
func (s *BudgetService) GetBudgetMonth(ctx context.Context, userID, budgetID string) (MonthView, error) {
	var view MonthView
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		budget, err := tx.GetBudget(ctx, userID, budgetID)
		if err != nil {
			return err
		}
		view, err = s.loadMonth(ctx, tx, budget)
		return err
	})
	return view, err
}

// Incomes

func (s *BudgetService) CreateIncome(ctx context.Context, userID, budgetID string, in IncomeInput) (core.Income, error) {
	if in.Status == "" {
		in.Status = core.StatusPending
	}
	inc := core.Income{
		ID:        s.newID(),
		BudgetID:  budgetID,
		Source:    in.Source,
		Amount:    in.Amount,
		Recurring: in.Recurring,
		Status:    in.Status,
		CreatedAt: s.now(),
	}
	if err := inc.Validate(); err != nil {
		return inc, err
	}
	if core.IsCashOutLabel(inc.Source) {
		return inc, &core.ValidationError{Field: "source", Reason: "the cash-out prefix is reserved for cash-out withdrawals"}
	}
	if inc.Status == core.StatusDone {
		inc.PaidDate = s.today()
	}

	var budget core.Budget
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		if budget, err = tx.GetBudget(ctx, userID, budgetID); err != nil {
			return err
		}
		if err := tx.CreateIncome(ctx, inc); err != nil {
			return err
		}
		if inc.Recurring {
			_, err = s.propagate(ctx, tx, userID, yearMonthOf(budget), RecurringItem{Income: &inc})
		}
		return err
	})
	if err != nil {
		return core.Income{}, err
	}
	s.publish(ctx, userID, budget, amqp.ReasonItemChanged)
	return inc, nil
}

func (s *BudgetService) UpdateIncome(ctx context.Context, userID, id string, patch IncomePatch) (core.Income, error) {
	var (
		inc    core.Income
		budget core.Budget
	)
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		if inc, err = tx.GetIncome(ctx, userID, id); err != nil {
			return err
		}
		if inc.IsCashOut {
			return &core.ValidationError{Field: "id", Reason: "cash-out incomes are managed through the cash-out plan"}
		}
		wasRecurring := inc.Recurring
		if patch.Source != nil {
			inc.Source = *patch.Source
			if core.IsCashOutLabel(inc.Source) {
				return &core.ValidationError{Field: "source", Reason: "the cash-out prefix is reserved for cash-out withdrawals"}
			}
		}
		if patch.Amount != nil {
			inc.Amount = *patch.Amount
		}
		if patch.Recurring != nil {
			inc.Recurring = *patch.Recurring
		}
		if err := inc.Validate(); err != nil {
			return err
		}
		if err := tx.UpdateIncome(ctx, inc); err != nil {
			return err
		}
		if budget, err = tx.GetBudget(ctx, userID, inc.BudgetID); err != nil {
			return err
		}
		if inc.Recurring && !wasRecurring {
			_, err = s.propagate(ctx, tx, userID, yearMonthOf(budget), RecurringItem{Income: &inc})
		}
		return err
	})
	if err != nil {
		return core.Income{}, err
	}
	s.publish(ctx, userID, budget, amqp.ReasonItemChanged)
	return inc, nil
}

func (s *BudgetService) ToggleIncome(ctx context.Context, userID, id string) (core.Income, error) {
	var (
		inc    core.Income
		budget core.Budget
	)
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		if inc, err = tx.GetIncome(ctx, userID, id); err != nil {
			return err
		}
		if inc.IsCashOut {
			return &core.ValidationError{Field: "id", Reason: "cash-out incomes are managed through the cash-out plan"}
		}
		inc.Status = inc.Status.Toggle()
		inc.PaidDate = core.Date{}
		if inc.Status == core.StatusDone {
			inc.PaidDate = s.today()
		}
		if err := tx.UpdateIncome(ctx, inc); err != nil {
			return err
		}
		budget, err = tx.GetBudget(ctx, userID, inc.BudgetID)
		return err
	})
	if err != nil {
		return core.Income{}, err
	}
	s.publish(ctx, userID, budget, amqp.ReasonItemChanged)
	return inc, nil
}

// DeleteIncome removes an income. Deleting a cash-out income also takes its
// amount off the budget's balanceUsed, floored at zero.
func (s *BudgetService) DeleteIncome(ctx context.Context, userID, id string) error {
	var budget core.Budget
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		inc, err := tx.GetIncome(ctx, userID, id)
		if err != nil {
			return err
		}
		if budget, err = tx.LockBudget(ctx, userID, inc.BudgetID); err != nil {
			return err
		}
		if err := tx.DeleteIncome(ctx, id); err != nil {
			return err
		}
		if inc.IsCashOut || core.IsCashOutLabel(inc.Source) {
			budget.BalanceUsed = budget.BalanceUsed.Sub(inc.Amount).ClampZero()
			return tx.UpdateBudget(ctx, budget)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, userID, budget, amqp.ReasonItemChanged)
	return nil
}

// Expenses

// CreateExpense adds a REGULAR expense or a CARD_BILL linked to one of the
// user's statements. LOAN expenses only come from loans.
func (s *BudgetService) CreateExpense(ctx context.Context, userID, budgetID string, in ExpenseInput) (core.Expense, error) {
	if in.Kind == "" {
		in.Kind = core.KindRegular
		if in.StatementID != "" {
			in.Kind = core.KindCardBill
		}
	}
	if in.Status == "" {
		in.Status = core.StatusPending
	}
	if in.Kind == core.KindLoan {
		return core.Expense{}, &core.ValidationError{Field: "kind", Reason: "loan installments are created from loans"}
	}
	exp := core.Expense{
		ID:          s.newID(),
		BudgetID:    budgetID,
		Name:        in.Name,
		Kind:        in.Kind,
		Amount:      in.Amount,
		Recurring:   in.Recurring,
		Status:      in.Status,
		StatementID: in.StatementID,
		CreatedAt:   s.now(),
	}
	if err := exp.Validate(); err != nil {
		return exp, err
	}
	today := s.today()
	if exp.Status == core.StatusDone {
		exp.PaidDate = today
	}

	var budget core.Budget
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		if budget, err = tx.GetBudget(ctx, userID, budgetID); err != nil {
			return err
		}
		if exp.Kind == core.KindCardBill {
			st, err := tx.GetStatement(ctx, userID, exp.StatementID)
			if err != nil {
				return err
			}
			if err := tx.CreateExpense(ctx, exp); err != nil {
				return err
			}
			st.Link(exp.Amount)
			if exp.Status == core.StatusDone {
				st.MarkPaid(exp.Amount, today)
			}
			if err := tx.UpdateStatement(ctx, st); err != nil {
				return err
			}
		} else if err := tx.CreateExpense(ctx, exp); err != nil {
			return err
		}
		if exp.Recurring {
			_, err = s.propagate(ctx, tx, userID, yearMonthOf(budget), RecurringItem{Expense: &exp})
		}
		return err
	})
	if err != nil {
		return core.Expense{}, err
	}
	s.publish(ctx, userID, budget, amqp.ReasonItemChanged)
	return exp, nil
}

// UpdateExpense edits a REGULAR expense. Card bills and loan installments
// are system managed and only change through their own lifecycle.
func (s *BudgetService) UpdateExpense(ctx context.Context, userID, id string, patch ExpensePatch) (core.Expense, error) {
	var (
		exp    core.Expense
		budget core.Budget
	)
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		if exp, err = tx.GetExpense(ctx, userID, id); err != nil {
			return err
		}
		if exp.Kind != core.KindRegular {
			return &core.ValidationError{Field: "kind", Reason: fmt.Sprintf("%s expenses cannot be edited", exp.Kind)}
		}
		wasRecurring := exp.Recurring
		if patch.Name != nil {
			exp.Name = *patch.Name
		}
		if patch.Amount != nil {
			exp.Amount = *patch.Amount
		}
		if patch.Recurring != nil {
			exp.Recurring = *patch.Recurring
		}
		if err := exp.Validate(); err != nil {
			return err
		}
		if err := tx.UpdateExpense(ctx, exp); err != nil {
			return err
		}
		if budget, err = tx.GetBudget(ctx, userID, exp.BudgetID); err != nil {
			return err
		}
		if exp.Recurring && !wasRecurring {
			_, err = s.propagate(ctx, tx, userID, yearMonthOf(budget), RecurringItem{Expense: &exp})
		}
		return err
	})
	if err != nil {
		return core.Expense{}, err
	}
	s.publish(ctx, userID, budget, amqp.ReasonItemChanged)
	return exp, nil
}

// ToggleExpense flips PENDING and DONE. For a card bill the statement is
// marked paid or unpaid with it; un-paying a card bill also zeroes the
// month's balanceUsed, since the cash-out plan no longer holds.
func (s *BudgetService) ToggleExpense(ctx context.Context, userID, id string) (core.Expense, error) {
	var (
		exp    core.Expense
		budget core.Budget
	)
	today := s.today()
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		if exp, err = tx.GetExpense(ctx, userID, id); err != nil {
			return err
		}
		if budget, err = tx.LockBudget(ctx, userID, exp.BudgetID); err != nil {
			return err
		}

		exp.Status = exp.Status.Toggle()
		exp.PaidDate = core.Date{}
		if exp.Status == core.StatusDone {
			exp.PaidDate = today
		}

		if exp.Kind == core.KindCardBill {
			st, err := tx.GetStatement(ctx, userID, exp.StatementID)
			if err != nil {
				return err
			}
			if exp.Status == core.StatusDone {
				st.MarkPaid(exp.Amount, today)
			} else {
				st.UnmarkPaid(exp.Amount)
				budget.BalanceUsed = core.Money{}
				if err := tx.UpdateBudget(ctx, budget); err != nil {
					return err
				}
			}
			if err := tx.UpdateStatement(ctx, st); err != nil {
				return err
			}
		}
		return tx.UpdateExpense(ctx, exp)
	})
	if err != nil {
		return core.Expense{}, err
	}
	slog.DebugContext(ctx, "Toggled expense", "expense_id", exp.ID, "kind", exp.Kind, "status", exp.Status)
	s.publish(ctx, userID, budget, amqp.ReasonItemChanged)
	return exp, nil
}

// DeleteExpense removes an expense. A card bill is unlinked from its
// statement in the same transaction.
func (s *BudgetService) DeleteExpense(ctx context.Context, userID, id string) error {
	var budget core.Budget
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		exp, err := tx.GetExpense(ctx, userID, id)
		if err != nil {
			return err
		}
		if budget, err = tx.GetBudget(ctx, userID, exp.BudgetID); err != nil {
			return err
		}
		if err := tx.DeleteExpense(ctx, id); err != nil {
			return err
		}
		if exp.Kind != core.KindCardBill {
			return nil
		}

		st, err := tx.GetStatement(ctx, userID, exp.StatementID)
		if err != nil {
			return err
		}
		remaining, err := tx.CountExpensesByStatement(ctx, st.ID)
		if err != nil {
			return err
		}
		st.Unlink(exp.Amount, exp.Status == core.StatusDone, remaining)
		return tx.UpdateStatement(ctx, st)
	})
	if err != nil {
		return err
	}
	s.publish(ctx, userID, budget, amqp.ReasonItemChanged)
	return nil
}

func yearMonthOf(b core.Budget) core.YearMonth {
	return core.YearMonth{Year: b.Year, Month: b.Month}
}
