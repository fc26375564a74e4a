package services

import (
	"context"
	"fmt"
	"log/slog"

	"cardbudget/internal/amqp"
	"cardbudget/internal/core"
	"cardbudget/internal/storage"
)

// RecurringItem names exactly one recurring income or expense.
type RecurringItem struct {
	Income  *core.Income
	Expense *core.Expense
}

// RecurrenceService rolls budgets forward and spreads recurring items into
// months that already exist.
type RecurrenceService struct {
	base
}

func NewRecurrenceService(d Deps) *RecurrenceService {
	return &RecurrenceService{base: newBase(d)}
}

// CreateNextMonth creates the month after year/month from the recurring
// items of the source month. The source must exist and the target must not.
func (s *RecurrenceService) CreateNextMonth(ctx context.Context, userID string, year, month int) (core.Budget, error) {
	source, err := core.NewYearMonth(year, month)
	if err != nil {
		return core.Budget{}, err
	}
	target := source.Next()

	var created core.Budget
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		src, ok, err := tx.FindBudget(ctx, userID, source.Year, source.Month)
		if err != nil {
			return err
		}
		if !ok {
			return &core.NotFoundError{Entity: "budget", ID: source.String()}
		}
		if _, exists, err := tx.FindBudget(ctx, userID, target.Year, target.Month); err != nil {
			return err
		} else if exists {
			return &core.DuplicateMonthError{Year: target.Year, Month: target.Month}
		}

		var isNew bool
		created, isNew, err = s.ensureBudget(ctx, tx, userID, target)
		if err != nil {
			return err
		}
		if !isNew {
			return &core.DuplicateMonthError{Year: target.Year, Month: target.Month}
		}
		// statements first so copied card bills link to the pre-created cycle
		if err := s.ensureCardStatements(ctx, tx, userID, target); err != nil {
			return err
		}

		incomes, err := tx.ListIncomes(ctx, src.ID)
		if err != nil {
			return err
		}
		for _, inc := range incomes {
			if !inc.Recurring || inc.IsCashOut || core.IsCashOutLabel(inc.Source) {
				continue
			}
			if err := tx.CreateIncome(ctx, s.copyIncome(inc, created.ID)); err != nil {
				return err
			}
		}

		expenses, err := tx.ListExpenses(ctx, src.ID)
		if err != nil {
			return err
		}
		for _, exp := range expenses {
			if !exp.Recurring || exp.Kind == core.KindLoan {
				continue
			}
			if err := s.copyExpenseInto(ctx, tx, userID, exp, created, target); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return core.Budget{}, err
	}

	slog.InfoContext(ctx, "Created next month", "user_id", userID, "from", source.String(), "to", target.String())
	s.publish(ctx, userID, created, amqp.ReasonMonthCreated)
	return created, nil
}

// PropagateToFutureMonths copies item into every existing budget strictly
// after year/month that does not already hold a recurring row with the same
// label. It returns the number of rows created.
func (s *RecurrenceService) PropagateToFutureMonths(ctx context.Context, userID string, year, month int, item RecurringItem) (int, error) {
	from, err := core.NewYearMonth(year, month)
	if err != nil {
		return 0, err
	}
	if (item.Income == nil) == (item.Expense == nil) {
		return 0, &core.ValidationError{Field: "item", Reason: "exactly one of income or expense is required"}
	}

	var n int
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		n, err = s.propagate(ctx, tx, userID, from, item)
		return err
	})
	return n, err
}

func (b base) propagate(ctx context.Context, tx storage.Tx, userID string, from core.YearMonth, item RecurringItem) (int, error) {
	next := from.Next()
	budgets, err := tx.ListBudgetsFrom(ctx, userID, next.Year, next.Month)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, budget := range budgets {
		ym := core.YearMonth{Year: budget.Year, Month: budget.Month}
		switch {
		case item.Income != nil:
			exists, err := tx.HasRecurringIncome(ctx, budget.ID, item.Income.Source)
			if err != nil {
				return created, err
			}
			if exists {
				continue
			}
			if err := tx.CreateIncome(ctx, b.copyIncome(*item.Income, budget.ID)); err != nil {
				return created, err
			}
		case item.Expense != nil:
			if item.Expense.Kind == core.KindLoan {
				return 0, nil
			}
			exists, err := tx.HasRecurringExpense(ctx, budget.ID, item.Expense.Name)
			if err != nil {
				return created, err
			}
			if exists {
				continue
			}
			if err := b.copyExpenseInto(ctx, tx, userID, *item.Expense, budget, ym); err != nil {
				return created, err
			}
		}
		created++
	}
	if created > 0 {
		slog.InfoContext(ctx, "Propagated recurring item", "user_id", userID, "from", from.String(), "months", created)
	}
	return created, nil
}

func (b base) copyIncome(inc core.Income, budgetID string) core.Income {
	return core.Income{
		ID:        b.newID(),
		BudgetID:  budgetID,
		Source:    inc.Source,
		Amount:    inc.Amount,
		Recurring: true,
		Status:    core.StatusPending,
		CreatedAt: b.now(),
	}
}

// copyExpenseInto writes a PENDING copy of exp into budget. Card bills are
// re-linked to the same card's statement for the budget's month.
func (b base) copyExpenseInto(ctx context.Context, tx storage.Tx, userID string, exp core.Expense, budget core.Budget, ym core.YearMonth) error {
	cp := core.Expense{
		ID:        b.newID(),
		BudgetID:  budget.ID,
		Name:      exp.Name,
		Kind:      exp.Kind,
		Amount:    exp.Amount,
		Recurring: true,
		Status:    core.StatusPending,
		CreatedAt: b.now(),
	}

	switch exp.Kind {
	case core.KindRegular:
		return tx.CreateExpense(ctx, cp)
	case core.KindCardBill:
		src, err := tx.GetStatement(ctx, userID, exp.StatementID)
		if err != nil {
			return fmt.Errorf("card bill %s: %w", exp.ID, err)
		}
		card, err := tx.GetCard(ctx, userID, src.CardID)
		if err != nil {
			return fmt.Errorf("card bill %s: %w", exp.ID, err)
		}
		st, err := b.ensureStatement(ctx, tx, card, ym)
		if err != nil {
			return err
		}
		cp.StatementID = st.ID
		if err := tx.CreateExpense(ctx, cp); err != nil {
			return err
		}
		st.Link(cp.Amount)
		return tx.UpdateStatement(ctx, st)
	default:
		return nil
	}
}

// Users lists everyone who has at least one budget.
func (s *RecurrenceService) Users(ctx context.Context) ([]string, error) {
	var users []string
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		users, err = tx.ListBudgetUsers(ctx)
		return err
	})
	return users, err
}
