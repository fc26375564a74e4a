package storage

import (
	"context"
	"errors"

	"cardbudget/internal/core"
)

// Store is the persistence boundary of the budget engine. Every read and
// write runs inside WithTx so a multi-row operation either commits whole or
// leaves no trace.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

// Tx exposes every repository within one transaction.
type Tx interface {
	CardRepository
	StatementRepository
	BudgetRepository
	IncomeRepository
	ExpenseRepository
	LoanRepository
}

// ErrConflict is returned by CreateStatement when the card already has a
// statement for the month. The transaction stays usable so callers can
// re-read the winning row.
var ErrConflict = errors.New("row already exists")

// Lookups scoped by userID return *core.NotFoundError both for missing rows
// and for rows owned by another user.

type CardRepository interface {
	CreateCard(ctx context.Context, c core.CreditCard) error
	GetCard(ctx context.Context, userID, id string) (core.CreditCard, error)
	ListCards(ctx context.Context, userID string) ([]core.CreditCard, error)
	UpdateCard(ctx context.Context, c core.CreditCard) error
	DeleteCard(ctx context.Context, userID, id string) error
}

type StatementRepository interface {
	CreateStatement(ctx context.Context, s core.Statement) error
	GetStatement(ctx context.Context, userID, id string) (core.Statement, error)
	// FindStatement reports false when the card has no statement for the month.
	FindStatement(ctx context.Context, cardID string, year, month int) (core.Statement, bool, error)
	UpdateStatement(ctx context.Context, s core.Statement) error
	// ListStatementsDueBetween returns the user's statements, across all
	// cards, whose due date lies in [from, to].
	ListStatementsDueBetween(ctx context.Context, userID string, from, to core.Date) ([]core.Statement, error)
	DeleteStatementsByCard(ctx context.Context, cardID string) error
}

type BudgetRepository interface {
	// CreateBudget returns *core.DuplicateMonthError when the user already
	// has a budget for the month.
	CreateBudget(ctx context.Context, b core.Budget) error
	GetBudget(ctx context.Context, userID, id string) (core.Budget, error)
	// LockBudget reads the budget and holds a row lock until the transaction
	// ends on backends that support it.
	LockBudget(ctx context.Context, userID, id string) (core.Budget, error)
	FindBudget(ctx context.Context, userID string, year, month int) (core.Budget, bool, error)
	UpdateBudget(ctx context.Context, b core.Budget) error
	// ListBudgetsFrom returns the user's budgets at or after year/month in
	// chronological order.
	ListBudgetsFrom(ctx context.Context, userID string, year, month int) ([]core.Budget, error)
	ListBudgetUsers(ctx context.Context) ([]string, error)
}

type IncomeRepository interface {
	CreateIncome(ctx context.Context, i core.Income) error
	GetIncome(ctx context.Context, userID, id string) (core.Income, error)
	UpdateIncome(ctx context.Context, i core.Income) error
	DeleteIncome(ctx context.Context, id string) error
	ListIncomes(ctx context.Context, budgetID string) ([]core.Income, error)
	HasRecurringIncome(ctx context.Context, budgetID, source string) (bool, error)
	FindCashOutIncome(ctx context.Context, budgetID, cardID string) (core.Income, bool, error)
	// DeleteCashOutIncomes removes every income flagged as cash-out or
	// labeled with the cash-out prefix.
	DeleteCashOutIncomes(ctx context.Context, budgetID string) (int64, error)
}

type ExpenseRepository interface {
	CreateExpense(ctx context.Context, e core.Expense) error
	GetExpense(ctx context.Context, userID, id string) (core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense) error
	DeleteExpense(ctx context.Context, id string) error
	ListExpenses(ctx context.Context, budgetID string) ([]core.Expense, error)
	HasRecurringExpense(ctx context.Context, budgetID, name string) (bool, error)
	CountExpensesByStatement(ctx context.Context, statementID string) (int, error)
	// DeleteExpensesByCard removes the card bills linked to any statement
	// of the card.
	DeleteExpensesByCard(ctx context.Context, cardID string) (int64, error)
	HasLoanExpense(ctx context.Context, budgetID, loanID string) (bool, error)
	// DeletePendingLoanExpenses leaves paid installments in place.
	DeletePendingLoanExpenses(ctx context.Context, loanID string) (int64, error)
}

type LoanRepository interface {
	CreateLoan(ctx context.Context, l core.Loan) error
	GetLoan(ctx context.Context, userID, id string) (core.Loan, error)
	ListLoans(ctx context.Context, userID string) ([]core.Loan, error)
	DeleteLoan(ctx context.Context, userID, id string) error
}
