package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cardbudget/internal/core"
)

// Incomes

const incomeColumns = `i.id, i.budget_id, i.source, i.amount_cents, i.recurring, i.status, i.paid_date,
	i.is_cash_out, i.cash_out_card_id, i.created_at`

func scanIncome(row rowScanner) (core.Income, error) {
	var (
		i         core.Income
		paid      sql.NullString
		cardID    sql.NullString
		createdAt timestampValue
	)
	if err := row.Scan(&i.ID, &i.BudgetID, &i.Source, &i.Amount.Cents, &i.Recurring, &i.Status, &paid,
		&i.IsCashOut, &cardID, &createdAt); err != nil {
		return i, err
	}
	d, err := scanDate(paid)
	if err != nil {
		return i, err
	}
	i.PaidDate = d
	i.CashOutCardID = cardID.String
	i.CreatedAt = createdAt.Time
	return i, nil
}

func scanIncomes(rows *sql.Rows) ([]core.Income, error) {
	defer rows.Close()
	var out []core.Income
	for rows.Next() {
		i, err := scanIncome(rows)
		if err != nil {
			return nil, fmt.Errorf("scan income: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (q *Queries) CreateIncome(ctx context.Context, i core.Income) error {
	_, err := q.exec(ctx, `INSERT INTO incomes (id, budget_id, source, amount_cents, recurring, status, paid_date,
		is_cash_out, cash_out_card_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.BudgetID, i.Source, i.Amount.Cents, i.Recurring, string(i.Status), dateParam(i.PaidDate),
		i.IsCashOut, stringParam(i.CashOutCardID), i.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("create income: %w", err)
	}
	return nil
}

func (q *Queries) GetIncome(ctx context.Context, userID, id string) (core.Income, error) {
	i, err := scanIncome(q.queryRow(ctx, `SELECT `+incomeColumns+`
		FROM incomes i JOIN budgets b ON b.id = i.budget_id
		WHERE i.id = ? AND b.user_id = ?`, id, userID))
	if err != nil {
		return i, notFound("income", id, err)
	}
	return i, nil
}

func (q *Queries) UpdateIncome(ctx context.Context, i core.Income) error {
	n, err := q.exec(ctx, `UPDATE incomes SET source = ?, amount_cents = ?, recurring = ?, status = ?, paid_date = ?,
		is_cash_out = ?, cash_out_card_id = ? WHERE id = ?`,
		i.Source, i.Amount.Cents, i.Recurring, string(i.Status), dateParam(i.PaidDate),
		i.IsCashOut, stringParam(i.CashOutCardID), i.ID)
	return expectOne("income", i.ID, n, err)
}

func (q *Queries) DeleteIncome(ctx context.Context, id string) error {
	n, err := q.exec(ctx, `DELETE FROM incomes WHERE id = ?`, id)
	return expectOne("income", id, n, err)
}

func (q *Queries) ListIncomes(ctx context.Context, budgetID string) ([]core.Income, error) {
	rows, err := q.query(ctx, `SELECT `+incomeColumns+` FROM incomes i WHERE i.budget_id = ? ORDER BY i.created_at, i.id`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	return scanIncomes(rows)
}

func (q *Queries) HasRecurringIncome(ctx context.Context, budgetID, source string) (bool, error) {
	ok, err := q.exists(ctx, `SELECT COUNT(*) FROM incomes WHERE budget_id = ? AND source = ? AND recurring = ?`,
		budgetID, source, true)
	if err != nil {
		return false, fmt.Errorf("check recurring income: %w", err)
	}
	return ok, nil
}

func (q *Queries) FindCashOutIncome(ctx context.Context, budgetID, cardID string) (core.Income, bool, error) {
	i, err := scanIncome(q.queryRow(ctx, `SELECT `+incomeColumns+` FROM incomes i
		WHERE i.budget_id = ? AND i.is_cash_out = ? AND i.cash_out_card_id = ?
		ORDER BY i.created_at LIMIT 1`, budgetID, true, cardID))
	if errors.Is(err, sql.ErrNoRows) {
		return i, false, nil
	}
	if err != nil {
		return i, false, fmt.Errorf("find cash-out income: %w", err)
	}
	return i, true, nil
}

func (q *Queries) DeleteCashOutIncomes(ctx context.Context, budgetID string) (int64, error) {
	n, err := q.exec(ctx, `DELETE FROM incomes WHERE budget_id = ? AND (is_cash_out = ? OR source LIKE ?)`,
		budgetID, true, core.CashOutPrefix+"%")
	if err != nil {
		return 0, fmt.Errorf("delete cash-out incomes: %w", err)
	}
	return n, nil
}

// Expenses

const expenseColumns = `e.id, e.budget_id, e.name, e.kind, e.amount_cents, e.recurring, e.status, e.paid_date,
	e.statement_id, e.loan_id, e.created_at`

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e                   core.Expense
		paid                sql.NullString
		statementID, loanID sql.NullString
		createdAt           timestampValue
	)
	if err := row.Scan(&e.ID, &e.BudgetID, &e.Name, &e.Kind, &e.Amount.Cents, &e.Recurring, &e.Status, &paid,
		&statementID, &loanID, &createdAt); err != nil {
		return e, err
	}
	d, err := scanDate(paid)
	if err != nil {
		return e, err
	}
	e.PaidDate = d
	e.StatementID = statementID.String
	e.LoanID = loanID.String
	e.CreatedAt = createdAt.Time
	return e, nil
}

func (q *Queries) CreateExpense(ctx context.Context, e core.Expense) error {
	_, err := q.exec(ctx, `INSERT INTO expenses (id, budget_id, name, kind, amount_cents, recurring, status, paid_date,
		statement_id, loan_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.BudgetID, e.Name, string(e.Kind), e.Amount.Cents, e.Recurring, string(e.Status), dateParam(e.PaidDate),
		stringParam(e.StatementID), stringParam(e.LoanID), e.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("create expense: %w", err)
	}
	return nil
}

func (q *Queries) GetExpense(ctx context.Context, userID, id string) (core.Expense, error) {
	e, err := scanExpense(q.queryRow(ctx, `SELECT `+expenseColumns+`
		FROM expenses e JOIN budgets b ON b.id = e.budget_id
		WHERE e.id = ? AND b.user_id = ?`, id, userID))
	if err != nil {
		return e, notFound("expense", id, err)
	}
	return e, nil
}

func (q *Queries) UpdateExpense(ctx context.Context, e core.Expense) error {
	n, err := q.exec(ctx, `UPDATE expenses SET name = ?, kind = ?, amount_cents = ?, recurring = ?, status = ?,
		paid_date = ?, statement_id = ?, loan_id = ? WHERE id = ?`,
		e.Name, string(e.Kind), e.Amount.Cents, e.Recurring, string(e.Status), dateParam(e.PaidDate),
		stringParam(e.StatementID), stringParam(e.LoanID), e.ID)
	return expectOne("expense", e.ID, n, err)
}

func (q *Queries) DeleteExpense(ctx context.Context, id string) error {
	n, err := q.exec(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	return expectOne("expense", id, n, err)
}

func (q *Queries) ListExpenses(ctx context.Context, budgetID string) ([]core.Expense, error) {
	rows, err := q.query(ctx, `SELECT `+expenseColumns+` FROM expenses e WHERE e.budget_id = ? ORDER BY e.created_at, e.id`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (q *Queries) HasRecurringExpense(ctx context.Context, budgetID, name string) (bool, error) {
	ok, err := q.exists(ctx, `SELECT COUNT(*) FROM expenses WHERE budget_id = ? AND name = ? AND recurring = ?`,
		budgetID, name, true)
	if err != nil {
		return false, fmt.Errorf("check recurring expense: %w", err)
	}
	return ok, nil
}

func (q *Queries) CountExpensesByStatement(ctx context.Context, statementID string) (int, error) {
	var n int
	if err := q.queryRow(ctx, `SELECT COUNT(*) FROM expenses WHERE statement_id = ?`, statementID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count statement expenses: %w", err)
	}
	return n, nil
}

func (q *Queries) DeleteExpensesByCard(ctx context.Context, cardID string) (int64, error) {
	n, err := q.exec(ctx, `DELETE FROM expenses WHERE statement_id IN (SELECT id FROM statements WHERE card_id = ?)`, cardID)
	if err != nil {
		return 0, fmt.Errorf("delete card expenses: %w", err)
	}
	return n, nil
}

func (q *Queries) HasLoanExpense(ctx context.Context, budgetID, loanID string) (bool, error) {
	ok, err := q.exists(ctx, `SELECT COUNT(*) FROM expenses WHERE budget_id = ? AND loan_id = ?`, budgetID, loanID)
	if err != nil {
		return false, fmt.Errorf("check loan expense: %w", err)
	}
	return ok, nil
}

func (q *Queries) DeletePendingLoanExpenses(ctx context.Context, loanID string) (int64, error) {
	n, err := q.exec(ctx, `DELETE FROM expenses WHERE loan_id = ? AND status = ?`, loanID, string(core.StatusPending))
	if err != nil {
		return 0, fmt.Errorf("delete loan expenses: %w", err)
	}
	return n, nil
}
