package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cardbudget/internal/core"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries implements Tx on top of a database handle.
type Queries struct {
	db      DBTX
	dialect Dialect
}

func New(db DBTX, dialect Dialect) *Queries {
	return &Queries{db: db, dialect: dialect}
}

var _ Tx = (*Queries)(nil)

func (q *Queries) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := q.db.ExecContext(ctx, q.dialect.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, q.dialect.rebind(query), args...)
}

func (q *Queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.dialect.rebind(query), args...)
}

func (q *Queries) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var n int
	if err := q.queryRow(ctx, query, args...).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func expectOne(entity, id string, affected int64, err error) error {
	if err != nil {
		return fmt.Errorf("write %s: %w", entity, err)
	}
	if affected == 0 {
		return &core.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

// Credit cards

const cardColumns = `id, user_id, nickname, issuer, last4, first_statement_date, billing_cycle_days,
	day_difference, total_limit_cents, statement_day, due_day, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (core.CreditCard, error) {
	var (
		c                             core.CreditCard
		anchor                        sql.NullString
		cycle, limit, stmtDay, dueDay sql.NullInt64
		createdAt                     timestampValue
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Nickname, &c.Issuer, &c.Last4, &anchor, &cycle,
		&c.DayDifference, &limit, &stmtDay, &dueDay, &createdAt); err != nil {
		return c, err
	}
	d, err := scanDate(anchor)
	if err != nil {
		return c, err
	}
	c.FirstStatementDate = d
	c.BillingCycleDays = scanInt(cycle)
	c.TotalLimit = scanMoney(limit)
	c.StatementDay = scanInt(stmtDay)
	c.DueDay = scanInt(dueDay)
	c.CreatedAt = createdAt.Time
	return c, nil
}

func (q *Queries) CreateCard(ctx context.Context, c core.CreditCard) error {
	_, err := q.exec(ctx, `INSERT INTO credit_cards (`+cardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Nickname, c.Issuer, c.Last4, dateParam(c.FirstStatementDate), intParam(c.BillingCycleDays),
		c.DayDifference, moneyParam(c.TotalLimit), intParam(c.StatementDay), intParam(c.DueDay), c.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("create credit card: %w", err)
	}
	return nil
}

func (q *Queries) GetCard(ctx context.Context, userID, id string) (core.CreditCard, error) {
	c, err := scanCard(q.queryRow(ctx, `SELECT `+cardColumns+` FROM credit_cards WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return c, notFound("credit card", id, err)
	}
	return c, nil
}

func (q *Queries) ListCards(ctx context.Context, userID string) ([]core.CreditCard, error) {
	rows, err := q.query(ctx, `SELECT `+cardColumns+` FROM credit_cards WHERE user_id = ? ORDER BY created_at, nickname`, userID)
	if err != nil {
		return nil, fmt.Errorf("list credit cards: %w", err)
	}
	defer rows.Close()

	var cards []core.CreditCard
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credit card: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func (q *Queries) UpdateCard(ctx context.Context, c core.CreditCard) error {
	n, err := q.exec(ctx, `UPDATE credit_cards SET nickname = ?, issuer = ?, last4 = ?, first_statement_date = ?,
		billing_cycle_days = ?, day_difference = ?, total_limit_cents = ?, statement_day = ?, due_day = ?
		WHERE id = ? AND user_id = ?`,
		c.Nickname, c.Issuer, c.Last4, dateParam(c.FirstStatementDate), intParam(c.BillingCycleDays),
		c.DayDifference, moneyParam(c.TotalLimit), intParam(c.StatementDay), intParam(c.DueDay), c.ID, c.UserID)
	return expectOne("credit card", c.ID, n, err)
}

func (q *Queries) DeleteCard(ctx context.Context, userID, id string) error {
	n, err := q.exec(ctx, `DELETE FROM credit_cards WHERE id = ? AND user_id = ?`, id, userID)
	return expectOne("credit card", id, n, err)
}

// Statements

const statementColumns = `s.id, s.card_id, s.target_year, s.target_month, s.statement_date, s.due_date,
	s.total_due_cents, s.minimum_due_cents, s.available_limit_cents, s.status, s.paid_date`

func scanStatement(row rowScanner) (core.Statement, error) {
	var (
		s                   core.Statement
		stmtDate, due, paid sql.NullString
	)
	if err := row.Scan(&s.ID, &s.CardID, &s.TargetYear, &s.TargetMonth, &stmtDate, &due,
		&s.TotalDue.Cents, &s.MinimumDue.Cents, &s.AvailableLimit.Cents, &s.Status, &paid); err != nil {
		return s, err
	}
	var err error
	if s.StatementDate, err = scanDate(stmtDate); err != nil {
		return s, err
	}
	if s.DueDate, err = scanDate(due); err != nil {
		return s, err
	}
	if s.PaidDate, err = scanDate(paid); err != nil {
		return s, err
	}
	return s, nil
}

func (q *Queries) CreateStatement(ctx context.Context, s core.Statement) error {
	n, err := q.exec(ctx, `INSERT INTO statements (id, card_id, target_year, target_month, statement_date, due_date,
		total_due_cents, minimum_due_cents, available_limit_cents, status, paid_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (card_id, target_year, target_month) DO NOTHING`,
		s.ID, s.CardID, s.TargetYear, s.TargetMonth, dateParam(s.StatementDate), dateParam(s.DueDate),
		s.TotalDue.Cents, s.MinimumDue.Cents, s.AvailableLimit.Cents, string(s.Status), dateParam(s.PaidDate))
	if err != nil {
		return fmt.Errorf("create statement: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("create statement for card %s %04d-%02d: %w", s.CardID, s.TargetYear, s.TargetMonth, ErrConflict)
	}
	return nil
}

func (q *Queries) GetStatement(ctx context.Context, userID, id string) (core.Statement, error) {
	s, err := scanStatement(q.queryRow(ctx, `SELECT `+statementColumns+`
		FROM statements s JOIN credit_cards c ON c.id = s.card_id
		WHERE s.id = ? AND c.user_id = ?`, id, userID))
	if err != nil {
		return s, notFound("statement", id, err)
	}
	return s, nil
}

func (q *Queries) FindStatement(ctx context.Context, cardID string, year, month int) (core.Statement, bool, error) {
	s, err := scanStatement(q.queryRow(ctx, `SELECT `+statementColumns+` FROM statements s
		WHERE s.card_id = ? AND s.target_year = ? AND s.target_month = ?`+q.dialect.forUpdate(), cardID, year, month))
	if errors.Is(err, sql.ErrNoRows) {
		return s, false, nil
	}
	if err != nil {
		return s, false, fmt.Errorf("find statement: %w", err)
	}
	return s, true, nil
}

func (q *Queries) UpdateStatement(ctx context.Context, s core.Statement) error {
	n, err := q.exec(ctx, `UPDATE statements SET statement_date = ?, due_date = ?, total_due_cents = ?,
		minimum_due_cents = ?, available_limit_cents = ?, status = ?, paid_date = ? WHERE id = ?`,
		dateParam(s.StatementDate), dateParam(s.DueDate), s.TotalDue.Cents, s.MinimumDue.Cents,
		s.AvailableLimit.Cents, string(s.Status), dateParam(s.PaidDate), s.ID)
	return expectOne("statement", s.ID, n, err)
}

// ListStatementsDueBetween compares ISO dates stored as TEXT, which sort
// the same way as the dates themselves.
func (q *Queries) ListStatementsDueBetween(ctx context.Context, userID string, from, to core.Date) ([]core.Statement, error) {
	rows, err := q.query(ctx, `SELECT `+statementColumns+`
		FROM statements s JOIN credit_cards c ON c.id = s.card_id
		WHERE c.user_id = ? AND s.due_date BETWEEN ? AND ?
		ORDER BY s.due_date, s.id`, userID, dateParam(from), dateParam(to))
	if err != nil {
		return nil, fmt.Errorf("list statements: %w", err)
	}
	defer rows.Close()

	var out []core.Statement
	for rows.Next() {
		s, err := scanStatement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan statement: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (q *Queries) DeleteStatementsByCard(ctx context.Context, cardID string) error {
	if _, err := q.exec(ctx, `DELETE FROM statements WHERE card_id = ?`, cardID); err != nil {
		return fmt.Errorf("delete statements: %w", err)
	}
	return nil
}

// Budgets

const budgetColumns = `id, user_id, year, month, balance_used_cents, created_at`

func scanBudget(row rowScanner) (core.Budget, error) {
	var (
		b         core.Budget
		createdAt timestampValue
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.Year, &b.Month, &b.BalanceUsed.Cents, &createdAt); err != nil {
		return b, err
	}
	b.CreatedAt = createdAt.Time
	return b, nil
}

func (q *Queries) CreateBudget(ctx context.Context, b core.Budget) error {
	n, err := q.exec(ctx, `INSERT INTO budgets (`+budgetColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, year, month) DO NOTHING`,
		b.ID, b.UserID, b.Year, b.Month, b.BalanceUsed.Cents, b.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("create budget: %w", err)
	}
	if n == 0 {
		return &core.DuplicateMonthError{Year: b.Year, Month: b.Month}
	}
	return nil
}

func (q *Queries) GetBudget(ctx context.Context, userID, id string) (core.Budget, error) {
	b, err := scanBudget(q.queryRow(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return b, notFound("budget", id, err)
	}
	return b, nil
}

func (q *Queries) LockBudget(ctx context.Context, userID, id string) (core.Budget, error) {
	b, err := scanBudget(q.queryRow(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ? AND user_id = ?`+q.dialect.forUpdate(), id, userID))
	if err != nil {
		return b, notFound("budget", id, err)
	}
	return b, nil
}

func (q *Queries) FindBudget(ctx context.Context, userID string, year, month int) (core.Budget, bool, error) {
	b, err := scanBudget(q.queryRow(ctx, `SELECT `+budgetColumns+` FROM budgets
		WHERE user_id = ? AND year = ? AND month = ?`, userID, year, month))
	if errors.Is(err, sql.ErrNoRows) {
		return b, false, nil
	}
	if err != nil {
		return b, false, fmt.Errorf("find budget: %w", err)
	}
	return b, true, nil
}

func (q *Queries) UpdateBudget(ctx context.Context, b core.Budget) error {
	n, err := q.exec(ctx, `UPDATE budgets SET balance_used_cents = ? WHERE id = ? AND user_id = ?`,
		b.BalanceUsed.Cents, b.ID, b.UserID)
	return expectOne("budget", b.ID, n, err)
}

func (q *Queries) ListBudgetsFrom(ctx context.Context, userID string, year, month int) ([]core.Budget, error) {
	rows, err := q.query(ctx, `SELECT `+budgetColumns+` FROM budgets
		WHERE user_id = ? AND (year > ? OR (year = ? AND month >= ?))
		ORDER BY year, month`, userID, year, year, month)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (q *Queries) ListBudgetUsers(ctx context.Context) ([]string, error) {
	rows, err := q.query(ctx, `SELECT DISTINCT user_id FROM budgets ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list budget users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Loans

const loanColumns = `id, user_id, name, installment_cents, next_due_date, created_at`

func scanLoan(row rowScanner) (core.Loan, error) {
	var (
		l         core.Loan
		due       sql.NullString
		createdAt timestampValue
	)
	if err := row.Scan(&l.ID, &l.UserID, &l.Name, &l.InstallmentAmount.Cents, &due, &createdAt); err != nil {
		return l, err
	}
	d, err := scanDate(due)
	if err != nil {
		return l, err
	}
	l.NextDueDate = d
	l.CreatedAt = createdAt.Time
	return l, nil
}

func (q *Queries) CreateLoan(ctx context.Context, l core.Loan) error {
	_, err := q.exec(ctx, `INSERT INTO loans (`+loanColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		l.ID, l.UserID, l.Name, l.InstallmentAmount.Cents, dateParam(l.NextDueDate), l.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("create loan: %w", err)
	}
	return nil
}

func (q *Queries) GetLoan(ctx context.Context, userID, id string) (core.Loan, error) {
	l, err := scanLoan(q.queryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return l, notFound("loan", id, err)
	}
	return l, nil
}

func (q *Queries) ListLoans(ctx context.Context, userID string) ([]core.Loan, error) {
	rows, err := q.query(ctx, `SELECT `+loanColumns+` FROM loans WHERE user_id = ? ORDER BY next_due_date, name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()

	var out []core.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (q *Queries) DeleteLoan(ctx context.Context, userID, id string) error {
	n, err := q.exec(ctx, `DELETE FROM loans WHERE id = ? AND user_id = ?`, id, userID)
	return expectOne("loan", id, n, err)
}
