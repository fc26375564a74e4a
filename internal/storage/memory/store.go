// Package memory is an in-process Store used by tests and the memory backend.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	"cardbudget/internal/core"
	"cardbudget/internal/storage"
)

type state struct {
	cards      map[string]core.CreditCard
	statements map[string]core.Statement
	budgets    map[string]core.Budget
	incomes    map[string]core.Income
	expenses   map[string]core.Expense
	loans      map[string]core.Loan
}

func newState() *state {
	return &state{
		cards:      make(map[string]core.CreditCard),
		statements: make(map[string]core.Statement),
		budgets:    make(map[string]core.Budget),
		incomes:    make(map[string]core.Income),
		expenses:   make(map[string]core.Expense),
		loans:      make(map[string]core.Loan),
	}
}

func (s *state) clone() *state {
	return &state{
		cards:      maps.Clone(s.cards),
		statements: maps.Clone(s.statements),
		budgets:    maps.Clone(s.budgets),
		incomes:    maps.Clone(s.incomes),
		expenses:   maps.Clone(s.expenses),
		loans:      maps.Clone(s.loans),
	}
}

// Store keeps all rows in maps. A transaction works on a copy of the state
// under the store mutex and swaps it in on success, so transactions are
// serialized and a failed one leaves nothing behind.
type Store struct {
	mu    sync.Mutex
	state *state
}

var _ storage.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{state: newState()}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&tx{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

type tx struct {
	st *state
}

var _ storage.Tx = (*tx)(nil)

func duplicate(entity, id string) error {
	return fmt.Errorf("create %s: id %s already exists", entity, id)
}

// Credit cards

func (t *tx) CreateCard(_ context.Context, c core.CreditCard) error {
	if _, ok := t.st.cards[c.ID]; ok {
		return duplicate("credit card", c.ID)
	}
	t.st.cards[c.ID] = c
	return nil
}

func (t *tx) GetCard(_ context.Context, userID, id string) (core.CreditCard, error) {
	c, ok := t.st.cards[id]
	if !ok || c.UserID != userID {
		return core.CreditCard{}, &core.NotFoundError{Entity: "credit card", ID: id}
	}
	return c, nil
}

func (t *tx) ListCards(_ context.Context, userID string) ([]core.CreditCard, error) {
	var out []core.CreditCard
	for _, c := range t.st.cards {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Nickname < out[j].Nickname
	})
	return out, nil
}

func (t *tx) UpdateCard(ctx context.Context, c core.CreditCard) error {
	if _, err := t.GetCard(ctx, c.UserID, c.ID); err != nil {
		return err
	}
	t.st.cards[c.ID] = c
	return nil
}

func (t *tx) DeleteCard(ctx context.Context, userID, id string) error {
	if _, err := t.GetCard(ctx, userID, id); err != nil {
		return err
	}
	delete(t.st.cards, id)
	return nil
}

// Statements

func (t *tx) CreateStatement(_ context.Context, s core.Statement) error {
	if _, ok := t.st.statements[s.ID]; ok {
		return duplicate("statement", s.ID)
	}
	for _, existing := range t.st.statements {
		if existing.CardID == s.CardID && existing.TargetYear == s.TargetYear && existing.TargetMonth == s.TargetMonth {
			return fmt.Errorf("create statement for card %s %04d-%02d: %w", s.CardID, s.TargetYear, s.TargetMonth, storage.ErrConflict)
		}
	}
	t.st.statements[s.ID] = s
	return nil
}

func (t *tx) GetStatement(_ context.Context, userID, id string) (core.Statement, error) {
	s, ok := t.st.statements[id]
	if !ok || t.st.cards[s.CardID].UserID != userID {
		return core.Statement{}, &core.NotFoundError{Entity: "statement", ID: id}
	}
	return s, nil
}

func (t *tx) FindStatement(_ context.Context, cardID string, year, month int) (core.Statement, bool, error) {
	for _, s := range t.st.statements {
		if s.CardID == cardID && s.TargetYear == year && s.TargetMonth == month {
			return s, true, nil
		}
	}
	return core.Statement{}, false, nil
}

func (t *tx) UpdateStatement(_ context.Context, s core.Statement) error {
	if _, ok := t.st.statements[s.ID]; !ok {
		return &core.NotFoundError{Entity: "statement", ID: s.ID}
	}
	t.st.statements[s.ID] = s
	return nil
}

func (t *tx) ListStatementsDueBetween(_ context.Context, userID string, from, to core.Date) ([]core.Statement, error) {
	var out []core.Statement
	for _, s := range t.st.statements {
		if s.DueDate.Before(from) || s.DueDate.After(to) {
			continue
		}
		if t.st.cards[s.CardID].UserID != userID {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate.Time) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) DeleteStatementsByCard(_ context.Context, cardID string) error {
	for id, s := range t.st.statements {
		if s.CardID == cardID {
			delete(t.st.statements, id)
		}
	}
	return nil
}

// Budgets

func (t *tx) CreateBudget(_ context.Context, b core.Budget) error {
	if _, ok := t.st.budgets[b.ID]; ok {
		return duplicate("budget", b.ID)
	}
	for _, existing := range t.st.budgets {
		if existing.UserID == b.UserID && existing.Year == b.Year && existing.Month == b.Month {
			return &core.DuplicateMonthError{Year: b.Year, Month: b.Month}
		}
	}
	t.st.budgets[b.ID] = b
	return nil
}

func (t *tx) GetBudget(_ context.Context, userID, id string) (core.Budget, error) {
	b, ok := t.st.budgets[id]
	if !ok || b.UserID != userID {
		return core.Budget{}, &core.NotFoundError{Entity: "budget", ID: id}
	}
	return b, nil
}

// LockBudget is GetBudget: the store mutex already serializes transactions.
func (t *tx) LockBudget(ctx context.Context, userID, id string) (core.Budget, error) {
	return t.GetBudget(ctx, userID, id)
}

func (t *tx) FindBudget(_ context.Context, userID string, year, month int) (core.Budget, bool, error) {
	for _, b := range t.st.budgets {
		if b.UserID == userID && b.Year == year && b.Month == month {
			return b, true, nil
		}
	}
	return core.Budget{}, false, nil
}

func (t *tx) UpdateBudget(ctx context.Context, b core.Budget) error {
	if _, err := t.GetBudget(ctx, b.UserID, b.ID); err != nil {
		return err
	}
	t.st.budgets[b.ID] = b
	return nil
}

func (t *tx) ListBudgetsFrom(_ context.Context, userID string, year, month int) ([]core.Budget, error) {
	from := core.YearMonth{Year: year, Month: month}
	var out []core.Budget
	for _, b := range t.st.budgets {
		if b.UserID != userID {
			continue
		}
		if (core.YearMonth{Year: b.Year, Month: b.Month}).Before(from) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		return core.YearMonth{Year: out[i].Year, Month: out[i].Month}.Before(core.YearMonth{Year: out[j].Year, Month: out[j].Month})
	})
	return out, nil
}

func (t *tx) ListBudgetUsers(_ context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var users []string
	for _, b := range t.st.budgets {
		if !seen[b.UserID] {
			seen[b.UserID] = true
			users = append(users, b.UserID)
		}
	}
	sort.Strings(users)
	return users, nil
}

// Incomes

func (t *tx) ownsBudget(budgetID, userID string) bool {
	b, ok := t.st.budgets[budgetID]
	return ok && b.UserID == userID
}

func (t *tx) CreateIncome(_ context.Context, i core.Income) error {
	if _, ok := t.st.incomes[i.ID]; ok {
		return duplicate("income", i.ID)
	}
	if _, ok := t.st.budgets[i.BudgetID]; !ok {
		return &core.NotFoundError{Entity: "budget", ID: i.BudgetID}
	}
	t.st.incomes[i.ID] = i
	return nil
}

func (t *tx) GetIncome(_ context.Context, userID, id string) (core.Income, error) {
	i, ok := t.st.incomes[id]
	if !ok || !t.ownsBudget(i.BudgetID, userID) {
		return core.Income{}, &core.NotFoundError{Entity: "income", ID: id}
	}
	return i, nil
}

func (t *tx) UpdateIncome(_ context.Context, i core.Income) error {
	if _, ok := t.st.incomes[i.ID]; !ok {
		return &core.NotFoundError{Entity: "income", ID: i.ID}
	}
	t.st.incomes[i.ID] = i
	return nil
}

func (t *tx) DeleteIncome(_ context.Context, id string) error {
	if _, ok := t.st.incomes[id]; !ok {
		return &core.NotFoundError{Entity: "income", ID: id}
	}
	delete(t.st.incomes, id)
	return nil
}

func (t *tx) ListIncomes(_ context.Context, budgetID string) ([]core.Income, error) {
	var out []core.Income
	for _, i := range t.st.incomes {
		if i.BudgetID == budgetID {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.Before(out[b].CreatedAt)
		}
		return out[a].ID < out[b].ID
	})
	return out, nil
}

func (t *tx) HasRecurringIncome(_ context.Context, budgetID, source string) (bool, error) {
	for _, i := range t.st.incomes {
		if i.BudgetID == budgetID && i.Recurring && i.Source == source {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) FindCashOutIncome(ctx context.Context, budgetID, cardID string) (core.Income, bool, error) {
	incomes, _ := t.ListIncomes(ctx, budgetID)
	for _, i := range incomes {
		if i.IsCashOut && i.CashOutCardID == cardID {
			return i, true, nil
		}
	}
	return core.Income{}, false, nil
}

func (t *tx) DeleteCashOutIncomes(_ context.Context, budgetID string) (int64, error) {
	var n int64
	for id, i := range t.st.incomes {
		if i.BudgetID == budgetID && (i.IsCashOut || strings.HasPrefix(i.Source, core.CashOutPrefix)) {
			delete(t.st.incomes, id)
			n++
		}
	}
	return n, nil
}

// Expenses

func (t *tx) CreateExpense(_ context.Context, e core.Expense) error {
	if _, ok := t.st.expenses[e.ID]; ok {
		return duplicate("expense", e.ID)
	}
	if _, ok := t.st.budgets[e.BudgetID]; !ok {
		return &core.NotFoundError{Entity: "budget", ID: e.BudgetID}
	}
	if e.StatementID != "" {
		if _, ok := t.st.statements[e.StatementID]; !ok {
			return &core.NotFoundError{Entity: "statement", ID: e.StatementID}
		}
	}
	t.st.expenses[e.ID] = e
	return nil
}

func (t *tx) GetExpense(_ context.Context, userID, id string) (core.Expense, error) {
	e, ok := t.st.expenses[id]
	if !ok || !t.ownsBudget(e.BudgetID, userID) {
		return core.Expense{}, &core.NotFoundError{Entity: "expense", ID: id}
	}
	return e, nil
}

func (t *tx) UpdateExpense(_ context.Context, e core.Expense) error {
	if _, ok := t.st.expenses[e.ID]; !ok {
		return &core.NotFoundError{Entity: "expense", ID: e.ID}
	}
	t.st.expenses[e.ID] = e
	return nil
}

func (t *tx) DeleteExpense(_ context.Context, id string) error {
	if _, ok := t.st.expenses[id]; !ok {
		return &core.NotFoundError{Entity: "expense", ID: id}
	}
	delete(t.st.expenses, id)
	return nil
}

func (t *tx) ListExpenses(_ context.Context, budgetID string) ([]core.Expense, error) {
	var out []core.Expense
	for _, e := range t.st.expenses {
		if e.BudgetID == budgetID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.Before(out[b].CreatedAt)
		}
		return out[a].ID < out[b].ID
	})
	return out, nil
}

func (t *tx) HasRecurringExpense(_ context.Context, budgetID, name string) (bool, error) {
	for _, e := range t.st.expenses {
		if e.BudgetID == budgetID && e.Recurring && e.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) CountExpensesByStatement(_ context.Context, statementID string) (int, error) {
	n := 0
	for _, e := range t.st.expenses {
		if e.StatementID == statementID {
			n++
		}
	}
	return n, nil
}

func (t *tx) DeleteExpensesByCard(_ context.Context, cardID string) (int64, error) {
	var n int64
	for id, e := range t.st.expenses {
		if e.StatementID == "" {
			continue
		}
		if s, ok := t.st.statements[e.StatementID]; ok && s.CardID == cardID {
			delete(t.st.expenses, id)
			n++
		}
	}
	return n, nil
}

func (t *tx) HasLoanExpense(_ context.Context, budgetID, loanID string) (bool, error) {
	for _, e := range t.st.expenses {
		if e.BudgetID == budgetID && e.LoanID == loanID {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) DeletePendingLoanExpenses(_ context.Context, loanID string) (int64, error) {
	var n int64
	for id, e := range t.st.expenses {
		if e.LoanID == loanID && e.Status == core.StatusPending {
			delete(t.st.expenses, id)
			n++
		}
	}
	return n, nil
}

// Loans

func (t *tx) CreateLoan(_ context.Context, l core.Loan) error {
	if _, ok := t.st.loans[l.ID]; ok {
		return duplicate("loan", l.ID)
	}
	t.st.loans[l.ID] = l
	return nil
}

func (t *tx) GetLoan(_ context.Context, userID, id string) (core.Loan, error) {
	l, ok := t.st.loans[id]
	if !ok || l.UserID != userID {
		return core.Loan{}, &core.NotFoundError{Entity: "loan", ID: id}
	}
	return l, nil
}

func (t *tx) ListLoans(_ context.Context, userID string) ([]core.Loan, error) {
	var out []core.Loan
	for _, l := range t.st.loans {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].NextDueDate.Equal(out[j].NextDueDate.Time) {
			return out[i].NextDueDate.Before(out[j].NextDueDate)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (t *tx) DeleteLoan(ctx context.Context, userID, id string) error {
	if _, err := t.GetLoan(ctx, userID, id); err != nil {
		return err
	}
	delete(t.st.loans, id)
	return nil
}
