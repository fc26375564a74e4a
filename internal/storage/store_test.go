package storage_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardbudget/internal/core"
	"cardbudget/internal/storage"
	"cardbudget/internal/storage/memory"
)

func stores(t *testing.T) map[string]storage.Store {
	t.Helper()
	sqliteStore, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "budget.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteStore.Close() })

	return map[string]storage.Store{
		"sqlite": sqliteStore,
		"memory": memory.NewStore(),
	}
}

func intPtr(v int) *int { return &v }

func seed(t *testing.T, ctx context.Context, s storage.Store) (core.CreditCard, core.Budget, core.Statement) {
	t.Helper()
	limit := core.NewMoney(500000)
	card := core.CreditCard{
		ID:                 "card-1",
		UserID:             "alice",
		Nickname:           "JS Bank",
		Last4:              "4242",
		FirstStatementDate: core.NewDate(2025, 1, 5),
		BillingCycleDays:   intPtr(30),
		DayDifference:      20,
		TotalLimit:         &limit,
		CreatedAt:          time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC),
	}
	budget := core.Budget{ID: "budget-1", UserID: "alice", Year: 2025, Month: 3, CreatedAt: time.Now().UTC()}
	st := core.NewStatement("st-1", card.ID, core.YearMonth{Year: 2025, Month: 3}, core.Cycle{
		StatementDate: core.NewDate(2025, 3, 6),
		DueDate:       core.NewDate(2025, 3, 26),
	})

	err := s.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.CreateCard(ctx, card); err != nil {
			return err
		}
		if err := tx.CreateBudget(ctx, budget); err != nil {
			return err
		}
		return tx.CreateStatement(ctx, st)
	})
	require.NoError(t, err)
	return card, budget, st
}

func TestStore_CardRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			card, _, _ := seed(t, ctx, s)

			err := s.WithTx(ctx, func(tx storage.Tx) error {
				got, err := tx.GetCard(ctx, "alice", card.ID)
				require.NoError(t, err)
				assert.Equal(t, card.Nickname, got.Nickname)
				assert.Equal(t, card.FirstStatementDate.String(), got.FirstStatementDate.String())
				require.NotNil(t, got.BillingCycleDays)
				assert.Equal(t, 30, *got.BillingCycleDays)
				require.NotNil(t, got.TotalLimit)
				assert.Equal(t, int64(500000), got.TotalLimit.Cents)
				assert.Nil(t, got.StatementDay)

				_, err = tx.GetCard(ctx, "bob", card.ID)
				assert.True(t, core.IsNotFound(err), "other users cannot see the card")

				cards, err := tx.ListCards(ctx, "alice")
				require.NoError(t, err)
				assert.Len(t, cards, 1)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestStore_StatementUniquePerMonth(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			card, _, st := seed(t, ctx, s)

			err := s.WithTx(ctx, func(tx storage.Tx) error {
				dup := st
				dup.ID = "st-2"
				err := tx.CreateStatement(ctx, dup)
				assert.ErrorIs(t, err, storage.ErrConflict)

				// the transaction is still usable after the conflict
				got, ok, err := tx.FindStatement(ctx, card.ID, 2025, 3)
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, "st-1", got.ID)

				err = tx.CreateBudget(ctx, core.Budget{ID: "budget-2", UserID: "alice", Year: 2025, Month: 3, CreatedAt: time.Now().UTC()})
				assert.True(t, core.IsDuplicateMonth(err), "got %v", err)
				_, ok, err = tx.FindBudget(ctx, "alice", 2025, 3)
				require.NoError(t, err)
				assert.True(t, ok)
				return nil
			})
			require.NoError(t, err)

			err = s.WithTx(ctx, func(tx storage.Tx) error {
				got, ok, err := tx.FindStatement(ctx, card.ID, 2025, 3)
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, "st-1", got.ID)
				assert.Equal(t, "2025-03-26", got.DueDate.String())
				assert.True(t, got.PaidDate.IsEmpty())

				_, ok, err = tx.FindStatement(ctx, card.ID, 2025, 4)
				require.NoError(t, err)
				assert.False(t, ok)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestStore_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, budget, _ := seed(t, ctx, s)

			err := s.WithTx(ctx, func(tx storage.Tx) error {
				if err := tx.CreateIncome(ctx, core.Income{
					ID: "inc-1", BudgetID: budget.ID, Source: "Salary", Amount: core.NewMoney(180000),
					Status: core.StatusDone, PaidDate: core.NewDate(2025, 3, 1), CreatedAt: time.Now().UTC(),
				}); err != nil {
					return err
				}
				budget.BalanceUsed = core.NewMoney(999)
				if err := tx.UpdateBudget(ctx, budget); err != nil {
					return err
				}
				return boom
			})
			require.ErrorIs(t, err, boom)

			err = s.WithTx(ctx, func(tx storage.Tx) error {
				incomes, err := tx.ListIncomes(ctx, budget.ID)
				require.NoError(t, err)
				assert.Empty(t, incomes)

				b, err := tx.GetBudget(ctx, "alice", budget.ID)
				require.NoError(t, err)
				assert.True(t, b.BalanceUsed.IsZero())
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestStore_CashOutIncomes(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			card, budget, _ := seed(t, ctx, s)
			now := time.Now().UTC()

			err := s.WithTx(ctx, func(tx storage.Tx) error {
				require.NoError(t, tx.CreateIncome(ctx, core.Income{
					ID: "salary", BudgetID: budget.ID, Source: "Salary", Amount: core.NewMoney(180000),
					Status: core.StatusPending, Recurring: true, CreatedAt: now,
				}))
				require.NoError(t, tx.CreateIncome(ctx, core.Income{
					ID: "co-1", BudgetID: budget.ID, Source: core.CashOutLabel(card.Nickname), Amount: core.NewMoney(5000),
					Status: core.StatusDone, PaidDate: core.NewDate(2025, 3, 2), IsCashOut: true, CashOutCardID: card.ID,
					CreatedAt: now.Add(time.Second),
				}))
				// legacy row carrying only the label
				require.NoError(t, tx.CreateIncome(ctx, core.Income{
					ID: "co-legacy", BudgetID: budget.ID, Source: core.CashOutLabel("Old card"), Amount: core.NewMoney(100),
					Status: core.StatusDone, CreatedAt: now.Add(2 * time.Second),
				}))

				got, ok, err := tx.FindCashOutIncome(ctx, budget.ID, card.ID)
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, "co-1", got.ID)
				assert.Equal(t, card.ID, got.CashOutCardID)

				ok, err = tx.HasRecurringIncome(ctx, budget.ID, "Salary")
				require.NoError(t, err)
				assert.True(t, ok)

				n, err := tx.DeleteCashOutIncomes(ctx, budget.ID)
				require.NoError(t, err)
				assert.Equal(t, int64(2), n)

				incomes, err := tx.ListIncomes(ctx, budget.ID)
				require.NoError(t, err)
				require.Len(t, incomes, 1)
				assert.Equal(t, "salary", incomes[0].ID)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestStore_ListStatementsDueBetween(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			card, _, _ := seed(t, ctx, s)

			err := s.WithTx(ctx, func(tx storage.Tx) error {
				// cut in March, due in April
				rolled := core.NewStatement("st-rolled", card.ID, core.YearMonth{Year: 2025, Month: 4}, core.Cycle{
					StatementDate: core.NewDate(2025, 3, 25),
					DueDate:       core.NewDate(2025, 4, 1),
				})
				require.NoError(t, tx.CreateStatement(ctx, rolled))

				march, err := tx.ListStatementsDueBetween(ctx, "alice", core.NewDate(2025, 3, 1), core.NewDate(2025, 3, 31))
				require.NoError(t, err)
				require.Len(t, march, 1)
				assert.Equal(t, "st-1", march[0].ID)

				april, err := tx.ListStatementsDueBetween(ctx, "alice", core.NewDate(2025, 4, 1), core.NewDate(2025, 4, 30))
				require.NoError(t, err)
				require.Len(t, april, 1)
				assert.Equal(t, "st-rolled", april[0].ID)

				other, err := tx.ListStatementsDueBetween(ctx, "bob", core.NewDate(2025, 3, 1), core.NewDate(2025, 4, 30))
				require.NoError(t, err)
				assert.Empty(t, other)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestStore_ExpensesAndCardCascade(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			card, budget, st := seed(t, ctx, s)
			now := time.Now().UTC()

			err := s.WithTx(ctx, func(tx storage.Tx) error {
				require.NoError(t, tx.CreateExpense(ctx, core.Expense{
					ID: "bill", BudgetID: budget.ID, Name: "JS Bank", Kind: core.KindCardBill, Amount: core.NewMoney(45000),
					Status: core.StatusPending, StatementID: st.ID, CreatedAt: now,
				}))
				require.NoError(t, tx.CreateExpense(ctx, core.Expense{
					ID: "rent", BudgetID: budget.ID, Name: "Rent", Kind: core.KindRegular, Amount: core.NewMoney(25000),
					Status: core.StatusPending, Recurring: true, CreatedAt: now.Add(time.Second),
				}))

				n, err := tx.CountExpensesByStatement(ctx, st.ID)
				require.NoError(t, err)
				assert.Equal(t, 1, n)

				ok, err := tx.HasRecurringExpense(ctx, budget.ID, "Rent")
				require.NoError(t, err)
				assert.True(t, ok)

				deleted, err := tx.DeleteExpensesByCard(ctx, card.ID)
				require.NoError(t, err)
				assert.Equal(t, int64(1), deleted)
				require.NoError(t, tx.DeleteStatementsByCard(ctx, card.ID))
				require.NoError(t, tx.DeleteCard(ctx, "alice", card.ID))

				expenses, err := tx.ListExpenses(ctx, budget.ID)
				require.NoError(t, err)
				require.Len(t, expenses, 1)
				assert.Equal(t, core.KindRegular, expenses[0].Kind)

				statements, err := tx.ListStatementsDueBetween(ctx, "alice", core.NewDate(2025, 3, 1), core.NewDate(2025, 3, 31))
				require.NoError(t, err)
				assert.Empty(t, statements)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestStore_BudgetsAndLoans(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, budget, _ := seed(t, ctx, s)
			now := time.Now().UTC()

			err := s.WithTx(ctx, func(tx storage.Tx) error {
				for _, b := range []core.Budget{
					{ID: "b-jan", UserID: "alice", Year: 2025, Month: 1, CreatedAt: now},
					{ID: "b-may", UserID: "alice", Year: 2025, Month: 5, CreatedAt: now},
					{ID: "b-bob", UserID: "bob", Year: 2025, Month: 4, CreatedAt: now},
				} {
					require.NoError(t, tx.CreateBudget(ctx, b))
				}

				from, err := tx.ListBudgetsFrom(ctx, "alice", 2025, 3)
				require.NoError(t, err)
				require.Len(t, from, 2)
				assert.Equal(t, budget.ID, from[0].ID)
				assert.Equal(t, "b-may", from[1].ID)

				users, err := tx.ListBudgetUsers(ctx)
				require.NoError(t, err)
				assert.Equal(t, []string{"alice", "bob"}, users)

				loan := core.Loan{ID: "loan-1", UserID: "alice", Name: "Car", InstallmentAmount: core.NewMoney(12000),
					NextDueDate: core.NewDate(2025, 3, 15), CreatedAt: now}
				require.NoError(t, tx.CreateLoan(ctx, loan))
				require.NoError(t, tx.CreateExpense(ctx, core.Expense{
					ID: "inst-mar", BudgetID: budget.ID, Name: "Car", Kind: core.KindLoan, Amount: loan.InstallmentAmount,
					Status: core.StatusDone, LoanID: loan.ID, CreatedAt: now,
				}))
				require.NoError(t, tx.CreateExpense(ctx, core.Expense{
					ID: "inst-may", BudgetID: "b-may", Name: "Car", Kind: core.KindLoan, Amount: loan.InstallmentAmount,
					Status: core.StatusPending, LoanID: loan.ID, CreatedAt: now,
				}))

				ok, err := tx.HasLoanExpense(ctx, "b-may", loan.ID)
				require.NoError(t, err)
				assert.True(t, ok)

				n, err := tx.DeletePendingLoanExpenses(ctx, loan.ID)
				require.NoError(t, err)
				assert.Equal(t, int64(1), n, "paid installments stay")

				require.NoError(t, tx.DeleteLoan(ctx, "alice", loan.ID))
				assert.True(t, core.IsNotFound(tx.DeleteLoan(ctx, "alice", loan.ID)))
				return nil
			})
			require.NoError(t, err)
		})
	}
}
