package core

// Totals are the derived figures of one budget month. None of them is
// stored; ComputeTotals rebuilds them from the item set on every call.
type Totals struct {
	IncomeTotal            Money `json:"incomeTotal"`
	PaidIncomeTotal        Money `json:"paidIncomeTotal"`
	CardsTotal             Money `json:"cardsTotal"`
	NonCardExpensesTotal   Money `json:"nonCardExpensesTotal"`
	PendingCardBills       Money `json:"pendingCardBills"`
	PendingNonCardExpenses Money `json:"pendingNonCardExpenses"`
	TotalExpenses          Money `json:"totalExpenses"`
	AfterCardPayments      Money `json:"afterCardPayments"`
	PaidCardExpenses       Money `json:"paidCardExpenses"`
	PaidNonCardExpenses    Money `json:"paidNonCardExpenses"`
	Balance                Money `json:"balance"`
	Need                   Money `json:"need"`
	StatementsDueTotal     Money `json:"statementsDueTotal"`
}

// ComputeTotals derives the month totals.
//
// Card totals ignore payment status so they do not move when a bill is paid;
// balance is the realized cash position (paid income minus paid expenses);
// need is what is still owed beyond that balance, never negative.
func ComputeTotals(incomes []Income, expenses []Expense, statements []Statement) Totals {
	var t Totals

	for _, inc := range incomes {
		t.IncomeTotal = t.IncomeTotal.Add(inc.Amount)
		if inc.Status == StatusDone {
			t.PaidIncomeTotal = t.PaidIncomeTotal.Add(inc.Amount)
		}
	}

	for _, exp := range expenses {
		t.TotalExpenses = t.TotalExpenses.Add(exp.Amount)
		paid := exp.Status == StatusDone
		if exp.Kind == KindCardBill {
			t.CardsTotal = t.CardsTotal.Add(exp.Amount)
			if paid {
				t.PaidCardExpenses = t.PaidCardExpenses.Add(exp.Amount)
			} else {
				t.PendingCardBills = t.PendingCardBills.Add(exp.Amount)
			}
			continue
		}
		t.NonCardExpensesTotal = t.NonCardExpensesTotal.Add(exp.Amount)
		if paid {
			t.PaidNonCardExpenses = t.PaidNonCardExpenses.Add(exp.Amount)
		} else {
			t.PendingNonCardExpenses = t.PendingNonCardExpenses.Add(exp.Amount)
		}
	}

	for _, st := range statements {
		t.StatementsDueTotal = t.StatementsDueTotal.Add(st.TotalDue)
	}

	t.AfterCardPayments = t.IncomeTotal.Sub(t.CardsTotal)
	t.Balance = t.PaidIncomeTotal.Sub(t.PaidCardExpenses).Sub(t.PaidNonCardExpenses)
	t.Need = t.PendingCardBills.Add(t.PendingNonCardExpenses).Sub(t.Balance).ClampZero()
	return t
}
