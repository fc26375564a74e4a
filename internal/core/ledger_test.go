package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testStatement() Statement {
	return NewStatement("st-1", "card-1", YearMonth{2025, 3}, Cycle{
		StatementDate: NewDate(2025, 3, 6),
		DueDate:       NewDate(2025, 3, 26),
	})
}

func TestStatementLinkUnlink(t *testing.T) {
	st := testStatement()
	st.Link(NewMoney(45000))
	assert.Equal(t, NewMoney(45000), st.TotalDue)

	st.Unlink(NewMoney(45000), false, 0)
	assert.True(t, st.TotalDue.IsZero())
	assert.Equal(t, StatusPending, st.Status)
}

func TestStatementUnlinkKeepsOtherBills(t *testing.T) {
	st := testStatement()
	st.Link(NewMoney(30000))
	st.Link(NewMoney(15000))

	st.Unlink(NewMoney(15000), false, 1)
	assert.Equal(t, NewMoney(30000), st.TotalDue)
}

func TestStatementMarkUnmarkPaid(t *testing.T) {
	st := testStatement()
	st.Link(NewMoney(45000))

	today := NewDate(2025, 3, 20)
	st.MarkPaid(NewMoney(45000), today)
	assert.True(t, st.TotalDue.IsZero())
	assert.Equal(t, StatusDone, st.Status)
	assert.Equal(t, today, st.PaidDate)

	st.UnmarkPaid(NewMoney(45000))
	assert.Equal(t, NewMoney(45000), st.TotalDue)
	assert.Equal(t, StatusPending, st.Status)
	assert.True(t, st.PaidDate.IsEmpty())
}

func TestStatementUnlinkPaidBill(t *testing.T) {
	st := testStatement()
	st.Link(NewMoney(20000))
	st.Link(NewMoney(10000))
	st.MarkPaid(NewMoney(10000), NewDate(2025, 3, 1))

	// the paid bill already left TotalDue
	st.Unlink(NewMoney(10000), true, 1)
	assert.Equal(t, NewMoney(20000), st.TotalDue)

	st.Unlink(NewMoney(20000), false, 0)
	assert.True(t, st.TotalDue.IsZero())
	assert.Equal(t, StatusPending, st.Status)
	assert.True(t, st.PaidDate.IsEmpty())
}

func TestStatementMarkPaidNeverNegative(t *testing.T) {
	st := testStatement()
	st.Link(NewMoney(100))
	st.MarkPaid(NewMoney(500), NewDate(2025, 3, 1))
	assert.True(t, st.TotalDue.IsZero())
}

func TestAvailableLimit(t *testing.T) {
	card := CreditCard{ID: "card-1", TotalLimit: moneyPtr(500000)}
	statements := []Statement{
		{ID: "a", CardID: "card-1", TotalDue: NewMoney(120000), Status: StatusPending},
		{ID: "b", CardID: "card-1", TotalDue: NewMoney(50000), Status: StatusDone},
		{ID: "c", CardID: "card-2", TotalDue: NewMoney(90000), Status: StatusPending},
	}

	got, ok := AvailableLimit(card, statements, NewMoney(30000))
	assert.True(t, ok)
	assert.Equal(t, NewMoney(350000), got)

	got, ok = AvailableLimit(card, statements, NewMoney(900000))
	assert.True(t, ok)
	assert.True(t, got.IsZero(), "available limit is clamped at zero")

	_, ok = AvailableLimit(CreditCard{ID: "card-3"}, statements, Money{})
	assert.False(t, ok)
}

func TestCashOutTaken(t *testing.T) {
	incomes := []Income{
		{Source: "Salary", Amount: NewMoney(180000)},
		{Source: CashOutLabel("JS Bank"), Amount: NewMoney(5000), IsCashOut: true, CashOutCardID: "card-1"},
		{Source: CashOutLabel("JS Bank"), Amount: NewMoney(2500), IsCashOut: true, CashOutCardID: "card-1"},
		{Source: CashOutLabel("Other"), Amount: NewMoney(1000), IsCashOut: true, CashOutCardID: "card-2"},
	}
	taken := CashOutTaken(incomes)
	assert.Len(t, taken, 2)
	assert.Equal(t, NewMoney(7500), taken["card-1"])
	assert.Equal(t, NewMoney(1000), taken["card-2"])
}
