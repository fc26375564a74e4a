package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func moneyPtr(cents int64) *Money {
	m := NewMoney(cents)
	return &m
}

func TestYearMonth(t *testing.T) {
	cases := []struct {
		name  string
		ym    YearMonth
		first string
		last  string
		next  YearMonth
		prev  YearMonth
	}{
		{"january", YearMonth{2025, 1}, "2025-01-01", "2025-01-31", YearMonth{2025, 2}, YearMonth{2024, 12}},
		{"february leap year", YearMonth{2024, 2}, "2024-02-01", "2024-02-29", YearMonth{2024, 3}, YearMonth{2024, 1}},
		{"february", YearMonth{2025, 2}, "2025-02-01", "2025-02-28", YearMonth{2025, 3}, YearMonth{2025, 1}},
		{"december", YearMonth{2025, 12}, "2025-12-01", "2025-12-31", YearMonth{2026, 1}, YearMonth{2025, 11}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.ym.First().String(); got != tc.first {
				t.Errorf("First() = %s, want %s", got, tc.first)
			}
			if got := tc.ym.Last().String(); got != tc.last {
				t.Errorf("Last() = %s, want %s", got, tc.last)
			}
			if got := tc.ym.Next(); got != tc.next {
				t.Errorf("Next() = %v, want %v", got, tc.next)
			}
			if got := tc.ym.Prev(); got != tc.prev {
				t.Errorf("Prev() = %v, want %v", got, tc.prev)
			}
		})
	}

	assert.True(t, YearMonth{2024, 12}.Before(YearMonth{2025, 1}))
	assert.False(t, YearMonth{2025, 1}.Before(YearMonth{2025, 1}))

	_, err := NewYearMonth(2025, 13)
	assert.True(t, IsValidation(err))
}

func TestDateJSON(t *testing.T) {
	var v struct {
		D Date `json:"d"`
		E Date `json:"e"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"d":"2025-02-28","e":null}`), &v))
	assert.Equal(t, NewDate(2025, 2, 28), v.D)
	assert.True(t, v.E.IsEmpty())

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2025-02-28","e":null}`, string(out))

	err = json.Unmarshal([]byte(`{"d":"28/02/2025"}`), &v)
	assert.Error(t, err)
}

func TestParseExpenseKind(t *testing.T) {
	k, err := ParseExpenseKind("card_bill")
	require.NoError(t, err)
	assert.Equal(t, KindCardBill, k)

	k, err = ParseExpenseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindRegular, k)

	_, err = ParseExpenseKind("TRANSFER")
	assert.True(t, IsValidation(err))
}

func TestCreditCardValidate(t *testing.T) {
	base := CreditCard{
		Nickname:           "JS Bank",
		FirstStatementDate: NewDate(2025, 1, 5),
		BillingCycleDays:   intPtr(30),
		DayDifference:      20,
		TotalLimit:         moneyPtr(500000),
	}
	tests := []struct {
		name    string
		mutate  func(c *CreditCard)
		wantErr string
	}{
		{name: "valid anchor card", mutate: func(c *CreditCard) {}},
		{name: "valid legacy card", mutate: func(c *CreditCard) {
			c.FirstStatementDate = Date{}
			c.StatementDay = intPtr(31)
		}},
		{name: "empty nickname", mutate: func(c *CreditCard) { c.Nickname = " " }, wantErr: "nickname"},
		{name: "bad last4", mutate: func(c *CreditCard) { c.Last4 = "12a4" }, wantErr: "last4"},
		{name: "zero cycle", mutate: func(c *CreditCard) { c.BillingCycleDays = intPtr(0) }, wantErr: "billingCycleDays"},
		{name: "negative difference", mutate: func(c *CreditCard) { c.DayDifference = -1 }, wantErr: "dayDifference"},
		{name: "statement day out of range", mutate: func(c *CreditCard) { c.StatementDay = intPtr(32) }, wantErr: "statementDay"},
		{name: "negative limit", mutate: func(c *CreditCard) { c.TotalLimit = moneyPtr(-1) }, wantErr: "totalLimit"},
		{name: "no anchor and no statement day", mutate: func(c *CreditCard) { c.BillingCycleDays = nil }, wantErr: "firstStatementDate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantErr, verr.Field)
		})
	}
}

func TestExpenseValidate(t *testing.T) {
	tests := []struct {
		name    string
		exp     Expense
		wantErr bool
	}{
		{"regular", Expense{Name: "Rent", Kind: KindRegular, Amount: NewMoney(100), Status: StatusPending}, false},
		{"regular with statement", Expense{Name: "Rent", Kind: KindRegular, Amount: NewMoney(100), Status: StatusPending, StatementID: "s1"}, true},
		{"card bill", Expense{Name: "Visa", Kind: KindCardBill, Amount: NewMoney(100), Status: StatusDone, StatementID: "s1"}, false},
		{"card bill without statement", Expense{Name: "Visa", Kind: KindCardBill, Amount: NewMoney(100), Status: StatusPending}, true},
		{"loan", Expense{Name: "Car", Kind: KindLoan, Amount: NewMoney(100), Status: StatusPending, LoanID: "l1"}, false},
		{"loan without loan id", Expense{Name: "Car", Kind: KindLoan, Amount: NewMoney(100), Status: StatusPending}, true},
		{"unknown kind", Expense{Name: "X", Kind: "OTHER", Amount: NewMoney(100), Status: StatusPending}, true},
		{"zero amount", Expense{Name: "X", Kind: KindRegular, Status: StatusPending}, true},
		{"bad status", Expense{Name: "X", Kind: KindRegular, Amount: NewMoney(1), Status: "PAID"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.exp.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCashOutLabel(t *testing.T) {
	label := CashOutLabel("JS Bank")
	assert.Equal(t, "Cash-out – JS Bank", label)
	assert.True(t, IsCashOutLabel(label))
	assert.False(t, IsCashOutLabel("Cash-out - JS Bank"), "hyphen is not the en dash prefix")
}
