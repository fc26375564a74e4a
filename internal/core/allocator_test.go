package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderCandidates(t *testing.T) {
	candidates := []CashOutCandidate{
		{CardID: "small", Available: NewMoney(10000), DueDate: NewDate(2025, 3, 28)},
		{CardID: "early", Available: NewMoney(100000), DueDate: NewDate(2025, 3, 5)},
		{CardID: "late", Available: NewMoney(95000), DueDate: NewDate(2025, 3, 25)},
		{CardID: "empty", Available: Money{}, DueDate: NewDate(2025, 3, 30)},
	}

	got := OrderCandidates(candidates, DefaultTieThreshold)
	ids := make([]string, 0, len(got))
	for _, c := range got {
		ids = append(ids, c.CardID)
	}
	// early and late are within 10% of each other, so the later due date wins
	assert.Equal(t, []string{"late", "early", "small"}, ids)

	got = OrderCandidates(candidates, decimal.Zero)
	assert.Equal(t, "early", got[0].CardID, "no tie window orders strictly by available limit")
}

func TestOrderCandidates_IndependentOfInputOrder(t *testing.T) {
	a := CashOutCandidate{CardID: "a", Available: NewMoney(10000), DueDate: NewDate(2025, 3, 10)}
	b := CashOutCandidate{CardID: "b", Available: NewMoney(9500), DueDate: NewDate(2025, 3, 20)}
	c := CashOutCandidate{CardID: "c", Available: NewMoney(8900), DueDate: NewDate(2025, 3, 30)}

	permutations := [][]CashOutCandidate{
		{a, b, c}, {a, c, b}, {b, a, c}, {b, c, a}, {c, a, b}, {c, b, a},
	}
	for _, in := range permutations {
		got := OrderCandidates(in, DefaultTieThreshold)
		ids := make([]string, 0, len(got))
		for _, cand := range got {
			ids = append(ids, cand.CardID)
		}
		// b is within 10% of a and due later; c is more than 10% below a
		assert.Equal(t, []string{"b", "a", "c"}, ids, "input %s%s%s", in[0].CardID, in[1].CardID, in[2].CardID)

		plan := SuggestPlan(NewMoney(10000), in, DefaultTieThreshold)
		assert.Equal(t, []Withdrawal{
			{CardID: "b", Amount: NewMoney(9500)},
			{CardID: "a", Amount: NewMoney(500)},
		}, plan)
	}
}

func TestSuggestPlan(t *testing.T) {
	candidates := []CashOutCandidate{
		{CardID: "a", Available: NewMoney(30000), DueDate: NewDate(2025, 3, 10)},
		{CardID: "b", Available: NewMoney(80000), DueDate: NewDate(2025, 3, 20)},
	}

	tests := []struct {
		name string
		need Money
		want []Withdrawal
	}{
		{"nothing needed", Money{}, []Withdrawal{}},
		{"single card covers", NewMoney(50000), []Withdrawal{{CardID: "b", Amount: NewMoney(50000)}}},
		{"spills over to the next card", NewMoney(95000), []Withdrawal{
			{CardID: "b", Amount: NewMoney(80000)},
			{CardID: "a", Amount: NewMoney(15000)},
		}},
		{"need beyond every limit", NewMoney(200000), []Withdrawal{
			{CardID: "b", Amount: NewMoney(80000)},
			{CardID: "a", Amount: NewMoney(30000)},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SuggestPlan(tt.need, candidates, DefaultTieThreshold)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, PlanTotal(got).Cents, tt.need.Cents)
			assert.NoError(t, ValidateWithdrawals(got, candidates))
		})
	}

	assert.Equal(t, []Withdrawal{}, SuggestPlan(NewMoney(1000), nil, DefaultTieThreshold))
}

func TestValidateWithdrawals(t *testing.T) {
	candidates := []CashOutCandidate{
		{CardID: "a", Available: NewMoney(30000)},
	}

	tests := []struct {
		name      string
		plan      []Withdrawal
		wantLimit bool
		wantValid bool
	}{
		{name: "within limit", plan: []Withdrawal{{CardID: "a", Amount: NewMoney(30000)}}},
		{name: "zero on unknown card is ignored", plan: []Withdrawal{{CardID: "z", Amount: Money{}}}},
		{name: "over the limit", plan: []Withdrawal{{CardID: "a", Amount: NewMoney(30001)}}, wantLimit: true},
		{name: "negative amount", plan: []Withdrawal{{CardID: "a", Amount: NewMoney(-1)}}, wantValid: true},
		{name: "unknown card", plan: []Withdrawal{{CardID: "z", Amount: NewMoney(1)}}, wantValid: true},
		{name: "empty card id", plan: []Withdrawal{{Amount: NewMoney(1)}}, wantValid: true},
		{name: "duplicate card", plan: []Withdrawal{
			{CardID: "a", Amount: NewMoney(1)},
			{CardID: "a", Amount: NewMoney(1)},
		}, wantValid: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWithdrawals(tt.plan, candidates)
			switch {
			case tt.wantLimit:
				require.Error(t, err)
				var lerr *LimitExceededError
				require.ErrorAs(t, err, &lerr)
				assert.Equal(t, "a", lerr.CardID)
				assert.Equal(t, NewMoney(30000), lerr.Available)
			case tt.wantValid:
				require.Error(t, err)
				assert.True(t, IsValidation(err), "got %v", err)
			default:
				assert.NoError(t, err)
			}
		})
	}
}
