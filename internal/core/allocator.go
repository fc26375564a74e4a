package core

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultTieThreshold is the relative gap under which two cards' available
// limits count as equal when ordering cash-out candidates.
var DefaultTieThreshold = decimal.RequireFromString("0.10")

// CashOutCandidate is a card that can fund a withdrawal this month.
type CashOutCandidate struct {
	CardID    string `json:"cardId"`
	Nickname  string `json:"nickname"`
	Available Money  `json:"available"`
	DueDate   Date   `json:"dueDate"`
}

// Withdrawal is one line of a cash-out plan.
type Withdrawal struct {
	CardID string `json:"cardId"`
	Amount Money  `json:"amount"`
}

// OrderCandidates sorts cards by available limit, largest first. Walking
// that order, each card opens a group that also takes every following card
// within threshold of it; a group is ordered by due date, latest first, so
// the money drawn stays outstanding the longest. The result depends only on
// the candidate set. Cards with nothing available are dropped.
func OrderCandidates(candidates []CashOutCandidate, threshold decimal.Decimal) []CashOutCandidate {
	ordered := make([]CashOutCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Available.IsPositive() {
			ordered = append(ordered, c)
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		if c := ordered[i].Available.Cmp(ordered[j].Available); c != 0 {
			return c > 0
		}
		return ordered[i].CardID < ordered[j].CardID
	})

	for start := 0; start < len(ordered); {
		end := start + 1
		for end < len(ordered) && withinThreshold(ordered[start].Available, ordered[end].Available, threshold) {
			end++
		}
		group := ordered[start:end]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].DueDate.After(group[j].DueDate)
		})
		start = end
	}
	return ordered
}

// SuggestPlan covers need greedily from the ordered candidates, drawing
// min(remaining, available) from each until need or cards run out.
func SuggestPlan(need Money, candidates []CashOutCandidate, threshold decimal.Decimal) []Withdrawal {
	plan := []Withdrawal{}
	remaining := need
	for _, c := range OrderCandidates(candidates, threshold) {
		if !remaining.IsPositive() {
			break
		}
		amount := MinMoney(remaining, c.Available)
		plan = append(plan, Withdrawal{CardID: c.CardID, Amount: amount})
		remaining = remaining.Sub(amount)
	}
	return plan
}

// ValidateWithdrawals checks a possibly hand-edited plan against the live
// candidates. No amount may be negative or exceed its card's available limit.
func ValidateWithdrawals(withdrawals []Withdrawal, candidates []CashOutCandidate) error {
	byID := make(map[string]CashOutCandidate, len(candidates))
	for _, c := range candidates {
		byID[c.CardID] = c
	}
	seen := make(map[string]bool, len(withdrawals))
	for _, w := range withdrawals {
		if w.CardID == "" {
			return &ValidationError{Field: "cardId", Reason: "must not be empty"}
		}
		if seen[w.CardID] {
			return &ValidationError{Field: "cardId", Reason: fmt.Sprintf("card %s appears more than once", w.CardID)}
		}
		seen[w.CardID] = true
		if w.Amount.IsNegative() {
			return &ValidationError{Field: "amount", Reason: fmt.Sprintf("withdrawal on card %s is negative", w.CardID)}
		}
		c, ok := byID[w.CardID]
		if !ok {
			if w.Amount.IsZero() {
				continue
			}
			return &ValidationError{Field: "cardId", Reason: fmt.Sprintf("card %s has no available limit this month", w.CardID)}
		}
		if w.Amount.Cmp(c.Available) > 0 {
			return &LimitExceededError{CardID: w.CardID, Requested: w.Amount, Available: c.Available}
		}
	}
	return nil
}

// PlanTotal sums the withdrawal amounts.
func PlanTotal(withdrawals []Withdrawal) Money {
	var total Money
	for _, w := range withdrawals {
		total = total.Add(w.Amount)
	}
	return total
}

func withinThreshold(a, b Money, threshold decimal.Decimal) bool {
	larger, smaller := MaxMoney(a, b), MinMoney(a, b)
	if !larger.IsPositive() {
		return true
	}
	gap := larger.Sub(smaller).Decimal()
	return gap.LessThanOrEqual(larger.Decimal().Mul(threshold))
}
