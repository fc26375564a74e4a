package sheets

import (
	"context"
	"time"

	"cardbudget/internal/core"
)

// MonthSummary is the exported view of one user's budget month. Exporters
// keep at most one row per (UserID, Year, Month).
type MonthSummary struct {
	UserID               string
	Year                 int
	Month                int
	IncomeTotal          core.Money
	CardsTotal           core.Money
	NonCardExpensesTotal core.Money
	Balance              core.Money
	Need                 core.Money
	BalanceUsed          core.Money
	UpdatedAt            time.Time
}

// Key is the month column value, YYYY-MM.
func (s MonthSummary) Key() string {
	return core.YearMonth{Year: s.Year, Month: s.Month}.String()
}

// SummaryOf builds a summary from a month's totals.
func SummaryOf(userID string, budget core.Budget, totals core.Totals, at time.Time) MonthSummary {
	return MonthSummary{
		UserID:               userID,
		Year:                 budget.Year,
		Month:                budget.Month,
		IncomeTotal:          totals.IncomeTotal,
		CardsTotal:           totals.CardsTotal,
		NonCardExpensesTotal: totals.NonCardExpensesTotal,
		Balance:              totals.Balance,
		Need:                 totals.Need,
		BalanceUsed:          budget.BalanceUsed,
		UpdatedAt:            at.UTC(),
	}
}

// Ports for outbound adapters.
type (
	MonthExporter interface {
		// ExportMonth inserts or replaces the summary row and returns a
		// reference to it.
		ExportMonth(ctx context.Context, s MonthSummary) (rowRef string, err error)
	}
)
