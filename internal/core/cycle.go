package core

import "fmt"

// maxCycleIterations bounds the anchor walk so a malformed card can never
// loop forever.
const maxCycleIterations = 1000

// Cycle is a statement date and the due date it produces.
type Cycle struct {
	StatementDate Date `json:"statementDate"`
	DueDate       Date `json:"dueDate"`
}

// CycleStrategy predicts the cycle whose due date belongs to a month.
type CycleStrategy interface {
	Name() string
	Predict(card CreditCard, ym YearMonth) (Cycle, error)
}

// CycleStrategyFor picks anchor-based prediction when the card has a first
// statement date and a cycle length, and the day-of-month fallback otherwise.
func CycleStrategyFor(card CreditCard) (CycleStrategy, error) {
	switch {
	case card.HasAnchor():
		return anchorStrategy{}, nil
	case card.StatementDay != nil:
		return dayOfMonthStrategy{}, nil
	default:
		return nil, &ValidationError{Field: "card", Reason: fmt.Sprintf("card %s has neither a billing cycle anchor nor a statement day", card.ID)}
	}
}

// PredictCycle returns the statement/due date pair whose due date falls in
// the target month. It is a pure function of the card configuration.
func PredictCycle(card CreditCard, year, month int) (Cycle, error) {
	ym, err := NewYearMonth(year, month)
	if err != nil {
		return Cycle{}, err
	}
	strategy, err := CycleStrategyFor(card)
	if err != nil {
		return Cycle{}, err
	}
	return strategy.Predict(card, ym)
}

type anchorStrategy struct{}

func (anchorStrategy) Name() string { return "anchor" }

// Predict walks whole cycles from the first known statement. When two due
// dates land in the month the earlier one is canonical. When none does (a
// cycle longer than the month) the last due date before the month is kept.
func (anchorStrategy) Predict(card CreditCard, ym YearMonth) (Cycle, error) {
	length := *card.BillingCycleDays
	if length <= 0 {
		return Cycle{}, &CycleComputationError{CardID: card.ID, Reason: fmt.Sprintf("billing cycle of %d days", length)}
	}

	start, end := ym.First(), ym.Last()
	statement := card.FirstStatementDate
	due := statement.AddDays(card.DayDifference)

	// Jump close to the target month so distant months stay well inside the cap.
	if gap := daysBetween(due, start); gap > length || gap < -length {
		steps := gap / length
		statement = statement.AddDays(steps * length)
		due = due.AddDays(steps * length)
	}

	for i := 0; i < maxCycleIterations; i++ {
		switch {
		case due.After(end):
			statement, due = statement.AddDays(-length), due.AddDays(-length)
		case due.Before(start):
			if due.AddDays(length).After(end) {
				return Cycle{StatementDate: statement, DueDate: due}, nil
			}
			statement, due = statement.AddDays(length), due.AddDays(length)
		default:
			if !due.AddDays(-length).Before(start) {
				statement, due = statement.AddDays(-length), due.AddDays(-length)
				continue
			}
			return Cycle{StatementDate: statement, DueDate: due}, nil
		}
	}
	return Cycle{}, &CycleComputationError{CardID: card.ID, Reason: fmt.Sprintf("no due date found for %s after %d iterations", ym, maxCycleIterations)}
}

type dayOfMonthStrategy struct{}

func (dayOfMonthStrategy) Name() string { return "day_of_month" }

// Predict clamps the statement day to the month length. The due date is the
// statement date plus the day difference, or the next occurrence of the
// legacy due day when no difference is configured. Rolling into the next
// month is expected.
func (dayOfMonthStrategy) Predict(card CreditCard, ym YearMonth) (Cycle, error) {
	if err := validateDayOfMonth("statementDay", card.StatementDay); err != nil {
		return Cycle{}, err
	}
	statement := ym.First().AddDays(clampDay(*card.StatementDay, ym) - 1)

	var due Date
	switch {
	case card.DayDifference > 0 || card.DueDay == nil:
		due = statement.AddDays(card.DayDifference)
	case *card.DueDay > statement.Day():
		due = ym.First().AddDays(clampDay(*card.DueDay, ym) - 1)
	default:
		next := ym.Next()
		due = next.First().AddDays(clampDay(*card.DueDay, next) - 1)
	}
	return Cycle{StatementDate: statement, DueDate: due}, nil
}

func clampDay(day int, ym YearMonth) int {
	if last := ym.Days(); day > last {
		return last
	}
	return day
}

func daysBetween(from, to Date) int {
	return int(to.Time.Sub(from.Time).Hours() / 24)
}
