package services

import (
	"fmt"

	"cardbudget/internal/cache"
	"cardbudget/internal/core"
)

// CyclePredictor memoizes core.PredictCycle. The key covers every card
// field the prediction reads, so editing a card never serves a stale cycle.
type CyclePredictor struct {
	cache cache.Cache[core.Cycle]
}

// NewCyclePredictor wraps c; a nil cache disables memoization.
func NewCyclePredictor(c cache.Cache[core.Cycle]) *CyclePredictor {
	return &CyclePredictor{cache: c}
}

func (p *CyclePredictor) Predict(card core.CreditCard, ym core.YearMonth) (core.Cycle, error) {
	if p.cache == nil {
		return core.PredictCycle(card, ym.Year, ym.Month)
	}
	key := cycleKey(card, ym)
	if c, ok := p.cache.Get(key); ok {
		return c, nil
	}
	c, err := core.PredictCycle(card, ym.Year, ym.Month)
	if err != nil {
		return c, err
	}
	p.cache.Set(key, c)
	return c, nil
}

// DueIn returns the cycle whose due date lies in ym. Day-of-month cards
// whose due date rolls over are served by the previous month's statement.
// When no cycle is due in ym the plain prediction for ym is returned.
func (p *CyclePredictor) DueIn(card core.CreditCard, ym core.YearMonth) (core.Cycle, error) {
	c, err := p.Predict(card, ym)
	if err != nil || ym.Contains(c.DueDate) {
		return c, err
	}
	prev, err := p.Predict(card, ym.Prev())
	if err == nil && ym.Contains(prev.DueDate) {
		return prev, nil
	}
	return c, nil
}

func cycleKey(card core.CreditCard, ym core.YearMonth) string {
	return fmt.Sprintf("%s|%s|%s|%s|%d|%s|%s",
		card.ID, ym, card.FirstStatementDate, optInt(card.BillingCycleDays), card.DayDifference,
		optInt(card.StatementDay), optInt(card.DueDay))
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}
