package services

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"cardbudget/internal/amqp"
	"cardbudget/internal/core"
	"cardbudget/internal/storage"
)

// CashOutSuggestion is a proposed plan for one month.
type CashOutSuggestion struct {
	BudgetID    string                  `json:"budgetId"`
	Need        core.Money              `json:"need"`
	BalanceUsed core.Money              `json:"balanceUsed"`
	Candidates  []core.CashOutCandidate `json:"candidates"`
	Plan        []core.Withdrawal       `json:"plan"`
	Total       core.Money              `json:"total"`
	// Shortfall is the part of need no card can cover.
	Shortfall core.Money `json:"shortfall"`
}

// CashOutService suggests, validates, applies and resets withdrawal plans.
type CashOutService struct {
	base
	threshold decimal.Decimal
}

func NewCashOutService(d Deps) *CashOutService {
	threshold := core.DefaultTieThreshold
	if d.TieThreshold != nil {
		threshold = *d.TieThreshold
	}
	return &CashOutService{base: newBase(d), threshold: threshold}
}

// Suggest computes a plan covering the month's need. The month must exist.
func (s *CashOutService) Suggest(ctx context.Context, userID string, year, month int) (CashOutSuggestion, error) {
	ym, err := core.NewYearMonth(year, month)
	if err != nil {
		return CashOutSuggestion{}, err
	}

	var view MonthView
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		budget, ok, err := tx.FindBudget(ctx, userID, ym.Year, ym.Month)
		if err != nil {
			return err
		}
		if !ok {
			return &core.NotFoundError{Entity: "budget", ID: ym.String()}
		}
		view, err = s.loadMonth(ctx, tx, budget)
		return err
	})
	if err != nil {
		return CashOutSuggestion{}, err
	}

	candidates := core.OrderCandidates(view.candidates(), s.threshold)
	plan := core.SuggestPlan(view.Totals.Need, candidates, s.threshold)
	total := core.PlanTotal(plan)
	return CashOutSuggestion{
		BudgetID:    view.Budget.ID,
		Need:        view.Totals.Need,
		BalanceUsed: view.Budget.BalanceUsed,
		Candidates:  candidates,
		Plan:        plan,
		Total:       total,
		Shortfall:   view.Totals.Need.Sub(total).ClampZero(),
	}, nil
}

// Validate checks a hand-edited plan against the live available limits.
func (s *CashOutService) Validate(ctx context.Context, userID, budgetID string, withdrawals []core.Withdrawal) error {
	return s.store.WithTx(ctx, func(tx storage.Tx) error {
		budget, err := tx.GetBudget(ctx, userID, budgetID)
		if err != nil {
			return err
		}
		view, err := s.loadMonth(ctx, tx, budget)
		if err != nil {
			return err
		}
		return core.ValidateWithdrawals(withdrawals, view.candidates())
	})
}

// Apply records each positive withdrawal as a DONE cash-out income,
// accumulating into the card's existing cash-out row for the month, and
// adds the plan total to balanceUsed.
func (s *CashOutService) Apply(ctx context.Context, userID, budgetID string, withdrawals []core.Withdrawal) (core.Budget, error) {
	var budget core.Budget
	today := s.today()
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		if budget, err = tx.LockBudget(ctx, userID, budgetID); err != nil {
			return err
		}
		view, err := s.loadMonth(ctx, tx, budget)
		if err != nil {
			return err
		}
		if err := core.ValidateWithdrawals(withdrawals, view.candidates()); err != nil {
			return err
		}

		var applied core.Money
		for _, w := range withdrawals {
			if !w.Amount.IsPositive() {
				continue
			}
			card, err := tx.GetCard(ctx, userID, w.CardID)
			if err != nil {
				return err
			}
			existing, ok, err := tx.FindCashOutIncome(ctx, budget.ID, card.ID)
			if err != nil {
				return err
			}
			if ok {
				existing.Amount = existing.Amount.Add(w.Amount)
				if err := tx.UpdateIncome(ctx, existing); err != nil {
					return err
				}
			} else if err := tx.CreateIncome(ctx, core.Income{
				ID:            s.newID(),
				BudgetID:      budget.ID,
				Source:        core.CashOutLabel(card.Nickname),
				Amount:        w.Amount,
				Status:        core.StatusDone,
				PaidDate:      today,
				IsCashOut:     true,
				CashOutCardID: card.ID,
				CreatedAt:     s.now(),
			}); err != nil {
				return err
			}
			applied = applied.Add(w.Amount)
		}

		budget.BalanceUsed = budget.BalanceUsed.Add(applied)
		return tx.UpdateBudget(ctx, budget)
	})
	if err != nil {
		return core.Budget{}, err
	}

	slog.InfoContext(ctx, "Applied cash-out plan",
		"user_id", userID,
		"budget_id", budget.ID,
		"withdrawals", len(withdrawals),
		"balance_used", budget.BalanceUsed.String())
	s.publish(ctx, userID, budget, amqp.ReasonCashOutApplied)
	return budget, nil
}

// Reset deletes every cash-out income of the budget and zeroes balanceUsed.
func (s *CashOutService) Reset(ctx context.Context, userID, budgetID string) (core.Budget, error) {
	var (
		budget  core.Budget
		removed int64
	)
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		if budget, err = tx.LockBudget(ctx, userID, budgetID); err != nil {
			return err
		}
		if removed, err = tx.DeleteCashOutIncomes(ctx, budget.ID); err != nil {
			return err
		}
		budget.BalanceUsed = core.Money{}
		return tx.UpdateBudget(ctx, budget)
	})
	if err != nil {
		return core.Budget{}, err
	}

	slog.InfoContext(ctx, "Reset cash-out plan", "user_id", userID, "budget_id", budget.ID, "removed", removed)
	s.publish(ctx, userID, budget, amqp.ReasonCashOutReset)
	return budget, nil
}
