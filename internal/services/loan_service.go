package services

import (
	"context"
	"log/slog"

	"cardbudget/internal/core"
	"cardbudget/internal/storage"
)

type LoanInput struct {
	Name              string     `json:"name"`
	InstallmentAmount core.Money `json:"installmentAmount"`
	NextDueDate       core.Date  `json:"nextDueDate"`
}

// LoanService manages loans. A loan shows up as a PENDING LOAN expense in
// every budget month from its next due date onward.
type LoanService struct {
	base
}

func NewLoanService(d Deps) *LoanService {
	return &LoanService{base: newBase(d)}
}

// CreateLoan stores the loan and materializes it into existing months.
func (s *LoanService) CreateLoan(ctx context.Context, userID string, in LoanInput) (core.Loan, error) {
	loan := core.Loan{
		ID:                s.newID(),
		UserID:            userID,
		Name:              in.Name,
		InstallmentAmount: in.InstallmentAmount,
		NextDueDate:       in.NextDueDate,
		CreatedAt:         s.now(),
	}
	if err := loan.Validate(); err != nil {
		return loan, err
	}

	months := 0
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.CreateLoan(ctx, loan); err != nil {
			return err
		}
		from := loan.NextDueDate.YearMonth()
		budgets, err := tx.ListBudgetsFrom(ctx, userID, from.Year, from.Month)
		if err != nil {
			return err
		}
		for _, budget := range budgets {
			added, err := s.materializeLoan(ctx, tx, loan, budget, yearMonthOf(budget))
			if err != nil {
				return err
			}
			if added {
				months++
			}
		}
		return nil
	})
	if err != nil {
		return core.Loan{}, err
	}
	slog.InfoContext(ctx, "Created loan", "user_id", userID, "loan_id", loan.ID, "months", months)
	return loan, nil
}

func (s *LoanService) ListLoans(ctx context.Context, userID string) ([]core.Loan, error) {
	var loans []core.Loan
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		loans, err = tx.ListLoans(ctx, userID)
		return err
	})
	if loans == nil {
		loans = []core.Loan{}
	}
	return loans, err
}

// DeleteLoan removes the loan and its unpaid installments. Paid
// installments stay as history.
func (s *LoanService) DeleteLoan(ctx context.Context, userID, id string) error {
	var removed int64
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetLoan(ctx, userID, id); err != nil {
			return err
		}
		var err error
		if removed, err = tx.DeletePendingLoanExpenses(ctx, id); err != nil {
			return err
		}
		return tx.DeleteLoan(ctx, userID, id)
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Deleted loan", "user_id", userID, "loan_id", id, "installments_removed", removed)
	return nil
}
