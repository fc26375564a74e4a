package services

import (
	"context"
	"log/slog"

	"cardbudget/internal/core"
	"cardbudget/internal/storage"
)

// CardInput is the editable part of a credit card.
type CardInput struct {
	Nickname           string      `json:"nickname"`
	Issuer             string      `json:"issuer"`
	Last4              string      `json:"last4"`
	FirstStatementDate core.Date   `json:"firstStatementDate"`
	BillingCycleDays   *int        `json:"billingCycleDays"`
	DayDifference      int         `json:"dayDifference"`
	TotalLimit         *core.Money `json:"totalLimit"`
	StatementDay       *int        `json:"statementDay"`
	DueDay             *int        `json:"dueDay"`
}

func (in CardInput) apply(c *core.CreditCard) {
	c.Nickname = in.Nickname
	c.Issuer = in.Issuer
	c.Last4 = in.Last4
	c.FirstStatementDate = in.FirstStatementDate
	c.BillingCycleDays = in.BillingCycleDays
	c.DayDifference = in.DayDifference
	c.TotalLimit = in.TotalLimit
	c.StatementDay = in.StatementDay
	c.DueDay = in.DueDay
}

type CardService struct {
	base
}

func NewCardService(d Deps) *CardService {
	return &CardService{base: newBase(d)}
}

func (s *CardService) CreateCard(ctx context.Context, userID string, in CardInput) (core.CreditCard, error) {
	card := core.CreditCard{ID: s.newID(), UserID: userID, CreatedAt: s.now()}
	in.apply(&card)
	if err := card.Validate(); err != nil {
		return card, err
	}
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		return tx.CreateCard(ctx, card)
	})
	if err != nil {
		return core.CreditCard{}, err
	}
	slog.InfoContext(ctx, "Created credit card", "user_id", userID, "card_id", card.ID)
	return card, nil
}

func (s *CardService) GetCard(ctx context.Context, userID, id string) (core.CreditCard, error) {
	var card core.CreditCard
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		card, err = tx.GetCard(ctx, userID, id)
		return err
	})
	return card, err
}

func (s *CardService) ListCards(ctx context.Context, userID string) ([]core.CreditCard, error) {
	var cards []core.CreditCard
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		cards, err = tx.ListCards(ctx, userID)
		return err
	})
	if cards == nil {
		cards = []core.CreditCard{}
	}
	return cards, err
}

// UpdateCard replaces the card's configuration. Existing statements keep
// their dates; only statements created afterwards use the new cycle.
func (s *CardService) UpdateCard(ctx context.Context, userID, id string, in CardInput) (core.CreditCard, error) {
	var card core.CreditCard
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		if card, err = tx.GetCard(ctx, userID, id); err != nil {
			return err
		}
		in.apply(&card)
		if err := card.Validate(); err != nil {
			return err
		}
		return tx.UpdateCard(ctx, card)
	})
	if err != nil {
		return core.CreditCard{}, err
	}
	return card, nil
}

// DeleteCard removes the card with its statements and their card bills.
func (s *CardService) DeleteCard(ctx context.Context, userID, id string) error {
	var bills int64
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetCard(ctx, userID, id); err != nil {
			return err
		}
		var err error
		if bills, err = tx.DeleteExpensesByCard(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteStatementsByCard(ctx, id); err != nil {
			return err
		}
		return tx.DeleteCard(ctx, userID, id)
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Deleted credit card", "user_id", userID, "card_id", id, "card_bills_removed", bills)
	return nil
}

// PredictCycle previews the card's cycle for any month without storing it.
func (s *CardService) PredictCycle(ctx context.Context, userID, id string, year, month int) (core.Cycle, error) {
	ym, err := core.NewYearMonth(year, month)
	if err != nil {
		return core.Cycle{}, err
	}
	card, err := s.GetCard(ctx, userID, id)
	if err != nil {
		return core.Cycle{}, err
	}
	return s.predictor.Predict(card, ym)
}

// EnsureStatement returns the card's statement due in the month, creating it
// from the predicted cycle when missing.
func (s *CardService) EnsureStatement(ctx context.Context, userID, cardID string, year, month int) (core.Statement, error) {
	ym, err := core.NewYearMonth(year, month)
	if err != nil {
		return core.Statement{}, err
	}
	var st core.Statement
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		card, err := tx.GetCard(ctx, userID, cardID)
		if err != nil {
			return err
		}
		st, err = s.ensureStatement(ctx, tx, card, ym)
		return err
	})
	return st, err
}
