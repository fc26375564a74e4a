// Package services orchestrates the budget engine over a storage.Store.
//
// Every public operation runs in a single store transaction: ledger
// reversals and the row changes that trigger them commit together or not
// at all. Events are published only after a successful commit.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cardbudget/internal/amqp"
	"cardbudget/internal/core"
	"cardbudget/internal/storage"
)

// EventPublisher announces budget changes. *amqp.Client implements it.
type EventPublisher interface {
	PublishBudgetEvent(ctx context.Context, msg *amqp.BudgetEventMessage) error
}

// Deps are shared by all services.
type Deps struct {
	Store     storage.Store
	Predictor *CyclePredictor
	// Events may be nil, in which case events are skipped.
	Events EventPublisher
	// Clock defaults to time.Now.
	Clock func() time.Time
	// TieThreshold defaults to core.DefaultTieThreshold when nil.
	TieThreshold *decimal.Decimal
	// NewID defaults to random UUIDs.
	NewID func() string
}

type base struct {
	store     storage.Store
	predictor *CyclePredictor
	events    EventPublisher
	clock     func() time.Time
	newID     func() string
}

func newBase(d Deps) base {
	b := base{
		store:     d.Store,
		predictor: d.Predictor,
		events:    d.Events,
		clock:     d.Clock,
		newID:     d.NewID,
	}
	if b.predictor == nil {
		b.predictor = NewCyclePredictor(nil)
	}
	if b.clock == nil {
		b.clock = time.Now
	}
	if b.newID == nil {
		b.newID = uuid.NewString
	}
	return b
}

func (b base) today() core.Date {
	return core.DateOf(b.clock())
}

func (b base) now() time.Time {
	return b.clock().UTC()
}

// publish never fails the caller: the change is already committed.
func (b base) publish(ctx context.Context, userID string, budget core.Budget, reason string) {
	if b.events == nil {
		slog.DebugContext(ctx, "Event publisher not configured, skipping budget event", "reason", reason)
		return
	}
	msg := amqp.NewBudgetEventMessage(userID, budget.ID, budget.Year, budget.Month, reason)
	if err := b.events.PublishBudgetEvent(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish budget event",
			"event_id", msg.ID,
			"budget_id", budget.ID,
			"reason", reason,
			"error", err)
	}
}
