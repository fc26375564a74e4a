package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"cardbudget/internal/core"
)

// MonthCreator creates the month after a source month. The recurrence
// service implements it.
type MonthCreator interface {
	CreateNextMonth(ctx context.Context, userID string, year, month int) (core.Budget, error)
	Users(ctx context.Context) ([]string, error)
}

// RolloverResult counts the outcome of one rollover pass.
type RolloverResult struct {
	Created int64
	Skipped int64
	Failed  int64
}

// RolloverWorker makes sure the current month exists for every user by
// rolling the previous month forward.
type RolloverWorker struct {
	months      MonthCreator
	users       []string
	concurrency int
	cron        *cron.Cron
}

// NewRolloverWorker creates a worker. An empty users list means every user
// that has at least one budget.
func NewRolloverWorker(months MonthCreator, users []string) *RolloverWorker {
	return &RolloverWorker{
		months:      months,
		users:       users,
		concurrency: 4,
	}
}

// RunOnce creates now's month from the month before it for each user.
// Users without a previous month and users whose month already exists are
// skipped. Other failures are counted and logged; they never stop the pass.
func (w *RolloverWorker) RunOnce(ctx context.Context, now time.Time) (RolloverResult, error) {
	users := w.users
	if len(users) == 0 {
		var err error
		if users, err = w.months.Users(ctx); err != nil {
			return RolloverResult{}, fmt.Errorf("list users: %w", err)
		}
	}

	source := core.DateOf(now).YearMonth().Prev()
	var res RolloverResult

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, userID := range users {
		g.Go(func() error {
			budget, err := w.months.CreateNextMonth(gctx, userID, source.Year, source.Month)
			switch {
			case err == nil:
				atomic.AddInt64(&res.Created, 1)
				slog.InfoContext(gctx, "Rolled over month", "user_id", userID, "budget_id", budget.ID, "from", source.String())
			case core.IsDuplicateMonth(err) || core.IsNotFound(err):
				atomic.AddInt64(&res.Skipped, 1)
				slog.DebugContext(gctx, "Rollover not needed", "user_id", userID, "from", source.String(), "reason", err)
			default:
				atomic.AddInt64(&res.Failed, 1)
				slog.ErrorContext(gctx, "Rollover failed", "user_id", userID, "from", source.String(), "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	slog.InfoContext(ctx, "Rollover pass complete",
		"users", len(users),
		"created", res.Created,
		"skipped", res.Skipped,
		"failed", res.Failed)
	return res, nil
}

// Start schedules RunOnce on the cron spec. It returns once the schedule
// is registered; Stop ends it.
func (w *RolloverWorker) Start(ctx context.Context, spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if _, err := w.RunOnce(ctx, time.Now()); err != nil {
			slog.ErrorContext(ctx, "Scheduled rollover failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid rollover schedule %q: %w", spec, err)
	}
	w.cron = c
	c.Start()
	slog.InfoContext(ctx, "Rollover worker scheduled", "schedule", spec)
	return nil
}

// Stop stops the schedule and waits for a running pass to finish or ctx
// to expire.
func (w *RolloverWorker) Stop(ctx context.Context) error {
	if w.cron == nil {
		return nil
	}
	select {
	case <-w.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
