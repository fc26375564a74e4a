package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cardbudget/internal/amqp"
	"cardbudget/internal/core"
	"cardbudget/internal/services"
	"cardbudget/internal/sheets"
)

// MonthReader loads a budget month without creating it.
type MonthReader interface {
	GetBudgetMonth(ctx context.Context, userID, budgetID string) (services.MonthView, error)
}

// ExportWorker turns budget events into spreadsheet summary rows.
type ExportWorker struct {
	months   MonthReader
	exporter sheets.MonthExporter
	clock    func() time.Time
}

func NewExportWorker(months MonthReader, exporter sheets.MonthExporter) *ExportWorker {
	return &ExportWorker{months: months, exporter: exporter, clock: time.Now}
}

// HandleBudgetEvent exports the month named by the event. An event for a
// budget that no longer exists is dropped.
func (w *ExportWorker) HandleBudgetEvent(ctx context.Context, msg *amqp.BudgetEventMessage) error {
	slog.InfoContext(ctx, "Processing budget event",
		"event_id", msg.ID,
		"user_id", msg.UserID,
		"budget_id", msg.BudgetID,
		"reason", msg.Reason)

	view, err := w.months.GetBudgetMonth(ctx, msg.UserID, msg.BudgetID)
	if err != nil {
		if core.IsNotFound(err) {
			slog.WarnContext(ctx, "Budget gone, skipping export", "event_id", msg.ID, "budget_id", msg.BudgetID)
			return nil
		}
		return fmt.Errorf("load month: %w", err)
	}

	summary := sheets.SummaryOf(msg.UserID, view.Budget, view.Totals, w.clock())
	ref, err := w.exporter.ExportMonth(ctx, summary)
	if err != nil {
		return fmt.Errorf("export month: %w", err)
	}

	slog.InfoContext(ctx, "Successfully exported month",
		"event_id", msg.ID,
		"month", summary.Key(),
		"sheets_ref", ref)
	return nil
}
