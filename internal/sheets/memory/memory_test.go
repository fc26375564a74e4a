package memory

import (
	"context"
	"testing"

	"cardbudget/internal/core"
	"cardbudget/internal/sheets"
)

func TestExportMonthUpserts(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.ExportMonth(ctx, sheets.MonthSummary{UserID: "alice", Year: 2025, Month: 3, Need: core.NewMoney(100)})
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected export: ref=%q err=%v", ref, err)
	}
	if _, err := s.ExportMonth(ctx, sheets.MonthSummary{UserID: "bob", Year: 2025, Month: 3}); err != nil {
		t.Fatalf("export bob: %v", err)
	}

	ref, err = s.ExportMonth(ctx, sheets.MonthSummary{UserID: "alice", Year: 2025, Month: 3, Need: core.NewMoney(50)})
	if err != nil || ref != "mem:1" {
		t.Fatalf("expected the same row on re-export: ref=%q err=%v", ref, err)
	}

	got, ok := s.Get("alice", 2025, 3)
	if !ok || got.Need.Cents != 50 {
		t.Fatalf("unexpected row: %+v ok=%v", got, ok)
	}
	if rows := s.Rows(); len(rows) != 2 || rows[0].UserID != "alice" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestExportMonthRejectsEmptyUser(t *testing.T) {
	if _, err := New().ExportMonth(context.Background(), sheets.MonthSummary{Year: 2025, Month: 1}); err == nil {
		t.Fatal("expected error for empty user")
	}
}
