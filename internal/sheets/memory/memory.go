package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cardbudget/internal/sheets"
)

var _ sheets.MonthExporter = (*Store)(nil)

// Store keeps exported summaries in memory, one per user and month.
type Store struct {
	mu    sync.Mutex
	rows  []sheets.MonthSummary
	index map[string]int
}

func New() *Store {
	return &Store{index: make(map[string]int)}
}

// ExportMonth upserts the summary and returns a synthetic row reference.
func (s *Store) ExportMonth(_ context.Context, sum sheets.MonthSummary) (string, error) {
	if sum.UserID == "" {
		return "", fmt.Errorf("export month: empty user")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sum.UserID + "|" + sum.Key()
	if i, ok := s.index[key]; ok {
		s.rows[i] = sum
		return fmt.Sprintf("mem:%d", i+1), nil
	}
	s.rows = append(s.rows, sum)
	s.index[key] = len(s.rows) - 1
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Get returns the summary for the user and month.
func (s *Store) Get(userID string, year, month int) (sheets.MonthSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[userID+"|"+sheets.MonthSummary{Year: year, Month: month}.Key()]
	if !ok {
		return sheets.MonthSummary{}, false
	}
	return s.rows[i], true
}

// Rows returns every summary ordered by user and month.
func (s *Store) Rows() []sheets.MonthSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]sheets.MonthSummary(nil), s.rows...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}
