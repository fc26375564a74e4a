package core

// Statement ledger transitions. Every mutation of TotalDue is a delta so a
// caller that serializes writes per statement never loses an update.

// NewStatement returns a zeroed PENDING statement for the predicted cycle.
func NewStatement(id, cardID string, ym YearMonth, cycle Cycle) Statement {
	return Statement{
		ID:            id,
		CardID:        cardID,
		TargetYear:    ym.Year,
		TargetMonth:   ym.Month,
		StatementDate: cycle.StatementDate,
		DueDate:       cycle.DueDate,
		Status:        StatusPending,
	}
}

// Target returns the month the statement is keyed by.
func (s Statement) Target() YearMonth {
	return YearMonth{Year: s.TargetYear, Month: s.TargetMonth}
}

// Link adds a newly created card bill to the amount due.
func (s *Statement) Link(amount Money) {
	s.TotalDue = s.TotalDue.Add(amount)
}

// MarkPaid moves amount out of the due bucket and closes the statement.
func (s *Statement) MarkPaid(amount Money, today Date) {
	s.TotalDue = s.TotalDue.Sub(amount).ClampZero()
	s.Status = StatusDone
	s.PaidDate = today
}

// UnmarkPaid reverses MarkPaid.
func (s *Statement) UnmarkPaid(amount Money) {
	s.TotalDue = s.TotalDue.Add(amount)
	s.Status = StatusPending
	s.PaidDate = Date{}
}

// Unlink removes a deleted card bill. A bill that was already paid no longer
// contributes to TotalDue, so only unpaid amounts are subtracted. When no
// bill remains linked the statement starts over.
func (s *Statement) Unlink(amount Money, wasPaid bool, remainingLinks int) {
	if !wasPaid {
		s.TotalDue = s.TotalDue.Sub(amount).ClampZero()
	}
	if remainingLinks <= 0 {
		s.Reset()
	}
}

// Reset zeroes the statement and reopens it.
func (s *Statement) Reset() {
	s.TotalDue = Money{}
	s.MinimumDue = Money{}
	s.Status = StatusPending
	s.PaidDate = Date{}
}

// AvailableLimit computes what can still be drawn on a card this month:
// the total limit minus the PENDING dues of the card's statements in the
// month minus cash-out already taken against it. The second result is false
// for cards without a limit. The value is never cached.
func AvailableLimit(card CreditCard, statements []Statement, cashOutTaken Money) (Money, bool) {
	if card.TotalLimit == nil {
		return Money{}, false
	}
	available := *card.TotalLimit
	for _, st := range statements {
		if st.CardID != card.ID || st.Status != StatusPending {
			continue
		}
		available = available.Sub(st.TotalDue)
	}
	return available.Sub(cashOutTaken).ClampZero(), true
}

// CashOutTaken sums the cash-out incomes recorded against each card.
func CashOutTaken(incomes []Income) map[string]Money {
	taken := make(map[string]Money)
	for _, inc := range incomes {
		if !inc.IsCashOut || inc.CashOutCardID == "" {
			continue
		}
		taken[inc.CashOutCardID] = taken[inc.CashOutCardID].Add(inc.Amount)
	}
	return taken
}
