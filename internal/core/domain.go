package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"
)

const (
	StatusPending Status = "PENDING"
	StatusDone    Status = "DONE"
)

const (
	KindRegular  ExpenseKind = "REGULAR"
	KindCardBill ExpenseKind = "CARD_BILL"
	KindLoan     ExpenseKind = "LOAN"
)

// CashOutPrefix starts the label of every income that records a cash-out
// withdrawal. The separator is an en dash.
const CashOutPrefix = "Cash-out – "

// DateLayout is the wire and storage format of a Date.
const DateLayout = "2006-01-02"

const maxLabelLength = 200

type (
	// Status is the payment state of a statement or budget item.
	Status string

	// ExpenseKind is the closed set of expense variants. CARD_BILL and LOAN
	// expenses are side effects of statements and loans.
	ExpenseKind string

	// Date is a calendar day in UTC. The zero value means "no date".
	Date struct {
		time.Time
	}

	// YearMonth identifies a budget month.
	YearMonth struct {
		Year  int
		Month int
	}

	CreditCard struct {
		ID                 string    `json:"id"`
		UserID             string    `json:"userId"`
		Nickname           string    `json:"nickname"`
		Issuer             string    `json:"issuer,omitempty"`
		Last4              string    `json:"last4,omitempty"`
		FirstStatementDate Date      `json:"firstStatementDate"`
		BillingCycleDays   *int      `json:"billingCycleDays,omitempty"`
		DayDifference      int       `json:"dayDifference"`
		TotalLimit         *Money    `json:"totalLimit"`
		StatementDay       *int      `json:"statementDay,omitempty"`
		DueDay             *int      `json:"dueDay,omitempty"`
		CreatedAt          time.Time `json:"createdAt"`
	}

	Statement struct {
		ID             string `json:"id"`
		CardID         string `json:"cardId"`
		TargetYear     int    `json:"targetYear"`
		TargetMonth    int    `json:"targetMonth"`
		StatementDate  Date   `json:"statementDate"`
		DueDate        Date   `json:"dueDate"`
		TotalDue       Money  `json:"totalDue"`
		MinimumDue     Money  `json:"minimumDue"`
		AvailableLimit Money  `json:"availableLimit"`
		Status         Status `json:"status"`
		PaidDate       Date   `json:"paidDate"`
	}

	Budget struct {
		ID          string    `json:"id"`
		UserID      string    `json:"userId"`
		Year        int       `json:"year"`
		Month       int       `json:"month"`
		BalanceUsed Money     `json:"balanceUsed"`
		CreatedAt   time.Time `json:"createdAt"`
	}

	Income struct {
		ID            string    `json:"id"`
		BudgetID      string    `json:"budgetId"`
		Source        string    `json:"source"`
		Amount        Money     `json:"amount"`
		Recurring     bool      `json:"recurring"`
		Status        Status    `json:"status"`
		PaidDate      Date      `json:"paidDate"`
		IsCashOut     bool      `json:"isCashOut"`
		CashOutCardID string    `json:"cashOutCardId,omitempty"`
		CreatedAt     time.Time `json:"createdAt"`
	}

	Expense struct {
		ID          string      `json:"id"`
		BudgetID    string      `json:"budgetId"`
		Name        string      `json:"name"`
		Kind        ExpenseKind `json:"kind"`
		Amount      Money       `json:"amount"`
		Recurring   bool        `json:"recurring"`
		Status      Status      `json:"status"`
		PaidDate    Date        `json:"paidDate"`
		StatementID string      `json:"statementId,omitempty"`
		LoanID      string      `json:"loanId,omitempty"`
		CreatedAt   time.Time   `json:"createdAt"`
	}

	Loan struct {
		ID                string    `json:"id"`
		UserID            string    `json:"userId"`
		Name              string    `json:"name"`
		InstallmentAmount Money     `json:"installmentAmount"`
		NextDueDate       Date      `json:"nextDueDate"`
		CreatedAt         time.Time `json:"createdAt"`
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string. An empty string yields the zero Date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, &ValidationError{Field: "date", Reason: fmt.Sprintf("%q is not a YYYY-MM-DD date", s)}
	}
	return Date{Time: t}, nil
}

// IsEmpty returns true if the date is zero (for optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// AddDays returns the date n days later (earlier when n is negative).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }

// YearMonth returns the month the date falls in.
func (d Date) YearMonth() YearMonth {
	return YearMonth{Year: d.Year(), Month: int(d.Month())}
}

func (d Date) String() string {
	if d.IsEmpty() {
		return ""
	}
	return d.Format(DateLayout)
}

// MarshalJSON encodes the date as "YYYY-MM-DD", or null when empty.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsEmpty() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return &ValidationError{Field: "date", Reason: "must be a string"}
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// NewYearMonth validates year and month.
func NewYearMonth(year, month int) (YearMonth, error) {
	ym := YearMonth{Year: year, Month: month}
	return ym, ym.Validate()
}

func (ym YearMonth) Validate() error {
	if ym.Month < 1 || ym.Month > 12 {
		return &ValidationError{Field: "month", Reason: fmt.Sprintf("%d is not between 1 and 12", ym.Month)}
	}
	if ym.Year <= 1900 || ym.Year >= 3000 {
		return &ValidationError{Field: "year", Reason: fmt.Sprintf("%d is out of range", ym.Year)}
	}
	return nil
}

// First returns the first day of the month.
func (ym YearMonth) First() Date {
	return NewDate(ym.Year, ym.Month, 1)
}

// Last returns the last day of the month.
func (ym YearMonth) Last() Date {
	return NewDate(ym.Year, ym.Month+1, 0)
}

// Days returns the number of days in the month.
func (ym YearMonth) Days() int {
	return ym.Last().Day()
}

func (ym YearMonth) Next() YearMonth {
	if ym.Month == 12 {
		return YearMonth{Year: ym.Year + 1, Month: 1}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month + 1}
}

func (ym YearMonth) Prev() YearMonth {
	if ym.Month == 1 {
		return YearMonth{Year: ym.Year - 1, Month: 12}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month - 1}
}

// Before reports whether ym is strictly earlier than o.
func (ym YearMonth) Before(o YearMonth) bool {
	if ym.Year != o.Year {
		return ym.Year < o.Year
	}
	return ym.Month < o.Month
}

// Contains reports whether d falls inside the month.
func (ym YearMonth) Contains(d Date) bool {
	return d.Year() == ym.Year && int(d.Month()) == ym.Month
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, ym.Month)
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusDone:
		return true
	default:
		return false
	}
}

// Toggle flips PENDING and DONE.
func (s Status) Toggle() Status {
	if s == StatusDone {
		return StatusPending
	}
	return StatusDone
}

func (k ExpenseKind) IsValid() bool {
	switch k {
	case KindRegular, KindCardBill, KindLoan:
		return true
	default:
		return false
	}
}

// ParseExpenseKind accepts the kind in any letter case; empty means REGULAR.
func ParseExpenseKind(s string) (ExpenseKind, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return KindRegular, nil
	}
	k := ExpenseKind(s)
	if !k.IsValid() {
		return "", &ValidationError{Field: "kind", Reason: fmt.Sprintf("%q is not one of REGULAR, CARD_BILL, LOAN", s)}
	}
	return k, nil
}

// CashOutLabel is the display label of a cash-out income for a card.
func CashOutLabel(nickname string) string {
	return CashOutPrefix + nickname
}

// IsCashOutLabel reports whether source carries the cash-out prefix.
func IsCashOutLabel(source string) bool {
	return strings.HasPrefix(source, CashOutPrefix)
}

// HasAnchor reports whether the card can use anchor-based cycle prediction.
func (c CreditCard) HasAnchor() bool {
	return !c.FirstStatementDate.IsEmpty() && c.BillingCycleDays != nil
}

func (c CreditCard) Validate() error {
	if err := validateLabel("nickname", c.Nickname, 100); err != nil {
		return err
	}
	if c.Last4 != "" {
		if len(c.Last4) != 4 || strings.IndexFunc(c.Last4, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0 {
			return &ValidationError{Field: "last4", Reason: "must be exactly 4 digits"}
		}
	}
	if c.BillingCycleDays != nil && *c.BillingCycleDays <= 0 {
		return &ValidationError{Field: "billingCycleDays", Reason: "must be greater than zero"}
	}
	if c.DayDifference < 0 {
		return &ValidationError{Field: "dayDifference", Reason: "must not be negative"}
	}
	if err := validateDayOfMonth("statementDay", c.StatementDay); err != nil {
		return err
	}
	if err := validateDayOfMonth("dueDay", c.DueDay); err != nil {
		return err
	}
	if c.TotalLimit != nil && c.TotalLimit.IsNegative() {
		return &ValidationError{Field: "totalLimit", Reason: "must not be negative"}
	}
	if !c.HasAnchor() && c.StatementDay == nil {
		return &ValidationError{Field: "firstStatementDate", Reason: "either firstStatementDate with billingCycleDays or statementDay is required"}
	}
	return nil
}

func (i Income) Validate() error {
	if err := validateLabel("source", i.Source, maxLabelLength); err != nil {
		return err
	}
	if err := i.Amount.Validate(); err != nil {
		return err
	}
	if !i.Status.IsValid() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("%q is not PENDING or DONE", i.Status)}
	}
	return nil
}

func (e Expense) Validate() error {
	if err := validateLabel("name", e.Name, maxLabelLength); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !e.Status.IsValid() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("%q is not PENDING or DONE", e.Status)}
	}
	switch e.Kind {
	case KindRegular:
		if e.StatementID != "" || e.LoanID != "" {
			return &ValidationError{Field: "kind", Reason: "regular expenses cannot reference a statement or a loan"}
		}
	case KindCardBill:
		if e.StatementID == "" {
			return &ValidationError{Field: "statementId", Reason: "required for CARD_BILL expenses"}
		}
		if e.LoanID != "" {
			return &ValidationError{Field: "loanId", Reason: "not allowed for CARD_BILL expenses"}
		}
	case KindLoan:
		if e.LoanID == "" {
			return &ValidationError{Field: "loanId", Reason: "required for LOAN expenses"}
		}
		if e.StatementID != "" {
			return &ValidationError{Field: "statementId", Reason: "not allowed for LOAN expenses"}
		}
	default:
		return &ValidationError{Field: "kind", Reason: fmt.Sprintf("%q is not one of REGULAR, CARD_BILL, LOAN", e.Kind)}
	}
	return nil
}

func (l Loan) Validate() error {
	if err := validateLabel("name", l.Name, maxLabelLength); err != nil {
		return err
	}
	if err := l.InstallmentAmount.Validate(); err != nil {
		return err
	}
	if l.NextDueDate.IsEmpty() {
		return &ValidationError{Field: "nextDueDate", Reason: "required"}
	}
	return nil
}

func validateLabel(field, value string, max int) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Reason: "must not be empty"}
	}
	if len(value) > max {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("too long (max %d characters)", max)}
	}
	return nil
}

func validateDayOfMonth(field string, day *int) error {
	if day == nil {
		return nil
	}
	if *day < 1 || *day > 31 {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("%d is not between 1 and 31", *day)}
	}
	return nil
}
