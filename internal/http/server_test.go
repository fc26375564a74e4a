package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardbudget/internal/cache"
	"cardbudget/internal/core"
	"cardbudget/internal/services"
	"cardbudget/internal/storage/memory"
)

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := memory.NewStore()
	var (
		mu  sync.Mutex
		seq int
	)
	deps := services.Deps{
		Store:     store,
		Predictor: services.NewCyclePredictor(cache.NewLRUCache[core.Cycle](16, time.Hour)),
		Clock:     func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) },
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("id-%03d", seq)
		},
	}
	srv := NewServer(":0", Deps{
		Budgets:           services.NewBudgetService(deps),
		CashOut:           services.NewCashOutService(deps),
		Recurrence:        services.NewRecurrenceService(deps),
		Cards:             services.NewCardService(deps),
		Loans:             services.NewLoanService(deps),
		Store:             store,
		RequestsPerMinute: 1000,
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerUserID, "alice")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const cardBody = `{"nickname":"JS Bank","firstStatementDate":"2025-01-05","billingCycleDays":30,"dayDifference":20,"totalLimit":"5000.00"}`

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"), path)
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"), path)
	}

	srv.store = failingPinger{}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestRequiresUserHeader(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cards", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"missing X-User-ID header"}`, rec.Body.String())
}

func TestMonthLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/cards", cardBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	card := decode[core.CreditCard](t, rec)

	rec = do(t, srv, http.MethodGet, "/api/months/2025/3", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[services.MonthView](t, rec)
	require.Len(t, view.Statements, 1)
	st := view.Statements[0]
	assert.Equal(t, card.ID, st.CardID)
	assert.Equal(t, "2025-03-26", st.DueDate.String())
	budgetID := view.Budget.ID

	rec = do(t, srv, http.MethodPost, "/api/budgets/"+budgetID+"/incomes",
		`{"source":"Salary","amount":"1800.00","recurring":true,"status":"DONE"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodPost, "/api/budgets/"+budgetID+"/expenses",
		fmt.Sprintf(`{"name":"JS Bank bill","amount":"450.00","statementId":%q}`, st.ID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bill := decode[core.Expense](t, rec)
	assert.Equal(t, core.KindCardBill, bill.Kind)

	rec = do(t, srv, http.MethodPatch, "/api/expenses/"+bill.ID, `{"amount":"500.00"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "card bills are not editable")

	rec = do(t, srv, http.MethodPost, "/api/expenses/"+bill.ID+"/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, core.StatusDone, decode[core.Expense](t, rec).Status)

	rec = do(t, srv, http.MethodGet, "/api/months/2025/3", "")
	view = decode[services.MonthView](t, rec)
	assert.Equal(t, int64(180000), view.Totals.IncomeTotal.Cents)
	assert.Equal(t, int64(45000), view.Totals.CardsTotal.Cents)

	rec = do(t, srv, http.MethodPost, "/api/months/2025/3/next", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	next := decode[core.Budget](t, rec)
	assert.Equal(t, 2025, next.Year)
	assert.Equal(t, 4, next.Month)

	rec = do(t, srv, http.MethodPost, "/api/months/2025/3/next", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/api/expenses/"+bill.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCashOutEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/cards", cardBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	card := decode[core.CreditCard](t, rec)

	view := decode[services.MonthView](t, do(t, srv, http.MethodGet, "/api/months/2025/3", ""))
	budgetID := view.Budget.ID

	rec = do(t, srv, http.MethodPost, "/api/budgets/"+budgetID+"/expenses", `{"name":"Rent","amount":"300.00"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/months/2025/3/cashout", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	suggestion := decode[services.CashOutSuggestion](t, rec)
	assert.Equal(t, int64(30000), suggestion.Need.Cents)
	require.Len(t, suggestion.Plan, 1)
	assert.Equal(t, card.ID, suggestion.Plan[0].CardID)

	tooMuch := fmt.Sprintf(`{"withdrawals":[{"cardId":%q,"amount":"6000.00"}]}`, card.ID)
	rec = do(t, srv, http.MethodPost, "/api/budgets/"+budgetID+"/cashout/validate", tooMuch)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	plan := fmt.Sprintf(`{"withdrawals":[{"cardId":%q,"amount":"300.00"}]}`, card.ID)
	rec = do(t, srv, http.MethodPost, "/api/budgets/"+budgetID+"/cashout/validate", plan)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"valid":true,"total":"300.00"}`, rec.Body.String())

	rec = do(t, srv, http.MethodPost, "/api/budgets/"+budgetID+"/cashout", plan)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(30000), decode[core.Budget](t, rec).BalanceUsed.Cents)

	rec = do(t, srv, http.MethodDelete, "/api/budgets/"+budgetID+"/cashout", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[core.Budget](t, rec).BalanceUsed.IsZero())
}

func TestCardsAndLoans(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/cards", cardBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	card := decode[core.CreditCard](t, rec)

	rec = do(t, srv, http.MethodGet, "/api/cards/"+card.ID+"/cycle?year=2025&month=3", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"statementDate":"2025-03-06","dueDate":"2025-03-26"}`, rec.Body.String())

	rec = do(t, srv, http.MethodPatch, "/api/cards/"+card.ID, `{"nickname":"JS Gold"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[core.CreditCard](t, rec)
	assert.Equal(t, "JS Gold", updated.Nickname)
	assert.Equal(t, 20, updated.DayDifference, "fields absent from the patch are kept")

	rec = do(t, srv, http.MethodGet, "/api/cards", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]core.CreditCard](t, rec), 1)

	rec = do(t, srv, http.MethodPost, "/api/loans", `{"name":"Car","installmentAmount":"150.00","nextDueDate":"2025-03-15"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	loan := decode[core.Loan](t, rec)

	rec = do(t, srv, http.MethodGet, "/api/loans", "")
	assert.Len(t, decode[[]core.Loan](t, rec), 1)

	rec = do(t, srv, http.MethodDelete, "/api/loans/"+loan.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/api/cards/"+card.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/cards/"+card.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestErrors(t *testing.T) {
	srv := newTestServer(t)
	view := decode[services.MonthView](t, do(t, srv, http.MethodGet, "/api/months/2025/3", ""))
	incomes := "/api/budgets/" + view.Budget.ID + "/incomes"

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"month out of range", http.MethodGet, "/api/months/2025/13", "", http.StatusBadRequest},
		{"month not a number", http.MethodGet, "/api/months/2025/march", "", http.StatusBadRequest},
		{"sub-cent amount", http.MethodPost, incomes, `{"source":"Bonus","amount":"1.234"}`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, incomes, `{"source":"Bonus","amount":"1.00","color":"red"}`, http.StatusBadRequest},
		{"empty body", http.MethodPost, incomes, "", http.StatusBadRequest},
		{"unknown budget", http.MethodPost, "/api/budgets/nope/incomes", `{"source":"Bonus","amount":"1.00"}`, http.StatusNotFound},
		{"cycle without query", http.MethodGet, "/api/cards/any/cycle", "", http.StatusBadRequest},
		{"next month without source", http.MethodPost, "/api/months/2030/1/next", "", http.StatusNotFound},
		{"unknown income", http.MethodDelete, "/api/incomes/nope", "", http.StatusNotFound},
		{"wrong method", http.MethodPut, "/api/cards", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&core.ValidationError{Field: "amount", Reason: "must be positive"}, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", &core.NotFoundError{Entity: "card", ID: "x"}), http.StatusNotFound},
		{&core.DuplicateMonthError{Year: 2025, Month: 4}, http.StatusConflict},
		{&core.CycleComputationError{CardID: "x", Reason: "zero cycle"}, http.StatusUnprocessableEntity},
		{&core.LimitExceededError{CardID: "x"}, http.StatusUnprocessableEntity},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestWriteErrorHidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("pq: password authentication failed"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"direct", "203.0.113.7:1234", "", "203.0.113.7"},
		{"trusted proxy", "10.0.0.2:1234", "198.51.100.4, 10.0.0.2", "198.51.100.4"},
		{"untrusted forwarder", "203.0.113.7:1234", "198.51.100.4", "203.0.113.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, extractClientIP(r))
		})
	}
}
