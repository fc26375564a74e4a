package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"cardbudget/internal/cache"
	ports "cardbudget/internal/sheets"
)

// Config selects the spreadsheet and the credentials. Service account
// credentials win over OAuth when both are set.
type Config struct {
	SpreadsheetID string
	// SheetName is the base name; the summary's year is prefixed.
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
	OAuthClientJSON    string
	OAuthClientFile    string
	OAuthTokenJSON     string
	OAuthTokenFile     string
}

// values is the slice of the Sheets values API the client needs.
type values interface {
	Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
	Update(ctx context.Context, spreadsheetID, rng string, rows [][]any) error
}

type Client struct {
	values        values
	spreadsheetID string
	sheetBase     string

	// mu serializes row lookup and write so two appends never share a row.
	mu sync.Mutex
	// rows maps "<sheet>|<user>|<YYYY-MM>" to a 1-based row number.
	rows cache.Cache[int]
}

var _ ports.MonthExporter = (*Client)(nil)

const rowCacheTTL = 10 * time.Minute

// New creates a Sheets exporter.
func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(sheetsValues{svc: svc}, spreadsheetID, cfg.SheetName), nil
}

func newClient(v values, spreadsheetID, sheetBase string) *Client {
	sheetBase = strings.TrimSpace(sheetBase)
	if sheetBase == "" {
		sheetBase = "Budget"
	}
	return &Client{
		values:        v,
		spreadsheetID: spreadsheetID,
		sheetBase:     sheetBase,
		rows:          cache.NewLRUCache[int](1000, rowCacheTTL),
	}
}

// newSheetsService initializes a Sheets Service from service account
// credentials, or from an OAuth client plus a stored token.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	saJSON, err := readInlineOrFile(cfg.ServiceAccountJSON, cfg.ServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	if len(saJSON) > 0 {
		slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
			"credentials_size", len(saJSON),
			"scope", gsheet.SpreadsheetsScope)
		svc, err := gsheet.NewService(ctx,
			goption.WithCredentialsJSON(saJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope))
		if err != nil {
			return nil, fmt.Errorf("create sheets service: %w", err)
		}
		return svc, nil
	}

	clientJSON, err := readInlineOrFile(cfg.OAuthClientJSON, cfg.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client file: %w", err)
	}
	if len(clientJSON) == 0 {
		return nil, errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_JSON|FILE or GOOGLE_OAUTH_CLIENT_JSON|FILE)")
	}
	oauthCfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}

	tokenJSON, err := readInlineOrFile(cfg.OAuthTokenJSON, cfg.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth token file: %w", err)
	}
	if len(tokenJSON) == 0 {
		return nil, errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)")
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with OAuth token")
	base := context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(oauthCfg.Client(base, &tok)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

func readInlineOrFile(inline, path string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	if p := strings.TrimSpace(path); p != "" {
		return os.ReadFile(p)
	}
	return nil, nil
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// ExportMonth writes the summary into "<year> <base>", replacing the row
// of the same user and month or appending a new one. Columns A..I hold
// user, month, income, cards, non-card expenses, balance, need, cash-out
// used and the update time.
func (c *Client) ExportMonth(ctx context.Context, s ports.MonthSummary) (string, error) {
	if strings.TrimSpace(s.UserID) == "" {
		return "", errors.New("export month: empty user")
	}
	if s.Month < 1 || s.Month > 12 {
		return "", fmt.Errorf("export month: invalid month: %d", s.Month)
	}
	if c.values == nil {
		return "", errors.New("sheets service not initialized")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	sheet := yearPrefixedName(c.sheetBase, s.Year)
	cacheKey := sheet + "|" + s.UserID + "|" + s.Key()
	row, ok := c.rows.Get(cacheKey)
	if !ok {
		var err error
		if row, err = c.findRow(ctx, sheet, s.UserID, s.Key()); err != nil {
			return "", err
		}
	}

	rng := fmt.Sprintf("%s!A%d:I%d", sheet, row, row)
	if err := c.values.Update(ctx, c.spreadsheetID, rng, [][]any{summaryRow(s)}); err != nil {
		c.rows.Delete(cacheKey)
		return "", fmt.Errorf("failed to update %s: %w", rng, err)
	}
	c.rows.Set(cacheKey, row)

	slog.InfoContext(ctx, "Exported month summary",
		"user_id", s.UserID,
		"month", s.Key(),
		"range", rng)
	return rng, nil
}

// findRow returns the row holding user and month, or the first row after
// the last non-empty one.
func (c *Client) findRow(ctx context.Context, sheet, userID, month string) (int, error) {
	rng := fmt.Sprintf("%s!A:B", sheet)
	rows, err := c.values.Get(ctx, c.spreadsheetID, rng)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", rng, err)
	}
	for i, r := range rows {
		cols := toStrings(r)
		if len(cols) >= 2 && cols[0] == userID && cols[1] == month {
			return i + 1, nil
		}
	}
	return len(rows) + 1, nil
}

func summaryRow(s ports.MonthSummary) []any {
	return []any{
		s.UserID,
		s.Key(),
		s.IncomeTotal.String(),
		s.CardsTotal.String(),
		s.NonCardExpensesTotal.String(),
		s.Balance.String(),
		s.Need.String(),
		s.BalanceUsed.String(),
		s.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

type sheetsValues struct {
	svc *gsheet.Service
}

func (v sheetsValues) Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	resp, err := v.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (v sheetsValues) Update(ctx context.Context, spreadsheetID, rng string, rows [][]any) error {
	_, err := v.svc.Spreadsheets.Values.Update(spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	return err
}
