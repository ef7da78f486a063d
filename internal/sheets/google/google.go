package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"hisab/internal/core"
	ports "hisab/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config selects the spreadsheet and the service account used to write it.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// Client mirrors ledger events into one sheet, one row per transaction with
// the transaction id in column A.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	// serializes find-then-write sequences
	mu           sync.Mutex
	headerLoaded bool
}

// Ensure interface conformance
var _ ports.LedgerExporter = (*Client)(nil)

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Auth: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS
// Optional: GOOGLE_SHEET_NAME (default "Ledger")
func NewFromEnv(ctx context.Context) (*Client, error) {
	cfg := Config{
		SpreadsheetID:   strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")),
		SheetName:       strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME")),
		CredentialsJSON: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")),
		CredentialsFile: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE")),
	}
	if cfg.CredentialsJSON == "" && cfg.CredentialsFile == "" {
		cfg.CredentialsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	return New(ctx, cfg)
}

// New creates a Sheets client authenticated with a service account. Extra
// client options are appended after the credentials, which lets tests point
// the service at a local endpoint.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = "Ledger"
	}

	var svcOpts []goption.ClientOption
	if len(opts) == 0 {
		creds, err := loadCredentials(ctx, cfg)
		if err != nil {
			return nil, err
		}
		svcOpts = append(svcOpts,
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	}
	svcOpts = append(svcOpts, opts...)

	svc, err := gsheet.NewService(ctx, svcOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets exporter ready",
		"spreadsheet_id", cfg.SpreadsheetID,
		"sheet", sheetName)

	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		sheetName:     sheetName,
	}, nil
}

func loadCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		slog.DebugContext(ctx, "Using inline service account credentials")
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		slog.DebugContext(ctx, "Reading service account credentials", "path", cfg.CredentialsFile)
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// Append implements sheets.LedgerExporter. A row that already carries the
// transaction id is rewritten instead, so redelivered events do not duplicate.
func (c *Client) Append(ctx context.Context, e core.LedgerEvent) (string, error) {
	return c.write(ctx, e)
}

// Upsert implements sheets.LedgerExporter
func (c *Client) Upsert(ctx context.Context, e core.LedgerEvent) (string, error) {
	return c.write(ctx, e)
}

func (c *Client) write(ctx context.Context, e core.LedgerEvent) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if e.TransactionID == "" {
		return "", errors.New("event without transaction id")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.readIDs(ctx)
	if err != nil {
		return "", err
	}
	if err := c.ensureHeader(ctx, ids); err != nil {
		return "", err
	}
	if len(ids) == 0 {
		ids = [][]any{toAny(ports.Header)}
	}

	row := findRow(ids, e.TransactionID)
	if row == 0 {
		// next empty row after the existing ones
		row = len(ids) + 1
	}

	// RAW keeps user text such as "=IMPORTXML(...)" from being evaluated.
	rng := rowRange(c.sheetName, row)
	vr := &gsheet.ValueRange{Values: [][]any{ports.Row(e)}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to update %s: %w", rng, err)
	}
	return rng, nil
}

// Clear implements sheets.LedgerExporter
func (c *Client) Clear(ctx context.Context, transactionID string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.readIDs(ctx)
	if err != nil {
		return err
	}
	row := findRow(ids, transactionID)
	if row == 0 {
		slog.DebugContext(ctx, "No sheet row to clear", "transaction_id", transactionID)
		return nil
	}

	rng := rowRange(c.sheetName, row)
	_, err = c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", rng, err)
	}
	return nil
}

func (c *Client) readIDs(ctx context.Context) ([][]any, error) {
	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

// ensureHeader writes the header row into an empty sheet.
func (c *Client) ensureHeader(ctx context.Context, ids [][]any) error {
	if c.headerLoaded {
		return nil
	}
	if len(ids) > 0 {
		c.headerLoaded = true
		return nil
	}
	rng := rowRange(c.sheetName, 1)
	vr := &gsheet.ValueRange{Values: [][]any{toAny(ports.Header)}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	c.headerLoaded = true
	return nil
}

// findRow returns the 1-based sheet row whose first cell equals id, or 0.
func findRow(values [][]any, id string) int {
	id = strings.TrimSpace(id)
	if id == "" {
		return 0
	}
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1
		}
	}
	return 0
}

func rowRange(sheet string, row int) string {
	last := string(rune('A' + len(ports.Header) - 1))
	return fmt.Sprintf("%s!A%d:%s%d", sheet, row, last, row)
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
