// Package sheets mirrors the deposit book into a Google Sheets spreadsheet.
// The spreadsheet is a read-only copy: every Replace rewrites both tabs.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"depositos/internal/core"
	applog "depositos/internal/log"
	"depositos/internal/store"
)

// Config selects the spreadsheet and the credentials used to reach it.
type Config struct {
	SpreadsheetID   string
	DepositsSheet   string
	LedgerSheet     string
	CredentialsFile string
	CredentialsJSON string
	Logger          *applog.Logger
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	depositsSheet string
	ledgerSheet   string
	logger        *applog.Logger
}

var _ store.Mirror = (*Client)(nil)

var (
	depositsHeader = []any{"Code", "Date", "Week", "Member ID", "First Name", "Amount", "Has Photo", "Created At", "UID"}
	ledgerHeader   = []any{"Week", "Member ID", "First Name", "Status"}
)

// New creates a Sheets client authenticated with service account credentials.
// Inline JSON takes precedence over the file.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if cfg.DepositsSheet == "" {
		cfg.DepositsSheet = "Deposits"
	}
	if cfg.LedgerSheet == "" {
		cfg.LedgerSheet = "Ledger"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = applog.Wrap(nil, applog.ComponentSheets)
	}
	logger = logger.WithComponent(applog.ComponentSheets)

	creds, err := credentials(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// token refreshes and API calls share the pooled transport
	hctx := context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	gcreds, err := google.CredentialsFromJSON(hctx, creds, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(oauth2.NewClient(hctx, gcreds.TokenSource)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	logger.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", cfg.SpreadsheetID)
	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		depositsSheet: cfg.DepositsSheet,
		ledgerSheet:   cfg.LedgerSheet,
		logger:        logger,
	}, nil
}

func credentials(ctx context.Context, cfg Config, logger *applog.Logger) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		logger.InfoContext(ctx, "Using inline JSON credentials")
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		logger.InfoContext(ctx, "Read credentials file",
			"path", cfg.CredentialsFile,
			"size", len(data))
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_CREDENTIALS_JSON or GOOGLE_CREDENTIALS_FILE)")
	}
}

// Replace clears the deposits and ledger tabs and writes s into them.
func (c *Client) Replace(ctx context.Context, s core.Snapshot) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if err := c.rewrite(ctx, c.depositsSheet, DepositRows(s)); err != nil {
		return err
	}
	if err := c.rewrite(ctx, c.ledgerSheet, LedgerRows(s)); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Spreadsheet replaced",
		"deposits", len(s.Deposits),
		"ledger_entries", len(s.Ledger))
	return nil
}

func (c *Client) rewrite(ctx context.Context, sheet string, rows [][]any) error {
	all := fmt.Sprintf("%s!A:Z", sheet)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, all, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", all, err)
	}

	rng := fmt.Sprintf("%s!A1", sheet)
	vr := &gsheet.ValueRange{Values: rows}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// DepositRows renders the deposits tab, header first, newest deposit first.
func DepositRows(s core.Snapshot) [][]any {
	names := memberNames(s.Members)
	rows := make([][]any, 0, len(s.Deposits)+1)
	rows = append(rows, depositsHeader)
	for _, d := range s.Deposits {
		hasPhoto := "no"
		if d.Photo != "" {
			hasPhoto = "yes"
		}
		rows = append(rows, []any{
			d.Code,
			d.Date.String(),
			core.WeekStart(d.Date).String(),
			d.MemberID,
			names[d.MemberID],
			d.Amount.StringFixed(core.AmountPlaces),
			hasPhoto,
			d.CreatedAt.UTC().Format(time.RFC3339),
			d.UID,
		})
	}
	return rows
}

// LedgerRows renders the ledger tab, header first, in snapshot order.
func LedgerRows(s core.Snapshot) [][]any {
	names := memberNames(s.Members)
	rows := make([][]any, 0, len(s.Ledger)+1)
	rows = append(rows, ledgerHeader)
	for _, e := range s.Ledger {
		rows = append(rows, []any{
			e.Week.String(),
			e.MemberID,
			names[e.MemberID],
			string(e.Status),
		})
	}
	return rows
}

func memberNames(members []core.Member) map[string]string {
	out := make(map[string]string, len(members))
	for _, m := range members {
		out[m.ID] = m.FirstName
	}
	return out
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
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}
