package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	ports "propel/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// worksheetConcurrency bounds parallel worksheet reads to stay under API quota.
const worksheetConcurrency = 4

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sessionRange  string
}

var _ ports.SessionSource = (*Client)(nil)

// Options configures the Sheets session source.
type Options struct {
	SpreadsheetKey  string
	SessionRange    string // e.g. "A2:D"
	CredentialsJSON string
	CredentialsFile string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetKey) == "" {
		return nil, errors.New("missing spreadsheet key")
	}
	if _, err := firstRow(opts.SessionRange); err != nil {
		return nil, err
	}

	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetKey,
		sessionRange:  opts.SessionRange,
	}, nil
}

// newSheetsService initializes a read-only Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	var credentialsJSON []byte

	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		credentialsJSON = []byte(opts.CredentialsJSON)
	case opts.CredentialsFile != "":
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}

	slog.DebugContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsReadonlyScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// ReadSessions reads every tutor worksheet ("<tutor_id> - <name>") and
// returns the parsed session rows. Worksheets with other titles are ignored.
func (c *Client) ReadSessions(ctx context.Context) ([]ports.SheetSession, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list worksheets: %w", err)
	}

	start, _ := firstRow(c.sessionRange)

	var (
		mu  sync.Mutex
		out []ports.SheetSession
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(worksheetConcurrency)

	for _, sh := range ss.Sheets {
		if sh.Properties == nil {
			continue
		}
		title := sh.Properties.Title
		tutorID, tutorName, ok := parseSheetTitle(title)
		if !ok {
			slog.DebugContext(ctx, "Skipping non-tutor worksheet", "title", title)
			continue
		}

		g.Go(func() error {
			rng := fmt.Sprintf("'%s'!%s", title, c.sessionRange)
			resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
				ValueRenderOption("UNFORMATTED_VALUE").Context(gctx).Do()
			if err != nil {
				return fmt.Errorf("read %s: %w", rng, err)
			}

			rows, skipped := parseRows(resp.Values, tutorID, tutorName, start)
			for _, s := range skipped {
				slog.WarnContext(gctx, "Skipping unparseable session row",
					"tutor", tutorName, "row", s.row, "error", s.err)
			}

			mu.Lock()
			out = append(out, rows...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortSessions(out)
	slog.InfoContext(ctx, "Read sessions from spreadsheet", "worksheets", len(ss.Sheets), "rows", len(out))
	return out, nil
}
