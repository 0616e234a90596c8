package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"pandapark/internal/parkdata"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Exporter publishes aggregated parking stats to a Google Sheet so the
// operations team can build charts on top of them.
type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

type Options struct {
	SpreadsheetID  string
	SheetName      string
	CredentialFile string
	CredentialJSON string
}

func New(ctx context.Context, opts Options) (*Exporter, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	sheetName := strings.TrimSpace(opts.SheetName)
	if sheetName == "" {
		sheetName = "DailyStats"
	}

	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Exporter{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials,
// either inline JSON or a credential file path.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	var credentialsJSON []byte
	var err error

	switch {
	case strings.TrimSpace(opts.CredentialJSON) != "":
		credentialsJSON = []byte(opts.CredentialJSON)
	case strings.TrimSpace(opts.CredentialFile) != "":
		credentialsJSON, err = os.ReadFile(opts.CredentialFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Export replaces the target sheet's contents with the current daily stats.
func (e *Exporter) Export(ctx context.Context, stats parkdata.StatsReader) error {
	if e.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rows, err := buildRows(ctx, stats)
	if err != nil {
		return err
	}

	clearRange := fmt.Sprintf("%s!A:Z", e.sheetName)
	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", clearRange, err)
	}

	writeRange := fmt.Sprintf("%s!A1", e.sheetName)
	vr := &gsheet.ValueRange{Values: rows}
	if _, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, writeRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update %s: %w", writeRange, err)
	}

	slog.InfoContext(ctx, "Exported daily stats to Google Sheets",
		"spreadsheet_id", e.spreadsheetID,
		"sheet", e.sheetName,
		"rows", len(rows))
	return nil
}

// buildRows assembles the sheet contents: a daily table, an hour bucket
// section, and a payment method breakdown.
func buildRows(ctx context.Context, stats parkdata.StatsReader) ([][]any, error) {
	counts, err := stats.DailyCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("daily counts: %w", err)
	}
	durations, err := stats.DailyAverageDuration(ctx)
	if err != nil {
		return nil, fmt.Errorf("daily durations: %w", err)
	}
	buckets, err := stats.HourBucketCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("hour buckets: %w", err)
	}
	methods, err := stats.PaymentMethodCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("payment methods: %w", err)
	}

	avgByDate := make(map[string]float64, len(durations))
	for _, d := range durations {
		avgByDate[d.Date] = d.AvgMinutes
	}

	rows := [][]any{{"Date", "Transactions", "Avg Duration (min)"}}
	for _, c := range counts {
		rows = append(rows, []any{c.Date, c.Count, avgByDate[c.Date]})
	}

	rows = append(rows,
		[]any{},
		[]any{"Hour Bucket", "Transactions"},
		[]any{"10-13", buckets.From10To13},
		[]any{"13-16", buckets.From13To16},
		[]any{"16-19", buckets.From16To19},
		[]any{"19-22", buckets.From19To22},
	)

	names := make([]string, 0, len(methods))
	for name := range methods {
		names = append(names, name)
	}
	sort.Strings(names)

	rows = append(rows, []any{}, []any{"Payment Method", "Transactions"})
	for _, name := range names {
		rows = append(rows, []any{name, methods[name]})
	}

	return rows, nil
}
