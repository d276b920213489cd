// Package export writes a one-shot snapshot of the computed report to a
// Google spreadsheet. Export is optional; the pipeline runs fully without
// it.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"revreport/internal/aggregate"
	"revreport/internal/stats"
)

type SheetsExporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// NewFromEnv creates a Sheets exporter using environment variables.
// Required: GOOGLE_SPREADSHEET_ID. Credentials come from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS. GOOGLE_SHEET_NAME defaults to "Report".
func NewFromEnv(ctx context.Context) (*SheetsExporter, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetName == "" {
		sheetName = "Report"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &SheetsExporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Export overwrites the target sheet with the current run: an executive
// summary block, the monthly comparison and the category table. Values
// come straight from the report bundles.
func (e *SheetsExporter) Export(ctx context.Context, rep *stats.Report, monthly []aggregate.Summary) error {
	if e.svc == nil {
		return errors.New("sheets service not initialized")
	}

	values := buildRows(rep, monthly)

	clearRange := fmt.Sprintf("%s!A1:Z1000", e.sheetName)
	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet %s: %w", e.sheetName, err)
	}

	writeRange := fmt.Sprintf("%s!A1", e.sheetName)
	vr := &gsheet.ValueRange{Values: values}
	if _, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, writeRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update sheet %s: %w", e.sheetName, err)
	}
	return nil
}

func buildRows(rep *stats.Report, monthly []aggregate.Summary) [][]any {
	rows := [][]any{
		{"Executive summary"},
		{"Total revenue", rep.Totals.TotalRevenue.String()},
		{"Transactions", rep.Totals.TransactionCount},
		{"Unique customers", rep.Totals.UniqueCustomers},
		{"Average ticket", rep.Totals.AvgTicket.String()},
		{"Best month", rep.Trends.BestPeriodRevenue},
		{"Best category", rep.Trends.BestCategory},
		{},
		{"Monthly comparison"},
		{"Month", "Revenue", "Transactions", "Unique customers", "Avg ticket"},
	}
	for _, row := range monthly {
		rows = append(rows, []any{
			row.Period, row.RevenueTotal.String(), row.TransactionCount,
			row.UniqueCustomers, row.AvgTicket.String(),
		})
	}

	rows = append(rows, []any{}, []any{"Category analysis"},
		[]any{"Category", "Revenue", "Count", "Avg ticket", "Share %"})
	for _, c := range rep.Categories {
		rows = append(rows, []any{
			c.Category, c.Revenue.String(), c.Count, c.AvgTicket.String(), c.RevenueShare,
		})
	}

	if rep.Projection != nil {
		rows = append(rows, []any{}, []any{"Projection"},
			[]any{"Next revenue", rep.Projection.NextRevenue.String(), rep.Projection.RevenueTrend},
			[]any{"Next transactions", rep.Projection.NextTransactions.String(), rep.Projection.TransactionTrend})
	}
	return rows
}
