package sheets

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"finassist/internal/ledger"
	"finassist/internal/logger"
	"finassist/internal/sales"
)

// Service reads sales exports from, and publishes reconciliations to, one spreadsheet.
type Service struct {
	sheetsService *sheets.Service
	spreadsheetID string
	log           zerolog.Logger
}

var reconciliationHeaders = []interface{}{
	"Data", "Vendas Cartão", "Liquidação Banco", "Data Liquidação", "Comissões", "Diferença",
}

// NewSheetsService creates a Google Sheets client for the spreadsheet at sheetURL.
func NewSheetsService(ctx context.Context, sheetURL string) (*Service, error) {
	const op = "NewSheetsService"

	log := logger.WithComponent("sheets")

	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to extract spreadsheet ID: %w", op, err)
	}

	log.Debug().Str("spreadsheet_id", spreadsheetID).Msg("Extracted spreadsheet ID")

	var creds []byte
	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		creds, err = os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
		}
	} else if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		creds = []byte(credsJSON)
	} else {
		return nil, fmt.Errorf("%s: neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set", op)
	}

	config, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	sheetsService, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	return &Service{
		sheetsService: sheetsService,
		spreadsheetID: spreadsheetID,
		log:           log,
	}, nil
}

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

func extractSpreadsheetID(url string) (string, error) {
	matches := spreadsheetIDPattern.FindStringSubmatch(url)
	if len(matches) < 2 {
		return "", fmt.Errorf("invalid Google Sheets URL format")
	}
	return matches[1], nil
}

// SalesRange returns the A1 range covering a whole sheet. An empty name
// means the point-of-sale default sheet.
func SalesRange(sheetName string) string {
	if sheetName == "" {
		sheetName = sales.DefaultSheetName
	}
	return "'" + sheetName + "'"
}

// ReadSales reads a sales export from rangeSpec. Values are fetched
// unformatted so dates arrive as serial numbers, like in an .xlsx file.
func (s *Service) ReadSales(ctx context.Context, rangeSpec string) (*sales.Document, error) {
	const op = "ReadSales"

	s.log.Debug().
		Str("range", rangeSpec).
		Msg("Reading range from spreadsheet")

	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, rangeSpec).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("SERIAL_NUMBER").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read range %s: %w", op, rangeSpec, err)
	}
	if len(resp.Values) == 0 {
		return nil, fmt.Errorf("%s: range %s is empty", op, rangeSpec)
	}

	s.log.Debug().
		Int("rows", len(resp.Values)).
		Str("range", rangeSpec).
		Msg("Successfully read range from spreadsheet")

	return sales.FromValues("sheets:"+s.spreadsheetID, resp.Values), nil
}

// WriteReconciliation replaces the contents of the period's reconciliation
// sheet, creating the sheet on first use.
func (s *Service) WriteReconciliation(ctx context.Context, period ledger.Period, records []ledger.ReconciliationRecord) error {
	const op = "WriteReconciliation"

	sheetName := ReconciliationSheetName(period)
	s.log.Info().
		Str("sheet", sheetName).
		Int("rows", len(records)).
		Msg("Writing reconciliation to Google Sheet")

	sheetID, created, err := s.ensureSheet(ctx, sheetName)
	if err != nil {
		return fmt.Errorf("%s: failed to ensure sheet exists: %w", op, err)
	}

	if _, err := s.sheetsService.Spreadsheets.Values.Clear(s.spreadsheetID, "'"+sheetName+"'", &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%s: failed to clear sheet: %w", op, err)
	}

	values := reconciliationValues(records)
	_, err = s.sheetsService.Spreadsheets.Values.Update(
		s.spreadsheetID,
		fmt.Sprintf("'%s'!A1", sheetName),
		&sheets.ValueRange{Values: values},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to write values: %w", op, err)
	}

	if created {
		if err := s.formatHeaders(ctx, sheetID); err != nil {
			s.log.Warn().Err(err).Msg("Failed to format headers, continuing anyway")
		}
	}

	s.log.Info().
		Int("rows_written", len(values)-1).
		Msg("Successfully wrote reconciliation to Google Sheet")

	return nil
}

// ReconciliationSheetName names the per-period reconciliation sheet.
func ReconciliationSheetName(period ledger.Period) string {
	return "Reconciliação " + period.String()
}

// reconciliationValues lays out the header and one row per day. Amounts are
// numbers so the sheet can total them.
func reconciliationValues(records []ledger.ReconciliationRecord) [][]interface{} {
	values := [][]interface{}{reconciliationHeaders}
	for _, r := range records {
		settled := ""
		if !r.SettlementDate.IsZero() {
			settled = r.SettlementDate.Format("02/01/2006")
		}
		values = append(values, []interface{}{
			r.Date.Format("02/01/2006"),
			r.SalesCard.InexactFloat64(),
			r.BankSettlement.InexactFloat64(),
			settled,
			r.Fees.InexactFloat64(),
			r.Delta.InexactFloat64(),
		})
	}
	return values
}

// ensureSheet returns the id of the named sheet, adding it when missing.
func (s *Service) ensureSheet(ctx context.Context, sheetName string) (int64, bool, error) {
	const op = "ensureSheet"

	spreadsheet, err := s.sheetsService.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, false, fmt.Errorf("%s: failed to get spreadsheet: %w", op, err)
	}
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties.Title == sheetName {
			return sheet.Properties.SheetId, false, nil
		}
	}

	s.log.Info().Str("sheet", sheetName).Msg("Creating new sheet")

	batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: sheetName}}},
		},
	}
	resp, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, batchUpdateReq).Context(ctx).Do()
	if err != nil {
		return 0, false, fmt.Errorf("%s: failed to create sheet: %w", op, err)
	}
	return resp.Replies[0].AddSheet.Properties.SheetId, true, nil
}

// formatHeaders makes the header row bold and sizes the columns.
func (s *Service) formatHeaders(ctx context.Context, sheetID int64) error {
	const op = "formatHeaders"

	columns := int64(len(reconciliationHeaders))
	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   columns,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat:      &sheets.TextFormat{Bold: true},
						BackgroundColor: &sheets.Color{Red: 0.9, Green: 0.9, Blue: 0.9},
					},
				},
				Fields: "userEnteredFormat(textFormat,backgroundColor)",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   columns,
				},
			},
		},
	}

	batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}
	if _, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, batchUpdateReq).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%s: failed to format headers: %w", op, err)
	}
	return nil
}
