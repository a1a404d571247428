package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"finassist/internal/bank"
	"finassist/internal/ingest"
	"finassist/internal/logger"
	"finassist/internal/sales"
	"finassist/internal/sheets"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load a month of sales and bank statement into the ledger",
	Long: `Parse the point-of-sale invoice-line export and the bank statement for one
month and replace that month's ledger rows with the result. Running the
command again for the same month leaves the same rows.

Sales come from an .xlsx export (--sales) or, with --from-sheet, from the
Google Sheet at GOOGLE_SHEET_URL. The statement (--bank) is a PDF or a .txt
file of statement lines. With --ocr, a PDF without a text layer is read with
Google Cloud Vision.`,
	Example: `  # Ingest September
  finassist ingest --month 09 --sales vendas.xlsx --bank extracto.pdf

  # Read sales from the configured Google Sheet, OCR a scanned statement
  finassist ingest --month 09 --from-sheet --bank scan.pdf --ocr`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().String("month", "", "Month to ingest (01-12)")
	ingestCmd.Flags().String("sales", "", "Sales workbook (.xlsx)")
	ingestCmd.Flags().Bool("from-sheet", false, "Read sales from GOOGLE_SHEET_URL instead of a file")
	ingestCmd.Flags().String("bank", "", "Bank statement (.pdf or .txt)")
	ingestCmd.Flags().Bool("ocr", false, "OCR statements that have no text layer")
	ingestCmd.Flags().Int("timeout", 300, "Processing timeout in seconds")
}

func runIngest(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ingest-cmd")

	period, err := monthFlag(cmd)
	if err != nil {
		return err
	}
	salesPath, _ := cmd.Flags().GetString("sales")
	fromSheet, _ := cmd.Flags().GetBool("from-sheet")
	bankPath, _ := cmd.Flags().GetString("bank")
	useOCR, _ := cmd.Flags().GetBool("ocr")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	if (salesPath == "") == !fromSheet {
		return fmt.Errorf("exactly one of --sales or --from-sheet is required")
	}
	if bankPath == "" {
		return fmt.Errorf("--bank is required")
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	doc, err := loadSales(ctx, a, salesPath, log)
	if err != nil {
		return err
	}

	lines, err := loadStatement(ctx, a, bankPath, useOCR, log)
	if err != nil {
		return err
	}

	report, err := a.ingestService().Ingest(ctx, ingest.Request{
		Period:      period,
		Sales:       doc,
		BankLines:   lines,
		SalesSource: doc.Source,
	})
	if err != nil {
		return err
	}
	return printJSON(report)
}

// loadSales reads the workbook at path, or the configured Google Sheet when
// path is empty.
func loadSales(ctx context.Context, a *app, path string, log zerolog.Logger) (*sales.Document, error) {
	if path == "" {
		if a.cfg.GoogleSheetURL == "" {
			return nil, fmt.Errorf("GOOGLE_SHEET_URL environment variable is required for --from-sheet")
		}
		svc, err := sheets.NewSheetsService(ctx, a.cfg.GoogleSheetURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets service: %w", err)
		}
		rangeSpec := a.cfg.GoogleSheetRange
		if rangeSpec == "" {
			rangeSpec = sheets.SalesRange(a.cfg.SalesSheetName)
		}
		log.Info().Str("range", rangeSpec).Msg("Reading sales from Google Sheet")
		return svc.ReadSales(ctx, rangeSpec)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sales workbook: %w", err)
	}
	defer f.Close()

	doc, err := sales.ReadWorkbook(f, a.cfg.SalesSheetName)
	if err != nil {
		return nil, err
	}
	doc.Source = filepath.Base(path)
	log.Info().Str("file", path).Int("rows", len(doc.Rows)).Msg("Sales workbook loaded")
	return doc, nil
}

// loadStatement returns the text lines of a .txt or .pdf statement.
func loadStatement(ctx context.Context, a *app, path string, useOCR bool, log zerolog.Logger) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bank statement: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		return bank.SplitLines(string(data)), nil
	}

	var fallback bank.LineSource
	if useOCR {
		svc, err := a.visionService(ctx, log)
		if err != nil {
			return nil, err
		}
		fallback = svc
	}

	lines, err := bank.ReadStatement(ctx, data, fallback)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		log.Warn().Str("file", path).Msg("Statement has no text layer; rerun with --ocr to scan it")
	}
	return lines, nil
}
