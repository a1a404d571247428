package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"finassist/internal/bank"
	"finassist/internal/ledger"
	"finassist/internal/logger"
	"finassist/internal/ocr"
)

var extractCmd = &cobra.Command{
	Use:   "extract [statement-file]",
	Short: "Show how a bank statement is read and classified",
	Long: `Debug view of the bank statement parser. Prints every text line extracted
from the statement, or with --month the transactions parsed for that month
and the lines that were dropped.

With --ocr the statement is scanned with Google Cloud Vision even when it has
a text layer, which helps compare both extractions. Scanning supports up to
5 pages and 20MB.

Required environment variables for --ocr:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string`,
	Example: `  # Print the extracted lines
  finassist extract extracto.pdf

  # Parse September transactions
  finassist extract extracto.pdf --month 09

  # Scan with OCR and save the lines
  finassist extract scan.pdf --ocr -o lines.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().String("month", "", "Parse transactions for this month (01-12)")
	extractCmd.Flags().Bool("ocr", false, "Scan with Google Cloud Vision")
	extractCmd.Flags().StringP("output", "o", "", "Output file path for the extracted lines (default: stdout)")
	extractCmd.Flags().Int("timeout", 300, "Processing timeout in seconds")
}

type extractedTransaction struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Debit       string `json:"debit,omitempty"`
	Credit      string `json:"credit,omitempty"`
	Balance     string `json:"balance,omitempty"`
}

type droppedLine struct {
	Line  int    `json:"line"`
	Text  string `json:"text"`
	Error string `json:"error"`
}

type extractOutput struct {
	Month        ledger.Period          `json:"month"`
	Lines        int                    `json:"lines"`
	OutOfPeriod  int                    `json:"out_of_period"`
	Transactions []extractedTransaction `json:"transactions"`
	Dropped      []droppedLine          `json:"dropped"`
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("extract")

	useOCR, _ := cmd.Flags().GetBool("ocr")
	outputPath, _ := cmd.Flags().GetString("output")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	month, _ := cmd.Flags().GetString("month")

	path := args[0]
	fileInfo, err := validateStatementFile(path, log)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	lines, err := extractLines(ctx, path, useOCR, log)
	if err != nil {
		return handleOCRError(err, log)
	}

	log.Info().
		Str("file", path).
		Int64("size", fileInfo.Size()).
		Int("lines", len(lines)).
		Msg("Statement lines extracted")

	if month == "" {
		return outputLines(lines, outputPath, log)
	}

	period, err := ledger.ParsePeriod(month)
	if err != nil {
		return err
	}
	res := bank.NewParser(nil).Parse(lines, period)
	return printJSON(extractResult(period, len(lines), res))
}

func extractLines(ctx context.Context, path string, useOCR bool, log zerolog.Logger) ([]string, error) {
	if !useOCR {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read statement: %w", err)
		}
		return bank.ReadStatement(ctx, data, nil)
	}

	svc, err := createOCRService(ctx, log)
	if err != nil {
		return nil, err
	}
	defer svc.Close()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open statement: %w", err)
	}
	defer f.Close()
	return svc.StatementLines(ctx, f)
}

func extractResult(period ledger.Period, lineCount int, res *bank.Result) extractOutput {
	out := extractOutput{
		Month:        period,
		Lines:        lineCount,
		OutOfPeriod:  res.OutOfPeriod,
		Transactions: make([]extractedTransaction, 0, len(res.Transactions)),
		Dropped:      make([]droppedLine, 0, len(res.Dropped)),
	}
	for _, tx := range res.Transactions {
		t := extractedTransaction{
			Date:        tx.Date.Format("2006-01-02"),
			Description: tx.Description,
			Type:        string(tx.Type),
		}
		if tx.Debit.Valid {
			t.Debit = tx.Debit.Decimal.StringFixed(2)
		}
		if tx.Credit.Valid {
			t.Credit = tx.Credit.Decimal.StringFixed(2)
		}
		if tx.Balance.Valid {
			t.Balance = tx.Balance.Decimal.StringFixed(2)
		}
		out.Transactions = append(out.Transactions, t)
	}
	for _, d := range res.Dropped {
		out.Dropped = append(out.Dropped, droppedLine{Line: d.Line, Text: d.Text, Error: d.Err.Error()})
	}
	return out
}

// validateStatementFile checks that the file exists, is regular and fits the OCR limit.
func validateStatementFile(path string, log zerolog.Logger) (os.FileInfo, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().Str("file", path).Msg("Statement file not found")
			return nil, fmt.Errorf("statement file not found: %s", path)
		}
		if os.IsPermission(err) {
			log.Error().Str("file", path).Msg("Permission denied accessing statement file")
			return nil, fmt.Errorf("permission denied accessing statement file: %s", path)
		}
		return nil, fmt.Errorf("error accessing statement file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		return nil, fmt.Errorf("path is not a regular file: %s", path)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		log.Warn().Str("file", path).Msg("File does not have .pdf extension")
	}
	if fileInfo.Size() == 0 {
		return nil, fmt.Errorf("statement file is empty: %s", path)
	}
	if fileInfo.Size() > ocr.MaxFileSizeBytes {
		log.Warn().
			Str("file", path).
			Int64("size", fileInfo.Size()).
			Int64("max_size", ocr.MaxFileSizeBytes).
			Msg("Statement exceeds the OCR size limit")
	}

	return fileInfo, nil
}

// handleOCRError turns extraction failures into actionable messages.
func handleOCRError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Statement extraction failed")

	errStr := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("extraction timed out. Try increasing --timeout or processing a smaller file")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("extraction was canceled")
	case errors.Is(err, bank.ErrInvalidPDF), errors.Is(err, ocr.ErrInvalidPDF):
		return fmt.Errorf("invalid or corrupted PDF file. Please check the file integrity")
	case errors.Is(err, ocr.ErrPDFTooLarge):
		return fmt.Errorf("PDF file is too large for OCR (maximum 20MB). Try splitting the statement")
	case errors.Is(err, ocr.ErrTooManyPages):
		return fmt.Errorf("PDF has too many pages for OCR (maximum 5 pages). Try splitting the statement")
	case errors.Is(err, ocr.ErrEmptyDocument):
		return fmt.Errorf("no readable text found in the statement")
	case strings.Contains(errStr, "Unauthenticated") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "transport: per-RPC creds failed"):
		return fmt.Errorf("Google Cloud authentication failed. Check GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS and that the service account has the 'Cloud Vision API User' role: %v", err)
	case strings.Contains(errStr, "PERMISSION_DENIED"):
		return fmt.Errorf("permission denied. Please ensure your Google Cloud service account has the 'Cloud Vision API User' role")
	case strings.Contains(errStr, "QUOTA_EXCEEDED") || strings.Contains(errStr, "quota"):
		return fmt.Errorf("Google Cloud Vision API quota exceeded. Check your project quotas in the Google Cloud Console")
	case errors.Is(err, ocr.ErrOCRFailed):
		return fmt.Errorf("OCR processing failed. This may be due to network issues, API quota limits, or service unavailability: %w", err)
	default:
		return fmt.Errorf("extraction failed: %w", err)
	}
}

func outputLines(lines []string, outputPath string, log zerolog.Logger) error {
	outputData := []byte(strings.Join(lines, "\n") + "\n")

	if outputPath == "" {
		if _, err := os.Stdout.Write(outputData); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(outputPath, outputData, 0644); err != nil {
		log.Error().Err(err).Str("output_file", outputPath).Msg("Failed to write output file")
		return fmt.Errorf("failed to write output file: %w", err)
	}
	log.Info().
		Str("output_file", outputPath).
		Int("bytes", len(outputData)).
		Msg("Statement lines written to file")
	return nil
}
