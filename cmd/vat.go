package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"finassist/internal/export"
	"finassist/internal/logger"
)

var vatCmd = &cobra.Command{
	Use:   "vat",
	Short: "Show net, VAT and gross totals per VAT rate",
	Long: `Group the month's sales lines by VAT rate. With --output the report is
written as CSV or XLSX, chosen by the file extension.`,
	Example: `  finassist vat --month 09
  finassist vat --month 09 -o vat_09.xlsx`,
	RunE: runVAT,
}

func init() {
	rootCmd.AddCommand(vatCmd)

	vatCmd.Flags().String("month", "", "Month to report (01-12)")
	vatCmd.Flags().StringP("output", "o", "", "Write the report to a .csv or .xlsx file")
}

func runVAT(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("vat")

	period, err := monthFlag(cmd)
	if err != nil {
		return err
	}
	outputPath, _ := cmd.Flags().GetString("output")

	var format export.Format
	if outputPath != "" {
		format, err = export.ParseFormat(strings.TrimPrefix(filepath.Ext(outputPath), "."))
		if err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	buckets, err := a.metrics().VATReport(ctx, period)
	if err != nil {
		return err
	}

	if outputPath == "" {
		return printJSON(buckets)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := export.WriteVAT(f, format, period, buckets); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	log.Info().
		Str("output_file", outputPath).
		Str("format", string(format)).
		Int("rates", len(buckets)).
		Msg("VAT report written to file")
	return nil
}
