package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"finassist/internal/ledger"
	"finassist/internal/logger"
	"finassist/internal/reconciliation"
	"finassist/internal/sheets"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile card sales with bank settlements",
	Long: `Compare each day's card sales with the net settlement the bank credited for
that day (or the next day) and cache the per-day records.

With --publish the records are also written to a "Reconciliação MM" sheet of
the Google Sheet at GOOGLE_SHEET_URL.`,
	Example: `  # Reconcile September
  finassist reconcile --month 09

  # Show the last cached run without recomputing
  finassist reconcile --month 09 --cached

  # Recompute and publish to Google Sheets
  finassist reconcile --month 09 --publish`,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().String("month", "", "Month to reconcile (01-12)")
	reconcileCmd.Flags().Bool("cached", false, "Print the cached records instead of recomputing")
	reconcileCmd.Flags().Bool("publish", false, "Write the records to the configured Google Sheet")
	reconcileCmd.Flags().Int("timeout", 120, "Processing timeout in seconds")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("reconcile")

	period, err := monthFlag(cmd)
	if err != nil {
		return err
	}
	cached, _ := cmd.Flags().GetBool("cached")
	publish, _ := cmd.Flags().GetBool("publish")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	engine := a.engine()

	var records []ledger.ReconciliationRecord
	if cached {
		records, err = engine.Cached(ctx, period)
	} else {
		records, err = engine.Reconcile(ctx, period)
	}
	if err != nil {
		if !errors.Is(err, reconciliation.ErrPersistence) {
			return err
		}
		log.Warn().Err(err).Msg("Records computed but not cached")
	}

	if publish {
		if a.cfg.GoogleSheetURL == "" {
			return fmt.Errorf("GOOGLE_SHEET_URL environment variable is required for --publish")
		}
		svc, err := sheets.NewSheetsService(ctx, a.cfg.GoogleSheetURL)
		if err != nil {
			return fmt.Errorf("failed to initialize Google Sheets service: %w", err)
		}
		if err := svc.WriteReconciliation(ctx, period, records); err != nil {
			return err
		}
	}

	log.Info().
		Str("period", period.String()).
		Int("records", len(records)).
		Bool("cached", cached).
		Bool("published", publish).
		Msg("Reconciliation completed")

	return printJSON(reconciliationOutput(records))
}

type reconciliationRow struct {
	Date           string `json:"date"`
	SalesCard      string `json:"sales_card"`
	BankSettlement string `json:"bank_settlement"`
	SettlementDate string `json:"settlement_date,omitempty"`
	Fees           string `json:"fees"`
	Delta          string `json:"delta"`
}

func reconciliationOutput(records []ledger.ReconciliationRecord) []reconciliationRow {
	rows := make([]reconciliationRow, 0, len(records))
	for _, r := range records {
		row := reconciliationRow{
			Date:           r.Date.Format("2006-01-02"),
			SalesCard:      r.SalesCard.StringFixed(2),
			BankSettlement: r.BankSettlement.StringFixed(2),
			Fees:           r.Fees.StringFixed(2),
			Delta:          r.Delta.StringFixed(2),
		}
		if !r.SettlementDate.IsZero() {
			row.SettlementDate = r.SettlementDate.Format("2006-01-02")
		}
		rows = append(rows, row)
	}
	return rows
}
