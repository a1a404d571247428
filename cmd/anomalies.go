package cmd

import (
	"github.com/spf13/cobra"
)

var anomaliesCmd = &cobra.Command{
	Use:   "anomalies",
	Short: "List invoices with too many lines and lines with negative gross",
	Long: `Data-quality checks over the month's sales lines. The line-count threshold
and the size of the negative-line sample come from
DUPLICATE_INVOICE_THRESHOLD and NEGATIVE_SAMPLE_SIZE.`,
	Example: `  finassist anomalies --month 09`,
	RunE:    runAnomalies,
}

func init() {
	rootCmd.AddCommand(anomaliesCmd)
	anomaliesCmd.Flags().String("month", "", "Month to check (01-12)")
}

func runAnomalies(cmd *cobra.Command, args []string) error {
	period, err := monthFlag(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.metrics().Anomalies(ctx, period)
	if err != nil {
		return err
	}
	return printJSON(report)
}
