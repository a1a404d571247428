package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"finassist/internal/logger"
)

var summaryCmd = &cobra.Command{
	Use:     "summary",
	Short:   "Show net, VAT and gross totals and the card share for a month",
	Example: `  finassist summary --month 09`,
	RunE:    runSummary,
}

var dailyCmd = &cobra.Command{
	Use:     "daily",
	Short:   "Show gross sales per day, split by card and cash",
	Example: `  finassist daily --month 09`,
	RunE:    runDaily,
}

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Rank products or customers by gross sales",
	Example: `  finassist top --month 09
  finassist top --month 09 --by customers --limit 5`,
	RunE: runTop,
}

func init() {
	rootCmd.AddCommand(summaryCmd, dailyCmd, topCmd)

	for _, c := range []*cobra.Command{summaryCmd, dailyCmd, topCmd} {
		c.Flags().String("month", "", "Month to report (01-12)")
	}
	topCmd.Flags().String("by", "products", "What to rank: products or customers")
	topCmd.Flags().Int("limit", 10, "Number of entries")
}

func runSummary(cmd *cobra.Command, args []string) error {
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

	summary, err := a.metrics().Summary(ctx, period)
	if err != nil {
		return err
	}
	return printJSON(summary)
}

func runDaily(cmd *cobra.Command, args []string) error {
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

	points, err := a.metrics().DailySeries(ctx, period)
	if err != nil {
		return err
	}
	return printJSON(points)
}

func runTop(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("top")

	period, err := monthFlag(cmd)
	if err != nil {
		return err
	}
	by, _ := cmd.Flags().GetString("by")
	limit, _ := cmd.Flags().GetInt("limit")

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	svc := a.metrics()
	switch by {
	case "products":
		entries, err := svc.TopProducts(ctx, period, limit)
		if err != nil {
			return err
		}
		return printJSON(entries)
	case "customers":
		entries, err := svc.TopCustomers(ctx, period, limit)
		if err != nil {
			return err
		}
		return printJSON(entries)
	default:
		log.Error().Str("by", by).Msg("Unknown ranking")
		return fmt.Errorf("--by must be products or customers, got %q", by)
	}
}
