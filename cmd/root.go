package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"finassist/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "finassist",
	Short: "finassist - card sales and bank settlement reconciliation",
	Long: `finassist ingests a month of point-of-sale invoice lines and the matching
bank statement, then reports sales KPIs, VAT totals, data-quality anomalies
and the daily reconciliation of card sales against bank settlements.

Configuration is read from the environment (and a .env file):
  DATABASE_DRIVER, DATABASE_DSN - ledger store (sqlite or mysql)
  REDIS_URL                     - shared period locks (optional)
  VAT_SNAP_MODE                 - standard or nearest
  GOOGLE_CREDENTIALS or GOOGLE_APPLICATION_CREDENTIALS - Sheets and Vision`,
	Version:      version,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("finassist executed")

		fmt.Println("Welcome to finassist!")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
