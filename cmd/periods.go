package cmd

import (
	"github.com/spf13/cobra"

	"finassist/internal/bank"
	"finassist/internal/ledger"
	"finassist/internal/logger"
)

var periodsCmd = &cobra.Command{
	Use:   "periods",
	Short: "List the months present in documents or in the ledger",
	Long: `Without flags, list the months already ingested together with their
ingestion batches. With --sales and/or --bank, list the months found in
those documents, which is what ingest checks --month against.`,
	Example: `  finassist periods
  finassist periods --sales vendas.xlsx --bank extracto.pdf`,
	RunE: runPeriods,
}

func init() {
	rootCmd.AddCommand(periodsCmd)

	periodsCmd.Flags().String("sales", "", "Sales workbook (.xlsx)")
	periodsCmd.Flags().String("bank", "", "Bank statement (.pdf or .txt)")
}

type storedPeriod struct {
	Month   ledger.Period `json:"month"`
	Batches []batchInfo   `json:"batches"`
}

type batchInfo struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	SalesLines int    `json:"sales_rows"`
	BankLines  int    `json:"bank_rows"`
	CreatedAt  string `json:"created_at"`
}

func runPeriods(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("periods")

	salesPath, _ := cmd.Flags().GetString("sales")
	bankPath, _ := cmd.Flags().GetString("bank")

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if salesPath == "" && bankPath == "" {
		periods, err := a.store.Periods(ctx)
		if err != nil {
			return err
		}
		out := make([]storedPeriod, 0, len(periods))
		for _, p := range periods {
			batches, err := a.store.Batches(ctx, p)
			if err != nil {
				return err
			}
			sp := storedPeriod{Month: p, Batches: make([]batchInfo, 0, len(batches))}
			for _, b := range batches {
				sp.Batches = append(sp.Batches, batchInfo{
					ID:         b.ID,
					Source:     b.Source,
					SalesLines: b.SalesLines,
					BankLines:  b.BankLines,
					CreatedAt:  b.CreatedAt.Format("2006-01-02 15:04:05"),
				})
			}
			out = append(out, sp)
		}
		return printJSON(out)
	}

	found := map[string][]ledger.Period{}
	if salesPath != "" {
		doc, err := loadSales(ctx, a, salesPath, log)
		if err != nil {
			return err
		}
		found["sales"] = a.salesParser().DetectPeriods(doc).Sorted()
	}
	if bankPath != "" {
		lines, err := loadStatement(ctx, a, bankPath, false, log)
		if err != nil {
			return err
		}
		found["bank"] = bank.DetectPeriods(lines).Sorted()
	}
	return printJSON(found)
}
