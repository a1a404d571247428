package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"finassist/internal/api"
	"finassist/internal/bank"
	"finassist/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve uploads, KPIs, VAT reports, anomalies and the card reconciliation
over HTTP. The listen address defaults to HTTP_ADDR.`,
	Example: `  finassist serve
  finassist serve --addr :9000 --ocr`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default: HTTP_ADDR)")
	serveCmd.Flags().Bool("ocr", false, "OCR uploaded statements that have no text layer")
	serveCmd.Flags().Int("shutdown-timeout", 15, "Seconds to wait for in-flight requests on shutdown")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	addr, _ := cmd.Flags().GetString("addr")
	useOCR, _ := cmd.Flags().GetBool("ocr")
	shutdownSecs, _ := cmd.Flags().GetInt("shutdown-timeout")

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if addr == "" {
		addr = a.cfg.HTTPAddr
	}

	var fallback bank.LineSource
	if useOCR {
		svc, err := a.visionService(ctx, log)
		if err != nil {
			return err
		}
		fallback = svc
	}

	server := api.New(api.Deps{
		Ingest:     a.ingestService(),
		Metrics:    a.metrics(),
		Recon:      a.engine(),
		OCR:        fallback,
		SalesSheet: a.cfg.SalesSheetName,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen(addr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Shutting down HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(shutdownSecs)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
