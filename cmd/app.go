package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"finassist/internal/bank"
	"finassist/internal/config"
	"finassist/internal/ingest"
	"finassist/internal/ledger"
	"finassist/internal/lock"
	"finassist/internal/logger"
	"finassist/internal/metrics"
	"finassist/internal/normalize"
	"finassist/internal/ocr"
	"finassist/internal/reconciliation"
	"finassist/internal/sales"
	"finassist/internal/store"
)

// app holds the services a command needs, built from the environment.
type app struct {
	cfg    *config.Config
	store  *store.Store
	locker lock.Locker
	dates  *normalize.DateParser
	log    zerolog.Logger

	closers []func() error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:   cfg,
		dates: normalize.NewDateParser(normalize.NewSerialCache()),
		log:   logger.WithComponent("app"),
	}

	a.store, err = store.Open(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	a.closers = append(a.closers, a.store.Close)

	if cfg.RedisURL != "" {
		redisLock, err := lock.NewRedis(ctx, cfg.RedisURL, cfg.LockTTL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to connect lock backend: %w", err)
		}
		a.locker = redisLock
		a.closers = append(a.closers, redisLock.Close)
		a.log.Debug().Msg("Using Redis period locks")
	} else {
		a.locker = lock.NewLocal()
	}

	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn().Err(err).Msg("Failed to release resource")
		}
	}
}

func (a *app) salesParser() *sales.Parser {
	return sales.NewParser(a.dates, a.cfg.VATSnapMode)
}

func (a *app) ingestService() *ingest.Service {
	return ingest.NewService(a.store, a.locker, a.salesParser(), bank.NewParser(nil))
}

func (a *app) engine() *reconciliation.Engine {
	return reconciliation.NewEngine(a.store, a.locker)
}

func (a *app) metrics() *metrics.Service {
	return metrics.NewService(a.store, a.cfg.AnomalyOptions())
}

// visionService creates the OCR fallback, registering it for close.
func (a *app) visionService(ctx context.Context, log zerolog.Logger) (*ocr.VisionService, error) {
	svc, err := createOCRService(ctx, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, svc.Close)
	return svc, nil
}

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// createOCRService checks for credentials before creating the Vision client.
func createOCRService(ctx context.Context, log zerolog.Logger) (*ocr.VisionService, error) {
	hasCredentials := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" || os.Getenv("GOOGLE_CREDENTIALS") != ""
	if !hasCredentials {
		log.Error().Msg("Google Cloud credentials not configured")
		return nil, fmt.Errorf("Google Cloud credentials not configured. Please set one of:\n\n" +
			"1. Export GOOGLE_APPLICATION_CREDENTIALS with path to service account JSON:\n" +
			"   export GOOGLE_APPLICATION_CREDENTIALS=/path/to/service-account-key.json\n\n" +
			"2. Export GOOGLE_CREDENTIALS with inline JSON\n\n" +
			"3. Check that your .env file contains the credentials variables")
	}

	svc, err := ocr.NewVisionService(ctx)
	if err != nil {
		if errors.Is(err, ocr.ErrMissingCredentials) {
			log.Error().Err(err).Msg("Google Cloud credentials validation failed")
			return nil, fmt.Errorf("Google Cloud credentials validation failed: %w", err)
		}
		log.Error().Err(err).Msg("Failed to create OCR service")
		return nil, fmt.Errorf("failed to create OCR service: %w", err)
	}

	log.Debug().Msg("OCR service created successfully")
	return svc, nil
}

// monthFlag reads and validates the --month flag.
func monthFlag(cmd *cobra.Command) (ledger.Period, error) {
	raw, _ := cmd.Flags().GetString("month")
	if raw == "" {
		return "", fmt.Errorf("--month is required (01-12)")
	}
	return ledger.ParsePeriod(raw)
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to create JSON output: %w", err)
	}
	data = append(data, '\n')
	if _, err := os.Stdout.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
