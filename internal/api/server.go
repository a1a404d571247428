// Package api exposes ingestion, metrics and reconciliation over HTTP.
package api

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"finassist/internal/bank"
	"finassist/internal/ingest"
	"finassist/internal/ledger"
	"finassist/internal/logger"
	"finassist/internal/metrics"
)

// BodyLimit caps an upload request: one workbook plus one statement.
const BodyLimit = 32 << 20

// Ingester stores one period's documents.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (*ingest.Report, error)
}

// Metrics answers the KPI, VAT and quality queries.
type Metrics interface {
	Summary(ctx context.Context, period ledger.Period) (*metrics.Summary, error)
	DailySeries(ctx context.Context, period ledger.Period) ([]metrics.DailyPoint, error)
	TopProducts(ctx context.Context, period ledger.Period, limit int) ([]metrics.EntityTotal, error)
	TopCustomers(ctx context.Context, period ledger.Period, limit int) ([]metrics.EntityTotal, error)
	VATReport(ctx context.Context, period ledger.Period) ([]metrics.VATBucket, error)
	Anomalies(ctx context.Context, period ledger.Period) (metrics.AnomalyReport, error)
}

// Reconciler recomputes a period's card reconciliation.
type Reconciler interface {
	Reconcile(ctx context.Context, period ledger.Period) ([]ledger.ReconciliationRecord, error)
}

// Deps are the services behind the routes. OCR may be nil, in which case
// statements without a text layer ingest no bank rows.
type Deps struct {
	Ingest     Ingester
	Metrics    Metrics
	Recon      Reconciler
	OCR        bank.LineSource
	SalesSheet string
}

// Server is the HTTP API.
type Server struct {
	app      *fiber.App
	deps     Deps
	validate *validator.Validate
	log      zerolog.Logger
}

// New builds the app and registers every route.
func New(deps Deps) *Server {
	s := &Server{
		deps:     deps,
		validate: newValidator(),
		log:      logger.WithComponent("api"),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "finassist",
		BodyLimit:             BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	s.app.Use(cors.New())
	s.app.Use(s.requestLogger)

	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/", s.handleHealth)
	s.app.Get("/health", s.handleHealth)

	s.app.Post("/files/upload", s.handleUpload)

	kpi := s.app.Group("/kpi")
	kpi.Get("/summary", s.handleSummary)
	kpi.Get("/daily", s.handleDaily)
	kpi.Get("/top-products", s.handleTopProducts)
	kpi.Get("/top-customers", s.handleTopCustomers)

	vat := s.app.Group("/vat")
	vat.Get("/report", s.handleVATReport)
	vat.Get("/export", s.handleVATExport)

	s.app.Get("/quality/anomalies", s.handleAnomalies)
	s.app.Get("/recon/card", s.handleReconCard)
}

// App returns the underlying fiber app, for tests and embedding.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.log.Info().Str("addr", addr).Msg("HTTP server listening")
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		status = statusFor(err)
	}

	event := s.log.Debug()
	if err != nil {
		event = s.log.Warn().Err(err)
	}
	event.
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", status).
		Dur("duration", time.Since(start)).
		Msg("Request handled")
	return err
}
