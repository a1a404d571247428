package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"finassist/internal/bank"
	"finassist/internal/export"
	"finassist/internal/ingest"
	"finassist/internal/ledger"
	"finassist/internal/lock"
	"finassist/internal/metrics"
	"finassist/internal/sales"
)

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Detail       string            `json:"detail"`
	Fields       map[string]string `json:"fields,omitempty"`
	SalesPeriods []ledger.Period   `json:"sales_periods,omitempty"`
	BankPeriods  []ledger.Period   `json:"bank_periods,omitempty"`
}

func statusFor(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}

	switch {
	case errors.Is(err, metrics.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, ingest.ErrPeriodMismatch),
		errors.Is(err, ledger.ErrInvalidPeriod),
		errors.Is(err, sales.ErrMissingColumn),
		errors.Is(err, bank.ErrInvalidPDF),
		errors.Is(err, export.ErrUnknownFormat):
		return http.StatusBadRequest
	case errors.Is(err, lock.ErrNotObtained):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// handleError is the app's fiber.ErrorHandler.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	resp := errorResponse{Detail: err.Error()}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		resp.Detail = "invalid query parameters"
		resp.Fields = make(map[string]string, len(ve))
		for _, fe := range ve {
			resp.Fields[fe.Field()] = fe.Tag()
		}
	}

	var pm *ingest.PeriodMismatchError
	if errors.As(err, &pm) {
		resp.SalesPeriods = pm.SalesPeriods
		resp.BankPeriods = pm.BankPeriods
	}

	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
		resp.Detail = http.StatusText(status)
	}

	return c.Status(status).JSON(resp)
}
