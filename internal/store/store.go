// Package store persists the canonical ledger, the reconciliation cache and
// the ingestion audit trail through gorm. SQLite serves single-machine use;
// MySQL serves shared deployments.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"finassist/internal/ledger"
	"finassist/internal/logger"
)

const insertBatchSize = 500

// Store is the durable keyed store behind ingestion, reconciliation and
// metrics.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

// Open connects to the database and migrates the schema. driver is
// "sqlite" (dsn is a file path or ":memory:") or "mysql".
func Open(driver, dsn string) (*Store, error) {
	const op = "Open"

	log := logger.WithComponent("store")

	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("%s: unsupported driver %q", op, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLog(log, time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open %s database: %w", op, driver, err)
	}

	if driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		// One writer; also keeps a ":memory:" database alive and shared.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.Use(otelgorm.NewPlugin()); err != nil {
		log.Warn().Err(err).Msg("Failed to install tracing plugin, continuing without it")
	}

	if err := db.AutoMigrate(&SalesLineRow{}, &BankTransactionRow{}, &ReconciliationRow{}, &RawSalesBatch{}); err != nil {
		return nil, fmt.Errorf("%s: failed to migrate schema: %w", op, err)
	}

	log.Debug().Str("driver", driver).Msg("Database ready")

	return &Store{db: db, log: log}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ReplaceLedger swaps the period's sales lines and bank transactions for the
// given ones and records the audit batch, all in one transaction.
func (s *Store) ReplaceLedger(ctx context.Context, period ledger.Period, sales []ledger.SalesLine, bank []ledger.BankTransaction, batch *RawSalesBatch) error {
	const op = "ReplaceLedger"

	salesRows := make([]SalesLineRow, len(sales))
	for i, l := range sales {
		salesRows[i] = toSalesRow(l)
	}
	bankRows := make([]BankTransactionRow, len(bank))
	for i, t := range bank {
		bankRows[i] = toBankRow(t)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("period = ?", period.String()).Delete(&SalesLineRow{}).Error; err != nil {
			return fmt.Errorf("delete sales lines: %w", err)
		}
		if err := tx.Where("period = ?", period.String()).Delete(&BankTransactionRow{}).Error; err != nil {
			return fmt.Errorf("delete bank transactions: %w", err)
		}
		if len(salesRows) > 0 {
			if err := tx.CreateInBatches(salesRows, insertBatchSize).Error; err != nil {
				return fmt.Errorf("insert sales lines: %w", err)
			}
		}
		if len(bankRows) > 0 {
			if err := tx.CreateInBatches(bankRows, insertBatchSize).Error; err != nil {
				return fmt.Errorf("insert bank transactions: %w", err)
			}
		}
		if batch != nil {
			if err := tx.Create(batch).Error; err != nil {
				return fmt.Errorf("insert raw batch: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Debug().
		Str("period", period.String()).
		Int("sales_lines", len(salesRows)).
		Int("bank_transactions", len(bankRows)).
		Msg("Ledger replaced")
	return nil
}

// SalesLines returns the period's sales lines in ingestion order.
func (s *Store) SalesLines(ctx context.Context, period ledger.Period) ([]ledger.SalesLine, error) {
	const op = "SalesLines"

	var rows []SalesLineRow
	if err := s.db.WithContext(ctx).Where("period = ?", period.String()).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out := make([]ledger.SalesLine, len(rows))
	for i, r := range rows {
		out[i] = r.toLedger()
	}
	return out, nil
}

// BankTransactions returns the period's bank transactions in statement order.
func (s *Store) BankTransactions(ctx context.Context, period ledger.Period) ([]ledger.BankTransaction, error) {
	const op = "BankTransactions"

	var rows []BankTransactionRow
	if err := s.db.WithContext(ctx).Where("period = ?", period.String()).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return bankRowsToLedger(rows), nil
}

// BankTransactionsOn returns the transactions booked on one calendar day,
// whatever period they were ingested under.
func (s *Store) BankTransactionsOn(ctx context.Context, day time.Time) ([]ledger.BankTransaction, error) {
	const op = "BankTransactionsOn"

	var rows []BankTransactionRow
	if err := s.db.WithContext(ctx).Where("day = ?", formatDay(day)).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return bankRowsToLedger(rows), nil
}

func bankRowsToLedger(rows []BankTransactionRow) []ledger.BankTransaction {
	out := make([]ledger.BankTransaction, len(rows))
	for i, r := range rows {
		out[i] = r.toLedger()
	}
	return out
}

// ReplaceReconciliation swaps the cached records of a period in one
// transaction.
func (s *Store) ReplaceReconciliation(ctx context.Context, period ledger.Period, records []ledger.ReconciliationRecord) error {
	const op = "ReplaceReconciliation"

	rows := make([]ReconciliationRow, len(records))
	for i, rec := range records {
		rows[i] = toReconciliationRow(period, rec)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("period = ?", period.String()).Delete(&ReconciliationRow{}).Error; err != nil {
			return fmt.Errorf("delete records: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, insertBatchSize).Error; err != nil {
			return fmt.Errorf("insert records: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ReconciliationRecords returns the cached records of a period by day.
func (s *Store) ReconciliationRecords(ctx context.Context, period ledger.Period) ([]ledger.ReconciliationRecord, error) {
	const op = "ReconciliationRecords"

	var rows []ReconciliationRow
	if err := s.db.WithContext(ctx).Where("period = ?", period.String()).Order("day").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out := make([]ledger.ReconciliationRecord, len(rows))
	for i, r := range rows {
		out[i] = r.toLedger()
	}
	return out, nil
}

// Batches returns the audit records of a period, newest first.
func (s *Store) Batches(ctx context.Context, period ledger.Period) ([]RawSalesBatch, error) {
	const op = "Batches"

	var batches []RawSalesBatch
	if err := s.db.WithContext(ctx).Where("period = ?", period.String()).Order("created_at DESC").Find(&batches).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return batches, nil
}

// Periods lists every period with ledger data.
func (s *Store) Periods(ctx context.Context) ([]ledger.Period, error) {
	const op = "Periods"

	set := ledger.PeriodSet{}
	for _, model := range []interface{}{&SalesLineRow{}, &BankTransactionRow{}} {
		var keys []string
		if err := s.db.WithContext(ctx).Model(model).Distinct().Pluck("period", &keys).Error; err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		for _, k := range keys {
			set.Add(ledger.Period(k))
		}
	}
	return set.Sorted(), nil
}
