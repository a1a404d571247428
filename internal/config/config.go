package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"finassist/internal/logger"
	"finassist/internal/metrics"
	"finassist/internal/normalize"
)

type Config struct {
	// Storage
	DatabaseDriver string
	DatabaseDSN    string

	// Locking: empty RedisURL selects in-process locks
	RedisURL string
	LockTTL  time.Duration

	// Sales input
	SalesSheetName   string
	GoogleSheetURL   string
	GoogleSheetRange string

	// Normalization and quality rules
	VATSnapMode               normalize.SnapMode
	DuplicateInvoiceThreshold int
	NegativeSampleSize        int

	// HTTP
	HTTPAddr string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		DatabaseDriver:   getEnv("DATABASE_DRIVER", "sqlite"),
		DatabaseDSN:      getEnv("DATABASE_DSN", "finassist.db"),
		RedisURL:         getEnv("REDIS_URL", ""),
		SalesSheetName:   getEnv("SALES_SHEET_NAME", ""),
		GoogleSheetURL:   getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetRange: getEnv("GOOGLE_SHEET_RANGE", ""),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:    getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:        getEnv("LOG_OUTPUT", "stderr"),
	}

	mode, err := normalize.ParseSnapMode(getEnv("VAT_SNAP_MODE", string(normalize.SnapStandard)))
	if err != nil {
		return nil, fmt.Errorf("config validation failed: VAT_SNAP_MODE: %w", err)
	}
	config.VATSnapMode = mode

	ttl, err := getEnvInt("LOCK_TTL_SECONDS", 60)
	if err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	config.LockTTL = time.Duration(ttl) * time.Second

	if config.DuplicateInvoiceThreshold, err = getEnvInt("DUPLICATE_INVOICE_THRESHOLD", metrics.DefaultDuplicateThreshold); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if config.NegativeSampleSize, err = getEnvInt("NEGATIVE_SAMPLE_SIZE", metrics.DefaultNegativeSample); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.DatabaseDriver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be sqlite or mysql, got %q", c.DatabaseDriver)
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL_SECONDS must be positive")
	}
	if c.DuplicateInvoiceThreshold < 1 {
		return fmt.Errorf("DUPLICATE_INVOICE_THRESHOLD must be at least 1")
	}
	if c.NegativeSampleSize < 1 {
		return fmt.Errorf("NEGATIVE_SAMPLE_SIZE must be at least 1")
	}
	return nil
}

// AnomalyOptions returns the data-quality thresholds.
func (c *Config) AnomalyOptions() metrics.AnomalyOptions {
	return metrics.AnomalyOptions{
		DuplicateThreshold: c.DuplicateInvoiceThreshold,
		NegativeSample:     c.NegativeSampleSize,
	}
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
