package config

import (
	"testing"
	"time"

	"finassist/internal/normalize"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"DATABASE_DRIVER", "DATABASE_DSN", "REDIS_URL", "LOCK_TTL_SECONDS", "VAT_SNAP_MODE", "DUPLICATE_INVOICE_THRESHOLD", "NEGATIVE_SAMPLE_SIZE", "HTTP_ADDR"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DatabaseDriver != "sqlite" || cfg.DatabaseDSN != "finassist.db" || cfg.HTTPAddr != ":8080" {
		t.Errorf("got %+v", cfg)
	}
	if cfg.LockTTL != 60*time.Second || cfg.VATSnapMode != normalize.SnapStandard {
		t.Errorf("lock ttl %v, snap mode %q", cfg.LockTTL, cfg.VATSnapMode)
	}
	opts := cfg.AnomalyOptions()
	if opts.DuplicateThreshold != 3 || opts.NegativeSample != 50 {
		t.Errorf("anomaly options: got %+v", opts)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"driver", "DATABASE_DRIVER", "postgres"},
		{"snap mode", "VAT_SNAP_MODE", "closest"},
		{"ttl not a number", "LOCK_TTL_SECONDS", "soon"},
		{"ttl negative", "LOCK_TTL_SECONDS", "-1"},
		{"threshold", "DUPLICATE_INVOICE_THRESHOLD", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("%s=%q should be rejected", tt.key, tt.value)
			}
		})
	}
}
