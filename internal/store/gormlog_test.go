package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func captureGormLog(slow time.Duration) (*gormLog, *bytes.Buffer) {
	var buf bytes.Buffer
	return newGormLog(zerolog.New(&buf), slow), &buf
}

func levels(t *testing.T, buf *bytes.Buffer) []string {
	t.Helper()
	var out []string
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			t.Fatalf("log line is not JSON: %q", raw)
		}
		out = append(out, entry["level"].(string))
	}
	return out
}

func TestGormLogLevels(t *testing.T) {
	sql := func() (string, int64) { return "SELECT 1", 1 }
	ctx := context.Background()

	tests := []struct {
		name string
		run  func(g *gormLog)
		want []string
	}{
		{"warn", func(g *gormLog) { g.Warn(ctx, "deprecated %s", "option") }, []string{"warn"}},
		{"error", func(g *gormLog) { g.Error(ctx, "broken") }, []string{"error"}},
		{"info filtered at warn", func(g *gormLog) { g.Info(ctx, "hello") }, nil},
		{"slow query", func(g *gormLog) { g.Trace(ctx, time.Now().Add(-2*time.Second), sql, nil) }, []string{"warn"}},
		{"failed query", func(g *gormLog) { g.Trace(ctx, time.Now(), sql, errors.New("no such table")) }, []string{"error"}},
		{"not found ignored", func(g *gormLog) { g.Trace(ctx, time.Now(), sql, gorm.ErrRecordNotFound) }, nil},
		{"fast query silent", func(g *gormLog) { g.Trace(ctx, time.Now(), sql, nil) }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, buf := captureGormLog(time.Second)
			tt.run(g)
			got := levels(t, buf)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("levels: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGormLogModeSilent(t *testing.T) {
	g, buf := captureGormLog(time.Second)
	silent := g.LogMode(gormlogger.Silent)
	silent.Error(context.Background(), "broken")
	silent.Trace(context.Background(), time.Now(), func() (string, int64) { return "", 0 }, errors.New("x"))
	if buf.Len() != 0 {
		t.Errorf("silent mode wrote %q", buf.String())
	}
}
