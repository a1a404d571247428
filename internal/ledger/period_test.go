package ledger

import (
	"errors"
	"testing"
	"time"
)

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		input    string
		expected Period
		wantErr  bool
	}{
		{"09", "09", false},
		{"9", "09", false},
		{" 12 ", "12", false},
		{"00", "", true},
		{"13", "", true},
		{"2025-09", "", true},
		{"", "", true},
		{"ab", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePeriod(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPeriod) {
					t.Errorf("expected ErrInvalidPeriod, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestPeriodContains(t *testing.T) {
	p := Period("09")
	if !p.Contains(time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)) {
		t.Error("expected 2025-09-30 to be in period 09")
	}
	if p.Contains(time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("expected 2025-10-01 to be outside period 09")
	}
}

func TestPeriodSetSorted(t *testing.T) {
	s := PeriodSet{}
	s.Add("10")
	s.Add("09")
	s.Add("10")

	got := s.Sorted()
	if len(got) != 2 || got[0] != "09" || got[1] != "10" {
		t.Errorf("got %v, want [09 10]", got)
	}
	if !s.Has("09") || s.Has("11") {
		t.Error("Has returned the wrong membership")
	}
}
