package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidPeriod is returned for keys that are not a calendar month.
var ErrInvalidPeriod = errors.New("invalid period")

// Period is a two-digit month key ("01".."12"). It carries no year: every
// document is assumed to cover a single year.
type Period string

// ParsePeriod validates and normalizes s, accepting "9" as well as "09".
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil || len(s) > 2 || n < 1 || n > 12 {
		return "", fmt.Errorf("%w: %q (expected MM)", ErrInvalidPeriod, s)
	}
	return Period(fmt.Sprintf("%02d", n)), nil
}

// PeriodOf returns the period key of a date.
func PeriodOf(t time.Time) Period {
	return Period(t.Format("01"))
}

// Contains reports whether t falls within the period.
func (p Period) Contains(t time.Time) bool {
	return PeriodOf(t) == p
}

func (p Period) String() string {
	return string(p)
}

// PeriodSet collects the periods found in a document.
type PeriodSet map[Period]struct{}

// Add records p.
func (s PeriodSet) Add(p Period) {
	s[p] = struct{}{}
}

// Has reports whether p was seen.
func (s PeriodSet) Has(p Period) bool {
	_, ok := s[p]
	return ok
}

// Sorted returns the periods in ascending order.
func (s PeriodSet) Sorted() []Period {
	out := make([]Period, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
