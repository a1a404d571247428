// Package normalize converts locale-specific spreadsheet and statement values
// (dates, amounts, VAT rates, payment labels) into canonical ledger values.
package normalize

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"finassist/internal/ledger"
)

// ErrInvalidDate is returned when a value is neither a spreadsheet date
// serial nor a recognizable day-first date string.
var ErrInvalidDate = errors.New("invalid date")

// Spreadsheet serials count days from 1899-12-30 (serial 1 = 1899-12-31).
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// maxSerial is 9999-12-31.
const maxSerial = 2958465

var dayFirstPattern = regexp.MustCompile(`^(\d{1,2})[-/](\d{1,2})[-/](\d{4})\b`)

var isoLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// SerialCache memoizes serial to date conversions. The same serial recurs on
// every line of an invoice, so a sheet with thousands of rows resolves only
// a few dozen distinct values. Safe for concurrent use.
type SerialCache struct {
	mu    sync.RWMutex
	dates map[float64]time.Time
}

// NewSerialCache creates an empty cache. Build one per process and share it.
func NewSerialCache() *SerialCache {
	return &SerialCache{dates: make(map[float64]time.Time)}
}

// Lookup converts a serial to its calendar day, consulting the cache first.
func (c *SerialCache) Lookup(serial float64) (time.Time, error) {
	if math.IsNaN(serial) || serial < 1 || serial > maxSerial {
		return time.Time{}, fmt.Errorf("%w: serial %v out of range", ErrInvalidDate, serial)
	}

	c.mu.RLock()
	d, ok := c.dates[serial]
	c.mu.RUnlock()
	if ok {
		return d, nil
	}

	// The fractional part is the time of day.
	d = serialEpoch.AddDate(0, 0, int(math.Floor(serial)))

	c.mu.Lock()
	c.dates[serial] = d
	c.mu.Unlock()
	return d, nil
}

// Len returns the number of memoized serials.
func (c *SerialCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.dates)
}

// DateParser parses the date cells of sales sheets and the date tokens of
// bank statements.
type DateParser struct {
	cache *SerialCache
}

// NewDateParser creates a parser backed by cache. A nil cache gets a private one.
func NewDateParser(cache *SerialCache) *DateParser {
	if cache == nil {
		cache = NewSerialCache()
	}
	return &DateParser{cache: cache}
}

// Parse converts value to a UTC calendar day. Numbers (and numeric strings)
// are spreadsheet serials; text is read day-first with '/' or '-' separators.
func (p *DateParser) Parse(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return time.Time{}, fmt.Errorf("%w: zero time", ErrInvalidDate)
		}
		return ledger.Day(v), nil
	case float64:
		return p.cache.Lookup(v)
	case float32:
		return p.cache.Lookup(float64(v))
	case int:
		return p.cache.Lookup(float64(v))
	case int64:
		return p.cache.Lookup(float64(v))
	case string:
		return p.parseString(v)
	case nil:
		return time.Time{}, fmt.Errorf("%w: empty value", ErrInvalidDate)
	default:
		return p.parseString(fmt.Sprintf("%v", v))
	}
}

func (p *DateParser) parseString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrInvalidDate)
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		return p.cache.Lookup(serial)
	}

	if d, ok := parseDayFirst(s); ok {
		return d, nil
	}

	for _, layout := range isoLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return ledger.Day(d), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// ParseDayFirst parses dd/mm/yyyy or dd-mm-yyyy, the separators being
// interchangeable. Trailing text (a time of day) is ignored.
func ParseDayFirst(s string) (time.Time, error) {
	if d, ok := parseDayFirst(strings.TrimSpace(s)); ok {
		return d, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

func parseDayFirst(s string) (time.Time, bool) {
	m := dayFirstPattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes 31/02 into March; reject instead.
	if d.Day() != day || int(d.Month()) != month {
		return time.Time{}, false
	}
	return d, true
}
