package core

// convert.go provides the casts between raw cell text and typed values.
//
// Classification judges every cell by its text form, so a typed cell must
// format back to text the predicates accept: dates as YYYY-MM-DD and floats
// in plain decimal notation (never exponent form). This is what makes
// classifying an Accepted table a fixed point.

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CellText returns the text form of a cell and whether it is non-null.
func CellText(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return FormatFloat(x), true
	case time.Time:
		return x.Format(DateLayout), true
	case fmt.Stringer:
		return x.String(), true
	default:
		return fmt.Sprint(x), true
	}
}

// FormatCell renders a cell for display. Null prints as "null".
func FormatCell(v any) string {
	s, ok := CellText(v)
	if !ok {
		return "null"
	}
	return s
}

// FormatFloat renders f in plain decimal notation, keeping a ".0" suffix on
// integral values.
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}

// ParseSalario casts salary text to float64. It assumes the text already
// matched the salary pattern; an overflow is reported as an error.
func ParseSalario(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return f, nil
}

// ParseDate parses a YYYY-MM-DD value into a date at midnight UTC.
//
// Only the month and day ranges are enforced by validation, so the day is
// allowed to overflow the month: "2024-02-31" becomes 2024-03-02. The
// accepted row then stores the rolled date, not the text that was read;
// Classify logs a Warn with both so the change can be traced.
func ParseDate(s string) (time.Time, error) {
	if !dnPattern.MatchString(s) {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	y, _ := strconv.Atoi(s[0:4])
	m, _ := strconv.Atoi(s[5:7])
	d, _ := strconv.Atoi(s[8:10])
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, fmt.Errorf("invalid date %q: month or day out of range", s)
	}
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC), nil
}

// Today truncates t to its calendar date at midnight UTC.
func Today(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MakeHeaderIndex creates a HeaderIndex from a CSV header row.
// Keys are trimmed and lowercased for case-insensitive matching.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

// toFloat returns the numeric value of a cell for comparisons.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
