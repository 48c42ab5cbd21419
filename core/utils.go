package core

import (
	"math"
	"strings"
	"time"
)

var (
	// layouts accepted for client supplied timestamps, tried in order
	timeLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}

	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05 MST"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Round2 rounds f half away from zero to 2 decimal places.
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// Percentage returns scored/possible*100 rounded to 2 decimals, or 0 when possible <= 0.
func Percentage(scored, possible int) float64 {
	if possible <= 0 {
		return 0
	}
	return Round2(float64(scored) / float64(possible) * 100)
}

// ParseTime parses an ISO 8601 timestamp. Values without a zone are taken as UTC.
// The result is always in UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var err error
	for _, layout := range timeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

// FormatDateTime formats t in UTC as `YYYY-MM-DD HH:MM:SS UTC`.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format(DateTimeLayout)
}

func IntPtr(i int) *int { return &i }
