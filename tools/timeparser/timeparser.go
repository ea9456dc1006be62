package timeparser

import (
	"fmt"
	"strings"
	"time"
)

// Layouts accepted for measurement timestamps, tried in order. Layouts
// without a zone are read as UTC.
var layouts = []string{
	time.RFC3339,               // 2023-08-28T00:00:00.000Z (fractional seconds accepted)
	"2006-01-02T15:04:05Z0700", // offset without colon, +0300
	"2006-01-02T15:04:05Z07",   // hour-only offset, +03
	"2006-01-02T15:04Z07:00",   // no seconds
	"2006-01-02T15:04:05",      // ISO without zone
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05", // DD/MM/YYYY HH:mm:ss
	"02 15:04:05/01/2006", // DD HH:mm:ss/MM/YYYY
}

// ParseMeasureTimestamp attempts to parse a measurement timestamp with the
// supported layouts.
func ParseMeasureTimestamp(dateStr string) (time.Time, error) {
	// lowercase zone designator
	if strings.HasSuffix(dateStr, "z") {
		dateStr = dateStr[:len(dateStr)-1] + "Z"
	}

	var lastErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, dateStr)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("failed to parse timestamp '%s': %w", dateStr, lastErr)
}

// MonthRange returns the half-open UTC calendar month [from, to) containing t.
func MonthRange(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}
