// Package dateutil holds the date plumbing shared by the sync engine and
// the row stores: portal 14-digit timestamps, the zero-padded display
// format used for sorting, and last-synced parsing.
package dateutil

import (
	"fmt"
	"strings"
	"time"
)

// PortalTimestampLayout is the 14-digit format the portal uses in filter
// ranges and detail payloads (e.g. "20251022093000").
const PortalTimestampLayout = "20060102150405"

// DisplayLayout is the zero-padded human form written to rows
// (e.g. "22 Oct 2025 09:30"). Padding matters: "1 Dec" must not sort
// after "10 Dec" as text.
const DisplayLayout = "02 Jan 2006 15:04"

var monthsByName = map[string]time.Month{
	"Jan": time.January, "January": time.January,
	"Feb": time.February, "February": time.February,
	"Mar": time.March, "March": time.March,
	"Apr": time.April, "April": time.April,
	"May": time.May,
	"Jun": time.June, "June": time.June,
	"Jul": time.July, "July": time.July,
	"Aug": time.August, "August": time.August,
	"Sep": time.September, "September": time.September,
	"Oct": time.October, "October": time.October,
	"Nov": time.November, "November": time.November,
	"Dec": time.December, "December": time.December,
}

// MonthNumber resolves a long or short English month name.
func MonthNumber(name string) (time.Month, bool) {
	m, ok := monthsByName[strings.TrimSpace(name)]
	return m, ok
}

// ShortMonth normalizes a month name to its three-letter form.
// Unknown names pass through unchanged.
func ShortMonth(name string) string {
	if m, ok := MonthNumber(name); ok {
		return m.String()[:3]
	}
	return name
}

// TabTitle returns the month tab name, e.g. "Oct 2025".
func TabTitle(month string, year int) string {
	return fmt.Sprintf("%s %d", ShortMonth(month), year)
}

// ParseTabTitle parses "Oct 2025" back into its components.
func ParseTabTitle(title string) (time.Month, int, bool) {
	parts := strings.Fields(strings.TrimSpace(title))
	if len(parts) != 2 {
		return 0, 0, false
	}
	m, ok := MonthNumber(parts[0])
	if !ok {
		return 0, 0, false
	}
	var year int
	if _, err := fmt.Sscanf(parts[1], "%d", &year); err != nil {
		return 0, 0, false
	}
	return m, year, true
}

// MonthRange returns the month's inclusive bounds as 14-digit portal
// timestamps: first second of the month and last second of the month.
func MonthRange(month string, year int) (string, string, error) {
	m, ok := MonthNumber(month)
	if !ok {
		return "", "", fmt.Errorf("unknown month %q", month)
	}
	start := time.Date(year, m, 1, 0, 0, 0, 0, time.Local)
	end := start.AddDate(0, 1, 0).Add(-time.Second)
	return start.Format(PortalTimestampLayout), end.Format(PortalTimestampLayout), nil
}

// FormatPortalTimestamp converts a 14-digit portal timestamp to the
// display form, dropping seconds. Anything that is not a well-formed
// 14-digit timestamp is returned unchanged so data is never lost.
func FormatPortalTimestamp(s string) string {
	if len(s) != 14 {
		if s == "" {
			return ""
		}
		return s
	}
	t, err := time.Parse(PortalTimestampLayout, s)
	if err != nil {
		return s
	}
	return t.Format(DisplayLayout)
}

// uiInputLayouts are the date shapes the portal UI and API emit.
var uiInputLayouts = []string{
	"2 Jan 2006 15:04:05",
	"2 Jan 2006 15:04",
	"2-1-2006 15:04:05",
	"2-1-2006 15:04",
	PortalTimestampLayout,
}

// StandardizeDate cleans a messy UI date into the strict zero-padded
// display form. Unparsable input passes through unchanged.
func StandardizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range uiInputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DisplayLayout)
		}
	}
	return s
}

// ParseUIDate parses a display-form date. Returns the zero time and
// false when the text does not match any known shape.
func ParseUIDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{
		"2 Jan 2006 15:04:05",
		"2 Jan 2006 15:04",
		"2-1-2006 15:04:05",
		"2-1-2006 15:04",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// lastSyncedLayouts are the non-ISO shapes historical Last Synced cells
// have carried.
var lastSyncedLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2 Jan 2006 15:04:05",
	"2 Jan 2006 15:04",
}

// ParseLastSynced parses a Last Synced value into a UTC time. It accepts
// ISO 8601 with T or space and optional Z/offset, plus the common human
// forms. Returns the zero time and false only when completely unparsable.
// Naive timestamps are assumed process-local.
func ParseLastSynced(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if strings.HasSuffix(s, "Z") {
		s = s[:len(s)-1] + "+00:00"
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	for _, layout := range []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
	} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t.UTC(), true
		}
	}
	for _, layout := range lastSyncedLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t.UTC(), true
		}
	}
	if strings.Contains(s, " ") && !strings.Contains(s, "T") {
		if t, err := time.ParseInLocation("2006-01-02T15:04:05", strings.Replace(s, " ", "T", 1), time.Local); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// SameLocalDay reports whether t falls on the same process-local calendar
// day as ref. Used by summary counting ("new today").
func SameLocalDay(t, ref time.Time) bool {
	ty, tm, td := t.Local().Date()
	ry, rm, rd := ref.Local().Date()
	return ty == ry && tm == rm && td == rd
}
