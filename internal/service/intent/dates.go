package intent

import (
	"strings"
	"time"
)

// DateRange is a half-open interval [Start, End) in the local timezone.
type DateRange struct {
	Start time.Time
	End   time.Time
	Label string
}

// datePhrases maps question substrings to range labels, checked in order so
// the more specific phrase wins ("last week" before "week").
var datePhrases = []struct {
	phrase string
	label  string
}{
	{"yesterday", "yesterday"},
	{"today", "today"},
	{"last 7 days", "last7days"},
	{"past 7 days", "last7days"},
	{"last seven days", "last7days"},
	{"last 30 days", "last30days"},
	{"past 30 days", "last30days"},
	{"last thirty days", "last30days"},
	{"last week", "lastWeek"},
	{"past week", "lastWeek"},
	{"this week", "thisWeek"},
	{"last month", "lastMonth"},
	{"past month", "lastMonth"},
	{"this month", "thisMonth"},
}

// ParseDateRange finds a relative date phrase in the lowercased question and
// resolves it against now. Returns false when no phrase is recognized.
func ParseDateRange(q string, now time.Time) (DateRange, bool) {
	for _, p := range datePhrases {
		if strings.Contains(q, p.phrase) {
			return relativeRange(now, p.label), true
		}
	}
	return DateRange{}, false
}

// relativeRange resolves a range label against now. Weeks start on Monday.
func relativeRange(now time.Time, label string) DateRange {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var start, end time.Time
	switch label {
	case "today":
		start, end = midnight, midnight.AddDate(0, 0, 1)
	case "yesterday":
		start, end = midnight.AddDate(0, 0, -1), midnight
	case "last7days":
		start, end = midnight.AddDate(0, 0, -7), midnight.AddDate(0, 0, 1)
	case "last30days":
		start, end = midnight.AddDate(0, 0, -30), midnight.AddDate(0, 0, 1)
	case "thisWeek":
		start = startOfWeek(midnight)
		end = start.AddDate(0, 0, 7)
	case "lastWeek":
		end = startOfWeek(midnight)
		start = end.AddDate(0, 0, -7)
	case "thisMonth":
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		end = start.AddDate(0, 1, 0)
	case "lastMonth":
		end = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		start = end.AddDate(0, -1, 0)
	default:
		start, end = midnight.AddDate(0, 0, -30), midnight.AddDate(0, 0, 1)
		label = "last30days"
	}

	return DateRange{Start: start, End: end, Label: label}
}

// startOfWeek returns the Monday 00:00 at or before d.
func startOfWeek(midnight time.Time) time.Time {
	offset := (int(midnight.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	return midnight.AddDate(0, 0, -offset)
}
