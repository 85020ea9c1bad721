package selector

import (
	"fmt"
	"time"
)

// Range types understood by the backend.
const (
	RangeCustom     = "custom"
	RangeToday      = "today"
	RangeYesterday  = "yesterday"
	RangeThisWeek   = "currentWeek"
	RangeLastWeek   = "lastWeek"
	RangeThisMonth  = "thisMonth"
	RangeLastMonth  = "lastMonth"
	RangeLast90Days = "lastNinetyDays"
)

const dateLayout = "2006-01-02"

// Item is one entry of a single-choice menu.
type Item struct {
	Label string
	Value string
}

// RangeItems returns the date range menu in display order.
func RangeItems() []Item {
	return []Item{
		{Label: "Custom", Value: RangeCustom},
		{Label: "Today", Value: RangeToday},
		{Label: "Yesterday", Value: RangeYesterday},
		{Label: "This week", Value: RangeThisWeek},
		{Label: "Last week", Value: RangeLastWeek},
		{Label: "This month", Value: RangeThisMonth},
		{Label: "Last month", Value: RangeLastMonth},
		{Label: "Last 90 days", Value: RangeLast90Days},
	}
}

// Bounds is a concrete [Start, End] interval in local calendar terms.
type Bounds struct {
	Start time.Time
	End   time.Time
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}

// ResolveRange returns the local calendar bounds of a relative range type.
// Weeks start on Sunday. The last-90-days range ends at the start of today.
func ResolveRange(rangeType string, now time.Time) (Bounds, error) {
	today := startOfDay(now)
	switch rangeType {
	case RangeToday:
		return Bounds{today, endOfDay(today)}, nil
	case RangeYesterday:
		y := today.AddDate(0, 0, -1)
		return Bounds{y, endOfDay(y)}, nil
	case RangeThisWeek:
		start := today.AddDate(0, 0, -int(today.Weekday()))
		return Bounds{start, endOfDay(start.AddDate(0, 0, 6))}, nil
	case RangeLastWeek:
		start := today.AddDate(0, 0, -int(today.Weekday())-7)
		return Bounds{start, endOfDay(start.AddDate(0, 0, 6))}, nil
	case RangeThisMonth:
		start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		return Bounds{start, endOfDay(start.AddDate(0, 1, -1))}, nil
	case RangeLastMonth:
		start := time.Date(today.Year(), today.Month()-1, 1, 0, 0, 0, 0, today.Location())
		return Bounds{start, endOfDay(start.AddDate(0, 1, -1))}, nil
	case RangeLast90Days:
		return Bounds{today.AddDate(0, 0, -90), today}, nil
	default:
		return Bounds{}, fmt.Errorf("unknown range type %q", rangeType)
	}
}

// parseDay parses a strict YYYY-MM-DD date at the start of that day in loc.
func parseDay(s string, loc *time.Location) (time.Time, bool) {
	if len(s) != len(dateLayout) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
