// Package datefmt renders ISO-8601 dates for display.
//
// Absolute dates are always computed in UTC so server and client renders
// agree regardless of the viewer's timezone.
package datefmt

import (
	"fmt"
	"math"
	"time"
)

// layouts accepted by Parse, tried in order. Dates without a zone are UTC.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Parse reads an ISO-8601 date or timestamp.
func Parse(date string) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, date); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("datefmt: unrecognised date %q", date)
}

type options struct {
	long bool
}

// Option changes how FormatDate renders.
type Option func(*options)

// Long spells the month out ("March 5, 2024").
func Long() Option {
	return func(o *options) { o.long = true }
}

// FormatDate renders date as "Mar 5, 2024" in UTC. Unparsable input
// yields "".
func FormatDate(date string, opts ...Option) string {
	t, err := Parse(date)
	if err != nil {
		return ""
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.long {
		return t.UTC().Format("January 2, 2006")
	}
	return t.UTC().Format("Jan 2, 2006")
}

// FormatRelativeTime renders the age of date at now: "just now",
// "N hours ago", "N days ago", "N weeks ago" or "N months ago". Units are
// whole truncations of the elapsed time (a month is 30 days). Dates in the
// future read "just now"; unparsable input yields "".
func FormatRelativeTime(date string, now time.Time) string {
	t, err := Parse(date)
	if err != nil {
		return ""
	}
	elapsed := now.Sub(t)
	hours := int(math.Floor(elapsed.Hours()))
	days := int(math.Floor(elapsed.Hours() / 24))

	switch {
	case hours < 1:
		return "just now"
	case hours < 24:
		return plural(hours, "hour")
	case days == 1:
		return "1 day ago"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	case days < 30:
		return plural(days/7, "week")
	default:
		return plural(days/30, "month")
	}
}

// RelativeTime is FormatRelativeTime against the current time.
func RelativeTime(date string) string {
	return FormatRelativeTime(date, time.Now())
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
