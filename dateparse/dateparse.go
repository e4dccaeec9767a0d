// Package dateparse resolves a small set of natural-language date/time
// windows into absolute ranges in the caller's timezone. It intentionally does not attempt to
// cover the full range of natural language date expressions; callers fall
// back to treating an unparsed window as "not specified" rather than
// guessing.
package dateparse

import (
	"regexp"
	"strings"
	"time"
)

// Window is a resolved [Start, End) range.
type Window struct {
	Start time.Time
	End   time.Time
}

var relativeDay = map[string]int{
	"today":     0,
	"tomorrow":  1,
	"yesterday": -1,
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

var isoDate = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)

// Parse resolves text into a single-day Window in the named IANA timezone,
// or returns ok=false if it recognizes nothing. now is the reference time
// relative terms ("today", "next monday") resolve against.
func Parse(text string, tz string, now time.Time) (Window, bool) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	now = now.In(loc)
	lower := strings.ToLower(text)

	if m := isoDate.FindStringSubmatch(lower); m != nil {
		t, err := time.ParseInLocation("2006-01-02", m[0], loc)
		if err == nil {
			return dayWindow(t), true
		}
	}

	for word, offset := range relativeDay {
		if strings.Contains(lower, word) {
			return dayWindow(now.AddDate(0, 0, offset)), true
		}
	}

	if strings.Contains(lower, "next ") {
		for name, wd := range weekdays {
			if strings.Contains(lower, "next "+name) {
				return dayWindow(nextWeekday(now, wd)), true
			}
		}
	}

	return Window{}, false
}

// Widen expands a single-day window by ±1 day. The CRM's activity-fetch
// endpoint interprets date ranges half-open, so a caller asking for exactly
// one day can miss activities that start or end at that boundary; widening
// compensates without overstating the change as a real parsing feature.
func Widen(w Window) Window {
	return Window{Start: w.Start.AddDate(0, 0, -1), End: w.End.AddDate(0, 0, 1)}
}

func dayWindow(t time.Time) Window {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	end := start.AddDate(0, 0, 1)
	return Window{Start: start, End: end}
}

func nextWeekday(from time.Time, target time.Weekday) time.Time {
	days := (int(target) - int(from.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return from.AddDate(0, 0, days)
}
