// Package schedule evaluates weekly occupancy windows in the site's
// local time zone, grounded on the thermostat-telemetry-reader
// scheduler's provider/offset-store separation but narrowed to the one
// question the fan coil algorithm needs: is this zone occupied right
// now, avoiding naive UTC comparisons.
package schedule

import (
	"time"
)

// Window is one occupied interval within a single day, expressed as
// minutes since local midnight. End may be less than Start to express
// a window that wraps past midnight.
type Window struct {
	StartMinute int
	EndMinute   int
}

// Weekly is a site's occupancy schedule: one slice of windows per
// weekday, index 0 = Sunday, matching time.Weekday.
type Weekly struct {
	Days [7][]Window
	Location *time.Location
}

// DefaultWeekly returns an always-occupied schedule, used when no
// explicit schedule has been configured for a zone — equipment should
// never lose control authority just because scheduling data is
// missing.
func DefaultWeekly(loc *time.Location) Weekly {
	if loc == nil {
		loc = time.UTC
	}
	full := []Window{{StartMinute: 0, EndMinute: 24 * 60}}
	w := Weekly{Location: loc}
	for i := range w.Days {
		w.Days[i] = full
	}
	return w
}

// IsOccupied reports whether `at` falls inside one of the day's
// occupancy windows, evaluated in the schedule's configured time zone
// rather than at's own zone — the schedule is defined in site-local
// time (e.g. Eastern), generalized here to whatever Weekly.Location
// names.
func (w Weekly) IsOccupied(at time.Time) bool {
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	local := at.In(loc)
	minute := local.Hour()*60 + local.Minute()
	for _, win := range w.Days[local.Weekday()] {
		if windowContains(win, minute) {
			return true
		}
	}
	return false
}

func windowContains(w Window, minute int) bool {
	if w.StartMinute <= w.EndMinute {
		return minute >= w.StartMinute && minute < w.EndMinute
	}
	// wraps past midnight
	return minute >= w.StartMinute || minute < w.EndMinute
}
