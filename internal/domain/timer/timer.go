// Package timer implements a per-second edge detector: once per
// second, the current broken-down local time is compared against the
// last-observed fields, and a hook fires for each field that changed,
// in order second -> year.
package timer

import "time"

// Hooks is the set of callbacks invoked on each detected edge. Any may
// be nil, in which case the edge is a no-op extension point, matching
// the reference's empty tick_second/minute/hour/month stubs.
type Hooks struct {
	OnSecond func(t time.Time)
	OnMinute func(t time.Time)
	OnHour   func(t time.Time)
	OnDay    func(t time.Time)
	OnMonth  func(t time.Time)
	OnYear   func(t time.Time)
}

// Timer tracks the last-observed broken-down time fields, with an
// initial sentinel of -1 meaning "no hook fires on the very first
// tick" (matching the reference's timer_prev_* initialization).
type Timer struct {
	prevSec, prevMin, prevHour int
	prevDay, prevMon, prevYear int
	hooks                      Hooks
}

// New returns a Timer with every last-observed field unset.
func New(hooks Hooks) *Timer {
	return &Timer{
		prevSec: -1, prevMin: -1, prevHour: -1,
		prevDay: -1, prevMon: -1, prevYear: -1,
		hooks: hooks,
	}
}

// Tick should be called approximately once per second with the
// current wallclock time. It fires hooks for every field that changed
// since the previous call, in order second -> year, then records the
// new field values.
func (tm *Timer) Tick(t time.Time) {
	sec, min, hour := t.Second(), t.Minute(), t.Hour()
	day := t.Day()
	mon := int(t.Month())
	year := t.Year()

	if tm.prevSec != -1 && tm.prevSec != sec && tm.hooks.OnSecond != nil {
		tm.hooks.OnSecond(t)
	}
	if tm.prevMin != -1 && tm.prevMin != min && tm.hooks.OnMinute != nil {
		tm.hooks.OnMinute(t)
	}
	if tm.prevHour != -1 && tm.prevHour != hour && tm.hooks.OnHour != nil {
		tm.hooks.OnHour(t)
	}
	if tm.prevDay != -1 && tm.prevDay != day && tm.hooks.OnDay != nil {
		tm.hooks.OnDay(t)
	}
	if tm.prevMon != -1 && tm.prevMon != mon && tm.hooks.OnMonth != nil {
		tm.hooks.OnMonth(t)
	}
	if tm.prevYear != -1 && tm.prevYear != year && tm.hooks.OnYear != nil {
		tm.hooks.OnYear(t)
	}

	tm.prevSec, tm.prevMin, tm.prevHour = sec, min, hour
	tm.prevDay, tm.prevMon, tm.prevYear = day, mon, year
}
