// Package clock detects local calendar-day boundaries.
package clock

import (
	"sync"
	"time"
)

const DefaultZone = "America/Guayaquil"

// LoadLocation loads name, falling back to UTC when the zone database
// does not know it.
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = DefaultZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DayRollover reports, once per change, that the local calendar day of
// the observed time has moved on.
type DayRollover struct {
	mu  sync.Mutex
	loc *time.Location
	day time.Time
}

func NewDayRollover(loc *time.Location) *DayRollover {
	if loc == nil {
		loc = time.UTC
	}
	return &DayRollover{loc: loc}
}

func (d *DayRollover) Location() *time.Location { return d.loc }

// Day truncates t to local midnight.
func (d *DayRollover) Day(t time.Time) time.Time {
	lt := t.In(d.loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, d.loc)
}

// Start records the current day without reporting a change.
func (d *DayRollover) Start(now time.Time) time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.day = d.Day(now)
	return d.day
}

// Check returns the new day and true the first time now falls on a later
// local day than the one last seen. The first call only records the day.
func (d *DayRollover) Check(now time.Time) (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	day := d.Day(now)
	if d.day.IsZero() {
		d.day = day
		return day, false
	}
	if !day.After(d.day) {
		return d.day, false
	}
	d.day = day
	return day, true
}

// Current returns the last recorded day.
func (d *DayRollover) Current() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.day
}
