// Package schedule resolves class periods and subjects from the time table and schedule grid.
package schedule

import (
	"time"

	"github.com/verte-zerg/schooldash/internal/model"
)

// Status tells whether a resolved period is running or still ahead.
type Status int

const (
	// Upcoming means the period starts later today.
	Upcoming Status = iota
	// Ongoing means the period is running now.
	Ongoing
)

func (s Status) String() string {
	switch s {
	case Ongoing:
		return "ongoing"
	default:
		return "upcoming"
	}
}

// PeriodStatus is the current or next period relative to a time of day.
type PeriodStatus struct {
	Period model.Period
	Status Status
	// Minutes is the time until start for Upcoming, or the time remaining for Ongoing.
	Minutes int
}

// ClockOf returns the time of day of t, truncated to the minute.
func ClockOf(t time.Time) model.Clock {
	return model.NewClock(t.Hour(), t.Minute())
}

// Resolve returns the first period that has not ended at now.
// The second result is false once the day's last period is over.
// periods must be sorted by start; the first match wins.
func Resolve(now model.Clock, periods []model.Period) (PeriodStatus, bool) {
	for _, p := range periods {
		if now < p.Start {
			return PeriodStatus{Period: p, Status: Upcoming, Minutes: int(p.Start - now)}, true
		}
		if now <= p.End {
			return PeriodStatus{Period: p, Status: Ongoing, Minutes: int(p.End - now)}, true
		}
	}
	return PeriodStatus{}, false
}
