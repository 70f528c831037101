// Package dashboard aggregates the schedule, countdown and to-do state into render-ready snapshots.
package dashboard

import (
	"time"

	"github.com/verte-zerg/schooldash/internal/countdown"
	"github.com/verte-zerg/schooldash/internal/model"
	"github.com/verte-zerg/schooldash/internal/schedule"
	"github.com/verte-zerg/schooldash/internal/todo"
)

// PeriodView is the current or next period with its subject.
type PeriodView struct {
	Index   int
	Status  schedule.Status
	Minutes int
	Start   model.Clock
	End     model.Clock
	// Subject is empty when HasSubject is false.
	Subject    string
	HasSubject bool
}

// Snapshot is an immutable view of the dashboard at one instant.
type Snapshot struct {
	Now       time.Time
	ClassID   model.ClassID
	ClassSet  bool
	Weekday   model.Weekday
	SchoolDay bool

	// Period is nil once the day's classes are over.
	Period *PeriodView
	Today  []schedule.DayEntry

	Countdown countdown.Result

	Todos     []model.Todo
	TodoDone  int
	TodoTotal int
}

// Build computes a snapshot. It keeps no state and copies every slice it returns.
func Build(now time.Time, admin model.AdminDataset, user model.UserDataset, rule schedule.DayRule) Snapshot {
	weekday := model.WeekdayOf(now.Weekday())
	snap := Snapshot{
		Now:       now,
		ClassID:   user.ClassID,
		ClassSet:  user.ClassID != "",
		Weekday:   weekday,
		SchoolDay: rule.IsSchoolDay(weekday),
		Countdown: countdown.Next(now, admin.Tests),
		Todos:     append([]model.Todo(nil), user.Todos...),
	}
	snap.TodoDone, snap.TodoTotal = todo.List(user.Todos).Progress()

	if status, ok := schedule.Resolve(schedule.ClockOf(now), admin.Periods); ok {
		view := &PeriodView{
			Index:   status.Period.Index,
			Status:  status.Status,
			Minutes: status.Minutes,
			Start:   status.Period.Start,
			End:     status.Period.End,
		}
		if snap.SchoolDay && snap.ClassSet {
			view.Subject, view.HasSubject = schedule.Subject(admin.Schedule, user.ClassID, weekday, status.Period.Index)
		}
		snap.Period = view
	}
	if snap.ClassSet {
		snap.Today = schedule.Day(admin.Schedule, user.ClassID, weekday, rule)
	}
	return snap
}
