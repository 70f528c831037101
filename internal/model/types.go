// Package model defines shared data structures.
package model

import (
	"time"
)

// ClassID identifies a homeroom/class section from the configured roster.
type ClassID string

// Period is a numbered class slot with a fixed start and end time of day.
type Period struct {
	Index int   `json:"period"`
	Start Clock `json:"start"`
	End   Clock `json:"end"`
}

// ScheduleGrid maps a class and weekday to the ordered subject labels of that day.
// An empty label means no class in that period.
type ScheduleGrid map[ClassID]map[Weekday][]string

// Test is a named test with a target date.
type Test struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Date Date   `json:"date"`
}

// Todo is a personal task.
type Todo struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// AdminDataset is the admin-curated configuration shared by every user.
type AdminDataset struct {
	Version  int          `json:"version,omitempty"`
	Periods  []Period     `json:"timeSettings"`
	Tests    []Test       `json:"tests"`
	Schedule ScheduleGrid `json:"schedule"`

	// Revision is the remote blob revision observed on load.
	Revision string `json:"-"`
}

// BackupState describes the newest local admin backup.
type BackupState int

const (
	// BackupMissing means no backup was saved yet.
	BackupMissing BackupState = iota
	// BackupSynced means the backup matches the shared copy it was loaded from or pushed to.
	BackupSynced
	// BackupPending means the backup holds admin edits not yet pushed to the shared copy.
	BackupPending
)

// UserDataset is the per-user local state.
type UserDataset struct {
	ClassID ClassID `json:"classId"`
	Todos   []Todo  `json:"todos"`
}

// CalendarEvent is an upcoming event from the user's calendar.
type CalendarEvent struct {
	Title  string
	Start  time.Time
	AllDay bool
}

// DefaultAdminDataset returns the dataset used before anything has been loaded.
func DefaultAdminDataset() AdminDataset {
	return AdminDataset{
		Periods: []Period{
			{Index: 1, Start: NewClock(8, 50), End: NewClock(9, 40)},
			{Index: 2, Start: NewClock(9, 50), End: NewClock(10, 40)},
			{Index: 3, Start: NewClock(10, 50), End: NewClock(11, 40)},
			{Index: 4, Start: NewClock(11, 50), End: NewClock(12, 40)},
			{Index: 5, Start: NewClock(13, 30), End: NewClock(14, 20)},
			{Index: 6, Start: NewClock(14, 30), End: NewClock(15, 20)},
			{Index: 7, Start: NewClock(15, 30), End: NewClock(16, 20)},
		},
		Tests:    []Test{},
		Schedule: ScheduleGrid{},
	}
}

// Clone returns a deep copy of the dataset.
func (d AdminDataset) Clone() AdminDataset {
	out := d
	out.Periods = append([]Period(nil), d.Periods...)
	out.Tests = append([]Test(nil), d.Tests...)
	out.Schedule = d.Schedule.Clone()
	return out
}

// Clone returns a deep copy of the grid.
func (g ScheduleGrid) Clone() ScheduleGrid {
	out := make(ScheduleGrid, len(g))
	for class, days := range g {
		copied := make(map[Weekday][]string, len(days))
		for day, subjects := range days {
			copied[day] = append([]string(nil), subjects...)
		}
		out[class] = copied
	}
	return out
}

// Clone returns a deep copy of the dataset.
func (u UserDataset) Clone() UserDataset {
	out := u
	out.Todos = append([]Todo(nil), u.Todos...)
	return out
}
