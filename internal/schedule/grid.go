package schedule

import (
	"fmt"
	"strings"

	"github.com/verte-zerg/schooldash/internal/model"
)

// DayRule decides which weekdays have classes.
type DayRule struct {
	days map[model.Weekday]struct{}
}

// DefaultSchoolDays are Monday through Friday.
var DefaultSchoolDays = []model.Weekday{model.Monday, model.Tuesday, model.Wednesday, model.Thursday, model.Friday}

var weekOrder = []model.Weekday{
	model.Monday, model.Tuesday, model.Wednesday, model.Thursday, model.Friday, model.Saturday, model.Sunday,
}

// NewDayRule builds a rule from the given school days.
func NewDayRule(days []model.Weekday) DayRule {
	set := make(map[model.Weekday]struct{}, len(days))
	for _, d := range days {
		set[d] = struct{}{}
	}
	return DayRule{days: set}
}

// IsSchoolDay reports whether classes are held on day.
func (r DayRule) IsSchoolDay(day model.Weekday) bool {
	_, ok := r.days[day]
	return ok
}

// Days returns the school days in week order starting Monday.
func (r DayRule) Days() []model.Weekday {
	out := make([]model.Weekday, 0, len(r.days))
	for _, d := range weekOrder {
		if r.IsSchoolDay(d) {
			out = append(out, d)
		}
	}
	return out
}

// Subject looks up the subject of a period. index is the 1-based period index.
// Unknown classes, days, indices and empty labels all report false.
func Subject(grid model.ScheduleGrid, class model.ClassID, day model.Weekday, index int) (string, bool) {
	days, ok := grid[class]
	if !ok {
		return "", false
	}
	subjects, ok := days[day]
	if !ok {
		return "", false
	}
	if index < 1 || index > len(subjects) {
		return "", false
	}
	subject := strings.TrimSpace(subjects[index-1])
	if subject == "" {
		return "", false
	}
	return subject, true
}

// DayEntry is one scheduled subject of a day.
type DayEntry struct {
	Period  int
	Subject string
}

// Day lists the non-empty subjects of a class on day. It is empty on non-school days.
func Day(grid model.ScheduleGrid, class model.ClassID, day model.Weekday, rule DayRule) []DayEntry {
	if !rule.IsSchoolDay(day) {
		return nil
	}
	subjects := grid[class][day]
	out := make([]DayEntry, 0, len(subjects))
	for i := range subjects {
		if subject, ok := Subject(grid, class, day, i+1); ok {
			out = append(out, DayEntry{Period: i + 1, Subject: subject})
		}
	}
	return out
}

// SetDaySubjects overwrites the given zero-based slots of one class's day.
// Slots absent from edits keep their previous value. The grid passed in is not modified.
func SetDaySubjects(grid model.ScheduleGrid, class model.ClassID, day model.Weekday, edits map[int]string, periodCount int) (model.ScheduleGrid, error) {
	if class == "" {
		return nil, fmt.Errorf("class is required")
	}
	for idx := range edits {
		if idx < 0 || idx >= periodCount {
			return nil, fmt.Errorf("%w: slot %d (have %d periods)", ErrInvalidIndex, idx+1, periodCount)
		}
	}
	out := grid.Clone()
	days, ok := out[class]
	if !ok {
		days = map[model.Weekday][]string{}
		out[class] = days
	}
	subjects := days[day]
	for idx, subject := range edits {
		for len(subjects) <= idx {
			subjects = append(subjects, "")
		}
		subjects[idx] = strings.TrimSpace(subject)
	}
	days[day] = subjects
	return out, nil
}

// ClearDay removes a class's day from the grid. The grid passed in is not modified.
func ClearDay(grid model.ScheduleGrid, class model.ClassID, day model.Weekday) model.ScheduleGrid {
	out := grid.Clone()
	if days, ok := out[class]; ok {
		delete(days, day)
		if len(days) == 0 {
			delete(out, class)
		}
	}
	return out
}
