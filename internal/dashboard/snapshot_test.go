package dashboard

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/schooldash/internal/countdown"
	"github.com/verte-zerg/schooldash/internal/model"
	"github.com/verte-zerg/schooldash/internal/schedule"
)

var weekdays = schedule.NewDayRule(schedule.DefaultSchoolDays)

func testAdmin() model.AdminDataset {
	ds := model.DefaultAdminDataset()
	ds.Schedule = model.ScheduleGrid{"21HR": {model.Monday: {"Math", "Eng"}}}
	return ds
}

// monday is 2026-10-19, a Monday.
func monday(hour, minute int) time.Time {
	return time.Date(2026, 10, 19, hour, minute, 0, 0, time.Local)
}

func TestBuildOngoingWithSubject(t *testing.T) {
	user := model.UserDataset{ClassID: "21HR"}
	snap := Build(monday(9, 0), testAdmin(), user, weekdays)
	if snap.Period == nil {
		t.Fatalf("expected a period")
	}
	if snap.Period.Status != schedule.Ongoing || snap.Period.Index != 1 {
		t.Fatalf("unexpected period: %+v", snap.Period)
	}
	if snap.Period.Minutes != 40 {
		t.Fatalf("expected 40 minutes remaining, got %d", snap.Period.Minutes)
	}
	if snap.Period.SubjectText() != "Math" {
		t.Fatalf("expected Math, got %q", snap.Period.SubjectText())
	}
	if len(snap.Today) != 2 || snap.Today[1].Subject != "Eng" {
		t.Fatalf("unexpected day list: %+v", snap.Today)
	}
}

func TestBuildUpcomingWithoutSubject(t *testing.T) {
	user := model.UserDataset{ClassID: "21HR"}
	snap := Build(monday(10, 45), testAdmin(), user, weekdays)
	if snap.Period == nil || snap.Period.Status != schedule.Upcoming || snap.Period.Index != 3 {
		t.Fatalf("unexpected period: %+v", snap.Period)
	}
	if snap.Period.Minutes != 5 {
		t.Fatalf("expected 5 minutes, got %d", snap.Period.Minutes)
	}
	if snap.Period.HasSubject || snap.Period.SubjectText() != Placeholder {
		t.Fatalf("expected placeholder subject, got %q", snap.Period.SubjectText())
	}
}

func TestBuildAfterClasses(t *testing.T) {
	snap := Build(monday(17, 0), testAdmin(), model.UserDataset{ClassID: "21HR"}, weekdays)
	if snap.Period != nil {
		t.Fatalf("expected no period after classes, got %+v", snap.Period)
	}
	if !strings.Contains(PeriodText(snap.Period), "over") {
		t.Fatalf("unexpected period text: %s", PeriodText(snap.Period))
	}
}

func TestBuildWeekendDegradesToPlaceholder(t *testing.T) {
	ds := testAdmin()
	ds.Schedule["21HR"][model.Saturday] = []string{"Club"}
	saturday := time.Date(2026, 10, 24, 9, 0, 0, 0, time.Local)
	snap := Build(saturday, ds, model.UserDataset{ClassID: "21HR"}, weekdays)
	if snap.SchoolDay {
		t.Fatalf("expected saturday to be a non-school day")
	}
	if snap.Period == nil || snap.Period.HasSubject {
		t.Fatalf("expected a period without subject, got %+v", snap.Period)
	}
	if len(snap.Today) != 0 {
		t.Fatalf("expected no classes listed, got %+v", snap.Today)
	}
}

func TestBuildWithoutClass(t *testing.T) {
	snap := Build(monday(9, 0), testAdmin(), model.UserDataset{}, weekdays)
	if snap.ClassSet || ClassText(snap) != "no class selected" {
		t.Fatalf("expected no class, got %q", ClassText(snap))
	}
	if snap.Period == nil || snap.Period.HasSubject {
		t.Fatalf("expected period without subject, got %+v", snap.Period)
	}
}

func TestBuildCountdownAndTodos(t *testing.T) {
	now := monday(9, 0)
	ds := testAdmin()
	ds.Tests = []model.Test{{Name: "Midterm", Date: model.DateOf(now.AddDate(0, 0, 2))}}
	user := model.UserDataset{ClassID: "21HR", Todos: []model.Todo{{Text: "a", Done: true}, {Text: "b"}}}
	snap := Build(now, ds, user, weekdays)
	if snap.Countdown.Outcome != countdown.Upcoming || snap.Countdown.DaysUntil != 2 {
		t.Fatalf("unexpected countdown: %+v", snap.Countdown)
	}
	if CountdownText(snap.Countdown) != "Midterm in 2 days" {
		t.Fatalf("unexpected countdown text: %q", CountdownText(snap.Countdown))
	}
	if snap.TodoDone != 1 || snap.TodoTotal != 2 {
		t.Fatalf("expected 1/2, got %d/%d", snap.TodoDone, snap.TodoTotal)
	}

	user.Todos[1].Done = true
	if snap.Todos[1].Done {
		t.Fatalf("snapshot shares todo storage with the dataset")
	}
}

func TestCountdownTextOutcomes(t *testing.T) {
	cases := map[string]countdown.Result{
		"No tests scheduled": {Outcome: countdown.Empty},
		"All tests finished": {Outcome: countdown.AllDone},
		"Quiz is today":      {Outcome: countdown.Upcoming, Test: model.Test{Name: "Quiz"}},
		"Quiz in 1 day":      {Outcome: countdown.Upcoming, Test: model.Test{Name: "Quiz"}, DaysUntil: 1},
	}
	for want, res := range cases {
		if got := CountdownText(res); got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
}

func TestRenderText(t *testing.T) {
	user := model.UserDataset{ClassID: "21HR", Todos: []model.Todo{{Text: "essay", Done: true}}}
	snap := Build(monday(9, 0), testAdmin(), user, weekdays)
	var buf bytes.Buffer
	if err := RenderText(&buf, snap, Labels{model.Monday: "月"}); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, needle := range []string{"(月)", "21HR", "Period 1 in progress (Math) · 40 min left", "1  Math", "To-do 1/1", "[x] essay", "No tests scheduled"} {
		if !strings.Contains(out, needle) {
			t.Fatalf("output missing %q:\n%s", needle, out)
		}
	}
}

func TestRenderWeek(t *testing.T) {
	ds := testAdmin()
	var buf bytes.Buffer
	if err := RenderWeek(&buf, ds.Periods, ds.Schedule, "21HR", weekdays, nil); err != nil {
		t.Fatalf("render week: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	// title, header, rule, seven periods
	if len(lines) != 10 {
		t.Fatalf("expected 10 lines, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "Mon") || !strings.Contains(lines[1], "Fri") {
		t.Fatalf("unexpected header: %q", lines[1])
	}
	if !strings.Contains(lines[3], "Math") || !strings.Contains(lines[4], "Eng") {
		t.Fatalf("unexpected rows:\n%s", buf.String())
	}
}
