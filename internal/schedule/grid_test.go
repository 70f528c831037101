package schedule

import (
	"errors"
	"testing"

	"github.com/verte-zerg/schooldash/internal/model"
)

func testGrid() model.ScheduleGrid {
	return model.ScheduleGrid{
		"21HR": {
			model.Monday:  {"Math", "Eng", "", "Sci"},
			model.Tuesday: {"PE"},
		},
	}
}

func TestSubjectLookup(t *testing.T) {
	grid := testGrid()
	cases := []struct {
		name  string
		class model.ClassID
		day   model.Weekday
		index int
		want  string
		ok    bool
	}{
		{"first period", "21HR", model.Monday, 1, "Math", true},
		{"second period", "21HR", model.Monday, 2, "Eng", true},
		{"empty label", "21HR", model.Monday, 3, "", false},
		{"past end of day", "21HR", model.Monday, 5, "", false},
		{"zero index", "21HR", model.Monday, 0, "", false},
		{"missing day", "21HR", model.Friday, 1, "", false},
		{"missing class", "22HR", model.Monday, 1, "", false},
		{"weekend", "21HR", model.Saturday, 1, "", false},
	}
	for _, tc := range cases {
		got, ok := Subject(grid, tc.class, tc.day, tc.index)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("%s: expected (%q, %v), got (%q, %v)", tc.name, tc.want, tc.ok, got, ok)
		}
	}
	if _, ok := Subject(nil, "21HR", model.Monday, 1); ok {
		t.Fatalf("expected nil grid lookup to be absent")
	}
}

func TestDaySkipsEmptySlotsAndHolidays(t *testing.T) {
	rule := NewDayRule(DefaultSchoolDays)
	entries := Day(testGrid(), "21HR", model.Monday, rule)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d: %+v", len(entries), entries)
	}
	if entries[2].Period != 4 || entries[2].Subject != "Sci" {
		t.Fatalf("unexpected last entry: %+v", entries[2])
	}

	weekendGrid := model.ScheduleGrid{"21HR": {model.Saturday: {"Club"}}}
	if got := Day(weekendGrid, "21HR", model.Saturday, rule); len(got) != 0 {
		t.Fatalf("expected no entries on saturday, got %+v", got)
	}
	saturdayRule := NewDayRule(append(DefaultSchoolDays, model.Saturday))
	if got := Day(weekendGrid, "21HR", model.Saturday, saturdayRule); len(got) != 1 {
		t.Fatalf("expected saturday classes with a saturday rule, got %+v", got)
	}
}

func TestDayRuleDaysOrder(t *testing.T) {
	rule := NewDayRule([]model.Weekday{model.Sunday, model.Friday, model.Monday})
	days := rule.Days()
	want := []model.Weekday{model.Monday, model.Friday, model.Sunday}
	if len(days) != len(want) {
		t.Fatalf("expected %v, got %v", want, days)
	}
	for i := range want {
		if days[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, days)
		}
	}
}

func TestSetDaySubjectsSparse(t *testing.T) {
	grid := testGrid()
	out, err := SetDaySubjects(grid, "21HR", model.Monday, map[int]string{1: " Art ", 5: "Music"}, 7)
	if err != nil {
		t.Fatalf("set subjects: %v", err)
	}
	got := out["21HR"][model.Monday]
	want := []string{"Math", "Art", "", "Sci", "", "Music"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if grid["21HR"][model.Monday][1] != "Eng" {
		t.Fatalf("input grid was modified")
	}
}

func TestSetDaySubjectsNewClass(t *testing.T) {
	out, err := SetDaySubjects(nil, "25HR", model.Wednesday, map[int]string{0: "Chem"}, 7)
	if err != nil {
		t.Fatalf("set subjects: %v", err)
	}
	if subject, ok := Subject(out, "25HR", model.Wednesday, 1); !ok || subject != "Chem" {
		t.Fatalf("expected Chem, got %q %v", subject, ok)
	}
}

func TestSetDaySubjectsRejectsOutOfRange(t *testing.T) {
	_, err := SetDaySubjects(testGrid(), "21HR", model.Monday, map[int]string{7: "Late"}, 7)
	if !errors.Is(err, ErrInvalidIndex) {
		t.Fatalf("expected ErrInvalidIndex, got %v", err)
	}
}

func TestClearDay(t *testing.T) {
	grid := testGrid()
	out := ClearDay(grid, "21HR", model.Monday)
	if _, ok := out["21HR"][model.Monday]; ok {
		t.Fatalf("expected monday to be removed")
	}
	if _, ok := grid["21HR"][model.Monday]; !ok {
		t.Fatalf("input grid was modified")
	}
	out = ClearDay(out, "21HR", model.Tuesday)
	if _, ok := out["21HR"]; ok {
		t.Fatalf("expected empty class to be removed")
	}
}
