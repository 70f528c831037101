package dashboard

import (
	"fmt"
	"io"
	"strings"

	"github.com/verte-zerg/schooldash/internal/countdown"
	"github.com/verte-zerg/schooldash/internal/model"
	"github.com/verte-zerg/schooldash/internal/schedule"
)

// Placeholder is shown for a period without a subject.
const Placeholder = "---"

// Labels maps weekday keys to display labels.
type Labels map[model.Weekday]string

// Label returns the display label for day, falling back to the key.
func (l Labels) Label(day model.Weekday) string {
	if v, ok := l[day]; ok && v != "" {
		return v
	}
	return string(day)
}

// SubjectText returns the subject or the placeholder.
func (p PeriodView) SubjectText() string {
	if !p.HasSubject {
		return Placeholder
	}
	return p.Subject
}

// PeriodText describes the current or next period in one line.
func PeriodText(p *PeriodView) string {
	if p == nil {
		return "Classes are over for today"
	}
	if p.Status == schedule.Ongoing {
		return fmt.Sprintf("Period %d in progress (%s) · %d min left", p.Index, p.SubjectText(), p.Minutes)
	}
	return fmt.Sprintf("Next: period %d (%s) · starts in %d min", p.Index, p.SubjectText(), p.Minutes)
}

// CountdownText describes the countdown result in one line.
func CountdownText(res countdown.Result) string {
	switch res.Outcome {
	case countdown.Empty:
		return "No tests scheduled"
	case countdown.AllDone:
		return "All tests finished"
	}
	if res.DaysUntil == 0 {
		return fmt.Sprintf("%s is today", res.Test.Name)
	}
	unit := "days"
	if res.DaysUntil == 1 {
		unit = "day"
	}
	return fmt.Sprintf("%s in %d %s", res.Test.Name, res.DaysUntil, unit)
}

// ClassText returns the selected class or a hint to pick one.
func ClassText(s Snapshot) string {
	if !s.ClassSet {
		return "no class selected"
	}
	return string(s.ClassID)
}

// RenderText prints a snapshot as plain text.
func RenderText(w io.Writer, s Snapshot, labels Labels) error {
	lines := []string{
		fmt.Sprintf("%s (%s)  %s", s.Now.Format("2006-01-02 15:04:05"), labels.Label(s.Weekday), ClassText(s)),
		"",
		"Now",
		"  " + PeriodText(s.Period),
		"",
		"Today",
	}
	switch {
	case !s.SchoolDay || len(s.Today) == 0:
		lines = append(lines, "  No classes")
	default:
		for _, entry := range s.Today {
			lines = append(lines, fmt.Sprintf("  %d  %s", entry.Period, entry.Subject))
		}
	}
	lines = append(lines, "", "Tests", "  "+CountdownText(s.Countdown), "")
	lines = append(lines, fmt.Sprintf("To-do %d/%d", s.TodoDone, s.TodoTotal))
	for i, item := range s.Todos {
		mark := " "
		if item.Done {
			mark = "x"
		}
		lines = append(lines, fmt.Sprintf("  %d [%s] %s", i+1, mark, item.Text))
	}
	_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}

// RenderWeek prints a class's weekly grid, one row per period and one column per school day.
func RenderWeek(w io.Writer, periods []model.Period, grid model.ScheduleGrid, class model.ClassID, rule schedule.DayRule, labels Labels) error {
	days := rule.Days()
	headers := []string{"#", "Time"}
	for _, d := range days {
		headers = append(headers, labels.Label(d))
	}
	rows := make([][]string, 0, len(periods))
	for _, p := range periods {
		row := []string{fmt.Sprintf("%d", p.Index), p.Start.String() + "-" + p.End.String()}
		for _, d := range days {
			subject, ok := schedule.Subject(grid, class, d, p.Index)
			if !ok {
				subject = Placeholder
			}
			row = append(row, subject)
		}
		rows = append(rows, row)
	}
	if _, err := fmt.Fprintf(w, "Class %s\n", class); err != nil {
		return err
	}
	for _, line := range formatTable(headers, rows, map[int]bool{0: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
