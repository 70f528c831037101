package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/schooldash/internal/dashboard"
	"github.com/verte-zerg/schooldash/internal/model"
	"github.com/verte-zerg/schooldash/internal/schedule"
	"github.com/verte-zerg/schooldash/internal/todo"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle  = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	currentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	doneStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C")).Strikethrough(true)
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
)

// View implements tea.Model.
func (m *Model) View() string {
	header := m.renderHeader()
	cw := cardWidth(m.width)
	left := lipgloss.JoinVertical(lipgloss.Left,
		renderCard("Now", m.renderPeriod(), cw),
		renderCard("Today", m.renderToday(), cw),
		renderCard("Next test", cardValueStyle.Render(dashboard.CountdownText(m.snap.Countdown)), cw),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		renderCard(m.todoTitle(), m.renderTodos(cw-4), cw),
		renderCard("Calendar", m.renderCalendar(cw-4), cw),
	)
	var body string
	if m.width > 0 && m.width < 2*cw+2 {
		body = lipgloss.JoinVertical(lipgloss.Left, left, right)
	} else {
		body = lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
	}
	out := strings.Join([]string{header, body, m.renderFooter()}, "\n")
	if m.width == 0 || m.height == 0 {
		return out
	}
	return fitLines(out, m.width, m.height)
}

func cardWidth(width int) int {
	if width <= 0 {
		return 40
	}
	return maxInt(30, minInt(56, (width-2)/2))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func renderCard(title, body string, width int) string {
	content := cardTitleStyle.Render(title) + "\n" + body
	return cardStyle.Width(width - 2).Render(content)
}

func (m *Model) renderHeader() string {
	const title = "schooldash"
	s := m.snap
	line := fmt.Sprintf("%s  %s (%s)  Class %s",
		title,
		s.Now.Format("2006-01-02 15:04:05"),
		m.labels.Label(s.Weekday),
		dashboard.ClassText(s),
	)
	if m.loadingAdmin {
		line += "  loading…"
	}
	line = truncateLine(line, m.width)
	if rest, ok := strings.CutPrefix(line, title); ok {
		return titleStyle.Render(title) + rest
	}
	return line
}

func (m *Model) renderPeriod() string {
	p := m.snap.Period
	text := cardValueStyle.Render(dashboard.PeriodText(p))
	if p == nil {
		return text
	}
	span := mutedStyle.Render(fmt.Sprintf("%s-%s", p.Start, p.End))
	if !m.snap.SchoolDay {
		span += mutedStyle.Render("  no school today")
	}
	return text + "\n" + span
}

func (m *Model) renderToday() string {
	s := m.snap
	switch {
	case !s.ClassSet:
		return mutedStyle.Render("Press c to pick a class")
	case !s.SchoolDay || len(s.Today) == 0:
		return mutedStyle.Render("No classes")
	}
	current := 0
	if s.Period != nil && s.Period.Status == schedule.Ongoing {
		current = s.Period.Index
	}
	lines := make([]string, 0, len(s.Today))
	for _, entry := range s.Today {
		line := fmt.Sprintf("%d  %s", entry.Period, entry.Subject)
		if entry.Period == current {
			line = currentStyle.Render("▸ " + line)
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) todoTitle() string {
	return fmt.Sprintf("To-do %d/%d", m.snap.TodoDone, m.snap.TodoTotal)
}

func (m *Model) renderTodos(width int) string {
	s := m.snap
	lines := []string{}
	if s.TodoTotal > 0 {
		lines = append(lines, m.bar.ViewAs(todo.List(s.Todos).Percent()))
	}
	for i, item := range s.Todos {
		mark := "[ ]"
		if item.Done {
			mark = "[x]"
		}
		cursor := "  "
		if i == m.selected && !m.adding {
			cursor = "> "
		}
		prefix := cursor + mark + " "
		indent := strings.Repeat(" ", lipgloss.Width(prefix))
		for j, part := range wrapText(item.Text, width-lipgloss.Width(prefix)) {
			switch {
			case item.Done:
				part = doneStyle.Render(part)
			case i == m.selected:
				part = selectedStyle.Render(part)
			}
			if j == 0 {
				lines = append(lines, prefix+part)
			} else {
				lines = append(lines, indent+part)
			}
		}
	}
	if len(s.Todos) == 0 && !m.adding {
		lines = append(lines, mutedStyle.Render("Nothing to do. Press a to add a task."))
	}
	if m.adding {
		lines = append(lines, m.input.View())
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderCalendar(width int) string {
	switch m.calState {
	case calendarOff:
		return mutedStyle.Render("Not configured")
	case calendarLoading:
		return mutedStyle.Render("Loading…")
	case calendarDisconnected:
		return mutedStyle.Render("Not connected. Run: schooldash calendar login")
	case calendarFailed:
		if len(m.events) == 0 {
			return errorStyle.Render("Calendar unavailable")
		}
	}
	if len(m.events) == 0 {
		return mutedStyle.Render("No upcoming events")
	}
	lines := make([]string, 0, len(m.events))
	for _, ev := range m.events {
		lines = append(lines, truncateLine(eventLine(ev), width))
	}
	return strings.Join(lines, "\n")
}

func eventLine(ev model.CalendarEvent) string {
	if ev.AllDay {
		return fmt.Sprintf("%s  all day  %s", ev.Start.Format("Mon 01/02"), ev.Title)
	}
	return fmt.Sprintf("%s  %s", ev.Start.Format("Mon 01/02 15:04"), ev.Title)
}

func (m *Model) renderFooter() string {
	help := "add: a  select: j/k  toggle: space  delete: d  class: c  refresh: r  quit: q"
	if m.adding {
		help = "enter: save  esc: cancel"
	}
	lines := []string{mutedStyle.Render(help)}
	if m.notice != "" {
		lines = append(lines, mutedStyle.Render(m.notice))
	}
	if m.errMsg != "" {
		lines = append(lines, errorStyle.Render(m.errMsg))
	}
	return strings.Join(lines, "\n")
}
