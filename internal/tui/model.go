// Package tui provides the Bubble Tea dashboard interface.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/verte-zerg/schooldash/internal/app"
	"github.com/verte-zerg/schooldash/internal/calendar"
	"github.com/verte-zerg/schooldash/internal/dashboard"
	"github.com/verte-zerg/schooldash/internal/model"
)

const (
	tickInterval   = time.Second
	requestTimeout = 30 * time.Second
)

// CalendarSource lists upcoming calendar events.
type CalendarSource interface {
	FetchUpcoming(ctx context.Context, limit int) ([]model.CalendarEvent, error)
}

// Options configures the dashboard UI. Calendar may be nil.
type Options struct {
	Dashboard   *app.Dashboard
	Calendar    CalendarSource
	CalendarMax int
	Labels      dashboard.Labels
	Log         *zap.Logger
	Now         func() time.Time
}

type tickMsg time.Time

type adminLoadedMsg struct {
	ds  model.AdminDataset
	src app.Source
	err error
}

type calendarMsg struct {
	events []model.CalendarEvent
	err    error
}

type calendarState int

const (
	calendarOff calendarState = iota
	calendarLoading
	calendarReady
	calendarDisconnected
	calendarFailed
)

// Model implements the Bubble Tea dashboard UI.
type Model struct {
	dash     *app.Dashboard
	calendar CalendarSource
	calMax   int
	labels   dashboard.Labels
	log      *zap.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	width  int
	height int

	snap     dashboard.Snapshot
	selected int
	adding   bool
	input    textinput.Model
	bar      progress.Model

	loadingAdmin bool
	events       []model.CalendarEvent
	calState     calendarState

	notice string
	errMsg string
}

// NewModel constructs the dashboard UI. ctx bounds every background request;
// quitting cancels it.
func NewModel(ctx context.Context, opts Options) *Model {
	ctx, cancel := context.WithCancel(ctx)
	m := &Model{
		dash:     opts.Dashboard,
		calendar: opts.Calendar,
		calMax:   opts.CalendarMax,
		labels:   opts.Labels,
		log:      opts.Log,
		now:      opts.Now,
		ctx:      ctx,
		cancel:   cancel,
		input:    newTodoInput(),
		bar:      progress.New(progress.WithSolidFill("#C89A3A"), progress.WithoutPercentage()),
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.calMax <= 0 {
		m.calMax = 5
	}
	if m.calendar == nil {
		m.calState = calendarOff
	}
	m.refresh()
	return m
}

func newTodoInput() textinput.Model {
	input := textinput.New()
	input.Prompt = "New task: "
	input.Placeholder = "what needs doing?"
	input.CharLimit = 200
	return input
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(tick(), m.loadAdmin(), m.loadCalendar())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = maxInt(10, cardWidth(m.width)-4)
		return m, nil
	case tickMsg:
		m.snap = m.dash.Snapshot(time.Time(msg))
		return m, tick()
	case adminLoadedMsg:
		m.loadingAdmin = false
		m.dash.ApplyAdmin(msg.ds, msg.src)
		switch {
		case msg.src == app.SourcePending:
			m.notice = "Admin edits not pushed yet"
		case msg.err != nil:
			m.notice = "Offline: using " + msg.src.String()
		default:
			m.notice = ""
		}
		m.refresh()
		return m, nil
	case calendarMsg:
		m.applyCalendar(msg)
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m.quit()
		}
		if m.adding {
			return m.updateInput(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m *Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m.quit()
	case "a":
		m.adding = true
		m.errMsg = ""
		return m, m.input.Focus()
	case "j", "down":
		m.moveSelection(1)
	case "k", "up":
		m.moveSelection(-1)
	case " ", "x":
		if len(m.snap.Todos) > 0 {
			m.report(m.dash.ToggleTodo(m.ctx, m.selected))
		}
	case "d":
		if len(m.snap.Todos) > 0 {
			m.report(m.dash.RemoveTodo(m.ctx, m.selected))
		}
	case "c":
		if next, ok := m.dash.NextClass(); ok {
			m.report(m.dash.SelectClass(m.ctx, next))
		}
	case "r":
		return m, tea.Batch(m.loadAdmin(), m.loadCalendar())
	default:
		return m, nil
	}
	m.refresh()
	return m, nil
}

func (m *Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.stopInput()
		return m, nil
	case tea.KeyEnter:
		added, err := m.dash.AddTodo(m.ctx, m.input.Value())
		m.report(err)
		m.stopInput()
		m.refresh()
		if added {
			m.selected = len(m.snap.Todos) - 1
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) stopInput() {
	m.adding = false
	m.input.Blur()
	m.input.Reset()
}

func (m *Model) quit() (tea.Model, tea.Cmd) {
	m.cancel()
	return m, tea.Quit
}

func (m *Model) moveSelection(delta int) {
	m.selected += delta
	m.clampSelection()
}

func (m *Model) clampSelection() {
	if m.selected >= len(m.snap.Todos) {
		m.selected = len(m.snap.Todos) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

// refresh recomputes the snapshot after a state change so the view does not
// wait for the next tick.
func (m *Model) refresh() {
	m.snap = m.dash.Snapshot(m.now())
	m.clampSelection()
}

func (m *Model) report(err error) {
	if err == nil {
		m.errMsg = ""
		return
	}
	m.log.Warn("dashboard command failed", zap.Error(err))
	m.errMsg = err.Error()
}

func (m *Model) applyCalendar(msg calendarMsg) {
	switch {
	case msg.err == nil:
		m.events = msg.events
		m.calState = calendarReady
	case errors.Is(msg.err, calendar.ErrNotConnected), errors.Is(msg.err, calendar.ErrAuthDenied):
		m.events = nil
		m.calState = calendarDisconnected
	case errors.Is(msg.err, context.Canceled):
	default:
		m.log.Warn("calendar fetch failed", zap.Error(msg.err))
		m.calState = calendarFailed
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) loadAdmin() tea.Cmd {
	if m.loadingAdmin {
		return nil
	}
	m.loadingAdmin = true
	dash, parent := m.dash, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, requestTimeout)
		defer cancel()
		ds, src, err := dash.FetchAdmin(ctx)
		return adminLoadedMsg{ds: ds, src: src, err: err}
	}
}

func (m *Model) loadCalendar() tea.Cmd {
	if m.calendar == nil {
		return nil
	}
	if m.calState != calendarReady {
		m.calState = calendarLoading
	}
	source, limit, parent := m.calendar, m.calMax, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, requestTimeout)
		defer cancel()
		events, err := source.FetchUpcoming(ctx, limit)
		return calendarMsg{events: events, err: err}
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
