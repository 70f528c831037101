package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/schooldash/internal/dashboard"
	"github.com/verte-zerg/schooldash/internal/model"
)

var (
	scheduleClass string
	snapshotAt    string
)

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the dashboard once",
		Args:  cobra.NoArgs,
		RunE:  runSnapshotCmd,
	}
	cmd.Flags().StringVar(&snapshotAt, "at", "", "evaluate at this local time (YYYY-MM-DDTHH:MM)")
	return cmd
}

func runSnapshotCmd(cmd *cobra.Command, _ []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.start(cmd.Context()); err != nil {
		return err
	}

	now := time.Now()
	if snapshotAt != "" {
		parsed, err := time.ParseInLocation("2006-01-02T15:04", snapshotAt, e.dash.Location())
		if err != nil {
			return fmt.Errorf("invalid --at value: %w", err)
		}
		now = parsed
	}
	var buf bytes.Buffer
	if err := dashboard.RenderText(&buf, e.dash.Snapshot(now), e.labels); err != nil {
		return fmt.Errorf("failed to render snapshot: %w", err)
	}
	return writeFitted(cmd.OutOrStdout(), buf.String())
}

// writeFitted truncates lines to the terminal width when stdout is a terminal.
func writeFitted(w io.Writer, text string) error {
	width := 0
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil {
			width = cols
		}
	}
	if width > 0 {
		lines := strings.Split(text, "\n")
		for i, line := range lines {
			lines[i] = runewidth.Truncate(line, width, "…")
		}
		text = strings.Join(lines, "\n")
	}
	if _, err := io.WriteString(w, text); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the weekly schedule of a class",
		Args:  cobra.NoArgs,
		RunE:  runScheduleCmd,
	}
	cmd.Flags().StringVar(&scheduleClass, "class", "", "class to show (default: selected class)")
	return cmd
}

func runScheduleCmd(cmd *cobra.Command, _ []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.start(cmd.Context()); err != nil {
		return err
	}

	class := model.ClassID(strings.TrimSpace(scheduleClass))
	if class == "" {
		class = e.dash.User().ClassID
	}
	if class == "" {
		return fmt.Errorf("no class selected; pass --class or run: schooldash class <ID>")
	}
	if !e.settings.HasClass(class) {
		return fmt.Errorf("unknown class %q", class)
	}
	admin := e.dash.Admin()
	var buf bytes.Buffer
	if err := dashboard.RenderWeek(&buf, admin.Periods, admin.Schedule, class, e.dash.Days(), e.labels); err != nil {
		return fmt.Errorf("failed to render schedule: %w", err)
	}
	return writeFitted(cmd.OutOrStdout(), buf.String())
}

func newClassCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "class [ID]",
		Short: "Show or set the selected class",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runClassCmd,
	}
}

func runClassCmd(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()
	e.dash.LoadUser(cmd.Context())

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		current := e.dash.User().ClassID
		for _, c := range e.dash.Classes() {
			mark := " "
			if c == current {
				mark = "*"
			}
			if _, err := fmt.Fprintf(out, "%s %s\n", mark, c); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}
		return nil
	}
	if err := e.dash.SelectClass(cmd.Context(), model.ClassID(strings.TrimSpace(args[0]))); err != nil {
		return err
	}
	logErrf("Selected class %s\n", args[0])
	return nil
}

func newTodoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "todo",
		Short: "Manage the to-do list",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE:  runTodoListCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "add TEXT...",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runTodoAddCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "done N",
		Short: "Toggle task N done/undone",
		Args:  cobra.ExactArgs(1),
		RunE:  runTodoDoneCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:     "rm N",
		Aliases: []string{"remove"},
		Short:   "Remove task N",
		Args:    cobra.ExactArgs(1),
		RunE:    runTodoRemoveCmd,
	})
	return cmd
}

func runTodoListCmd(cmd *cobra.Command, _ []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()
	e.dash.LoadUser(cmd.Context())
	return printTodos(cmd.OutOrStdout(), e.dash.User().Todos)
}

func printTodos(w io.Writer, todos []model.Todo) error {
	done := 0
	for _, item := range todos {
		if item.Done {
			done++
		}
	}
	lines := []string{fmt.Sprintf("To-do %d/%d", done, len(todos))}
	for i, item := range todos {
		mark := " "
		if item.Done {
			mark = "x"
		}
		lines = append(lines, fmt.Sprintf("%3d [%s] %s", i+1, mark, item.Text))
	}
	if _, err := fmt.Fprintln(w, strings.Join(lines, "\n")); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func runTodoAddCmd(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()
	e.dash.LoadUser(cmd.Context())
	added, err := e.dash.AddTodo(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}
	if !added {
		return fmt.Errorf("task text must not be empty")
	}
	return printTodos(cmd.OutOrStdout(), e.dash.User().Todos)
}

func runTodoDoneCmd(cmd *cobra.Command, args []string) error {
	return withTodoIndex(cmd, args[0], func(e *env, i int) error {
		return e.dash.ToggleTodo(cmd.Context(), i)
	})
}

func runTodoRemoveCmd(cmd *cobra.Command, args []string) error {
	return withTodoIndex(cmd, args[0], func(e *env, i int) error {
		return e.dash.RemoveTodo(cmd.Context(), i)
	})
}

// withTodoIndex runs fn with the zero-based index for a one-based task number.
func withTodoIndex(cmd *cobra.Command, arg string, fn func(e *env, i int) error) error {
	n, err := parseTaskNumber(arg)
	if err != nil {
		return err
	}
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()
	e.dash.LoadUser(cmd.Context())
	if err := fn(e, n-1); err != nil {
		return err
	}
	return printTodos(cmd.OutOrStdout(), e.dash.User().Todos)
}

func parseTaskNumber(arg string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("task number must be a positive integer, got %q", arg)
	}
	return n, nil
}
