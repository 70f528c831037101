package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/schooldash/internal/app"
	"github.com/verte-zerg/schooldash/internal/countdown"
	"github.com/verte-zerg/schooldash/internal/dashboard"
	"github.com/verte-zerg/schooldash/internal/model"
	"github.com/verte-zerg/schooldash/internal/remote"
)

var (
	adminPIN     string
	adminPush    bool
	adminStart   string
	adminEnd     string
	adminDiscard bool
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Edit the shared time table, schedule and tests (PIN required)",
	}
	cmd.PersistentFlags().StringVar(&adminPIN, "pin", "", "admin PIN (prompted when omitted)")
	cmd.PersistentFlags().BoolVar(&adminPush, "push", false, "also save to the remote dataset")

	period := &cobra.Command{Use: "period", Short: "Edit class periods"}
	period.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List periods",
		Args:  cobra.NoArgs,
		RunE:  runPeriodListCmd,
	})
	periodSet := &cobra.Command{
		Use:   "set N",
		Short: "Change the start and/or end of period N",
		Args:  cobra.ExactArgs(1),
		RunE:  runPeriodSetCmd,
	}
	periodSet.Flags().StringVar(&adminStart, "start", "", "start time (HH:MM)")
	periodSet.Flags().StringVar(&adminEnd, "end", "", "end time (HH:MM)")
	period.AddCommand(periodSet)
	period.AddCommand(&cobra.Command{
		Use:   "add START END",
		Short: "Append a period at the end of the day",
		Args:  cobra.ExactArgs(2),
		RunE:  runPeriodAddCmd,
	})
	period.AddCommand(&cobra.Command{
		Use:   "rm-last",
		Short: "Remove the last period of the day",
		Args:  cobra.NoArgs,
		RunE:  runPeriodRemoveLastCmd,
	})

	subjects := &cobra.Command{Use: "subjects", Short: "Edit the weekly schedule"}
	subjects.AddCommand(&cobra.Command{
		Use:   "set CLASS DAY SLOT=SUBJECT...",
		Short: "Set subjects by period number, e.g. 1=Math 3=Art",
		Args:  cobra.MinimumNArgs(3),
		RunE:  runSubjectsSetCmd,
	})
	subjects.AddCommand(&cobra.Command{
		Use:   "clear CLASS DAY",
		Short: "Clear every subject of one class and day",
		Args:  cobra.ExactArgs(2),
		RunE:  runSubjectsClearCmd,
	})

	test := &cobra.Command{Use: "test", Short: "Edit the test registry"}
	test.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tests",
		Args:  cobra.NoArgs,
		RunE:  runTestListCmd,
	})
	test.AddCommand(&cobra.Command{
		Use:   "add NAME DATE",
		Short: "Register a test (DATE as YYYY-MM-DD)",
		Args:  cobra.ExactArgs(2),
		RunE:  runTestAddCmd,
	})
	test.AddCommand(&cobra.Command{
		Use:     "rm ID|NAME",
		Aliases: []string{"remove"},
		Short:   "Remove a test by id or name",
		Args:    cobra.ExactArgs(1),
		RunE:    runTestRemoveCmd,
	})
	test.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Remove tests dated before today",
		Args:  cobra.NoArgs,
		RunE:  runTestPruneCmd,
	})

	cmd.AddCommand(period, subjects, test)
	pull := &cobra.Command{
		Use:   "pull",
		Short: "Reload the shared dataset and refresh the local backup",
		Args:  cobra.NoArgs,
		RunE:  runAdminPullCmd,
	}
	pull.Flags().BoolVar(&adminDiscard, "discard", false, "drop admin edits that were not pushed")
	cmd.AddCommand(pull)
	cmd.AddCommand(&cobra.Command{
		Use:   "push",
		Short: "Save the active dataset to the remote repository",
		Args:  cobra.NoArgs,
		RunE:  runAdminPushCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "backups",
		Short: "List local admin backups",
		Args:  cobra.NoArgs,
		RunE:  runAdminBackupsCmd,
	})
	return cmd
}

// withAdmin loads the datasets, unlocks an admin session and runs fn. When
// save is set the session is saved afterwards, remotely too with --push.
func withAdmin(cmd *cobra.Command, save bool, fn func(e *env, s *app.AdminSession) error) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.start(cmd.Context()); err != nil {
		return err
	}
	pin, err := readPIN(cmd)
	if err != nil {
		return err
	}
	session, err := e.dash.UnlockAdmin(pin)
	if err != nil {
		return err
	}
	if err := fn(e, session); err != nil {
		return err
	}
	if !save {
		return nil
	}
	if err := session.Save(cmd.Context(), adminPush); err != nil {
		return saveError(err)
	}
	if adminPush {
		logErrf("Saved version %d to the remote dataset.\n", session.Dataset().Version)
	} else {
		logErrf("Saved version %d locally. Push with: schooldash admin push\n", session.Dataset().Version)
	}
	return nil
}

func saveError(err error) error {
	switch {
	case errors.Is(err, remote.ErrSaveRejected):
		return fmt.Errorf("%w\nThe edit is kept locally. Retry with `schooldash admin push`, or drop it with `schooldash admin pull --discard`", err)
	case errors.Is(err, remote.ErrNotConfigured):
		return fmt.Errorf("%w\nSet [remote] owner, repo and path in the config; the edit is saved locally", err)
	}
	return err
}

func readPIN(cmd *cobra.Command) (string, error) {
	if cmd.Flags().Changed("pin") {
		return adminPIN, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("--pin is required when stdin is not a terminal")
	}
	logErrf("Admin PIN: ")
	raw, err := term.ReadPassword(fd)
	logErrln()
	if err != nil {
		return "", fmt.Errorf("failed to read PIN: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func runPeriodListCmd(cmd *cobra.Command, _ []string) error {
	return withAdmin(cmd, false, func(_ *env, s *app.AdminSession) error {
		return printPeriods(cmd.OutOrStdout(), s.Dataset().Periods)
	})
}

func printPeriods(w io.Writer, periods []model.Period) error {
	for _, p := range periods {
		if _, err := fmt.Fprintf(w, "%2d  %s-%s\n", p.Index, p.Start, p.End); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func runPeriodSetCmd(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid period number %q", args[0])
	}
	start, err := optionalClock(cmd, "start", adminStart)
	if err != nil {
		return err
	}
	end, err := optionalClock(cmd, "end", adminEnd)
	if err != nil {
		return err
	}
	if start == nil && end == nil {
		return fmt.Errorf("pass --start and/or --end")
	}
	return withAdmin(cmd, true, func(_ *env, s *app.AdminSession) error {
		if err := s.SetPeriod(index, start, end); err != nil {
			return err
		}
		return printPeriods(cmd.OutOrStdout(), s.Dataset().Periods)
	})
}

func optionalClock(cmd *cobra.Command, name, value string) (*model.Clock, error) {
	if !cmd.Flags().Changed(name) {
		return nil, nil
	}
	c, err := model.ParseClock(value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s value: %w", name, err)
	}
	return &c, nil
}

func runPeriodAddCmd(cmd *cobra.Command, args []string) error {
	start, err := model.ParseClock(args[0])
	if err != nil {
		return fmt.Errorf("invalid start: %w", err)
	}
	end, err := model.ParseClock(args[1])
	if err != nil {
		return fmt.Errorf("invalid end: %w", err)
	}
	return withAdmin(cmd, true, func(_ *env, s *app.AdminSession) error {
		if _, err := s.AddPeriod(start, end); err != nil {
			return err
		}
		return printPeriods(cmd.OutOrStdout(), s.Dataset().Periods)
	})
}

func runPeriodRemoveLastCmd(cmd *cobra.Command, _ []string) error {
	return withAdmin(cmd, true, func(_ *env, s *app.AdminSession) error {
		if err := s.RemoveLastPeriod(); err != nil {
			return err
		}
		return printPeriods(cmd.OutOrStdout(), s.Dataset().Periods)
	})
}

func runSubjectsSetCmd(cmd *cobra.Command, args []string) error {
	class := model.ClassID(strings.TrimSpace(args[0]))
	day, err := model.ParseWeekday(args[1])
	if err != nil {
		return err
	}
	edits, err := parseAssignments(args[2:])
	if err != nil {
		return err
	}
	return withAdmin(cmd, true, func(e *env, s *app.AdminSession) error {
		if err := s.SetSubjects(class, day, edits); err != nil {
			return err
		}
		ds := s.Dataset()
		return dashboard.RenderWeek(cmd.OutOrStdout(), ds.Periods, ds.Schedule, class, e.dash.Days(), e.labels)
	})
}

// parseAssignments turns "3=Math" arguments into zero-based slot edits.
// "3=" clears slot 3.
func parseAssignments(args []string) (map[int]string, error) {
	edits := make(map[int]string, len(args))
	for _, arg := range args {
		slot, subject, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("expected SLOT=SUBJECT, got %q", arg)
		}
		n, err := strconv.Atoi(strings.TrimSpace(slot))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid period number in %q", arg)
		}
		edits[n-1] = strings.TrimSpace(subject)
	}
	return edits, nil
}

func runSubjectsClearCmd(cmd *cobra.Command, args []string) error {
	class := model.ClassID(strings.TrimSpace(args[0]))
	day, err := model.ParseWeekday(args[1])
	if err != nil {
		return err
	}
	return withAdmin(cmd, true, func(_ *env, s *app.AdminSession) error {
		return s.ClearDay(class, day)
	})
}

func runTestListCmd(cmd *cobra.Command, _ []string) error {
	return withAdmin(cmd, false, func(e *env, s *app.AdminSession) error {
		return printTests(cmd.OutOrStdout(), s.Dataset().Tests, time.Now().In(e.dash.Location()))
	})
}

// printTests lists the tests dated today or later and counts the past ones.
func printTests(w io.Writer, tests []model.Test, today time.Time) error {
	upcoming := countdown.Future(today, tests)
	if len(upcoming) == 0 {
		if _, err := fmt.Fprintln(w, "No upcoming tests"); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	for _, t := range upcoming {
		id := t.ID
		if id == "" {
			id = "-"
		}
		if _, err := fmt.Fprintf(w, "%s  %-36s  %s\n", t.Date, id, t.Name); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	if past := len(tests) - len(upcoming); past > 0 {
		if _, err := fmt.Fprintf(w, "%d past test(s); remove with: schooldash admin test prune\n", past); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func runTestAddCmd(cmd *cobra.Command, args []string) error {
	date, err := model.ParseDate(args[1])
	if err != nil {
		return fmt.Errorf("invalid date: %w", err)
	}
	return withAdmin(cmd, true, func(_ *env, s *app.AdminSession) error {
		test, err := s.AddTest(args[0], date)
		if err != nil {
			return err
		}
		logErrf("Added %s (%s) on %s\n", test.Name, test.ID, test.Date)
		return nil
	})
}

func runTestRemoveCmd(cmd *cobra.Command, args []string) error {
	return withAdmin(cmd, true, func(_ *env, s *app.AdminSession) error {
		return s.RemoveTest(args[0])
	})
}

func runTestPruneCmd(cmd *cobra.Command, _ []string) error {
	return withAdmin(cmd, true, func(e *env, s *app.AdminSession) error {
		now := time.Now().In(e.dash.Location())
		n := s.PruneTests(now)
		logErrf("Removed %d past test(s)\n", n)
		next := countdown.Next(now, s.Dataset().Tests)
		logErrln(dashboard.CountdownText(next))
		return nil
	})
}

func runAdminPullCmd(cmd *cobra.Command, _ []string) error {
	return withAdmin(cmd, false, func(e *env, _ *app.AdminSession) error {
		if e.dash.Source() == app.SourcePending && !adminDiscard {
			return fmt.Errorf("version %d has admin edits that were not pushed; push them with `schooldash admin push` or pass --discard",
				e.dash.Admin().Version)
		}
		if err := e.dash.Pull(cmd.Context()); err != nil {
			return err
		}
		ds := e.dash.Admin()
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Pulled version %d (revision %s): %d periods, %d tests, %d classes\n",
			ds.Version, ds.Revision, len(ds.Periods), len(ds.Tests), len(ds.Schedule))
		return err
	})
}

func runAdminPushCmd(cmd *cobra.Command, _ []string) error {
	return withAdmin(cmd, false, func(e *env, s *app.AdminSession) error {
		if e.dash.Source() == app.SourceRemote {
			logErrln("Nothing to push; the remote dataset is up to date.")
			return nil
		}
		if err := s.Save(cmd.Context(), true); err != nil {
			return saveError(err)
		}
		logErrf("Saved version %d to the remote dataset.\n", s.Dataset().Version)
		return nil
	})
}

func runAdminBackupsCmd(cmd *cobra.Command, _ []string) error {
	return withAdmin(cmd, false, func(e *env, _ *app.AdminSession) error {
		backups, err := e.store.ListAdminBackups(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list backups: %w", err)
		}
		for _, b := range backups {
			revision := b.Revision
			if revision == "" {
				revision = "-"
			}
			state := "synced"
			if b.Pending {
				state = "unpushed"
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s  v%-4d %-8s  %s\n",
				b.SavedAt.In(e.dash.Location()).Format("2006-01-02 15:04:05"), b.Version, state, revision); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}
		return nil
	})
}
