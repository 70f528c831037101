package main

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/schooldash/internal/calendar"
	"github.com/verte-zerg/schooldash/internal/model"
)

const loginTimeout = 5 * time.Minute

var calendarLimit int

func newCalendarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Connect and read Google Calendar",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "login",
		Short: "Authorize read access to your primary calendar",
		Args:  cobra.NoArgs,
		RunE:  runCalendarLoginCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "logout",
		Short: "Revoke and forget the stored calendar token",
		Args:  cobra.NoArgs,
		RunE:  runCalendarLogoutCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether a calendar is connected",
		Args:  cobra.NoArgs,
		RunE:  runCalendarStatusCmd,
	})
	list := &cobra.Command{
		Use:   "list",
		Short: "List upcoming events",
		Args:  cobra.NoArgs,
		RunE:  runCalendarListCmd,
	}
	list.Flags().IntVarP(&calendarLimit, "limit", "n", 0, "maximum number of events (default from config)")
	cmd.AddCommand(list)
	return cmd
}

func runCalendarLoginCmd(cmd *cobra.Command, _ []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()
	if !e.calendar.Configured() {
		return notConfiguredError()
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), loginTimeout)
	defer cancel()
	err = e.calendar.Login(ctx, func(authURL string) error {
		logErrln("Open this URL to authorize schooldash:")
		logErrln(authURL)
		if oerr := openBrowser(authURL); oerr != nil {
			e.log.Debug("browser not opened")
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("timed out waiting for authorization")
		}
		return err
	}
	logErrln("Calendar connected.")
	return nil
}

func openBrowser(url string) error {
	var name string
	switch runtime.GOOS {
	case "darwin":
		name = "open"
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		name = "xdg-open"
	}
	return exec.Command(name, url).Start()
}

func runCalendarLogoutCmd(cmd *cobra.Command, _ []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.calendar.Logout(cmd.Context()); err != nil {
		return err
	}
	logErrln("Calendar disconnected.")
	return nil
}

func runCalendarStatusCmd(cmd *cobra.Command, _ []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()
	status, err := calendarStatus(cmd.Context(), e.calendar)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), status)
	return err
}

func calendarStatus(ctx context.Context, g *calendar.Google) (string, error) {
	if !g.Configured() {
		return "Not configured. Set [calendar] client-id and client-secret with: schooldash config", nil
	}
	ok, err := g.Connected(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read calendar token: %w", err)
	}
	if !ok {
		return "Not connected. Run: schooldash calendar login", nil
	}
	return "Connected", nil
}

func runCalendarListCmd(cmd *cobra.Command, _ []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()
	if !e.calendar.Configured() {
		return notConfiguredError()
	}
	limit := e.settings.Calendar.MaxResults
	if calendarLimit > 0 {
		limit = calendarLimit
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), startTimeout)
	defer cancel()
	events, err := e.calendar.FetchUpcoming(ctx, limit)
	switch {
	case errors.Is(err, calendar.ErrNotConnected), errors.Is(err, calendar.ErrAuthDenied):
		return fmt.Errorf("%w\nRun: schooldash calendar login", err)
	case err != nil:
		return err
	}
	return writeFitted(cmd.OutOrStdout(), formatEvents(events, e.dash.Location()))
}

func formatEvents(events []model.CalendarEvent, loc *time.Location) string {
	if len(events) == 0 {
		return "No upcoming events\n"
	}
	var b strings.Builder
	for _, ev := range events {
		start := ev.Start.In(loc)
		if ev.AllDay {
			fmt.Fprintf(&b, "%s  all day  %s\n", start.Format("Mon 2006-01-02"), ev.Title)
			continue
		}
		fmt.Fprintf(&b, "%s  %s\n", start.Format("Mon 2006-01-02 15:04"), ev.Title)
	}
	return b.String()
}

func notConfiguredError() error {
	return fmt.Errorf("%w\nSet [calendar] client-id and client-secret with: schooldash config", calendar.ErrNotConfigured)
}
