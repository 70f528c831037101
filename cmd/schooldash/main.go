// Package main provides the CLI entrypoint for schooldash.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verte-zerg/schooldash/internal/app"
	"github.com/verte-zerg/schooldash/internal/calendar"
	"github.com/verte-zerg/schooldash/internal/config"
	"github.com/verte-zerg/schooldash/internal/dashboard"
	"github.com/verte-zerg/schooldash/internal/logging"
	"github.com/verte-zerg/schooldash/internal/remote"
	"github.com/verte-zerg/schooldash/internal/schedule"
	"github.com/verte-zerg/schooldash/internal/store"
	"github.com/verte-zerg/schooldash/internal/tui"
)

const startTimeout = 30 * time.Second

var (
	rootConfigPath string
	rootDBPath     string
	rootLogLevel   string
	rootTimezone   string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "schooldash",
		Short:         "School dashboard: periods, test countdown, to-dos and calendar",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runDashboardCmd,
	}

	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config", config.DefaultConfigPath(), "config file path")
	rootCmd.PersistentFlags().StringVar(&rootDBPath, "db", config.DefaultDBPath(), "SQLite database path")
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&rootTimezone, "timezone", "", "school time zone, e.g. Asia/Tokyo")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newSnapshotCmd())
	rootCmd.AddCommand(newScheduleCmd())
	rootCmd.AddCommand(newClassCmd())
	rootCmd.AddCommand(newTodoCmd())
	rootCmd.AddCommand(newAdminCmd())
	rootCmd.AddCommand(newCalendarCmd())

	return rootCmd
}

// env is everything a command needs, built from the config file and flags.
type env struct {
	settings config.Settings
	store    *store.Store
	log      *zap.Logger
	dash     *app.Dashboard
	remote   *remote.GitHub
	calendar *calendar.Google
	labels   dashboard.Labels
}

func openEnv(cmd *cobra.Command) (*env, error) {
	fileCfg, err := config.LoadConfig(rootConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "log-level", &rootLogLevel, fileCfg.Log.Level)
	fileCfg.Log.Level = &rootLogLevel
	if cmd.Flags().Changed("timezone") {
		fileCfg.School.Timezone = &rootTimezone
	}
	settings, err := config.Resolve(fileCfg)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(settings.LogPath, settings.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	st, err := store.Open(rootDBPath)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	e := &env{
		settings: settings,
		store:    st,
		log:      logger,
		labels:   dashboard.Labels(settings.WeekdayLabels),
		remote: &remote.GitHub{
			Owner:      settings.Remote.Owner,
			Repo:       settings.Remote.Repo,
			Path:       settings.Remote.Path,
			Branch:     settings.Remote.Branch,
			Token:      settings.Remote.Token,
			Optimistic: settings.Remote.Optimistic,
		},
		calendar: &calendar.Google{
			ClientID:     settings.Calendar.ClientID,
			ClientSecret: settings.Calendar.ClientSecret,
			Tokens:       st,
			Log:          logger.Named("calendar"),
		},
	}
	deps := app.Deps{
		Users:    st,
		Backup:   st,
		Classes:  settings.Classes,
		Days:     schedule.NewDayRule(settings.SchoolDays),
		AdminPIN: settings.AdminPIN,
		Location: settings.Location,
		Log:      logger.Named("app"),
	}
	if e.remote.Configured() {
		deps.Remote = e.remote
	}
	e.dash = app.New(deps)
	return e, nil
}

func (e *env) Close() {
	if cerr := e.store.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
	if serr := e.log.Sync(); serr != nil {
		// Best-effort flush.
		_ = serr
	}
}

// start loads both datasets, bounded by startTimeout.
func (e *env) start(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := e.dash.Start(ctx); err != nil {
		return fmt.Errorf("failed to load data: %w", err)
	}
	switch {
	case e.dash.Source() == app.SourcePending:
		logErrf("Using admin edits not pushed yet (version %d). Push with: schooldash admin push\n", e.dash.Admin().Version)
	case e.dash.Source() != app.SourceRemote && e.remote.Configured():
		logErrf("Remote data unavailable; using %s.\n", e.dash.Source())
	}
	return nil
}

func runDashboardCmd(cmd *cobra.Command, _ []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	e.dash.LoadUser(cmd.Context())
	e.dash.LoadBackup(cmd.Context())
	opts := tui.Options{
		Dashboard:   e.dash,
		CalendarMax: e.settings.Calendar.MaxResults,
		Labels:      e.labels,
		Log:         e.log.Named("tui"),
	}
	if e.calendar.Configured() {
		opts.Calendar = e.calendar
	}
	model := tui.NewModel(cmd.Context(), opts)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := rootConfigPath
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o600); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# schooldash configuration
# Uncomment a value to enable it. CLI flags override config values.

[school]
# classes = [%s]
# admin-pin = %q
# school-days = [%s]
# timezone = "Asia/Tokyo"        # Defaults to the system time zone

# [school.weekday-labels]
# Mon = "月"

[remote]
# Shared admin data, stored as a JSON file in a GitHub repository.
# owner = "my-school"
# repo = "dashboard-data"
# path = "data/dashboard.json"
# branch = %q
# token = ""                     # Or set %s
# optimistic = false             # Reject saves when the file changed since it was loaded

[calendar]
# Google OAuth desktop client for the calendar panel.
# client-id = ""
# client-secret = ""
# max-results = %d

[log]
# level = %q
# path = %q
`,
		quoteList(config.DefaultClasses),
		config.DefaultAdminPIN,
		quoteList(config.DefaultSchoolDays),
		config.DefaultBranch,
		config.GitHubTokenEnv,
		config.DefaultCalendarMax,
		config.DefaultLogLevel,
		config.DefaultLogPath(),
	)
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(quoted, ", ")
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
