// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/schooldash/internal/model"
)

// Defaults used when the config file leaves a value unset.
var (
	DefaultClasses       = []string{"21HR", "22HR", "23HR", "24HR", "25HR", "26HR", "27HR", "28HR"}
	DefaultSchoolDays    = []string{"Mon", "Tue", "Wed", "Thu", "Fri"}
	DefaultWeekdayLabels = map[string]string{
		"Sun": "Sun", "Mon": "Mon", "Tue": "Tue", "Wed": "Wed", "Thu": "Thu", "Fri": "Fri", "Sat": "Sat",
	}
)

// Scalar defaults and the environment override for the GitHub token.
const (
	DefaultAdminPIN      = "1234"
	DefaultBranch        = "main"
	DefaultCalendarMax   = 5
	DefaultLogLevel      = "info"
	GitHubTokenEnv       = "SCHOOLDASH_GITHUB_TOKEN"
	calendarMaxAllowance = 50
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	School   SchoolConfig   `toml:"school"`
	Remote   RemoteConfig   `toml:"remote"`
	Calendar CalendarConfig `toml:"calendar"`
	Log      LogConfig      `toml:"log"`
}

// SchoolConfig maps roster and calendar-of-week settings.
type SchoolConfig struct {
	Classes       []string          `toml:"classes"`
	AdminPIN      *string           `toml:"admin-pin"`
	SchoolDays    []string          `toml:"school-days"`
	Timezone      *string           `toml:"timezone"`
	WeekdayLabels map[string]string `toml:"weekday-labels"`
}

// RemoteConfig maps the GitHub-hosted admin dataset location.
type RemoteConfig struct {
	Owner      *string `toml:"owner"`
	Repo       *string `toml:"repo"`
	Path       *string `toml:"path"`
	Branch     *string `toml:"branch"`
	Token      *string `toml:"token"`
	Optimistic *bool   `toml:"optimistic"`
}

// CalendarConfig maps Google Calendar OAuth client settings.
type CalendarConfig struct {
	ClientID     *string `toml:"client-id"`
	ClientSecret *string `toml:"client-secret"`
	MaxResults   *int    `toml:"max-results"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
	Path  *string `toml:"path"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Settings is the resolved configuration with defaults applied.
type Settings struct {
	Classes       []model.ClassID
	AdminPIN      string
	SchoolDays    []model.Weekday
	Location      *time.Location
	WeekdayLabels map[model.Weekday]string

	Remote   Remote
	Calendar Calendar

	LogLevel string
	LogPath  string
}

// Remote holds the GitHub dataset location.
type Remote struct {
	Owner      string
	Repo       string
	Path       string
	Branch     string
	Token      string
	Optimistic bool
}

// Calendar holds the Google OAuth client.
type Calendar struct {
	ClientID     string
	ClientSecret string
	MaxResults   int
}

// Resolve applies defaults and validates the file config.
func Resolve(fc FileConfig) (Settings, error) {
	s := Settings{
		AdminPIN:      valueOr(fc.School.AdminPIN, DefaultAdminPIN),
		Location:      time.Local,
		WeekdayLabels: map[model.Weekday]string{},
		Remote: Remote{
			Owner:      valueOr(fc.Remote.Owner, ""),
			Repo:       valueOr(fc.Remote.Repo, ""),
			Path:       valueOr(fc.Remote.Path, ""),
			Branch:     valueOr(fc.Remote.Branch, DefaultBranch),
			Token:      valueOr(fc.Remote.Token, ""),
			Optimistic: valueOr(fc.Remote.Optimistic, false),
		},
		Calendar: Calendar{
			ClientID:     valueOr(fc.Calendar.ClientID, ""),
			ClientSecret: valueOr(fc.Calendar.ClientSecret, ""),
			MaxResults:   valueOr(fc.Calendar.MaxResults, DefaultCalendarMax),
		},
		LogLevel: valueOr(fc.Log.Level, DefaultLogLevel),
		LogPath:  valueOr(fc.Log.Path, DefaultLogPath()),
	}
	if token := strings.TrimSpace(os.Getenv(GitHubTokenEnv)); token != "" {
		s.Remote.Token = token
	}
	if strings.TrimSpace(s.AdminPIN) == "" {
		return Settings{}, fmt.Errorf("school.admin-pin must not be empty")
	}
	if s.Calendar.MaxResults <= 0 || s.Calendar.MaxResults > calendarMaxAllowance {
		return Settings{}, fmt.Errorf("calendar.max-results must be between 1 and %d", calendarMaxAllowance)
	}

	classes := fc.School.Classes
	if len(classes) == 0 {
		classes = DefaultClasses
	}
	seen := map[string]struct{}{}
	for _, c := range classes {
		c = strings.TrimSpace(c)
		if c == "" {
			return Settings{}, fmt.Errorf("school.classes must not contain empty names")
		}
		if _, dup := seen[c]; dup {
			return Settings{}, fmt.Errorf("school.classes lists %q twice", c)
		}
		seen[c] = struct{}{}
		s.Classes = append(s.Classes, model.ClassID(c))
	}

	days := fc.School.SchoolDays
	if days == nil {
		days = DefaultSchoolDays
	}
	for _, d := range days {
		day, err := model.ParseWeekday(d)
		if err != nil {
			return Settings{}, fmt.Errorf("school.school-days: %w", err)
		}
		s.SchoolDays = append(s.SchoolDays, day)
	}

	for key, label := range DefaultWeekdayLabels {
		s.WeekdayLabels[model.Weekday(key)] = label
	}
	for key, label := range fc.School.WeekdayLabels {
		day, err := model.ParseWeekday(key)
		if err != nil {
			return Settings{}, fmt.Errorf("school.weekday-labels: %w", err)
		}
		s.WeekdayLabels[day] = label
	}

	if fc.School.Timezone != nil && *fc.School.Timezone != "" {
		loc, err := time.LoadLocation(*fc.School.Timezone)
		if err != nil {
			return Settings{}, fmt.Errorf("school.timezone: %w", err)
		}
		s.Location = loc
	}
	return s, nil
}

// HasClass reports whether id is on the roster.
func (s Settings) HasClass(id model.ClassID) bool {
	for _, c := range s.Classes {
		if c == id {
			return true
		}
	}
	return false
}

func valueOr[T any](value *T, fallback T) T {
	if value == nil {
		return fallback
	}
	return *value
}
