package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/verte-zerg/schooldash/internal/model"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("expected missing file to be fine, got %v", err)
	}
	s, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("resolve defaults: %v", err)
	}
	if len(s.Classes) != len(DefaultClasses) || s.Classes[0] != "21HR" {
		t.Fatalf("unexpected default classes: %v", s.Classes)
	}
	if s.AdminPIN != DefaultAdminPIN || s.Remote.Branch != "main" || s.Calendar.MaxResults != 5 {
		t.Fatalf("unexpected defaults: %+v", s)
	}
	if len(s.SchoolDays) != 5 || s.SchoolDays[0] != model.Monday {
		t.Fatalf("unexpected school days: %v", s.SchoolDays)
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv(GitHubTokenEnv, "env-token")
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[school]
classes = ["1A", "1B"]
admin-pin = "9999"
school-days = ["mon", "tue", "wed", "thu", "fri", "sat"]
timezone = "UTC"

[school.weekday-labels]
Mon = "月"
Sat = "土"

[remote]
owner = "school"
repo = "data"
path = "admin.json"
token = "file-token"
optimistic = true

[calendar]
client-id = "id.apps.googleusercontent.com"
max-results = 10
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	s, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !s.HasClass("1B") || s.HasClass("21HR") {
		t.Fatalf("unexpected roster: %v", s.Classes)
	}
	if s.AdminPIN != "9999" || len(s.SchoolDays) != 6 || s.Location.String() != "UTC" {
		t.Fatalf("unexpected school settings: %+v", s)
	}
	if s.WeekdayLabels[model.Monday] != "月" || s.WeekdayLabels[model.Tuesday] != "Tue" {
		t.Fatalf("unexpected labels: %v", s.WeekdayLabels)
	}
	if s.Remote.Token != "env-token" || !s.Remote.Optimistic || s.Remote.Branch != "main" {
		t.Fatalf("unexpected remote: %+v", s.Remote)
	}
	if s.Calendar.MaxResults != 10 {
		t.Fatalf("unexpected calendar: %+v", s.Calendar)
	}
}

func TestResolveRejectsBadValues(t *testing.T) {
	empty := ""
	zero := 0
	bad := []FileConfig{
		{School: SchoolConfig{AdminPIN: &empty}},
		{School: SchoolConfig{Classes: []string{"1A", "1A"}}},
		{School: SchoolConfig{SchoolDays: []string{"Funday"}}},
		{School: SchoolConfig{WeekdayLabels: map[string]string{"Xyz": "?"}}},
		{Calendar: CalendarConfig{MaxResults: &zero}},
	}
	for i, fc := range bad {
		if _, err := Resolve(fc); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestDefaultPathsFollowXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XDG_DATA_HOME", dir)
	t.Setenv("XDG_STATE_HOME", dir)
	if got := DefaultConfigPath(); got != filepath.Join(dir, "schooldash", "config.toml") {
		t.Fatalf("unexpected config path %s", got)
	}
	if got := DefaultDBPath(); got != filepath.Join(dir, "schooldash", "schooldash.db") {
		t.Fatalf("unexpected db path %s", got)
	}
	if got := DefaultLogPath(); got != filepath.Join(dir, "schooldash", "schooldash.log") {
		t.Fatalf("unexpected log path %s", got)
	}
}
