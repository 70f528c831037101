package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/schooldash/internal/calendar"
	"github.com/verte-zerg/schooldash/internal/config"
	"github.com/verte-zerg/schooldash/internal/model"
)

func TestDefaultConfigTemplateDecodes(t *testing.T) {
	var lines []string
	for _, line := range strings.Split(defaultConfigTemplate(), "\n") {
		rest, ok := strings.CutPrefix(line, "# ")
		if ok && !strings.Contains(rest, "timezone") && (strings.Contains(rest, " = ") || strings.HasPrefix(rest, "[")) {
			line = rest
		}
		lines = append(lines, line)
	}

	for name, text := range map[string]string{
		"commented":   defaultConfigTemplate(),
		"uncommented": strings.Join(lines, "\n"),
	} {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
		cfg, err := config.LoadConfig(path)
		if err != nil {
			t.Fatalf("%s: load config: %v", name, err)
		}
		settings, err := config.Resolve(cfg)
		if err != nil {
			t.Fatalf("%s: resolve config: %v", name, err)
		}
		if settings.AdminPIN != config.DefaultAdminPIN || settings.Calendar.MaxResults != config.DefaultCalendarMax {
			t.Fatalf("%s: unexpected settings: %+v", name, settings)
		}
	}
}

func TestParseAssignments(t *testing.T) {
	edits, err := parseAssignments([]string{"1=Math", "3= Art ", "4="})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(edits) != 3 || edits[0] != "Math" || edits[2] != "Art" || edits[3] != "" {
		t.Fatalf("unexpected edits: %+v", edits)
	}

	for _, bad := range []string{"Math", "0=Math", "x=Math"} {
		if _, err := parseAssignments([]string{bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestParseTaskNumber(t *testing.T) {
	if n, err := parseTaskNumber(" 2 "); err != nil || n != 2 {
		t.Fatalf("expected 2, got %d (%v)", n, err)
	}
	for _, bad := range []string{"0", "-1", "two"} {
		if _, err := parseTaskNumber(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestFormatEvents(t *testing.T) {
	if got := formatEvents(nil, time.UTC); got != "No upcoming events\n" {
		t.Fatalf("unexpected empty output: %q", got)
	}
	start := time.Date(2026, time.October, 20, 16, 30, 0, 0, time.UTC)
	got := formatEvents([]model.CalendarEvent{
		{Title: "Club meeting", Start: start},
		{Title: "Sports day", Start: time.Date(2026, time.October, 21, 0, 0, 0, 0, time.UTC), AllDay: true},
	}, time.UTC)
	want := "Tue 2026-10-20 16:30  Club meeting\nWed 2026-10-21  all day  Sports day\n"
	if got != want {
		t.Fatalf("unexpected output:\n%s", got)
	}
}

type tokenRows map[string][]byte

func (r tokenRows) LoadToken(_ context.Context, provider string) ([]byte, bool, error) {
	payload, ok := r[provider]
	return payload, ok, nil
}

func (r tokenRows) SaveToken(_ context.Context, provider string, payload []byte) error {
	r[provider] = payload
	return nil
}

func (r tokenRows) DeleteToken(_ context.Context, provider string) error {
	delete(r, provider)
	return nil
}

func TestCalendarStatus(t *testing.T) {
	ctx := context.Background()
	tokens := tokenRows{}
	g := &calendar.Google{Tokens: tokens}
	if got, err := calendarStatus(ctx, g); err != nil || !strings.HasPrefix(got, "Not configured") {
		t.Fatalf("expected not configured, got %q (%v)", got, err)
	}
	g.ClientID, g.ClientSecret = "id", "secret"
	if got, err := calendarStatus(ctx, g); err != nil || !strings.HasPrefix(got, "Not connected") {
		t.Fatalf("expected not connected, got %q (%v)", got, err)
	}
	tokens[calendar.Provider] = []byte(`{"access_token":"a"}`)
	if got, err := calendarStatus(ctx, g); err != nil || got != "Connected" {
		t.Fatalf("expected connected, got %q (%v)", got, err)
	}
}

func TestPrintTestsListsUpcoming(t *testing.T) {
	today := time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC)
	tests := []model.Test{
		{ID: "b", Name: "Finals", Date: model.Date{Year: 2026, Month: time.December, Day: 10}},
		{ID: "a", Name: "Midterm", Date: model.Date{Year: 2026, Month: time.October, Day: 26}},
		{ID: "c", Name: "Old quiz", Date: model.Date{Year: 2026, Month: time.October, Day: 1}},
	}
	var buf bytes.Buffer
	if err := printTests(&buf, tests, today); err != nil {
		t.Fatalf("print tests: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
	if !strings.HasSuffix(lines[0], "Midterm") || !strings.HasSuffix(lines[1], "Finals") {
		t.Fatalf("expected upcoming tests by date:\n%s", buf.String())
	}
	if !strings.HasPrefix(lines[2], "1 past test(s)") {
		t.Fatalf("expected past test count, got %q", lines[2])
	}
}
