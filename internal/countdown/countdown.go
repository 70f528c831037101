// Package countdown picks the next upcoming test and maintains the test registry.
package countdown

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/schooldash/internal/model"
)

// ErrTestNotFound is returned when removing a test that is not registered.
var ErrTestNotFound = errors.New("test not found")

// Outcome is the kind of countdown result.
type Outcome int

const (
	// Empty means no tests are registered.
	Empty Outcome = iota
	// AllDone means every registered test is in the past.
	AllDone
	// Upcoming means Result.Test is the next test.
	Upcoming
)

// Result is the countdown to the nearest future test.
type Result struct {
	Outcome   Outcome
	Test      model.Test
	DaysUntil int
}

// Next returns the nearest test dated today or later. Comparison is by civil date in
// today's location, so a test dated today has DaysUntil 0.
func Next(today time.Time, tests []model.Test) Result {
	if len(tests) == 0 {
		return Result{Outcome: Empty}
	}
	future := Future(today, tests)
	if len(future) == 0 {
		return Result{Outcome: AllDone}
	}
	next := future[0]
	return Result{
		Outcome:   Upcoming,
		Test:      next,
		DaysUntil: next.Date.DaysSince(model.DateOf(today)),
	}
}

// Future returns the tests dated today or later, sorted by date. Ties keep registry order.
func Future(today time.Time, tests []model.Test) []model.Test {
	day := model.DateOf(today)
	out := make([]model.Test, 0, len(tests))
	for _, t := range tests {
		if t.Date.Before(day) {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// Add registers a test under a fresh id. The slice passed in is not modified.
func Add(tests []model.Test, name string, date model.Date) ([]model.Test, model.Test, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.Test{}, fmt.Errorf("test name must not be empty")
	}
	if date.IsZero() {
		return nil, model.Test{}, fmt.Errorf("test date is required")
	}
	test := model.Test{ID: uuid.NewString(), Name: name, Date: date}
	out := append(append([]model.Test(nil), tests...), test)
	return out, test, nil
}

// Remove deletes every test whose id or name equals key.
func Remove(tests []model.Test, key string) ([]model.Test, error) {
	key = strings.TrimSpace(key)
	out := make([]model.Test, 0, len(tests))
	for _, t := range tests {
		if key != "" && (t.ID == key || t.Name == key) {
			continue
		}
		out = append(out, t)
	}
	if len(out) == len(tests) {
		return nil, fmt.Errorf("%w: %q", ErrTestNotFound, key)
	}
	return out, nil
}

// Prune drops tests dated before today and reports how many were removed.
func Prune(tests []model.Test, today time.Time) ([]model.Test, int) {
	day := model.DateOf(today)
	out := make([]model.Test, 0, len(tests))
	for _, t := range tests {
		if t.Date.Before(day) {
			continue
		}
		out = append(out, t)
	}
	return out, len(tests) - len(out)
}
