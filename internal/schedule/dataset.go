package schedule

import (
	"fmt"
	"strings"

	"github.com/verte-zerg/schooldash/internal/model"
)

// ValidateDataset checks an admin dataset at the loading boundary so that
// per-tick resolution never has to re-validate it.
func ValidateDataset(ds model.AdminDataset) error {
	if err := ValidateTable(ds.Periods); err != nil {
		return err
	}
	for class, days := range ds.Schedule {
		for day, subjects := range days {
			if _, err := model.ParseWeekday(string(day)); err != nil {
				return fmt.Errorf("schedule for %s: %w", class, err)
			}
			for i := len(ds.Periods); i < len(subjects); i++ {
				if strings.TrimSpace(subjects[i]) != "" {
					return fmt.Errorf("%w: %s %s has a subject in slot %d but only %d periods exist", ErrInvalidIndex, class, day, i+1, len(ds.Periods))
				}
			}
		}
	}
	for _, t := range ds.Tests {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("test dated %s has no name", t.Date)
		}
		if t.Date.IsZero() {
			return fmt.Errorf("test %q has no date", t.Name)
		}
	}
	return nil
}
