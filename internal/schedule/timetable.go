package schedule

import (
	"errors"
	"fmt"

	"github.com/verte-zerg/schooldash/internal/model"
)

var (
	// ErrInvalidIndex is returned when an edit names a period or slot that does not exist.
	ErrInvalidIndex = errors.New("invalid index")
	// ErrInvalidTable is returned when periods are unordered, overlapping or malformed.
	ErrInvalidTable = errors.New("invalid time table")
)

// ValidateTable checks that indices are positive and unique, every period ends after
// it starts, and periods are sorted by start without overlapping.
func ValidateTable(periods []model.Period) error {
	seen := make(map[int]struct{}, len(periods))
	for i, p := range periods {
		if p.Index <= 0 {
			return fmt.Errorf("%w: period index %d must be positive", ErrInvalidTable, p.Index)
		}
		if _, dup := seen[p.Index]; dup {
			return fmt.Errorf("%w: duplicate period %d", ErrInvalidTable, p.Index)
		}
		seen[p.Index] = struct{}{}
		if p.End <= p.Start {
			return fmt.Errorf("%w: period %d ends at %s, not after start %s", ErrInvalidTable, p.Index, p.End, p.Start)
		}
		// A period may start the minute the previous one ends.
		if i > 0 && p.Start < periods[i-1].End {
			return fmt.Errorf("%w: period %d starts at %s, before period %d ends", ErrInvalidTable, p.Index, p.Start, periods[i-1].Index)
		}
	}
	return nil
}

// PeriodEdit overwrites the start and/or end of one period. Nil fields keep the prior value.
type PeriodEdit struct {
	Index int
	Start *model.Clock
	End   *model.Clock
}

// UpdatePeriods applies edits by period index, last write wins, and validates the result.
// The slice passed in is not modified.
func UpdatePeriods(periods []model.Period, edits []PeriodEdit) ([]model.Period, error) {
	out := append([]model.Period(nil), periods...)
	pos := make(map[int]int, len(out))
	for i, p := range out {
		pos[p.Index] = i
	}
	for _, edit := range edits {
		i, ok := pos[edit.Index]
		if !ok {
			return nil, fmt.Errorf("%w: no period %d", ErrInvalidIndex, edit.Index)
		}
		if edit.Start != nil {
			out[i].Start = *edit.Start
		}
		if edit.End != nil {
			out[i].End = *edit.End
		}
	}
	if err := ValidateTable(out); err != nil {
		return nil, err
	}
	return out, nil
}

// AppendPeriod adds a period after the last one, numbered one past the highest index.
func AppendPeriod(periods []model.Period, start, end model.Clock) ([]model.Period, error) {
	next := 1
	for _, p := range periods {
		if p.Index >= next {
			next = p.Index + 1
		}
	}
	out := append(append([]model.Period(nil), periods...), model.Period{Index: next, Start: start, End: end})
	if err := ValidateTable(out); err != nil {
		return nil, err
	}
	return out, nil
}

// TrimLastPeriod removes the last period of the day.
func TrimLastPeriod(periods []model.Period) ([]model.Period, error) {
	if len(periods) == 0 {
		return nil, fmt.Errorf("%w: time table is empty", ErrInvalidIndex)
	}
	return append([]model.Period(nil), periods[:len(periods)-1]...), nil
}
