package app

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/schooldash/internal/countdown"
	"github.com/verte-zerg/schooldash/internal/model"
	"github.com/verte-zerg/schooldash/internal/remote"
	"github.com/verte-zerg/schooldash/internal/schedule"
)

// AdminSession edits a draft of the admin dataset. Nothing is visible to the
// dashboard until Save.
type AdminSession struct {
	d     *Dashboard
	draft model.AdminDataset
}

// UnlockAdmin checks pin and opens an editing session on the active dataset.
func (d *Dashboard) UnlockAdmin(pin string) (*AdminSession, error) {
	if subtle.ConstantTimeCompare([]byte(pin), []byte(d.deps.AdminPIN)) != 1 {
		d.log.Warn("admin unlock rejected")
		return nil, ErrAdminDenied
	}
	return &AdminSession{d: d, draft: d.admin.Clone()}, nil
}

// Dataset returns a copy of the draft.
func (s *AdminSession) Dataset() model.AdminDataset { return s.draft.Clone() }

// SetPeriod changes the start and/or end of one period. Nil leaves a bound as is.
func (s *AdminSession) SetPeriod(index int, start, end *model.Clock) error {
	return s.SetPeriods([]schedule.PeriodEdit{{Index: index, Start: start, End: end}})
}

// SetPeriods applies sparse period edits. On error the draft is unchanged.
func (s *AdminSession) SetPeriods(edits []schedule.PeriodEdit) error {
	periods, err := schedule.UpdatePeriods(s.draft.Periods, edits)
	if err != nil {
		return err
	}
	s.draft.Periods = periods
	return nil
}

// AddPeriod appends a period at the end of the day.
func (s *AdminSession) AddPeriod(start, end model.Clock) (model.Period, error) {
	periods, err := schedule.AppendPeriod(s.draft.Periods, start, end)
	if err != nil {
		return model.Period{}, err
	}
	s.draft.Periods = periods
	return periods[len(periods)-1], nil
}

// RemoveLastPeriod drops the last period of the day. Subjects stored for that
// slot are cleared so the grid stays within the time table.
func (s *AdminSession) RemoveLastPeriod() error {
	periods, err := schedule.TrimLastPeriod(s.draft.Periods)
	if err != nil {
		return err
	}
	grid := s.draft.Schedule.Clone()
	for _, days := range grid {
		for day, subjects := range days {
			if len(subjects) > len(periods) {
				days[day] = subjects[:len(periods)]
			}
		}
	}
	s.draft.Periods = periods
	s.draft.Schedule = grid
	return nil
}

// SetSubjects overwrites the zero-based slots in edits for one class and day.
func (s *AdminSession) SetSubjects(class model.ClassID, day model.Weekday, edits map[int]string) error {
	if !s.d.hasClass(class) {
		return fmt.Errorf("%w: %s", ErrUnknownClass, class)
	}
	grid, err := schedule.SetDaySubjects(s.draft.Schedule, class, day, edits, len(s.draft.Periods))
	if err != nil {
		return err
	}
	s.draft.Schedule = grid
	return nil
}

// ClearDay removes every subject of one class and day.
func (s *AdminSession) ClearDay(class model.ClassID, day model.Weekday) error {
	if !s.d.hasClass(class) {
		return fmt.Errorf("%w: %s", ErrUnknownClass, class)
	}
	s.draft.Schedule = schedule.ClearDay(s.draft.Schedule, class, day)
	return nil
}

// AddTest registers a test.
func (s *AdminSession) AddTest(name string, date model.Date) (model.Test, error) {
	tests, test, err := countdown.Add(s.draft.Tests, name, date)
	if err != nil {
		return model.Test{}, err
	}
	s.draft.Tests = tests
	return test, nil
}

// RemoveTest deletes tests matching key by id or name.
func (s *AdminSession) RemoveTest(key string) error {
	tests, err := countdown.Remove(s.draft.Tests, key)
	if err != nil {
		return err
	}
	s.draft.Tests = tests
	return nil
}

// PruneTests drops tests dated before today in the school's time zone.
func (s *AdminSession) PruneTests(now time.Time) int {
	tests, n := countdown.Prune(s.draft.Tests, now.In(s.d.loc))
	s.draft.Tests = tests
	return n
}

// Save bumps the version, applies the draft and writes it to the local backup
// as unpushed. With push set it then saves the remote copy and marks the
// backup synced. A failed push keeps the edit applied and unpushed, so a later
// session opens on it and can push again.
func (s *AdminSession) Save(ctx context.Context, push bool) error {
	next := s.draft.Clone()
	next.Version++
	if err := schedule.ValidateDataset(next); err != nil {
		return fmt.Errorf("failed to validate admin data: %w", err)
	}
	s.draft = next
	s.d.ApplyAdmin(next, SourcePending)

	if err := s.d.deps.Backup.SaveAdminBackup(ctx, next, model.BackupPending); err != nil {
		s.d.log.Error("failed to save admin backup", zap.Error(err))
		return fmt.Errorf("failed to save admin backup: %w", err)
	}
	if !push {
		return nil
	}
	if s.d.deps.Remote == nil {
		return remote.ErrNotConfigured
	}
	rev, err := s.d.deps.Remote.Save(ctx, next)
	if err != nil {
		s.d.log.Warn("remote admin save failed", zap.Int("version", next.Version), zap.Error(err))
		return fmt.Errorf("failed to save remote admin data: %w", err)
	}
	s.draft.Revision = rev
	s.d.ApplyAdmin(s.draft, SourceRemote)
	if err := s.d.deps.Backup.SaveAdminBackup(ctx, s.draft, model.BackupSynced); err != nil {
		s.d.log.Warn("failed to record remote revision in backup", zap.Error(err))
	}
	s.d.log.Info("admin data saved", zap.Int("version", next.Version), zap.String("revision", rev))
	return nil
}
