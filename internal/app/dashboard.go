// Package app owns the dashboard state and the commands that change it.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/schooldash/internal/dashboard"
	"github.com/verte-zerg/schooldash/internal/model"
	"github.com/verte-zerg/schooldash/internal/remote"
	"github.com/verte-zerg/schooldash/internal/schedule"
	"github.com/verte-zerg/schooldash/internal/todo"
)

var (
	// ErrUnknownClass is returned when selecting a class that is not on the roster.
	ErrUnknownClass = errors.New("unknown class")
	// ErrAdminDenied is returned for a wrong admin PIN.
	ErrAdminDenied = errors.New("admin access denied")
)

// UserStore persists the per-user dataset.
type UserStore interface {
	LoadUser(ctx context.Context) (model.UserDataset, error)
	SaveUser(ctx context.Context, user model.UserDataset) error
}

// AdminBackup keeps a local copy of the last known admin dataset, and of admin
// edits that were not pushed yet.
type AdminBackup interface {
	LoadAdminBackup(ctx context.Context) (model.AdminDataset, model.BackupState, error)
	SaveAdminBackup(ctx context.Context, ds model.AdminDataset, state model.BackupState) error
}

// RemoteDatasetStore is the shared copy of the admin dataset.
type RemoteDatasetStore interface {
	Load(ctx context.Context) (model.AdminDataset, error)
	Save(ctx context.Context, ds model.AdminDataset) (string, error)
}

// Source tells where the active admin dataset came from.
type Source int

const (
	SourceDefault Source = iota
	SourceLocal
	SourceRemote
	// SourcePending is a local backup holding admin edits not pushed yet.
	SourcePending
)

func (s Source) String() string {
	switch s {
	case SourceRemote:
		return "remote"
	case SourceLocal:
		return "local backup"
	case SourcePending:
		return "unpushed local edits"
	default:
		return "defaults"
	}
}

// Deps wires a Dashboard. Remote may be nil when no shared dataset is configured.
type Deps struct {
	Users    UserStore
	Backup   AdminBackup
	Remote   RemoteDatasetStore
	Classes  []model.ClassID
	Days     schedule.DayRule
	AdminPIN string
	Location *time.Location
	Log      *zap.Logger
}

// Dashboard holds the active admin and user datasets. It is not safe for
// concurrent use; the TUI drives it from its update loop only.
type Dashboard struct {
	deps   Deps
	log    *zap.Logger
	loc    *time.Location
	admin  model.AdminDataset
	source Source
	user   model.UserDataset
}

// New returns a dashboard running on the default admin dataset and an empty user dataset.
func New(deps Deps) *Dashboard {
	d := &Dashboard{
		deps:  deps,
		log:   deps.Log,
		loc:   deps.Location,
		admin: model.DefaultAdminDataset(),
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}
	if d.loc == nil {
		d.loc = time.Local
	}
	return d
}

// Start loads the user dataset and the admin dataset. It only fails when the
// context is cancelled; every storage or network failure degrades to defaults.
func (d *Dashboard) Start(ctx context.Context) error {
	d.LoadUser(ctx)
	ds, src, err := d.FetchAdmin(ctx)
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	if err != nil {
		d.log.Info("using fallback admin data", zap.Stringer("source", src))
	}
	d.ApplyAdmin(ds, src)
	return nil
}

// LoadUser loads the user dataset. A storage failure leaves an empty dataset.
func (d *Dashboard) LoadUser(ctx context.Context) {
	user, err := d.deps.Users.LoadUser(ctx)
	if err != nil {
		d.log.Warn("failed to load user data, starting empty", zap.Error(err))
		user = model.UserDataset{}
	}
	if user.ClassID != "" && !d.hasClass(user.ClassID) {
		d.log.Warn("stored class is not on the roster", zap.String("class", string(user.ClassID)))
		user.ClassID = ""
	}
	d.user = user
}

// FetchAdmin picks the admin dataset to run on. Unpushed local edits win;
// otherwise the remote copy is loaded, then the local backup, then the
// defaults. The returned error is the remote failure, if any, and is
// informational: the dataset is always usable. A remote load refreshes the
// backup but never overwrites unpushed edits. FetchAdmin does not touch the
// dashboard's state, so it can run off the UI loop.
func (d *Dashboard) FetchAdmin(ctx context.Context) (model.AdminDataset, Source, error) {
	backup, state := d.loadBackup(ctx)
	if state == model.BackupPending {
		return backup, SourcePending, nil
	}

	var remoteErr error
	if d.deps.Remote != nil {
		ds, err := d.deps.Remote.Load(ctx)
		if err == nil {
			if state != model.BackupSynced || backup.Revision != ds.Revision {
				if berr := d.deps.Backup.SaveAdminBackup(ctx, ds, model.BackupSynced); berr != nil {
					d.log.Warn("failed to refresh admin backup", zap.Error(berr))
				}
			}
			return ds, SourceRemote, nil
		}
		d.log.Warn("remote admin data unavailable", zap.Error(err))
		remoteErr = err
	}

	if state == model.BackupSynced {
		return backup, SourceLocal, remoteErr
	}
	return model.DefaultAdminDataset(), SourceDefault, remoteErr
}

// LoadBackup applies the local backup without touching the network, so a
// dashboard can show the last known data while the remote load runs. It
// reports SourceDefault and changes nothing when no usable backup exists.
func (d *Dashboard) LoadBackup(ctx context.Context) Source {
	ds, state := d.loadBackup(ctx)
	switch state {
	case model.BackupPending:
		d.ApplyAdmin(ds, SourcePending)
		return SourcePending
	case model.BackupSynced:
		d.ApplyAdmin(ds, SourceLocal)
		return SourceLocal
	}
	return SourceDefault
}

// loadBackup returns the newest backup. Unreadable or invalid backups count as missing.
func (d *Dashboard) loadBackup(ctx context.Context) (model.AdminDataset, model.BackupState) {
	ds, state, err := d.deps.Backup.LoadAdminBackup(ctx)
	if err != nil {
		d.log.Warn("failed to load admin backup", zap.Error(err))
		return model.AdminDataset{}, model.BackupMissing
	}
	if state == model.BackupMissing {
		return model.AdminDataset{}, model.BackupMissing
	}
	if verr := schedule.ValidateDataset(ds); verr != nil {
		d.log.Warn("admin backup is invalid", zap.Error(verr))
		return model.AdminDataset{}, model.BackupMissing
	}
	return ds, state
}

// ApplyAdmin makes ds the active admin dataset.
func (d *Dashboard) ApplyAdmin(ds model.AdminDataset, src Source) {
	d.admin = ds.Clone()
	d.source = src
}

// Pull replaces the active dataset and the local backup with the remote copy,
// discarding unpushed edits.
func (d *Dashboard) Pull(ctx context.Context) error {
	if d.deps.Remote == nil {
		return remote.ErrNotConfigured
	}
	ds, err := d.deps.Remote.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load remote admin data: %w", err)
	}
	if err := d.deps.Backup.SaveAdminBackup(ctx, ds, model.BackupSynced); err != nil {
		return fmt.Errorf("failed to save admin backup: %w", err)
	}
	d.ApplyAdmin(ds, SourceRemote)
	return nil
}

// Admin returns a copy of the active admin dataset.
func (d *Dashboard) Admin() model.AdminDataset { return d.admin.Clone() }

// Source reports where the active admin dataset came from.
func (d *Dashboard) Source() Source { return d.source }

// User returns a copy of the user dataset.
func (d *Dashboard) User() model.UserDataset { return d.user.Clone() }

// Classes returns the roster.
func (d *Dashboard) Classes() []model.ClassID {
	return append([]model.ClassID(nil), d.deps.Classes...)
}

// Days returns the school-day rule.
func (d *Dashboard) Days() schedule.DayRule { return d.deps.Days }

// Location is the school's time zone.
func (d *Dashboard) Location() *time.Location { return d.loc }

// Snapshot builds the dashboard view at now, in the school's time zone.
func (d *Dashboard) Snapshot(now time.Time) dashboard.Snapshot {
	return dashboard.Build(now.In(d.loc), d.admin, d.user, d.deps.Days)
}

// SelectClass sets and persists the user's class.
func (d *Dashboard) SelectClass(ctx context.Context, id model.ClassID) error {
	if !d.hasClass(id) {
		return fmt.Errorf("%w: %s", ErrUnknownClass, id)
	}
	d.user.ClassID = id
	return d.saveUser(ctx)
}

// NextClass returns the roster entry after the selected class, wrapping around.
func (d *Dashboard) NextClass() (model.ClassID, bool) {
	classes := d.deps.Classes
	if len(classes) == 0 {
		return "", false
	}
	for i, c := range classes {
		if c == d.user.ClassID {
			return classes[(i+1)%len(classes)], true
		}
	}
	return classes[0], true
}

// AddTodo appends a task and persists. Blank text is ignored and reported as false.
func (d *Dashboard) AddTodo(ctx context.Context, text string) (bool, error) {
	list := todo.List(d.user.Todos)
	if !list.Add(text) {
		return false, nil
	}
	d.user.Todos = list
	return true, d.saveUser(ctx)
}

// ToggleTodo flips the task at i and persists.
func (d *Dashboard) ToggleTodo(ctx context.Context, i int) error {
	if err := todo.List(d.user.Todos).Toggle(i); err != nil {
		return err
	}
	return d.saveUser(ctx)
}

// RemoveTodo deletes the task at i and persists.
func (d *Dashboard) RemoveTodo(ctx context.Context, i int) error {
	list := todo.List(d.user.Todos)
	if err := list.Remove(i); err != nil {
		return err
	}
	d.user.Todos = list
	return d.saveUser(ctx)
}

func (d *Dashboard) saveUser(ctx context.Context) error {
	if err := d.deps.Users.SaveUser(ctx, d.user.Clone()); err != nil {
		d.log.Error("failed to save user data", zap.Error(err))
		return fmt.Errorf("failed to save user data: %w", err)
	}
	return nil
}

func (d *Dashboard) hasClass(id model.ClassID) bool {
	for _, c := range d.deps.Classes {
		if c == id {
			return true
		}
	}
	return false
}
