// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/verte-zerg/schooldash/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// adminHistory is the number of admin dataset backups kept.
const adminHistory = 20

// Store wraps SQLite access for the user dataset, admin backups and OAuth tokens.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection serializes writers from the UI loop and background loads.
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS user_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			class_id TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS todos (
			position INTEGER PRIMARY KEY,
			text TEXT NOT NULL,
			done INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS admin_backups (
			id INTEGER PRIMARY KEY,
			saved_at TEXT NOT NULL,
			version INTEGER NOT NULL,
			revision TEXT NOT NULL,
			pending INTEGER NOT NULL DEFAULT 0,
			payload TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS oauth_tokens (
			provider TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// LoadUser returns the saved user dataset, or an empty one if nothing was saved yet.
func (s *Store) LoadUser(ctx context.Context) (model.UserDataset, error) {
	var user model.UserDataset
	var classID string
	err := s.db.QueryRowContext(ctx, `SELECT class_id FROM user_state WHERE id = 1`).Scan(&classID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return model.UserDataset{}, err
	default:
		user.ClassID = model.ClassID(classID)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT text, done FROM todos ORDER BY position ASC`)
	if err != nil {
		return model.UserDataset{}, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()
	for rows.Next() {
		var item model.Todo
		if err := rows.Scan(&item.Text, &item.Done); err != nil {
			return model.UserDataset{}, err
		}
		user.Todos = append(user.Todos, item)
	}
	if err := rows.Err(); err != nil {
		return model.UserDataset{}, err
	}
	return user, nil
}

// SaveUser replaces the stored user dataset in one transaction.
func (s *Store) SaveUser(ctx context.Context, user model.UserDataset) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO user_state (id, class_id, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET class_id = excluded.class_id, updated_at = excluded.updated_at`,
		string(user.ClassID), time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM todos`); err != nil {
		return err
	}
	if len(user.Todos) > 0 {
		stmt, perr := tx.PrepareContext(ctx, `INSERT INTO todos (position, text, done) VALUES (?, ?, ?)`)
		if perr != nil {
			err = perr
			return err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for i, item := range user.Todos {
			if _, err = stmt.ExecContext(ctx, i, item.Text, item.Done); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// LoadAdminBackup returns the most recent admin dataset backup and whether it
// still waits to be pushed. The state is BackupMissing when none exists.
func (s *Store) LoadAdminBackup(ctx context.Context) (ds model.AdminDataset, state model.BackupState, err error) {
	var payload, revision string
	var pending bool
	err = s.db.QueryRowContext(ctx,
		`SELECT payload, revision, pending FROM admin_backups ORDER BY id DESC LIMIT 1`,
	).Scan(&payload, &revision, &pending)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AdminDataset{}, model.BackupMissing, nil
	}
	if err != nil {
		return model.AdminDataset{}, model.BackupMissing, err
	}
	if err := json.Unmarshal([]byte(payload), &ds); err != nil {
		return model.AdminDataset{}, model.BackupMissing, fmt.Errorf("failed to decode admin backup: %w", err)
	}
	ds.Revision = revision
	state = model.BackupSynced
	if pending {
		state = model.BackupPending
	}
	return ds, state, nil
}

// SaveAdminBackup stores a new admin dataset backup and trims old ones.
func (s *Store) SaveAdminBackup(ctx context.Context, ds model.AdminDataset, state model.BackupState) error {
	payload, err := json.Marshal(ds)
	if err != nil {
		return fmt.Errorf("failed to encode admin backup: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO admin_backups (saved_at, version, revision, pending, payload) VALUES (?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano), ds.Version, ds.Revision, state == model.BackupPending, string(payload),
	); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM admin_backups WHERE id NOT IN (SELECT id FROM admin_backups ORDER BY id DESC LIMIT ?)`,
		adminHistory,
	)
	return err
}

// BackupInfo describes one stored admin backup.
type BackupInfo struct {
	ID       int64
	SavedAt  time.Time
	Version  int
	Revision string
	Pending  bool
}

// ListAdminBackups returns stored backups, newest first.
func (s *Store) ListAdminBackups(ctx context.Context) ([]BackupInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, saved_at, version, revision, pending FROM admin_backups ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()
	var out []BackupInfo
	for rows.Next() {
		var info BackupInfo
		var savedAt string
		if err := rows.Scan(&info.ID, &savedAt, &info.Version, &info.Revision, &info.Pending); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, savedAt)
		if err != nil {
			return nil, err
		}
		info.SavedAt = parsed
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadToken returns the raw token payload stored for provider. ok is false when none is stored.
func (s *Store) LoadToken(ctx context.Context, provider string) (payload []byte, ok bool, err error) {
	var raw string
	err = s.db.QueryRowContext(ctx, `SELECT payload FROM oauth_tokens WHERE provider = ?`, provider).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(raw), true, nil
}

// SaveToken stores the token payload for provider, replacing any previous one.
func (s *Store) SaveToken(ctx context.Context, provider string, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO oauth_tokens (provider, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(provider) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		provider, string(payload), time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// DeleteToken removes the token stored for provider.
func (s *Store) DeleteToken(ctx context.Context, provider string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM oauth_tokens WHERE provider = ?`, provider)
	return err
}
