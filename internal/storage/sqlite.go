package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const settingsTable = "settings"

// SQLiteKV keeps sections in a single settings table keyed by (section, key).
type SQLiteKV struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteKV, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "storage: open sqlite database failed")
	}
	if err := configureSQLite(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := prepareSettingsSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteKV{db: db, path: path}, nil
}

func configureSQLite(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return errors.Wrapf(err, "storage: execute %s failed", pragma)
		}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return nil
}

func prepareSettingsSchema(db *sql.DB) error {
	const ddl = `CREATE TABLE IF NOT EXISTS ` + settingsTable + ` (
		section TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (section, key)
	)`
	if _, err := db.Exec(ddl); err != nil {
		return errors.Wrap(err, "storage: create settings table failed")
	}
	return nil
}

// Path returns the database file.
func (s *SQLiteKV) Path() string { return s.path }

// Load reads every stored section.
func (s *SQLiteKV) Load(ctx context.Context) (Sections, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT section, key, value FROM `+settingsTable)
	if err != nil {
		return nil, errors.Wrap(err, "storage: query settings failed")
	}
	defer rows.Close()

	out := make(Sections)
	for rows.Next() {
		var section, key, value string
		if err := rows.Scan(&section, &key, &value); err != nil {
			return nil, errors.Wrap(err, "storage: scan settings row failed")
		}
		out.Set(section, key, value)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "storage: iterate settings failed")
	}
	return out, nil
}

// Save upserts every key in sections inside one transaction. Keys absent from
// sections are left untouched.
func (s *SQLiteKV) Save(ctx context.Context, sections Sections) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "storage: begin settings tx failed")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+settingsTable+` (section, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(section, key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`)
	if err != nil {
		return errors.Wrap(err, "storage: prepare settings upsert failed")
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	count := 0
	for section, kv := range sections {
		for key, value := range kv {
			if _, err := stmt.ExecContext(ctx, section, key, value, now); err != nil {
				return errors.Wrapf(err, "storage: upsert %s.%s failed", section, key)
			}
			count++
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "storage: commit settings failed")
	}
	log.Debug().Str("path", s.path).Int("keys", count).Msg("settings saved to sqlite")
	return nil
}

// Close releases the database handle.
func (s *SQLiteKV) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
