package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	defaultDirName  = ".camnotify"
	defaultFileName = "settings.sqlite"
)

// Sections maps section name to its key-value pairs.
type Sections map[string]map[string]string

// Get returns the value at section/key and whether it was present.
func (s Sections) Get(section, key string) (string, bool) {
	if s == nil {
		return "", false
	}
	kv, ok := s[section]
	if !ok {
		return "", false
	}
	val, ok := kv[key]
	return val, ok
}

// Set stores value at section/key, creating the section if needed.
func (s Sections) Set(section, key, value string) {
	kv, ok := s[section]
	if !ok {
		kv = make(map[string]string)
		s[section] = kv
	}
	kv[key] = value
}

// KV persists key-value sections. Load on a store that was never written
// returns empty sections and no error.
type KV interface {
	Load(ctx context.Context) (Sections, error)
	Save(ctx context.Context, sections Sections) error
	Path() string
	Close() error
}

// Open picks a backend from the file extension: .db, .sqlite and .sqlite3
// use SQLite, anything else a dotenv file.
func Open(path string) (KV, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("storage: settings path is empty")
	}
	if err := ensureDirExists(filepath.Dir(path)); err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return OpenSQLite(path)
	default:
		return NewDotEnv(path), nil
	}
}

// DefaultPath returns ~/.camnotify/settings.sqlite.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "storage: locate user home failed")
	}
	return filepath.Join(home, defaultDirName, defaultFileName), nil
}

func ensureDirExists(path string) error {
	if path == "" || path == "." {
		return nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return errors.Wrapf(err, "storage: create dir %s failed", path)
	}
	return nil
}
