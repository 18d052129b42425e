// Package virtualfs keeps BASIC data files and ENVIRON variables in a
// sqlite database instead of the host file system.
package virtualfs

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/antibyte/retrobasic/pkg/logger"
	_ "modernc.org/sqlite"
)

func vfsDebugLog(format string, args ...interface{}) {
	logger.Debug(logger.AreaDatabase, "[VFS] "+format, args...)
}

// MaxFileSize limits a single stored file.
const MaxFileSize = 16 << 20

// Store is a sqlite-backed file and environment store.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures its tables exist.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps ":memory:" databases shared across statements
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	vfsDebugLog("opened %s", path)
	return s, nil
}

func (s *Store) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS files (
			name TEXT PRIMARY KEY,
			content BLOB,
			mod_time INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS env_vars (
			name TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func normalizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToUpper(strings.TrimSpace(name))
}

// Load returns the content of a stored file. A missing file is reported with
// an error wrapping fs.ErrNotExist.
func (s *Store) Load(name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := normalizeName(name)
	var content []byte
	err := s.db.QueryRow(`SELECT content FROM files WHERE name = ?`, key).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", key, fs.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	vfsDebugLog("Load %s: %d bytes", key, len(content))
	return content, nil
}

// Save stores data under name, replacing any previous content.
func (s *Store) Save(name string, data []byte) error {
	if len(data) > MaxFileSize {
		return fmt.Errorf("file %s exceeds %d bytes", name, MaxFileSize)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := normalizeName(name)
	if key == "" {
		return errors.New("invalid file name")
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO files (name, content, mod_time) VALUES (?, ?, ?)`,
		key, data, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	vfsDebugLog("Save %s: %d bytes", key, len(data))
	return nil
}

// Remove deletes a stored file.
func (s *Store) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM files WHERE name = ?`, normalizeName(name))
	return err
}

// List returns the stored file names in order.
func (s *Store) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`SELECT name FROM files ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// Getenv returns the value of an environment variable, "" when unset.
func (s *Store) Getenv(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var v string
	err := s.db.QueryRow(`SELECT value FROM env_vars WHERE name = ?`, strings.ToUpper(name)).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

// EnvEntry returns the n-th (1-based) "NAME=VALUE" pair in name order, ""
// past the end.
func (s *Store) EnvEntry(n int) (string, error) {
	if n < 1 {
		return "", nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var name, v string
	err := s.db.QueryRow(`SELECT name, value FROM env_vars ORDER BY name LIMIT 1 OFFSET ?`, n-1).Scan(&name, &v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return name + "=" + v, nil
}

// Setenv sets a variable; an empty value removes it.
func (s *Store) Setenv(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	name = strings.ToUpper(name)
	var err error
	if value == "" {
		_, err = s.db.Exec(`DELETE FROM env_vars WHERE name = ?`, name)
	} else {
		_, err = s.db.Exec(`INSERT OR REPLACE INTO env_vars (name, value) VALUES (?, ?)`, name, value)
	}
	if err == nil {
		vfsDebugLog("Setenv %s", name)
	}
	return err
}
