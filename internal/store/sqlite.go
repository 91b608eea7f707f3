// Package store provides SQLite-based persistence for ure.
// It manages the operation log, saved profiles, and cached previews.
package store

import (
	"database/sql"
	"time"

	"gitlab.com/tozd/go/errors"
	_ "modernc.org/sqlite"
)

// DefaultRetentionLimit is the number of log entries kept when none is configured
const DefaultRetentionLimit = 5

// Store represents the SQLite database store
type Store struct {
	db        *sql.DB
	retention int
}

// New creates a new store connection
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Errorf("failed to open database: %w", err)
	}

	return NewFromDB(db), nil
}

// Open opens the store at dbPath and brings its schema up to date
func Open(dbPath string) (*Store, error) {
	s, err := New(dbPath)
	if err != nil {
		return nil, err
	}
	if err := s.RunMigrations(); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.Initialize(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// NewFromDB wraps an existing connection
func NewFromDB(db *sql.DB) *Store {
	return &Store{db: db, retention: DefaultRetentionLimit}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SetRetentionLimit sets how many log entries are kept. Zero or less keeps everything.
func (s *Store) SetRetentionLimit(n int) {
	s.retention = n
}

// RetentionLimit returns the configured retention limit
func (s *Store) RetentionLimit() int {
	return s.retention
}

// Initialize creates the database schema
func (s *Store) Initialize() error {
	schema := `
	-- Operation log (append-only, bounded by retention)
	CREATE TABLE IF NOT EXISTS operation_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		actor_id TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		operation_type TEXT NOT NULL,
		run_id TEXT,
		original_entry_id INTEGER,
		search_spec JSON,
		changes JSON NOT NULL,
		modified_record_count INTEGER NOT NULL DEFAULT 0,
		total_matches INTEGER NOT NULL DEFAULT 0
	);

	-- Saved search profiles
	CREATE TABLE IF NOT EXISTS profiles (
		actor_id TEXT NOT NULL,
		name TEXT NOT NULL,
		spec JSON NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (actor_id, name)
	);

	-- Key-value settings and cached previews
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT
	);

	-- ure schema version tracking
	CREATE TABLE IF NOT EXISTS ure_schema_version (
		version INTEGER PRIMARY KEY
	);

	-- Indexes
	CREATE INDEX IF NOT EXISTS idx_operation_log_type ON operation_log(operation_type);
	CREATE INDEX IF NOT EXISTS idx_operation_log_original ON operation_log(original_entry_id);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return errors.Errorf("failed to create schema: %w", err)
	}

	// Mark as current schema version
	_, err = s.db.Exec("INSERT OR REPLACE INTO ure_schema_version (version) VALUES (?)", currentSchemaVersion)
	if err != nil {
		return errors.Errorf("failed to set schema version: %w", err)
	}

	return nil
}

// DB returns the underlying database connection for advanced queries
func (s *Store) DB() *sql.DB {
	return s.db
}

// GetValue gets a value from the key-value store
func (s *Store) GetValue(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetValue sets a value in the key-value store
func (s *Store) SetValue(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = ?",
		key, value, value,
	)
	return err
}

// DeleteValue removes a key from the key-value store
func (s *Store) DeleteValue(key string) error {
	_, err := s.db.Exec("DELETE FROM kv WHERE key = ?", key)
	return err
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTimestamp parses a timestamp string from SQLite in various formats
func parseTimestamp(s string) time.Time {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05-07:00",
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
