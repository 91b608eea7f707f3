package store

import (
	"database/sql"

	"gitlab.com/tozd/go/errors"
)

const currentSchemaVersion = 2

// RunMigrations applies any pending database migrations
func (s *Store) RunMigrations() error {
	version, err := s.getSchemaVersion()
	if err != nil {
		return err
	}

	if version < 2 {
		if err := s.migrateToV2(); err != nil {
			return errors.Errorf("migration to v2 failed: %w", err)
		}
	}

	return nil
}

// getSchemaVersion returns the current schema version, 1 if not set
func (s *Store) getSchemaVersion() (int, error) {
	// Check if version table exists
	var tableName string
	err := s.db.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='ure_schema_version'
	`).Scan(&tableName)

	if err == sql.ErrNoRows {
		// Table doesn't exist, this is v1
		return 1, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = s.db.QueryRow("SELECT COALESCE(MAX(version), 1) FROM ure_schema_version").Scan(&version)
	if err != nil {
		return 1, nil
	}

	return version, nil
}

// migrateToV2 adds run ids and rollback references to the log, plus profiles
func (s *Store) migrateToV2() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS ure_schema_version (
			version INTEGER PRIMARY KEY
		)`,

		`CREATE TABLE IF NOT EXISTS profiles (
			actor_id TEXT NOT NULL,
			name TEXT NOT NULL,
			spec JSON NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (actor_id, name)
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	// A fresh database has no log yet; Initialize creates it in its current shape
	if s.tableExists("operation_log") {
		// SQLite doesn't have IF NOT EXISTS for ALTER TABLE, so we check first
		if !s.columnExists("operation_log", "run_id") {
			if _, err := s.db.Exec(`ALTER TABLE operation_log ADD COLUMN run_id TEXT`); err != nil {
				return err
			}
		}
		if !s.columnExists("operation_log", "original_entry_id") {
			if _, err := s.db.Exec(`ALTER TABLE operation_log ADD COLUMN original_entry_id INTEGER`); err != nil {
				return err
			}
		}
		if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_operation_log_original ON operation_log(original_entry_id)`); err != nil {
			return err
		}
	}

	// Record migration version
	_, err := s.db.Exec("INSERT OR REPLACE INTO ure_schema_version (version) VALUES (?)", 2)
	return err
}

// tableExists checks if a table exists
func (s *Store) tableExists(table string) bool {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name = ?`, table).Scan(&count)
	return err == nil && count > 0
}

// columnExists checks if a column exists in a table
func (s *Store) columnExists(table, column string) bool {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM pragma_table_info(?)
		WHERE name = ?
	`, table, column).Scan(&count)
	return err == nil && count > 0
}
