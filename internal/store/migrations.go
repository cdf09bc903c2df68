package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// DBSchemaVersion is the current database schema version.
// Bump this when adding migrations that change the schema.
const DBSchemaVersion = 2

// downMigrations maps a version to the SQL needed to reverse it.
// Version N's entry contains statements that undo the changes introduced
// when migrating from N-1 to N.
var downMigrations = map[int][]string{
	// Version 1 is the baseline schema; nothing to reverse.
	2: {"ALTER TABLE issues DROP COLUMN time_spent"},
}

// alterColumn runs an ALTER TABLE ADD COLUMN and silently ignores
// "duplicate column name" errors, making the migration idempotent.
func alterColumn(db *sql.DB, stmt string) error {
	_, err := db.Exec(stmt)
	if err != nil && strings.Contains(err.Error(), "duplicate column name") {
		return nil
	}
	return err
}

// migrations is an ordered list of SQL statements applied to the database.
// Each statement is idempotent (uses IF NOT EXISTS where possible).
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS generation (
		id           TEXT PRIMARY KEY,
		generated_at TEXT NOT NULL,
		source       TEXT NOT NULL DEFAULT '',
		issue_count  INTEGER NOT NULL,
		epic_count   INTEGER NOT NULL,
		exported_at  TEXT NOT NULL DEFAULT (datetime('now'))
	)`,

	`CREATE TABLE IF NOT EXISTS epics (
		epic_key  TEXT PRIMARY KEY,
		epic_name TEXT NOT NULL,
		project   TEXT NOT NULL,
		kind      TEXT NOT NULL,
		position  INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS issues (
		issue_key      TEXT PRIMARY KEY,
		position       INTEGER NOT NULL,
		summary        TEXT NOT NULL DEFAULT '',
		issue_type     TEXT NOT NULL DEFAULT '',
		priority       TEXT NOT NULL DEFAULT '',
		status         TEXT NOT NULL DEFAULT '',
		assignee       TEXT NOT NULL DEFAULT '',
		sprint         TEXT NOT NULL DEFAULT '',
		sprint_no      INTEGER,
		project        TEXT NOT NULL DEFAULT '',
		epic_key       TEXT NOT NULL REFERENCES epics(epic_key),
		created        TEXT,
		resolved       TEXT,
		lead_time_days REAL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_issues_type ON issues(issue_type)`,
	`CREATE INDEX IF NOT EXISTS idx_issues_epic ON issues(epic_key, position)`,
	`CREATE INDEX IF NOT EXISTS idx_issues_sprint ON issues(sprint_no, sprint)`,

	`CREATE TABLE IF NOT EXISTS metrics (
		name  TEXT PRIMARY KEY,
		value REAL,
		state TEXT NOT NULL
	)`,
}

// alterMigrations are ALTER TABLE statements that are run after the main
// CREATE TABLE migrations. They use alterColumn to be idempotent.
var alterMigrations = []string{
	`ALTER TABLE issues ADD COLUMN time_spent REAL`,
}

// OpenRawDB opens a SQLite database without running migrations or
// checking the schema version. Used by the db tools.
func OpenRawDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	return db, nil
}

// ReadDBVersion returns the current schema version from the database.
func ReadDBVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// DowngradeDB downgrades the database from its current version to the
// target version, running any reverse migrations along the way.
func DowngradeDB(db *sql.DB, current, target int) error {
	if target >= current {
		return fmt.Errorf("target version %d must be less than current version %d", target, current)
	}
	if target < 0 {
		return fmt.Errorf("target version must be >= 0")
	}

	for v := current; v > target; v-- {
		if stmts, ok := downMigrations[v]; ok {
			for _, stmt := range stmts {
				if _, err := db.Exec(stmt); err != nil {
					return fmt.Errorf("down migration v%d: %w", v, err)
				}
			}
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", target)); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

// runMigrations applies all migration statements in order.
// It refuses to touch a database created by a newer binary.
func runMigrations(db *sql.DB) error {
	var dbVersion int
	if err := db.QueryRow("PRAGMA user_version").Scan(&dbVersion); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if dbVersion > DBSchemaVersion {
		return fmt.Errorf(
			"database schema version %d is newer than this binary supports (max %d); upgrade the binary or use a different database",
			dbVersion, DBSchemaVersion)
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	for _, m := range alterMigrations {
		if err := alterColumn(db, m); err != nil {
			return err
		}
	}

	if dbVersion < DBSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", DBSchemaVersion)); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
	}

	return nil
}
