// Package db owns the SQLite connection used for the run-history
// archive.
package db

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

var (
	db   *sql.DB
	once sync.Once
)

// InitDB initializes the SQLite database connection and runs schema migrations.
func InitDB(dbPath string) (*sql.DB, error) {
	var initErr error
	once.Do(func() {
		var err error
		db, err = sql.Open("sqlite3", dbPath)
		if err != nil {
			initErr = fmt.Errorf("failed to open database: %w", err)
			return
		}

		// Enable WAL mode for better concurrent access
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			initErr = fmt.Errorf("failed to enable WAL mode: %w", err)
			return
		}

		if err := runMigrations(db); err != nil {
			initErr = fmt.Errorf("failed to run migrations: %w", err)
			return
		}
	})

	if initErr != nil {
		return nil, initErr
	}
	return db, nil
}

// GetDB returns the initialized database connection.
func GetDB() *sql.DB {
	return db
}

// runMigrations executes the database schema migrations.
func runMigrations(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS executions (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		language TEXT NOT NULL,
		stdout TEXT NOT NULL DEFAULT '',
		stderr TEXT NOT NULL DEFAULT '',
		compile_output TEXT NOT NULL DEFAULT '',
		run_time TEXT,
		memory INTEGER,
		status_id INTEGER NOT NULL,
		status_description TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_executions_session_id ON executions(session_id);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// CloseDB closes the database connection.
func CloseDB() error {
	if db != nil {
		return db.Close()
	}
	return nil
}

// ResetDB resets the singleton for testing purposes.
func ResetDB() {
	if db != nil {
		db.Close()
	}
	once = sync.Once{}
	db = nil
}

// NewTestDB creates a new in-memory database for testing.
// This bypasses the singleton pattern and creates a fresh database each time.
func NewTestDB() (*sql.DB, error) {
	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open test database: %w", err)
	}

	if err := runMigrations(testDB); err != nil {
		testDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return testDB, nil
}
