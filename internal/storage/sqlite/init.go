package sqlite

import (
	"database/sql"
	"fmt"

	// Import the SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

// InitDB opens the SQLite database at path and creates the patch_runs table
// if it doesn't exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS patch_runs (
		id INTEGER PRIMARY KEY,
		run_id TEXT UNIQUE NOT NULL,
		group_labels TEXT,
		status TEXT NOT NULL,
		total_bytes INTEGER DEFAULT 0,
		downloaded_bytes INTEGER DEFAULT 0,
		percent INTEGER DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		finished_at TEXT
	)`)
	if err != nil {
		db.Close()

		return nil, fmt.Errorf("failed to create patch_runs table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_patch_runs_finished_at ON patch_runs (finished_at)`)
	if err != nil {
		db.Close()

		return nil, fmt.Errorf("failed to create patch_runs index: %w", err)
	}

	return db, nil
}
