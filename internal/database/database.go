package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the embedded SQLite connection.
type DB struct {
	*sql.DB
}

// New opens (or creates) the SQLite database at path.
// Use ":memory:" for an ephemeral store in tests.
func New(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows exactly one writer; serialize access through a single
	// connection so concurrent harvesters queue instead of failing with
	// SQLITE_BUSY mid-transaction.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(1 * time.Minute)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("✅ SQLite database opened: %s", path)

	return &DB{db}, nil
}

// Initialize creates all required tables and indexes.
func (db *DB) Initialize() error {
	log.Println("🔍 Checking database schema...")

	schema := []string{
		`CREATE TABLE IF NOT EXISTS harvested_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_type TEXT NOT NULL,
			harvester_name TEXT NOT NULL,
			raw_payload TEXT NOT NULL,
			analyzed_payload TEXT NOT NULL DEFAULT '',
			quality_score REAL NOT NULL,
			source_url TEXT NOT NULL DEFAULT '',
			harvested_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL,
			UNIQUE(source_type, source_url, harvested_at)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_type_time
			ON harvested_records(source_type, harvested_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_records_quality
			ON harvested_records(quality_score DESC)`,
		`CREATE TABLE IF NOT EXISTS harvest_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			harvester_name TEXT NOT NULL,
			status TEXT NOT NULL,
			record_count INTEGER NOT NULL,
			execution_time_ms INTEGER NOT NULL,
			error_message TEXT NOT NULL DEFAULT '',
			timestamp INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_harvester_time
			ON harvest_logs(harvester_name, timestamp DESC)`,
		`CREATE TABLE IF NOT EXISTS agent_metrics (
			agent_id TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			quality_score REAL NOT NULL,
			quality_improvement REAL NOT NULL DEFAULT 0,
			training_run_id TEXT NOT NULL DEFAULT '',
			trained INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (agent_id, timestamp)
		)`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	log.Println("✅ Database initialized successfully")
	return nil
}

// Vacuum reclaims space after large deletions. Maintenance only, never on
// the request path.
func (db *DB) Vacuum() error {
	_, err := db.Exec("VACUUM")
	if err != nil {
		return fmt.Errorf("vacuum failed: %w", err)
	}
	return nil
}
