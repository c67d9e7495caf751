package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	defaultPath = "data/dlrarb.db"
)

// Store wraps a SQLite DB connection.
type Store struct {
	path string
	db   *sql.DB
}

// Open creates (if needed) and opens the SQLite database.
func Open(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := ensureWAL(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	return &Store{path: path, db: db}, nil
}

func ensureWAL(db *sql.DB) error {
	const (
		maxAttempts = 5
		delay       = 200 * time.Millisecond
	)
	for i := 0; i < maxAttempts; i++ {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			if strings.Contains(err.Error(), "database is locked") {
				time.Sleep(delay)
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("database is locked after retries")
}

// Path returns the path backing the store.
func (s *Store) Path() string {
	return s.path
}

// Close closes the DB.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateTables ensures the journal table exists.
func (s *Store) CreateTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, journalSchemaSQL)
	return err
}

// DropTables removes the journal table.
func (s *Store) DropTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS best_opportunities;`)
	return err
}

// ClearTables truncates the journal table.
func (s *Store) ClearTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM best_opportunities;`)
	return err
}

// Migrate drops the journal and recreates it with the current schema.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`DROP TABLE IF EXISTS best_opportunities;`,
		journalSchemaSQL,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

const journalSchemaSQL = `
CREATE TABLE IF NOT EXISTS best_opportunities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	tick_id TEXT NOT NULL,
	source TEXT NOT NULL,
	observed_at TEXT NOT NULL,
	recorded_at TEXT NOT NULL,
	spot REAL,
	spot_method TEXT,
	funding_rate REAL,
	detected_rate REAL,
	commission_pct REAL,
	sim_spread_bps REAL,
	ticker TEXT NOT NULL,
	maturity TEXT,
	days INTEGER,
	bid REAL,
	ask REAL,
	strategy TEXT,
	max_spread_bps REAL,
	implied_tna_bid REAL,
	implied_tna_ask REAL,
	classic_spread_bps REAL,
	reverse_spread_bps REAL,
	synthetic INTEGER,
	rows_count INTEGER,
	fingerprint TEXT,
	row_json TEXT
);
CREATE INDEX IF NOT EXISTS best_opportunities_source_idx ON best_opportunities(source, observed_at);
`

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
