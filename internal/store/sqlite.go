package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp TEXT NOT NULL,
    package_name TEXT NOT NULL,
    event_type TEXT NOT NULL,
    package_version TEXT,
    author TEXT,
    description TEXT
);

CREATE INDEX IF NOT EXISTS idx_package_timestamp
ON events(package_name, timestamp);

CREATE INDEX IF NOT EXISTS idx_event_type
ON events(event_type);

CREATE TABLE IF NOT EXISTS package_pairs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    package1 TEXT NOT NULL,
    package2 TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    UNIQUE(package1, package2, timestamp)
);
`

// timeLayout is the canonical on-disk timestamp format: RFC3339 in UTC at
// second precision. All writers format with fmtTime so that SQLite's date()
// and strftime() accept the values and lexicographic comparison matches
// chronological order.
const timeLayout = time.RFC3339

func fmtTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// Store is the durable persistence layer: the events log and the derived
// co-installation pair table, both append-only.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at path and fails
// fast if it is unreachable. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows a single writer; one connection also keeps ":memory:"
	// databases from silently splitting into independent instances.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// FromDB wraps an existing database handle. Used by tests that need to
// inject a mocked connection.
func FromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates tables and indexes if absent. Safe to run on every
// startup.
func (s *Store) EnsureSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping validates connectivity for the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close shuts down the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
