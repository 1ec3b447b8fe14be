package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pkgpulse/pkgpulse/internal/models"
)

// dbtx is the statement surface shared by *sql.DB and *sql.Tx, letting the
// write-path helpers run either standalone or inside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// RecordEvent appends one event row and, for installs, derives
// co-installation pairs against the trailing one-hour window. Both steps
// commit as a single transaction: a failed recording leaves no partial
// state, so the caller can safely retry. Returns the assigned event id.
func (s *Store) RecordEvent(ctx context.Context, ts time.Time, pkg string, et models.EventType, md models.Metadata) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin record event: %w", err)
	}
	defer tx.Rollback()

	id, err := insertEvent(ctx, tx, ts, pkg, et, md)
	if err != nil {
		return 0, err
	}

	if et == models.EventInstall {
		recent, err := recentInstalledPackages(ctx, tx, ts, pkg)
		if err != nil {
			return 0, err
		}
		for _, other := range recent {
			// New package first, previously-seen package second.
			if err := insertPair(ctx, tx, pkg, other, ts); err != nil {
				return 0, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit record event: %w", err)
	}
	return id, nil
}

// InsertEvent appends one event row and returns its assigned id. Metadata
// fields may be nil (stored as NULL) when the registry lookup failed.
func (s *Store) InsertEvent(ctx context.Context, ts time.Time, pkg string, et models.EventType, md models.Metadata) (int64, error) {
	return insertEvent(ctx, s.db, ts, pkg, et, md)
}

func insertEvent(ctx context.Context, q dbtx, ts time.Time, pkg string, et models.EventType, md models.Metadata) (int64, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO events (timestamp, package_name, event_type, package_version, author, description)
		VALUES (?, ?, ?, ?, ?, ?)
	`, fmtTime(ts), pkg, string(et), md.Version, md.Author, md.Description)
	if err != nil {
		return 0, fmt.Errorf("insert event for %s: %w", pkg, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("event id for %s: %w", pkg, err)
	}
	return id, nil
}

// RecentInstalledPackages returns the distinct package names with an install
// event in the hour before ts, excluding pkg itself. The window has no upper
// bound: any install already recorded at or after ts also counts.
func (s *Store) RecentInstalledPackages(ctx context.Context, ts time.Time, pkg string) ([]string, error) {
	return recentInstalledPackages(ctx, s.db, ts, pkg)
}

func recentInstalledPackages(ctx context.Context, q dbtx, ts time.Time, pkg string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT DISTINCT package_name
		FROM events
		WHERE event_type = 'install'
		  AND timestamp >= ?
		  AND package_name != ?
	`, fmtTime(ts.Add(-time.Hour)), pkg)
	if err != nil {
		return nil, fmt.Errorf("query recent installs: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan recent install: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent installs: %w", err)
	}
	return names, nil
}

// InsertPair records a co-installation pair. A duplicate of an existing
// (package1, package2, timestamp) triple is dropped by the uniqueness
// constraint and is not an error.
func (s *Store) InsertPair(ctx context.Context, pkg1, pkg2 string, ts time.Time) error {
	return insertPair(ctx, s.db, pkg1, pkg2, ts)
}

func insertPair(ctx context.Context, q dbtx, pkg1, pkg2 string, ts time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT OR IGNORE INTO package_pairs (package1, package2, timestamp)
		VALUES (?, ?, ?)
	`, pkg1, pkg2, fmtTime(ts))
	if err != nil {
		return fmt.Errorf("insert pair (%s, %s): %w", pkg1, pkg2, err)
	}
	return nil
}

// InstallTotal returns the lifetime install count for a package.
func (s *Store) InstallTotal(ctx context.Context, pkg string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM events
		WHERE package_name = ? AND event_type = 'install'
	`, pkg).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count installs for %s: %w", pkg, err)
	}
	return count, nil
}

// LastInstall returns the timestamp of the most recent install for a
// package, or nil if it was never installed.
func (s *Store) LastInstall(ctx context.Context, pkg string) (*time.Time, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(timestamp) FROM events
		WHERE package_name = ? AND event_type = 'install'
	`, pkg).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("last install for %s: %w", pkg, err)
	}
	if !raw.Valid {
		return nil, nil
	}

	t, err := parseTime(raw.String)
	if err != nil {
		return nil, fmt.Errorf("parse last install for %s: %w", pkg, err)
	}
	return &t, nil
}

// LatestMetadata returns the metadata snapshot stored with the package's
// most recent event. All fields are nil when the package has no events or
// every lookup for it failed.
func (s *Store) LatestMetadata(ctx context.Context, pkg string) (models.MetadataOut, error) {
	var md models.MetadataOut
	err := s.db.QueryRowContext(ctx, `
		SELECT package_version, author, description
		FROM events
		WHERE package_name = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT 1
	`, pkg).Scan(&md.Version, &md.Author, &md.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return models.MetadataOut{}, nil
	}
	if err != nil {
		return models.MetadataOut{}, fmt.Errorf("latest metadata for %s: %w", pkg, err)
	}
	return md, nil
}
