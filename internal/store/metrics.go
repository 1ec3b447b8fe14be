package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pkgpulse/pkgpulse/internal/models"
)

// Aggregation queries. The hours-window filter is implemented as a fixed
// pair of query variants with the cutoff passed as a bind parameter; no
// value from the request is ever spliced into SQL text.

const (
	eventTypeCountsAll = `
		SELECT event_type, COUNT(*)
		FROM events
		GROUP BY event_type`

	eventTypeCountsSince = `
		SELECT event_type, COUNT(*)
		FROM events
		WHERE timestamp >= ?
		GROUP BY event_type`

	topPackagesAll = `
		SELECT package_name, COUNT(*) AS count
		FROM events
		WHERE event_type = ?
		GROUP BY package_name
		ORDER BY count DESC, package_name ASC
		LIMIT ?`

	topPackagesSince = `
		SELECT package_name, COUNT(*) AS count
		FROM events
		WHERE event_type = ?
		  AND timestamp >= ?
		GROUP BY package_name
		ORDER BY count DESC, package_name ASC
		LIMIT ?`
)

// EventTypeCounts returns the install and uninstall totals, optionally
// restricted to events at or after since.
func (s *Store) EventTypeCounts(ctx context.Context, since *time.Time) (installs, uninstalls int, err error) {
	query := eventTypeCountsAll
	args := []any{}
	if since != nil {
		query = eventTypeCountsSince
		args = append(args, fmtTime(*since))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, 0, fmt.Errorf("count events by type: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var et string
		var count int
		if err := rows.Scan(&et, &count); err != nil {
			return 0, 0, fmt.Errorf("scan event type count: %w", err)
		}
		switch models.EventType(et) {
		case models.EventInstall:
			installs = count
		case models.EventUninstall:
			uninstalls = count
		}
	}
	if err := rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("iterate event type counts: %w", err)
	}
	return installs, uninstalls, nil
}

// TopPackages returns up to limit packages ranked by event count for the
// given type, optionally restricted to events at or after since. Ties are
// broken by package name ascending so results are reproducible.
func (s *Store) TopPackages(ctx context.Context, et models.EventType, limit int, since *time.Time) ([]models.PackageCount, error) {
	query := topPackagesAll
	args := []any{string(et)}
	if since != nil {
		query = topPackagesSince
		args = append(args, fmtTime(*since))
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query top packages: %w", err)
	}
	defer rows.Close()

	out := []models.PackageCount{}
	for rows.Next() {
		var pc models.PackageCount
		if err := rows.Scan(&pc.Name, &pc.Count); err != nil {
			return nil, fmt.Errorf("scan top package: %w", err)
		}
		out = append(out, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top packages: %w", err)
	}
	return out, nil
}

// InstallTrend maps the 30 most recent calendar dates (UTC) with any
// install to that day's install count. It is never restricted by the
// hours window.
func (s *Store) InstallTrend(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date(timestamp) AS day, COUNT(*) AS count
		FROM events
		WHERE event_type = 'install'
		GROUP BY day
		ORDER BY day DESC
		LIMIT 30
	`)
	if err != nil {
		return nil, fmt.Errorf("query install trend: %w", err)
	}
	defer rows.Close()

	trend := map[string]int{}
	for rows.Next() {
		var day string
		var count int
		if err := rows.Scan(&day, &count); err != nil {
			return nil, fmt.Errorf("scan install trend: %w", err)
		}
		trend[day] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate install trend: %w", err)
	}
	return trend, nil
}

// PopularPairs returns up to limit co-installation pairs ranked by how
// often they were derived, unrestricted by any time window.
func (s *Store) PopularPairs(ctx context.Context, limit int) ([]models.PairCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT package1, package2, COUNT(*) AS count
		FROM package_pairs
		GROUP BY package1, package2
		ORDER BY count DESC, package1 ASC, package2 ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query popular pairs: %w", err)
	}
	defer rows.Close()

	out := []models.PairCount{}
	for rows.Next() {
		var pc models.PairCount
		if err := rows.Scan(&pc.Package1, &pc.Package2, &pc.Count); err != nil {
			return nil, fmt.Errorf("scan popular pair: %w", err)
		}
		out = append(out, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate popular pairs: %w", err)
	}
	return out, nil
}

// PackageEventCounts returns the lifetime install and uninstall totals for
// one package.
func (s *Store) PackageEventCounts(ctx context.Context, pkg string) (installs, uninstalls int, err error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_type, COUNT(*)
		FROM events
		WHERE package_name = ?
		GROUP BY event_type
	`, pkg)
	if err != nil {
		return 0, 0, fmt.Errorf("count events for %s: %w", pkg, err)
	}
	defer rows.Close()

	for rows.Next() {
		var et string
		var count int
		if err := rows.Scan(&et, &count); err != nil {
			return 0, 0, fmt.Errorf("scan event count for %s: %w", pkg, err)
		}
		switch models.EventType(et) {
		case models.EventInstall:
			installs = count
		case models.EventUninstall:
			uninstalls = count
		}
	}
	if err := rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("iterate event counts for %s: %w", pkg, err)
	}
	return installs, uninstalls, nil
}

// DailyInstalls maps the 30 most recent calendar dates with an install of
// pkg to that day's count.
func (s *Store) DailyInstalls(ctx context.Context, pkg string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date(timestamp) AS day, COUNT(*) AS count
		FROM events
		WHERE package_name = ? AND event_type = 'install'
		GROUP BY day
		ORDER BY day DESC
		LIMIT 30
	`, pkg)
	if err != nil {
		return nil, fmt.Errorf("query daily installs for %s: %w", pkg, err)
	}
	defer rows.Close()

	daily := map[string]int{}
	for rows.Next() {
		var day string
		var count int
		if err := rows.Scan(&day, &count); err != nil {
			return nil, fmt.Errorf("scan daily installs for %s: %w", pkg, err)
		}
		daily[day] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily installs for %s: %w", pkg, err)
	}
	return daily, nil
}

// HourlyInstalls maps the hour of day ("00"–"23", UTC) to the number of
// installs of pkg recorded in that hour across all days.
func (s *Store) HourlyInstalls(ctx context.Context, pkg string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT strftime('%H', timestamp) AS hour, COUNT(*) AS count
		FROM events
		WHERE package_name = ? AND event_type = 'install'
		GROUP BY hour
		ORDER BY hour ASC
	`, pkg)
	if err != nil {
		return nil, fmt.Errorf("query hourly installs for %s: %w", pkg, err)
	}
	defer rows.Close()

	hourly := map[string]int{}
	for rows.Next() {
		var hour string
		var count int
		if err := rows.Scan(&hour, &count); err != nil {
			return nil, fmt.Errorf("scan hourly installs for %s: %w", pkg, err)
		}
		hourly[hour] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hourly installs for %s: %w", pkg, err)
	}
	return hourly, nil
}
