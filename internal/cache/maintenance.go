package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"
)

// Stats summarizes the cache contents.
type Stats struct {
	Path      string
	Entries   int
	Tracks    int
	Hits      int
	SizeBytes int64
	ByMode    map[string]int
	Oldest    time.Time
	Newest    time.Time
}

// Stats reports entry counts, hit totals and the database size.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Path: s.path, ByMode: make(map[string]int)}
	var oldest, newest sql.NullString
	var hits sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1), COUNT(DISTINCT file_hash), SUM(hit_count), MIN(created_at), MAX(created_at) FROM analyses`,
	).Scan(&stats.Entries, &stats.Tracks, &hits, &oldest, &newest)
	if err != nil {
		return Stats{}, fmt.Errorf("cache stats: %w", err)
	}
	stats.Hits = int(hits.Int64)
	if oldest.Valid {
		stats.Oldest, _ = time.Parse(timeLayout, oldest.String)
	}
	if newest.Valid {
		stats.Newest, _ = time.Parse(timeLayout, newest.String)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT mode, COUNT(1) FROM analyses GROUP BY mode`)
	if err != nil {
		return Stats{}, fmt.Errorf("cache stats by mode: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var mode string
		var count int
		if err := rows.Scan(&mode, &count); err != nil {
			return Stats{}, err
		}
		stats.ByMode[mode] = count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	if info, err := os.Stat(s.path); err == nil {
		stats.SizeBytes = info.Size()
	}
	return stats, nil
}

// Clear removes every entry and returns how many were deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	return s.deleteLocked(ctx, `DELETE FROM analyses`)
}

// Prune removes entries created before cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.deleteLocked(ctx, `DELETE FROM analyses WHERE created_at < ?`, cutoff.UTC().Format(timeLayout))
}

func (s *Store) deleteLocked(ctx context.Context, query string, args ...any) (int64, error) {
	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return 0, fmt.Errorf("acquire cache lock: %w", err)
	}
	if !locked {
		return 0, fmt.Errorf("cache lock %s busy", s.lock.Path())
	}
	defer func() { _ = s.lock.Unlock() }()

	var affected int64
	err = retryOnBusy(ctx, func() error {
		res, execErr := s.db.ExecContext(ctx, query, args...)
		if execErr != nil {
			return execErr
		}
		affected, execErr = res.RowsAffected()
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("cache delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return affected, fmt.Errorf("cache checkpoint: %w", err)
	}
	return affected, nil
}
