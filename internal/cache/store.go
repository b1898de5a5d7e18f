package cache

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"trackmeta/internal/config"
)

//go:embed schema.sql
var layoutSQL string

// layoutVersion is stored in PRAGMA user_version. Bump it whenever
// schema.sql or the result JSON shape changes.
const layoutVersion = 1

// ErrSchemaMismatch reports a cache written by a newer trackmeta.
var ErrSchemaMismatch = errors.New("cache layout is newer than this binary")

// Store manages cached analyses backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	lock *flock.Flock
	now  func() time.Time
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	lockRetryDelay          = 50 * time.Millisecond

	// Fixed-width so lexical order in SQLite matches chronological order.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Open initializes or connects to the cache database at cfg.Cache.Path.
func Open(cfg *config.Config) (*Store, error) {
	return OpenPath(cfg.Cache.Path)
}

// OpenPath opens the cache database at dbPath, creating it when missing.
func OpenPath(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, errors.New("cache path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{
		db:   db,
		path: dbPath,
		lock: flock.New(dbPath + ".lock"),
		now:  time.Now,
	}
	if err := store.ensureLayout(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// ensureLayout creates the tables on first use. Entries from an older layout
// are only recomputable results, so they are dropped rather than migrated.
func (s *Store) ensureLayout(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read cache layout version: %w", err)
	}
	switch {
	case version == layoutVersion:
		return nil
	case version > layoutVersion:
		return fmt.Errorf("%w: %s has layout %d, this binary writes %d (upgrade trackmeta or delete the file)",
			ErrSchemaMismatch, s.path, version, layoutVersion)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache layout tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		"DROP TABLE IF EXISTS analyses",
		layoutSQL,
		fmt.Sprintf("PRAGMA user_version = %d", layoutVersion),
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create cache layout: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cache layout: %w", err)
	}
	return nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Entry is one cached analysis.
type Entry struct {
	Key        Key
	SourcePath string
	Result     []byte
	CreatedAt  time.Time
	HitCount   int
}

// Get returns the cached result for key and records the hit.
func (s *Store) Get(ctx context.Context, key Key) (Entry, bool, error) {
	var (
		entry   = Entry{Key: key}
		source  sql.NullString
		created string
		result  string
	)
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT source_path, result_json, created_at, hit_count FROM analyses WHERE cache_key = ?`,
			key.String(),
		).Scan(&source, &result, &created, &entry.HitCount)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache get: %w", err)
	}
	entry.SourcePath = source.String
	entry.Result = []byte(result)
	entry.CreatedAt, _ = time.Parse(timeLayout, created)

	now := s.now().UTC().Format(timeLayout)
	if err := retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx,
			`UPDATE analyses SET hit_count = hit_count + 1, last_hit_at = ? WHERE cache_key = ?`,
			now, key.String(),
		)
		return execErr
	}); err != nil {
		return Entry{}, false, fmt.Errorf("cache record hit: %w", err)
	}
	entry.HitCount++
	return entry, true, nil
}

// Put stores or replaces the result for key.
func (s *Store) Put(ctx context.Context, key Key, sourcePath string, result []byte) error {
	if len(result) == 0 {
		return errors.New("cache put: empty result")
	}
	lyrics := 0
	if key.Lyrics {
		lyrics = 1
	}
	now := s.now().UTC().Format(timeLayout)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO analyses (
                cache_key, file_hash, mode, lyrics, source_path, result_json, created_at, hit_count, last_hit_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, 0, NULL)`,
			key.String(), key.FileHash, key.Mode, lyrics, nullableString(sourcePath), string(result), now,
		)
		if err != nil {
			return fmt.Errorf("cache put: %w", err)
		}
		return nil
	})
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
