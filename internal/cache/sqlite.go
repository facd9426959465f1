package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/postfetch/internal/model"
)

// DBFileName is the name of the cache database inside the cache directory.
const DBFileName = "postfetch-cache.db"

// pruneEvery is the number of writes between eviction passes.
const pruneEvery = 64

// SQLiteStore is a persistent Store backed by a single SQLite file.
// Entries survive restarts until they are overwritten, exceed the maximum
// age, or are pushed out by the entry bound (oldest write first).
type SQLiteStore struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string

	opts   Options
	writes atomic.Int64
	logger *slog.Logger
	now    func() time.Time
}

// Options configures SQLiteStore behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so readers don't block the writer.
	EnableWAL bool

	// MaxEntries bounds the number of rows. Zero means unbounded.
	MaxEntries int

	// MaxAge drops rows older than this. Zero means rows never expire.
	MaxAge time.Duration

	// Logger receives eviction and corruption diagnostics.
	Logger *slog.Logger
}

// DefaultOptions returns the default store options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
		MaxEntries:        10000,
		MaxAge:            30 * 24 * time.Hour,
	}
}

// OpenSQLite opens or creates the cache database in dir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func OpenSQLite(dir string, opts Options) (*SQLiteStore, error) {
	dbPath := filepath.Join(dir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("cache database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check cache database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &SQLiteStore{
		db:     db,
		dbPath: dbPath,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if _, err := s.Prune(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (s *SQLiteStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		key TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		etag TEXT NOT NULL DEFAULT '',
		last_modified TEXT NOT NULL DEFAULT '',
		digest TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cache_updated ON cache_entries(updated_at);
	`

	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// Read implements Store.
func (s *SQLiteStore) Read(ctx context.Context, key string) (*model.CacheEntry, bool) {
	entry, err := s.Get(ctx, key)
	if err != nil {
		s.logger.Debug("cache read failed", "key", key, "error", err)
		return nil, false
	}
	if entry == nil {
		return nil, false
	}
	if expired(entry.UpdatedAt, s.now(), s.opts.MaxAge) {
		return nil, false
	}
	if Digest(entry.Payload) != entry.Digest {
		s.logger.Warn("cache entry digest mismatch", "key", key)
		return nil, false
	}
	return entry, true
}

// Get returns the raw row stored under key, or nil when there is none.
// Unlike Read it applies neither expiry nor digest verification.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*model.CacheEntry, error) {
	query := `
	SELECT key, payload, etag, last_modified, digest, updated_at
	FROM cache_entries
	WHERE key = ?
	`

	var entry model.CacheEntry
	var payload []byte
	var updated int64

	err := s.db.QueryRowContext(ctx, query, key).Scan(
		&entry.Key,
		&payload,
		&entry.ETag,
		&entry.LastModified,
		&entry.Digest,
		&updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	entry.Payload = payload
	entry.UpdatedAt = time.UnixMilli(updated)
	return &entry, nil
}

// Write implements Store. Uses UPSERT so the latest write wins.
func (s *SQLiteStore) Write(ctx context.Context, entry model.CacheEntry) error {
	entry.Digest = Digest(entry.Payload)
	entry.UpdatedAt = s.now()

	query := `
	INSERT INTO cache_entries (key, payload, etag, last_modified, digest, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		payload = excluded.payload,
		etag = excluded.etag,
		last_modified = excluded.last_modified,
		digest = excluded.digest,
		updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.Key,
		[]byte(entry.Payload),
		entry.ETag,
		entry.LastModified,
		entry.Digest,
		entry.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	if s.writes.Add(1)%pruneEvery == 0 {
		if _, err := s.Prune(ctx); err != nil {
			s.logger.Debug("cache prune failed", "error", err)
		}
	}
	return nil
}

// Delete removes the entry stored under key.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Prune applies the age and size bounds and returns the number of rows removed.
func (s *SQLiteStore) Prune(ctx context.Context) (int64, error) {
	var removed int64

	if s.opts.MaxAge > 0 {
		n, err := s.PurgeOlderThan(ctx, s.opts.MaxAge)
		if err != nil {
			return removed, err
		}
		removed += n
	}

	if s.opts.MaxEntries > 0 {
		query := `
		DELETE FROM cache_entries
		WHERE key IN (
			SELECT key FROM cache_entries
			ORDER BY updated_at DESC, key
			LIMIT -1 OFFSET ?
		)
		`
		result, err := s.db.ExecContext(ctx, query, s.opts.MaxEntries)
		if err != nil {
			return removed, fmt.Errorf("failed to trim cache: %w", err)
		}
		n, _ := result.RowsAffected() //nolint:errcheck // sqlite always reports rows affected
		removed += n
	}

	if removed > 0 {
		s.logger.Debug("cache pruned", "removed", removed)
	}
	return removed, nil
}

// PurgeOlderThan removes rows written more than d ago. A zero d removes
// every row.
func (s *SQLiteStore) PurgeOlderThan(ctx context.Context, d time.Duration) (int64, error) {
	cutoff := s.now().Add(-d).UnixMilli()
	result, err := s.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE updated_at <= ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	return result.RowsAffected()
}

// List returns a summary of every row, most recently written first.
func (s *SQLiteStore) List(ctx context.Context) ([]EntryInfo, error) {
	query := `
	SELECT key, digest, length(payload), updated_at
	FROM cache_entries
	ORDER BY updated_at DESC, key
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	defer rows.Close()

	var results []EntryInfo
	for rows.Next() {
		var info EntryInfo
		var updated int64
		if err := rows.Scan(&info.Key, &info.Digest, &info.Size, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		info.UpdatedAt = time.UnixMilli(updated)
		results = append(results, info)
	}

	return results, rows.Err()
}
