package cache

import (
	"context"
	"database/sql"
	"time"
	"unicode/utf8"

	_ "github.com/mattn/go-sqlite3"

	"github.com/daimoniac/pkgstatus/internal/errors"
)

// SQLiteStore keeps entries in a SQLite database so a restarted console starts warm
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates if needed) the cache database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// mode=rwc: Read/Write/Create mode
	// _journal_mode=WAL: concurrent readers next to a single writer
	// _busy_timeout=3000: wait up to 3 seconds for locks
	connStr := dbPath + "?mode=rwc&_journal_mode=WAL&_busy_timeout=3000"

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, errors.NewTransientf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, errors.NewPermanentf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		expires_at INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL DEFAULT (cast(strftime('%s', 'now') as integer))
	);

	CREATE INDEX IF NOT EXISTS idx_cache_entries_expires ON cache_entries(expires_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	var value []byte
	var expiresAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT value, expires_at FROM cache_entries WHERE key = ?
	`, key).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, errors.NewTransientf("failed to query cache entry: %w", err)
	}

	entry := Entry{Key: key, Value: value}
	if expiresAt != 0 {
		entry.ExpiresAt = time.Unix(0, expiresAt)
	}
	return entry, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, entry Entry) error {
	var expiresAt int64
	if !entry.ExpiresAt.IsZero() {
		expiresAt = entry.ExpiresAt.UnixNano()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, value, expires_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, entry.Key, entry.Value, expiresAt, time.Now().Unix())
	if err != nil {
		return errors.NewTransientf("failed to store cache entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	// LIKE would treat '_' and '%' in project names as wildcards
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM cache_entries WHERE substr(key, 1, ?) = ?
	`, utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return 0, errors.NewTransientf("failed to delete cache entries: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewTransientf("failed to count deleted cache entries: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&n); err != nil {
		return 0, errors.NewTransientf("failed to count cache entries: %w", err)
	}
	return n, nil
}

// PurgeExpired removes entries expired at now
func (s *SQLiteStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM cache_entries WHERE expires_at != 0 AND expires_at <= ?
	`, now.UnixNano())
	if err != nil {
		return 0, errors.NewTransientf("failed to purge expired cache entries: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewTransientf("failed to count purged cache entries: %w", err)
	}
	return int(n), nil
}
