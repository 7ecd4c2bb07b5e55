package engine

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
)

// sqlStore is the DuckDB-backed store behind the local-persistent,
// session-scoped, and indexed-persistent engines: each engine opens its
// own database file and table, keyed by a prefixed text key (every
// engine uses the same prefix).
type sqlStore struct {
	db         *sql.DB
	table      string
	keyPrefix  string
	maxSize    int64
	available  atomic.Bool
	indexed    bool
	usedCached atomic.Int64
}

// openSQLStore opens (or creates) a DuckDB database at path and its
// backing table. The open and schema migration run on a background
// goroutine; Available() reports false until it completes, so these
// engines initialize asynchronously rather than blocking construction.
func openSQLStore(path, table, keyPrefix string, maxSize int64, indexed bool) *sqlStore {
	s := &sqlStore{table: table, keyPrefix: keyPrefix, maxSize: maxSize, indexed: indexed}
	go s.open(path)
	return s
}

func (s *sqlStore) open(path string) {
	connStr := fmt.Sprintf("%s?access_mode=read_write", path)
	db, err := sql.Open("duckdb", connStr)
	if err != nil {
		return
	}
	schema := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			cache_key TEXT PRIMARY KEY,
			value BLOB,
			expires_at TIMESTAMP NULL,
			created_at TIMESTAMP
		)`, s.table)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return
	}
	if s.indexed {
		_, _ = db.Exec(fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_expires ON %s(expires_at)", s.table, s.table))
		_, _ = db.Exec(fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_created ON %s(created_at)", s.table, s.table))
	}
	s.db = db
	var used sql.NullInt64
	_ = db.QueryRow(fmt.Sprintf("SELECT COALESCE(SUM(LENGTH(value)), 0) FROM %s", s.table)).Scan(&used)
	s.usedCached.Store(used.Int64)
	s.available.Store(true)
}

func (s *sqlStore) fullKey(key string) string {
	return s.keyPrefix + key
}

func (s *sqlStore) Available() bool { return s.available.Load() }
func (s *sqlStore) MaxSize() int64  { return s.maxSize }
func (s *sqlStore) UsedSize() int64 { return s.usedCached.Load() }

func (s *sqlStore) SetItem(ctx context.Context, key, value string, ttl time.Duration) error {
	if !s.Available() {
		return fmt.Errorf("engine not yet available")
	}
	size := int64(len(value))

	var oldSize int64
	row := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT LENGTH(value) FROM %s WHERE cache_key = ?", s.table), s.fullKey(key))
	_ = row.Scan(&oldSize)

	if s.usedCached.Load()+(size-oldSize) > s.maxSize {
		return fmt.Errorf("%w: %s", ErrQuota, s.table)
	}

	var expiresAt interface{}
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	query := fmt.Sprintf(`INSERT INTO %s (cache_key, value, expires_at, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET value = EXCLUDED.value,
			expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at`, s.table)
	if _, err := s.db.ExecContext(ctx, query, s.fullKey(key), []byte(value), expiresAt, time.Now()); err != nil {
		return fmt.Errorf("set %s: %w", s.table, err)
	}
	s.usedCached.Add(size - oldSize)
	return nil
}

func (s *sqlStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	if !s.Available() {
		return "", false, nil
	}
	query := fmt.Sprintf("SELECT value, expires_at FROM %s WHERE cache_key = ?", s.table)
	row := s.db.QueryRowContext(ctx, query, s.fullKey(key))

	var value []byte
	var expiresAt sql.NullTime
	if err := row.Scan(&value, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		// Malformed/undecodable row tolerated as absent.
		_, _ = s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE cache_key = ?", s.table), s.fullKey(key))
		return "", false, nil
	}
	if expiresAt.Valid && time.Now().After(expiresAt.Time) {
		_, _ = s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE cache_key = ?", s.table), s.fullKey(key))
		return "", false, nil
	}
	return string(value), true, nil
}

func (s *sqlStore) RemoveItem(ctx context.Context, key string) error {
	if !s.Available() {
		return nil
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE cache_key = ?", s.table), s.fullKey(key))
	if err != nil {
		return fmt.Errorf("remove %s: %w", s.table, err)
	}
	return nil
}

func (s *sqlStore) Clear(ctx context.Context) error {
	if !s.Available() {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE cache_key LIKE ?", s.table), s.keyPrefix+"%"); err != nil {
		return fmt.Errorf("clear %s: %w", s.table, err)
	}
	s.usedCached.Store(0)
	return nil
}

func (s *sqlStore) Keys(ctx context.Context) ([]string, error) {
	if !s.Available() {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT cache_key FROM %s WHERE cache_key LIKE ?", s.table), s.keyPrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("keys %s: %w", s.table, err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var fullKey string
		if err := rows.Scan(&fullKey); err != nil {
			continue
		}
		keys = append(keys, fullKey[len(s.keyPrefix):])
	}
	return keys, rows.Err()
}

func (s *sqlStore) HasItem(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.GetItem(ctx, key)
	return ok, err
}

func (s *sqlStore) Length(ctx context.Context) (int, error) {
	if !s.Available() {
		return 0, nil
	}
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE cache_key LIKE ?", s.table), s.keyPrefix+"%").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("length %s: %w", s.table, err)
	}
	return n, nil
}

// Cleanup uses an index-assisted range delete on indexed stores, walking
// expired rows in expires_at order rather than scanning the whole table.
func (s *sqlStore) Cleanup(ctx context.Context) (int, error) {
	if !s.Available() {
		return 0, nil
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE cache_key LIKE ? AND expires_at IS NOT NULL AND expires_at < ?", s.table)
	res, err := s.db.ExecContext(ctx, query, s.keyPrefix+"%", time.Now())
	if err != nil {
		return 0, fmt.Errorf("cleanup %s: %w", s.table, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *sqlStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
