package engine

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

const defaultSessionMaxSize int64 = 5 * 1024 * 1024

// Session is the session-scoped engine: identical shape to Local, but its
// DuckDB file lives in a temp directory removed on Destroy, giving it
// process lifetime rather than surviving across restarts.
type Session struct {
	store *sqlStore
	dir   string
}

// NewSession opens a DuckDB file under a fresh temp directory. maxSize <= 0
// uses a default of 5 MB.
func NewSession(maxSize int64) (*Session, error) {
	if maxSize <= 0 {
		maxSize = defaultSessionMaxSize
	}
	dir, err := os.MkdirTemp("", "ldesign-cache-session-*")
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "session.duckdb")
	return &Session{
		store: openSQLStore(path, "ldesign_cache_session", "ldesign_cache_", maxSize, false),
		dir:   dir,
	}, nil
}

func (s *Session) Name() string              { return NameSession }
func (s *Session) Available() bool           { return s.store.Available() }
func (s *Session) MaxSize() int64            { return s.store.MaxSize() }
func (s *Session) UsedSize() int64           { return s.store.UsedSize() }
func (s *Session) SupportsTTLNatively() bool { return true }

func (s *Session) SetItem(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.store.SetItem(ctx, key, value, ttl)
}

func (s *Session) GetItem(ctx context.Context, key string) (string, bool, error) {
	return s.store.GetItem(ctx, key)
}

func (s *Session) RemoveItem(ctx context.Context, key string) error {
	return s.store.RemoveItem(ctx, key)
}

func (s *Session) Clear(ctx context.Context) error {
	return s.store.Clear(ctx)
}

func (s *Session) Keys(ctx context.Context) ([]string, error) {
	return s.store.Keys(ctx)
}

func (s *Session) HasItem(ctx context.Context, key string) (bool, error) {
	return s.store.HasItem(ctx, key)
}

func (s *Session) Length(ctx context.Context) (int, error) {
	return s.store.Length(ctx)
}

func (s *Session) Cleanup(ctx context.Context) (int, error) {
	return s.store.Cleanup(ctx)
}

// Destroy closes the database and removes its temp directory, matching
// the manager's Destroy lifecycle hook.
func (s *Session) Destroy() error {
	if err := s.store.Close(); err != nil {
		return err
	}
	return os.RemoveAll(s.dir)
}

var _ Engine = (*Session)(nil)
