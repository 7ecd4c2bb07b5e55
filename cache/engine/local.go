package engine

import (
	"context"
	"time"
)

const defaultLocalMaxSize int64 = 5 * 1024 * 1024

// Local is the local-persistent engine: a DuckDB-backed table that
// outlives the process, analogous to a browser's localStorage tier.
type Local struct {
	store *sqlStore
}

// NewLocal opens (asynchronously) a DuckDB file at path for local-persistent
// storage. maxSize <= 0 uses a default of 5 MB.
func NewLocal(path string, maxSize int64) *Local {
	if maxSize <= 0 {
		maxSize = defaultLocalMaxSize
	}
	return &Local{store: openSQLStore(path, "ldesign_cache_local", "ldesign_cache_", maxSize, false)}
}

func (l *Local) Name() string               { return NameLocal }
func (l *Local) Available() bool            { return l.store.Available() }
func (l *Local) MaxSize() int64             { return l.store.MaxSize() }
func (l *Local) UsedSize() int64            { return l.store.UsedSize() }
func (l *Local) SupportsTTLNatively() bool  { return true }

func (l *Local) SetItem(ctx context.Context, key, value string, ttl time.Duration) error {
	return l.store.SetItem(ctx, key, value, ttl)
}

func (l *Local) GetItem(ctx context.Context, key string) (string, bool, error) {
	return l.store.GetItem(ctx, key)
}

func (l *Local) RemoveItem(ctx context.Context, key string) error {
	return l.store.RemoveItem(ctx, key)
}

func (l *Local) Clear(ctx context.Context) error {
	return l.store.Clear(ctx)
}

func (l *Local) Keys(ctx context.Context) ([]string, error) {
	return l.store.Keys(ctx)
}

func (l *Local) HasItem(ctx context.Context, key string) (bool, error) {
	return l.store.HasItem(ctx, key)
}

func (l *Local) Length(ctx context.Context) (int, error) {
	return l.store.Length(ctx)
}

func (l *Local) Cleanup(ctx context.Context) (int, error) {
	return l.store.Cleanup(ctx)
}

// Close releases the underlying database handle.
func (l *Local) Close() error {
	return l.store.Close()
}

var _ Engine = (*Local)(nil)
