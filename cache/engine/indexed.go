package engine

import (
	"context"
	"time"
)

const defaultIndexedMaxSize int64 = 50 * 1024 * 1024

// Indexed is the indexed-persistent engine: the same DuckDB backend as
// Local but with secondary indexes on expires_at and created_at so
// expiry cleanup walks an index rather than scanning the table, and a
// larger default quota.
type Indexed struct {
	store *sqlStore
}

// NewIndexed opens (asynchronously) a DuckDB file at path for
// indexed-persistent storage. maxSize <= 0 uses a default of 50 MB.
func NewIndexed(path string, maxSize int64) *Indexed {
	if maxSize <= 0 {
		maxSize = defaultIndexedMaxSize
	}
	return &Indexed{store: openSQLStore(path, "ldesign_cache_indexed", "ldesign_cache_", maxSize, true)}
}

func (i *Indexed) Name() string              { return NameIndexed }
func (i *Indexed) Available() bool           { return i.store.Available() }
func (i *Indexed) MaxSize() int64            { return i.store.MaxSize() }
func (i *Indexed) UsedSize() int64           { return i.store.UsedSize() }
func (i *Indexed) SupportsTTLNatively() bool { return true }

func (i *Indexed) SetItem(ctx context.Context, key, value string, ttl time.Duration) error {
	return i.store.SetItem(ctx, key, value, ttl)
}

func (i *Indexed) GetItem(ctx context.Context, key string) (string, bool, error) {
	return i.store.GetItem(ctx, key)
}

func (i *Indexed) RemoveItem(ctx context.Context, key string) error {
	return i.store.RemoveItem(ctx, key)
}

func (i *Indexed) Clear(ctx context.Context) error {
	return i.store.Clear(ctx)
}

func (i *Indexed) Keys(ctx context.Context) ([]string, error) {
	return i.store.Keys(ctx)
}

func (i *Indexed) HasItem(ctx context.Context, key string) (bool, error) {
	return i.store.HasItem(ctx, key)
}

func (i *Indexed) Length(ctx context.Context) (int, error) {
	return i.store.Length(ctx)
}

func (i *Indexed) Cleanup(ctx context.Context) (int, error) {
	return i.store.Cleanup(ctx)
}

// Close releases the underlying database handle.
func (i *Indexed) Close() error {
	return i.store.Close()
}

var _ Engine = (*Indexed)(nil)
