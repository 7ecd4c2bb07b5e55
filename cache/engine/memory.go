package engine

import (
	"context"
	"sync"
	"time"

	"github.com/poly1603/ldesign-cache-sub004/cache/eviction"
)

const (
	defaultMemoryMaxSize    int64 = 64 * 1024 * 1024
	defaultMemoryMaxItems         = 100_000
	defaultMemoryCleanupGap       = 60 * time.Second
)

// memoryItem is one resident value plus its bookkeeping.
type memoryItem struct {
	value     string
	size      int64
	expiresAt time.Time // zero means no expiry
}

func (it *memoryItem) expired(now time.Time) bool {
	return !it.expiresAt.IsZero() && now.After(it.expiresAt)
}

// Memory is the in-process resident engine: a map of live values paired
// with a pluggable eviction.Policy that decides the victim when a bound
// is hit.
type Memory struct {
	mu       sync.Mutex
	items    map[string]*memoryItem
	policy   eviction.Policy
	sizes    *sizeCache
	maxSize  int64
	maxItems int
	used     int64

	stopCleanup chan struct{}
	stopped     bool
}

// MemoryOption configures a Memory engine at construction.
type MemoryOption func(*Memory)

func WithMaxSize(bytes int64) MemoryOption {
	return func(m *Memory) { m.maxSize = bytes }
}

func WithMaxItems(n int) MemoryOption {
	return func(m *Memory) { m.maxItems = n }
}

func WithPolicy(p eviction.Policy) MemoryOption {
	return func(m *Memory) { m.policy = p }
}

// NewMemory constructs a Memory engine and starts its periodic cleanup
// ticker (default 60s); callers must call Close to stop it.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		items:       make(map[string]*memoryItem),
		maxSize:     defaultMemoryMaxSize,
		maxItems:    defaultMemoryMaxItems,
		sizes:       newSizeCache(0),
		stopCleanup: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.policy == nil {
		m.policy, _ = eviction.New("lru", m.maxItems, nil)
	}
	go m.cleanupLoop(defaultMemoryCleanupGap)
	return m
}

func (m *Memory) Name() string    { return NameMemory }
func (m *Memory) Available() bool { return true }

func (m *Memory) MaxSize() int64 {
	return m.maxSize
}

func (m *Memory) UsedSize() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}

func (m *Memory) SupportsTTLNatively() bool { return true }

func (m *Memory) SetItem(_ context.Context, key, value string, ttl time.Duration) error {
	size := int64(m.sizes.sizeOf(value))

	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.items[key]; ok {
		m.used -= old.size
	} else if len(m.items) >= m.maxItems {
		m.evictLocked()
	}
	for m.used+size > m.maxSize && len(m.items) > 0 {
		if !m.evictLocked() {
			break
		}
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	m.items[key] = &memoryItem{value: value, size: size, expiresAt: expiresAt}
	m.used += size
	m.policy.RecordAdd(key, ttl)
	return nil
}

func (m *Memory) GetItem(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[key]
	if !ok {
		return "", false, nil
	}
	if item.expired(time.Now()) {
		m.removeLocked(key)
		return "", false, nil
	}
	m.policy.RecordAccess(key)
	return item.value, true, nil
}

func (m *Memory) RemoveItem(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(key)
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]*memoryItem)
	m.used = 0
	m.policy.Clear()
	return nil
}

func (m *Memory) Keys(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	keys := make([]string, 0, len(m.items))
	for k, it := range m.items {
		if !it.expired(now) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *Memory) HasItem(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok || it.expired(time.Now()) {
		return false, nil
	}
	return true, nil
}

func (m *Memory) Length(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items), nil
}

func (m *Memory) Cleanup(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	removed := 0
	for k, it := range m.items {
		if it.expired(now) {
			m.removeLocked(k)
			removed++
		}
	}
	return removed, nil
}

// Close stops the periodic cleanup goroutine. Safe to call more than once.
func (m *Memory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.stopped = true
	close(m.stopCleanup)
}

func (m *Memory) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_, _ = m.Cleanup(context.Background())
		case <-m.stopCleanup:
			return
		}
	}
}

// removeLocked drops key's bookkeeping. Caller must hold m.mu.
func (m *Memory) removeLocked(key string) {
	it, ok := m.items[key]
	if !ok {
		return
	}
	delete(m.items, key)
	m.used -= it.size
	m.policy.RemoveKey(key)
}

// evictLocked asks the policy for a victim and removes it. Caller must
// hold m.mu. Returns false if the policy has nothing to evict.
func (m *Memory) evictLocked() bool {
	victim, ok := m.policy.Evict()
	if !ok {
		return false
	}
	if it, present := m.items[victim]; present {
		delete(m.items, victim)
		m.used -= it.size
	}
	return true
}

var _ BatchEngine = (*Memory)(nil)

func (m *Memory) BatchSet(ctx context.Context, items map[string]BatchItem) map[string]error {
	results := make(map[string]error, len(items))
	for key, item := range items {
		results[key] = m.SetItem(ctx, key, item.Value, item.TTL)
	}
	return results
}

func (m *Memory) BatchGet(ctx context.Context, keys []string) map[string]BatchGetResult {
	results := make(map[string]BatchGetResult, len(keys))
	for _, key := range keys {
		value, ok, err := m.GetItem(ctx, key)
		results[key] = BatchGetResult{Value: value, Found: ok, Err: err}
	}
	return results
}

func (m *Memory) BatchRemove(ctx context.Context, keys []string) map[string]error {
	results := make(map[string]error, len(keys))
	for _, key := range keys {
		results[key] = m.RemoveItem(ctx, key)
	}
	return results
}

func (m *Memory) BatchHas(ctx context.Context, keys []string) map[string]bool {
	results := make(map[string]bool, len(keys))
	for _, key := range keys {
		has, _ := m.HasItem(ctx, key)
		results[key] = has
	}
	return results
}

var _ Engine = (*Memory)(nil)
