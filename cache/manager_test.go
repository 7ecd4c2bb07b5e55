package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/poly1603/ldesign-cache-sub004/cache/engine"
	"github.com/poly1603/ldesign-cache-sub004/cache/events"
)

func memoryOnlyConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxMemory = 0
	cfg.CleanupInterval = 0
	cfg.Engines = map[string]EngineConfig{
		engine.NameMemory: {Enabled: true},
	}
	return cfg
}

func newTestManager(t *testing.T, mutate func(*Config)) *Manager {
	t.Helper()
	cfg := memoryOnlyConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { _ = m.Destroy(context.Background()) })
	return m
}

// A small hot key set and repeatedly read round-trips through the
// memory engine, with the routing cache populated after the first hit.
func TestSetGetRoundTrip(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	type payload struct {
		Name string `json:"name"`
	}
	if err := m.Set(ctx, "u:1", payload{Name: "A"}, SetOptions{}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var out payload
	for i := 0; i < 3; i++ {
		found, err := m.Get(ctx, "u:1", &out)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !found || out.Name != "A" {
			t.Fatalf("Get iteration %d: found=%v out=%+v", i, found, out)
		}
	}

	stats := m.GetStats(ctx)
	es, ok := stats.PerEngine[engine.NameMemory]
	if !ok || es.Hits != 3 {
		t.Fatalf("expected 3 hits on memory engine, got %+v", es)
	}
	if m.routing.len() < 1 {
		t.Fatalf("expected routing cache to hold at least one entry")
	}
}

// Has agrees with Get: absent before a set, present immediately after.
func TestHasMatchesGet(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	has, err := m.Has(ctx, "missing")
	if err != nil || has {
		t.Fatalf("expected absent key to report has=false, got has=%v err=%v", has, err)
	}

	if err := m.Set(ctx, "present", "v", SetOptions{}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	has, err = m.Has(ctx, "present")
	if err != nil || !has {
		t.Fatalf("expected present key to report has=true, got has=%v err=%v", has, err)
	}
	var out string
	found, err := m.Get(ctx, "present", &out)
	if err != nil || !found || out != "v" {
		t.Fatalf("Get mismatch: found=%v out=%q err=%v", found, out, err)
	}
}

// TTL expiry removes the entry and emits exactly one expired event for
// the key.
func TestTTLExpiry(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	var mu sync.Mutex
	var expiredKeys []string
	m.On(func(e events.Event) {
		if e.Type == events.TypeExpired {
			mu.Lock()
			expiredKeys = append(expiredKeys, e.Key)
			mu.Unlock()
		}
	})

	if err := m.Set(ctx, "k", "v", SetOptions{TTL: 50 * time.Millisecond}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	var out string
	found, err := m.Get(ctx, "k", &out)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Fatalf("expected expired key to be absent, got %q", out)
	}

	stats := m.GetStats(ctx)
	if stats.ExpiredCount != 1 {
		t.Fatalf("expected ExpiredCount=1, got %d", stats.ExpiredCount)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(expiredKeys) != 1 || expiredKeys[0] != "k" {
		t.Fatalf("expected exactly one expired event for key %q, got %v", "k", expiredKeys)
	}
}

// LRU eviction at capacity evicts the least recently accessed key among
// the resident set.
func TestLRUEvictionAtCapacity(t *testing.T) {
	m := newTestManager(t, func(cfg *Config) {
		cfg.Engines[engine.NameMemory] = EngineConfig{Enabled: true, MaxSize: 1 << 30, MaxItems: 3}
	})
	ctx := context.Background()

	for _, k := range []string{"k1", "k2", "k3"} {
		if err := m.Set(ctx, k, k, SetOptions{}); err != nil {
			t.Fatalf("Set(%s): %v", k, err)
		}
	}
	// Touch k1 so it is no longer the least-recently-used.
	var out string
	if _, err := m.Get(ctx, "k1", &out); err != nil {
		t.Fatalf("Get(k1): %v", err)
	}
	if err := m.Set(ctx, "k4", "k4", SetOptions{}); err != nil {
		t.Fatalf("Set(k4): %v", err)
	}

	keys, err := m.Keys(ctx, engine.NameMemory)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	resident := make(map[string]bool, len(keys))
	for _, k := range keys {
		resident[k] = true
	}
	if len(resident) != 3 || !resident["k1"] || !resident["k3"] || !resident["k4"] || resident["k2"] {
		t.Fatalf("expected resident keys {k1,k3,k4}, got %v", keys)
	}
}

// MSet never aborts on a single item's failure and reports exactly one
// outcome per item.
func TestMSetPartialFailure(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	items := map[string]BatchSetItem{
		"":   {Value: 1},
		"ok": {Value: 2},
	}
	result := m.MSet(ctx, items)

	if len(result.Success)+len(result.Failed) != len(items) {
		t.Fatalf("expected %d total outcomes, got success=%v failed=%v", len(items), result.Success, result.Failed)
	}
	foundFailure := false
	for _, f := range result.Failed {
		if f.Key == "" {
			foundFailure = true
			if f.Err == nil {
				t.Fatalf("expected a non-nil error for the invalid key")
			}
		}
	}
	if !foundFailure {
		t.Fatalf("expected the empty key to fail, got %+v", result)
	}

	var out float64
	found, err := m.Get(ctx, "ok", &out)
	if err != nil || !found || out != 2 {
		t.Fatalf("expected ok=2 to have been set, found=%v out=%v err=%v", found, out, err)
	}
}

// Clear(engine) empties that engine's keys and resets its stats size to
// zero.
func TestClearEmptiesEngine(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	if err := m.Set(ctx, "a", "1", SetOptions{}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := m.Set(ctx, "b", "2", SetOptions{}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := m.Clear(ctx, engine.NameMemory); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	keys, err := m.Keys(ctx, engine.NameMemory)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("expected no keys after clear, got %v", keys)
	}
	stats := m.GetStats(ctx)
	if es := stats.PerEngine[engine.NameMemory]; es.Size != 0 || es.ItemCount != 0 {
		t.Fatalf("expected zeroed engine stats after clear, got %+v", es)
	}
}

// Hit rate is hits/(hits+misses), 0 with no requests.
func TestHitRateZeroWithNoRequests(t *testing.T) {
	m := newTestManager(t, nil)
	stats := m.GetStats(context.Background())
	if stats.HitRate != 0 {
		t.Fatalf("expected hit rate 0 before any request, got %v", stats.HitRate)
	}
}

// Remember fetches on miss, stores the result, and skips the fetcher on
// a subsequent hit.
func TestRememberFetchesOnceOnHit(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	calls := 0
	fetch := func(ctx context.Context) (interface{}, error) {
		calls++
		return "fetched", nil
	}

	var out string
	if err := m.Remember(ctx, "memo", fetch, RememberOptions{}, &out); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if out != "fetched" || calls != 1 {
		t.Fatalf("expected one fetch on miss, got out=%q calls=%d", out, calls)
	}

	out = ""
	if err := m.Remember(ctx, "memo", fetch, RememberOptions{}, &out); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if out != "fetched" || calls != 1 {
		t.Fatalf("expected the fetcher not to run again on hit, got out=%q calls=%d", out, calls)
	}
}

// Disposed: after Destroy, further operations return ErrDisposed.
func TestDestroyRejectsFurtherOperations(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()
	if err := m.Destroy(ctx); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if err := m.Set(ctx, "k", "v", SetOptions{}); err != ErrDisposed {
		t.Fatalf("expected ErrDisposed after Destroy, got %v", err)
	}
}

// Negative TTL is rejected as InvalidOptions before any side effect.
func TestSetRejectsNegativeTTL(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()
	if err := m.Set(ctx, "k", "v", SetOptions{TTL: -1}); err != ErrInvalidOptions {
		t.Fatalf("expected ErrInvalidOptions, got %v", err)
	}
	has, _ := m.Has(ctx, "k")
	if has {
		t.Fatalf("expected no residue from a rejected set")
	}
}

// Off stops a previously registered listener from receiving further
// events.
func TestOffStopsListener(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	var mu sync.Mutex
	var count int
	id := m.On(func(events.Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	if err := m.Set(ctx, "a", "1", SetOptions{}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	m.Off(id)
	if err := m.Set(ctx, "b", "2", SetOptions{}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if count != 2 {
		t.Fatalf("expected exactly 2 events (strategy and set) before Off, got %d", count)
	}
}

// Key validation: empty and overlong keys are rejected.
func TestValidateKey(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	if err := m.Set(ctx, "", "v", SetOptions{}); err != ErrInvalidKey {
		t.Fatalf("expected ErrInvalidKey for empty key, got %v", err)
	}

	long := make([]byte, 251)
	for i := range long {
		long[i] = 'a'
	}
	if err := m.Set(ctx, string(long), "v", SetOptions{}); err != ErrInvalidKey {
		t.Fatalf("expected ErrInvalidKey for overlong key, got %v", err)
	}
}
