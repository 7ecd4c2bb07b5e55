package monitoring

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/poly1603/ldesign-cache-sub004/cache"
	"github.com/poly1603/ldesign-cache-sub004/cache/engine"
)

func newTestManager(t *testing.T) *cache.Manager {
	t.Helper()
	cfg := cache.DefaultConfig()
	cfg.MaxMemory = 1 << 20
	cfg.CleanupInterval = 0
	cfg.Engines = map[string]cache.EngineConfig{
		engine.NameMemory: {Enabled: true},
	}
	m, err := cache.NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { _ = m.Destroy(context.Background()) })
	return m
}

func TestExporterReportsEngineAndMemoryMetrics(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	if err := m.Set(ctx, "k1", "v1", cache.SetOptions{}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var out string
	if _, err := m.Get(ctx, "k1", &out); err != nil {
		t.Fatalf("Get: %v", err)
	}

	exp := NewExporter(m)
	count := testutil.CollectAndCount(exp,
		"ldesign_cache_engine_item_count",
		"ldesign_cache_engine_hits_total",
		"ldesign_cache_hit_rate",
		"ldesign_cache_memory_used_bytes",
	)
	if count == 0 {
		t.Fatalf("expected the exporter to report at least one sample, got 0")
	}
}

func TestExporterRegistryIsIsolatedPerInstance(t *testing.T) {
	m1 := newTestManager(t)
	m2 := newTestManager(t)

	exp1 := NewExporter(m1)
	exp2 := NewExporter(m2)

	// Registering both in the same process must not panic with a
	// duplicate-metric error, since each Exporter owns its own registry.
	_ = exp1.Registry()
	_ = exp2.Registry()
}
