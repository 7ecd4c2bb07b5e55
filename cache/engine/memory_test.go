package engine

import (
	"context"
	"testing"
	"time"
)

func TestMemorySetGetRoundTrip(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	if err := m.SetItem(ctx, "k1", "v1", 0); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	value, ok, err := m.GetItem(ctx, "k1")
	if err != nil || !ok || value != "v1" {
		t.Fatalf("GetItem = %q, %v, %v", value, ok, err)
	}
}

func TestMemoryExpiresByTTL(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	if err := m.SetItem(ctx, "k1", "v1", time.Millisecond); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	_, ok, _ := m.GetItem(ctx, "k1")
	if ok {
		t.Fatal("expected expired item to be absent")
	}
}

func TestMemoryEvictsWhenMaxItemsExceeded(t *testing.T) {
	m := NewMemory(WithMaxItems(2))
	defer m.Close()
	ctx := context.Background()

	_ = m.SetItem(ctx, "k1", "v1", 0)
	_ = m.SetItem(ctx, "k2", "v2", 0)
	_ = m.SetItem(ctx, "k3", "v3", 0)

	n, _ := m.Length(ctx)
	if n > 2 {
		t.Fatalf("expected at most 2 resident items, got %d", n)
	}
}

func TestMemoryEvictsWhenMaxSizeExceeded(t *testing.T) {
	m := NewMemory(WithMaxSize(10))
	defer m.Close()
	ctx := context.Background()

	_ = m.SetItem(ctx, "k1", "01234", 0)
	_ = m.SetItem(ctx, "k2", "56789", 0)
	_ = m.SetItem(ctx, "k3", "abcde", 0)

	if m.UsedSize() > 10 {
		t.Fatalf("expected used size bounded by 10, got %d", m.UsedSize())
	}
}

func TestMemoryRemoveAndClear(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	_ = m.SetItem(ctx, "k1", "v1", 0)
	if err := m.RemoveItem(ctx, "k1"); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if has, _ := m.HasItem(ctx, "k1"); has {
		t.Fatal("expected k1 removed")
	}

	_ = m.SetItem(ctx, "k2", "v2", 0)
	_ = m.SetItem(ctx, "k3", "v3", 0)
	if err := m.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n, _ := m.Length(ctx); n != 0 {
		t.Fatalf("expected 0 items after Clear, got %d", n)
	}
	if m.UsedSize() != 0 {
		t.Fatalf("expected 0 used size after Clear, got %d", m.UsedSize())
	}
}

func TestMemoryCleanupRemovesExpiredEntriesOnly(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	_ = m.SetItem(ctx, "expiring", "v1", time.Millisecond)
	_ = m.SetItem(ctx, "persistent", "v2", 0)
	time.Sleep(5 * time.Millisecond)

	removed, err := m.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 expired entry removed, got %d", removed)
	}
	if has, _ := m.HasItem(ctx, "persistent"); !has {
		t.Fatal("expected non-expired entry to survive cleanup")
	}
}

func TestMemoryBatchOperations(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	setErrs := m.BatchSet(ctx, map[string]BatchItem{
		"a": {Value: "1"},
		"b": {Value: "2"},
	})
	for k, err := range setErrs {
		if err != nil {
			t.Fatalf("BatchSet[%s]: %v", k, err)
		}
	}

	got := m.BatchGet(ctx, []string{"a", "b", "missing"})
	if !got["a"].Found || got["a"].Value != "1" {
		t.Fatalf("BatchGet[a] = %+v", got["a"])
	}
	if got["missing"].Found {
		t.Fatal("expected missing key not found")
	}

	has := m.BatchHas(ctx, []string{"a", "missing"})
	if !has["a"] || has["missing"] {
		t.Fatalf("BatchHas = %+v", has)
	}

	removeErrs := m.BatchRemove(ctx, []string{"a"})
	if removeErrs["a"] != nil {
		t.Fatalf("BatchRemove[a]: %v", removeErrs["a"])
	}
	if has, _ := m.HasItem(ctx, "a"); has {
		t.Fatal("expected a removed after BatchRemove")
	}
}
