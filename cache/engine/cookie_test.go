package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestCookieSetGetRoundTrip(t *testing.T) {
	c := NewCookie(filepath.Join(t.TempDir(), "jar.txt"), 0)
	ctx := context.Background()

	if err := c.SetItem(ctx, "session", "abc123", 0); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	value, ok, err := c.GetItem(ctx, "session")
	if err != nil || !ok || value != "abc123" {
		t.Fatalf("GetItem = %q, %v, %v", value, ok, err)
	}
}

func TestCookieSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jar.txt")
	ctx := context.Background()

	c1 := NewCookie(path, 0)
	_ = c1.SetItem(ctx, "k1", "v1", 0)

	c2 := NewCookie(path, 0)
	value, ok, err := c2.GetItem(ctx, "k1")
	if err != nil || !ok || value != "v1" {
		t.Fatalf("expected jar contents to persist across reopen, got %q %v %v", value, ok, err)
	}
}

func TestCookieRejectsOverQuota(t *testing.T) {
	c := NewCookie(filepath.Join(t.TempDir(), "jar.txt"), 8)
	ctx := context.Background()

	err := c.SetItem(ctx, "too-long-a-key", "too-long-a-value", 0)
	if err == nil {
		t.Fatal("expected quota error")
	}
}

func TestCookieExpiresByTTL(t *testing.T) {
	c := NewCookie(filepath.Join(t.TempDir(), "jar.txt"), 0)
	ctx := context.Background()

	_ = c.SetItem(ctx, "k1", "v1", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok, _ := c.GetItem(ctx, "k1")
	if ok {
		t.Fatal("expected expired cookie absent")
	}
}

func TestCookieClearEmptiesJar(t *testing.T) {
	c := NewCookie(filepath.Join(t.TempDir(), "jar.txt"), 0)
	ctx := context.Background()

	_ = c.SetItem(ctx, "k1", "v1", 0)
	_ = c.SetItem(ctx, "k2", "v2", 0)
	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	n, _ := c.Length(ctx)
	if n != 0 {
		t.Fatalf("expected empty jar after Clear, got %d keys", n)
	}
}

func TestCookieKeysSkipsExpired(t *testing.T) {
	c := NewCookie(filepath.Join(t.TempDir(), "jar.txt"), 0)
	ctx := context.Background()

	_ = c.SetItem(ctx, "fresh", "v1", 0)
	_ = c.SetItem(ctx, "stale", "v2", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	keys, err := c.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "fresh" {
		t.Fatalf("expected only [fresh], got %v", keys)
	}
}
