package strategy

import (
	"testing"
	"time"

	"github.com/poly1603/ldesign-cache-sub004/cache/engine"
)

func TestConsultSmallShortPrefersMemory(t *testing.T) {
	s := New(Config{Enabled: true, DefaultEngine: engine.NameMemory}, nil)
	d := s.Consult("k1", 100, time.Second, TypeScalar)
	if d.Engine != engine.NameMemory {
		t.Fatalf("expected memory, got %s", d.Engine)
	}
	if d.Confidence <= 0.5 {
		t.Fatalf("expected high confidence for single-rule match, got %v", d.Confidence)
	}
}

func TestConsultLargeValueRoutesToIndexed(t *testing.T) {
	s := New(Config{Enabled: true, DefaultEngine: engine.NameMemory}, nil)
	d := s.Consult("k1", 2<<20, time.Minute, TypeScalar)
	if d.Engine != engine.NameIndexed {
		t.Fatalf("expected indexed-persistent for large value, got %s", d.Engine)
	}
}

func TestConsultBinaryAlwaysRoutesToIndexed(t *testing.T) {
	s := New(Config{Enabled: true, DefaultEngine: engine.NameMemory}, nil)
	d := s.Consult("k1", 10, time.Second, TypeBinary)
	if d.Engine != engine.NameIndexed {
		t.Fatalf("expected indexed-persistent for binary value, got %s", d.Engine)
	}
}

func TestConsultObjectAlwaysRoutesToIndexed(t *testing.T) {
	s := New(Config{Enabled: true, DefaultEngine: engine.NameMemory}, nil)
	d := s.Consult("k1", 10, time.Second, TypeObject)
	if d.Engine != engine.NameIndexed {
		t.Fatalf("expected indexed-persistent for object value, got %s", d.Engine)
	}
}

func TestConsultDisabledReturnsDefaultWithFixedConfidence(t *testing.T) {
	s := New(Config{Enabled: false, DefaultEngine: engine.NameLocal}, nil)
	d := s.Consult("k1", 100, time.Second, TypeScalar)
	if d.Engine != engine.NameLocal || d.Confidence != 0.5 || d.Reason != "strategy disabled" {
		t.Fatalf("unexpected decision when disabled: %+v", d)
	}
}

func TestConsultCompetingRulesLowerConfidence(t *testing.T) {
	s := New(Config{Enabled: true, DefaultEngine: engine.NameMemory}, nil)

	single := s.Consult("k1", 100, time.Second, TypeScalar)       // small+short, single rule
	competing := s.Consult("k2", 30_000, 12*time.Hour, TypeScalar) // medium+medium, two rules

	if competing.Confidence >= single.Confidence {
		t.Fatalf("expected competing-rule confidence (%v) lower than single-rule confidence (%v)", competing.Confidence, single.Confidence)
	}
}

func TestConsultPopulatesDecisionCache(t *testing.T) {
	s := New(Config{Enabled: true, DefaultEngine: engine.NameMemory}, nil)

	for i := 0; i < 10; i++ {
		s.Consult("k1", 100, time.Second, TypeScalar)
	}
	stats := s.CacheStats()
	if stats.HitRate() <= 0.5 {
		t.Fatalf("expected >50%% hit rate after warm-up, got %v", stats.HitRate())
	}
}

func TestConsultInvokesOnDecisionCallback(t *testing.T) {
	var seen Decision
	var calls int
	s := New(Config{Enabled: true, DefaultEngine: engine.NameMemory}, func(key string, d Decision) {
		calls++
		seen = d
	})
	s.Consult("k1", 100, time.Second, TypeScalar)
	if calls != 1 {
		t.Fatalf("expected 1 callback invocation, got %d", calls)
	}
	if seen.Engine != engine.NameMemory {
		t.Fatalf("expected callback to observe memory decision, got %+v", seen)
	}
}
