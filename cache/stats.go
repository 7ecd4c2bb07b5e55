package cache

import "sync/atomic"

// EngineStats reports one engine's contribution to the overall Stats.
type EngineStats struct {
	ItemCount int
	Size      int64
	Available bool
	Hits      uint64
	Misses    uint64
}

// Stats is the externally visible cache statistics record. Field
// updates are best-effort and need not be linearized with concurrent
// get/set of other entries.
type Stats struct {
	TotalItems  int
	TotalBytes  int64
	PerEngine   map[string]EngineStats
	HitRate     float64
	ExpiredCount uint64
}

// statCounters holds the atomic counters the manager updates on the hot
// path. Per-engine hits and misses live in perEngineCounters, kept in
// the manager's engineHits map; an entry is looked up (or created) under
// engineHitMu on every per-engine increment.
type statCounters struct {
	hits    atomic.Uint64
	misses  atomic.Uint64
	expired atomic.Uint64
}

type perEngineCounters struct {
	hits   atomic.Uint64
	misses atomic.Uint64
}

func newStatCounters() *statCounters {
	return &statCounters{}
}

func (s *statCounters) hitRate() float64 {
	hits := s.hits.Load()
	misses := s.misses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
