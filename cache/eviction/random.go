package eviction

import (
	"math/rand"
	"sync"
	"time"
)

// Random evicts a uniformly random resident key. Backed by a flat slice
// with O(1) swap-remove so no auxiliary ordering structure is needed.
type Random struct {
	mu      sync.Mutex
	keys    []string
	index   map[string]int
	evicted uint64
	rng     *rand.Rand
}

// NewRandom constructs an empty Random policy.
func NewRandom() *Random {
	return &Random{
		index: make(map[string]int),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *Random) RecordAdd(key string, _ time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.index[key]; ok {
		return
	}
	p.index[key] = len(p.keys)
	p.keys = append(p.keys, key)
}

func (p *Random) RecordAccess(string) {}

func (p *Random) RemoveKey(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeAt(key)
}

// removeAt swap-removes key from the slice. Caller holds p.mu.
func (p *Random) removeAt(key string) {
	i, ok := p.index[key]
	if !ok {
		return
	}
	last := len(p.keys) - 1
	p.keys[i] = p.keys[last]
	p.index[p.keys[i]] = i
	p.keys = p.keys[:last]
	delete(p.index, key)
}

func (p *Random) Evict() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 {
		return "", false
	}
	i := p.rng.Intn(len(p.keys))
	key := p.keys[i]
	p.removeAt(key)
	p.evicted++
	return key, true
}

func (p *Random) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = nil
	p.index = make(map[string]int)
}

func (p *Random) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Name: "random", Tracked: len(p.keys), Evictions: p.evicted}
}

func (p *Random) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}
