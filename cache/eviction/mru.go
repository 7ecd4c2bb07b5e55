package eviction

import (
	"container/list"
	"sync"
	"time"
)

// MRU evicts the most-recently-used key: same recency list as LRU, but the
// victim is taken from the front instead of the back.
type MRU struct {
	mu       sync.Mutex
	list     *list.List
	elements map[string]*list.Element
	evicted  uint64
}

// NewMRU constructs an empty MRU policy.
func NewMRU() *MRU {
	return &MRU{
		list:     list.New(),
		elements: make(map[string]*list.Element),
	}
}

func (p *MRU) RecordAdd(key string, _ time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.elements[key]; ok {
		p.list.MoveToFront(el)
		return
	}
	p.elements[key] = p.list.PushFront(key)
}

func (p *MRU) RecordAccess(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.elements[key]; ok {
		p.list.MoveToFront(el)
	}
}

func (p *MRU) RemoveKey(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.elements[key]; ok {
		p.list.Remove(el)
		delete(p.elements, key)
	}
}

func (p *MRU) Evict() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el := p.list.Front()
	if el == nil {
		return "", false
	}
	key := el.Value.(string)
	p.list.Remove(el)
	delete(p.elements, key)
	p.evicted++
	return key, true
}

func (p *MRU) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.list.Init()
	p.elements = make(map[string]*list.Element)
}

func (p *MRU) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Name: "mru", Tracked: p.list.Len(), Evictions: p.evicted}
}

func (p *MRU) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.list.Len()
}
