package eviction

import (
	"container/list"
	"sync"
	"time"
)

// LRU evicts the least-recently-used key: the one sitting at the back of
// an access-ordered doubly-linked list, tracking keys only so any engine
// can plug it in regardless of how it stores values.
type LRU struct {
	mu       sync.Mutex
	list     *list.List
	elements map[string]*list.Element
	evicted  uint64
}

// NewLRU constructs an empty LRU policy.
func NewLRU() *LRU {
	return &LRU{
		list:     list.New(),
		elements: make(map[string]*list.Element),
	}
}

func (p *LRU) RecordAdd(key string, _ time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.elements[key]; ok {
		p.list.MoveToFront(el)
		return
	}
	p.elements[key] = p.list.PushFront(key)
}

func (p *LRU) RecordAccess(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.elements[key]; ok {
		p.list.MoveToFront(el)
	}
}

func (p *LRU) RemoveKey(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.elements[key]; ok {
		p.list.Remove(el)
		delete(p.elements, key)
	}
}

func (p *LRU) Evict() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el := p.list.Back()
	if el == nil {
		return "", false
	}
	key := el.Value.(string)
	p.list.Remove(el)
	delete(p.elements, key)
	p.evicted++
	return key, true
}

func (p *LRU) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.list.Init()
	p.elements = make(map[string]*list.Element)
}

func (p *LRU) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Name: "lru", Tracked: p.list.Len(), Evictions: p.evicted}
}

func (p *LRU) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.list.Len()
}
