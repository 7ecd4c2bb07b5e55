package engine

import (
	"container/list"
	"sync"

	"github.com/poly1603/ldesign-cache-sub004/cache/util"
)

const defaultSizeCacheCapacity = 1024

// sizeCache memoizes the UTF-8 byte length of a value, keyed by a
// fingerprint of the value's text, bounded by an LRU cap so repeated
// size lookups for the same value skip re-measuring it.
type sizeCache struct {
	mu       sync.Mutex
	capacity int
	list     *list.List
	elements map[uint64]*list.Element
}

type sizeCacheEntry struct {
	fingerprint uint64
	size        int
}

func newSizeCache(capacity int) *sizeCache {
	if capacity <= 0 {
		capacity = defaultSizeCacheCapacity
	}
	return &sizeCache{
		capacity: capacity,
		list:     list.New(),
		elements: make(map[uint64]*list.Element),
	}
}

// sizeOf returns the UTF-8 byte size of value, consulting and populating
// the cache.
func (c *sizeCache) sizeOf(value string) int {
	fp := util.FingerprintKey(value)

	c.mu.Lock()
	if el, ok := c.elements[fp]; ok {
		c.list.MoveToFront(el)
		size := el.Value.(*sizeCacheEntry).size
		c.mu.Unlock()
		return size
	}
	c.mu.Unlock()

	size := util.UTF8Size(value)

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.elements[fp]; ok {
		c.list.MoveToFront(el)
		return el.Value.(*sizeCacheEntry).size
	}
	el := c.list.PushFront(&sizeCacheEntry{fingerprint: fp, size: size})
	c.elements[fp] = el
	for c.list.Len() > c.capacity {
		back := c.list.Back()
		if back == nil {
			break
		}
		entry := back.Value.(*sizeCacheEntry)
		c.list.Remove(back)
		delete(c.elements, entry.fingerprint)
	}
	return size
}
