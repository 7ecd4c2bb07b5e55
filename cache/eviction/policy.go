// Package eviction implements the capacity-bounded eviction policies a
// Storage Engine applies when it must pick a victim key: LRU, LFU, FIFO,
// MRU, Random, TTL, and ARC.
//
// Every policy is observed through the same lifecycle: RecordAdd when a key
// enters the engine (the memory engine also calls it again when an
// existing key is overwritten), RecordAccess on a read, RemoveKey when a
// key leaves outside of
// eviction, and Evict to pick and remove the next victim. All policies
// break ties by insertion order (earliest first).
package eviction

import "time"

// Policy is the shared contract every eviction strategy implements.
type Policy interface {
	// RecordAdd registers a newly inserted key. ttl is zero when the key
	// has no expiry; policies that care about expiry (TTL) use it.
	RecordAdd(key string, ttl time.Duration)
	// RecordAccess notes a read of key.
	RecordAccess(key string)
	// RemoveKey drops key from the policy's bookkeeping without counting
	// it as an eviction.
	RemoveKey(key string)
	// Evict returns the next victim key and true, or ("", false) if the
	// policy holds no keys.
	Evict() (string, bool)
	// Clear resets the policy to empty.
	Clear()
	// Stats reports policy-specific counters for diagnostics.
	Stats() Stats
	// Len reports how many keys the policy is currently tracking.
	Len() int
}

// Stats captures generic, cross-policy counters.
type Stats struct {
	Name      string
	Tracked   int
	Evictions uint64
}

// New constructs the named policy, falling back to LRU for unknown names.
// capacityHint is only consulted by policies that need a target resident
// size up front (currently ARC); pass 0 to use its default. The bool
// return reports whether name was recognized.
func New(name string, capacityHint int, warn func(string)) (Policy, bool) {
	switch name {
	case "lru", "":
		return NewLRU(), true
	case "lfu":
		return NewLFU(), true
	case "fifo":
		return NewFIFO(), true
	case "mru":
		return NewMRU(), true
	case "random":
		return NewRandom(), true
	case "ttl":
		return NewTTL(), true
	case "arc":
		return NewARC(capacityHint), true
	default:
		if warn != nil {
			warn("unknown eviction policy " + name + ", falling back to lru")
		}
		return NewLRU(), false
	}
}

// Switch recreates a policy of the given name and replays every currently
// resident key through RecordAdd, preserving residency across a runtime
// policy change.
func Switch(name string, capacityHint int, keys []string, ttls map[string]time.Duration, warn func(string)) Policy {
	p, _ := New(name, capacityHint, warn)
	for _, k := range keys {
		p.RecordAdd(k, ttls[k])
	}
	return p
}
