package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultThrottleWindow   = 100 * time.Millisecond
	defaultThrottleCapacity = 1024
)

// throttleKey identifies one (type, key) pair for throttle bookkeeping.
type throttleKey struct {
	Type Type
	Key  string
}

// subscription pairs a listener with the id Unsubscribe removes it by.
type subscription struct {
	id uint64
	l  Listener
}

// Bus is the synchronous, registration-ordered event dispatcher with
// per-key throttling, backed by an in-process listener list rather than
// a message broker since this is a single-process library.
type Bus struct {
	window time.Duration

	mu        sync.Mutex
	listeners []subscription
	nextID    uint64

	// Ring buffer of throttleKeys in insertion order, bounded to
	// defaultThrottleCapacity, paired with their last-emit time so the
	// structure never grows unboundedly.
	order    []throttleKey
	lastSeen map[throttleKey]time.Time
	capacity int
}

// NewBus constructs a Bus. window <= 0 uses the default of 100ms.
func NewBus(window time.Duration) *Bus {
	if window <= 0 {
		window = defaultThrottleWindow
	}
	return &Bus{
		window:   window,
		lastSeen: make(map[throttleKey]time.Time),
		capacity: defaultThrottleCapacity,
	}
}

// Subscribe registers a listener, called in registration order on every
// dispatched (non-throttled) event. The returned id is passed to
// Unsubscribe to remove it again.
func (b *Bus) Subscribe(l Listener) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, subscription{id: id, l: l})
	return id
}

// Unsubscribe removes the listener previously registered under id. A
// no-op if id is unknown (already removed, or never issued).
func (b *Bus) Unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.listeners {
		if s.id == id {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			return
		}
	}
}

// Emit dispatches ev to every listener unless it is throttled: within the
// sliding window, only the first event of a given (type, key) is
// dispatched. Listener panics are recovered so one bad
// listener cannot abort dispatch to the rest.
func (b *Bus) Emit(ev Event) {
	b.mu.Lock()
	if !b.admitLocked(ev) {
		b.mu.Unlock()
		return
	}
	listeners := make([]subscription, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	ev.ID = uuid.New()
	for _, s := range listeners {
		dispatchSafely(s.l, ev)
	}
}

// admitLocked reports whether ev should be dispatched, updating throttle
// state. Caller must hold b.mu.
func (b *Bus) admitLocked(ev Event) bool {
	key := throttleKey{Type: ev.Type, Key: ev.Key}
	now := time.Now()

	if last, ok := b.lastSeen[key]; ok && now.Sub(last) < b.window {
		return false
	}

	if _, existed := b.lastSeen[key]; !existed {
		b.order = append(b.order, key)
		for len(b.order) > b.capacity {
			oldest := b.order[0]
			b.order = b.order[1:]
			delete(b.lastSeen, oldest)
		}
	}
	b.lastSeen[key] = now
	return true
}

func dispatchSafely(l Listener, ev Event) {
	defer func() { _ = recover() }()
	l(ev)
}
