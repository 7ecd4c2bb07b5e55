// Package memory implements the Memory Manager: tracks aggregate and
// per-engine usage against a configured limit, classifies pressure into
// levels, and runs the emergency cleanup cascade (which cache.Manager
// triggers when pressure reaches high or critical).
package memory

import (
	"sync"
	"time"
)

// PressureLevel classifies how close usage is to the configured limit,
// at the 80%/90%/95% thresholds below.
type PressureLevel int

const (
	PressureLow PressureLevel = iota
	PressureMedium
	PressureHigh
	PressureCritical
)

func (p PressureLevel) String() string {
	switch p {
	case PressureMedium:
		return "medium"
	case PressureHigh:
		return "high"
	case PressureCritical:
		return "critical"
	default:
		return "low"
	}
}

const (
	mediumThreshold   = 0.80
	highThreshold     = 0.90
	criticalThreshold = 0.95
)

func classify(usagePercentage float64) PressureLevel {
	switch {
	case usagePercentage >= criticalThreshold:
		return PressureCritical
	case usagePercentage >= highThreshold:
		return PressureHigh
	case usagePercentage >= mediumThreshold:
		return PressureMedium
	default:
		return PressureLow
	}
}

// Snapshot reports the manager's current accounting.
type Snapshot struct {
	TotalUsed       int64
	Limit           int64
	UsagePercentage float64
	PerEngine       map[string]int64
	Pressure        PressureLevel
}

// Cleaner is whatever owns reclaimable state (cache.Manager registers its
// storage engines, the routing cache and the serialization cache). The manager's
// emergency cascade calls Cleanup on each registered Cleaner in order.
type Cleaner interface {
	Name() string
	Cleanup() (reclaimed int64)
}

// TrackedCleaner is a Cleaner whose reclaimed bytes were previously
// counted in the manager's accounting via Report(EngineName(), ...).
// EmergencyCleanup decrements that accounting by what Cleanup actually
// freed. Cleaners that never reported usage in the first place (the
// routing and serialization caches) implement only
// Cleaner, since there is nothing in the totals to subtract back out.
type TrackedCleaner interface {
	Cleaner
	EngineName() string
}

// Manager tracks memory usage across engines and classifies pressure.
// Not a singleton: each cache.Manager instance owns its own
// memory.Manager.
type Manager struct {
	mu        sync.Mutex
	limit     int64
	perEngine map[string]int64
	total     int64
	pressure  PressureLevel

	cleaners []Cleaner
	onLevel  func(PressureLevel)

	broadcastInterval time.Duration
	stop              chan struct{}
	stopped           bool
}

// NewManager constructs a Manager with the given byte limit. A
// non-positive broadcastInterval disables the periodic broadcast
// goroutine (tests construct managers this way to avoid background
// noise).
func NewManager(limit int64, broadcastInterval time.Duration, onLevel func(PressureLevel)) *Manager {
	m := &Manager{
		limit:             limit,
		perEngine:         make(map[string]int64),
		onLevel:           onLevel,
		broadcastInterval: broadcastInterval,
		stop:              make(chan struct{}),
	}
	if broadcastInterval > 0 {
		go m.broadcastLoop()
	}
	return m
}

// RegisterCleaner adds a participant in the emergency cleanup cascade.
func (m *Manager) RegisterCleaner(c Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleaners = append(m.cleaners, c)
}

// Report applies a signed delta to engine's usage and the aggregate
// total, reclassifying pressure and invoking the level callback on
// transition.
func (m *Manager) Report(engine string, delta int64) {
	m.mu.Lock()
	m.perEngine[engine] += delta
	if m.perEngine[engine] < 0 {
		m.perEngine[engine] = 0
	}
	m.total += delta
	if m.total < 0 {
		m.total = 0
	}
	prev := m.pressure
	next := m.currentPressureLocked()
	m.pressure = next
	m.mu.Unlock()

	if next != prev && m.onLevel != nil {
		m.onLevel(next)
	}
}

func (m *Manager) currentPressureLocked() PressureLevel {
	if m.limit <= 0 {
		return PressureLow
	}
	return classify(float64(m.total) / float64(m.limit))
}

// RequestMemory is the admission check a Manager calls before writing
// size additional bytes. It does not reserve the bytes; callers report
// the delta via Report once the write actually happens.
func (m *Manager) RequestMemory(size int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.limit <= 0 {
		return true
	}
	return m.total+size <= m.limit
}

// Snapshot returns a point-in-time view of usage.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	perEngine := make(map[string]int64, len(m.perEngine))
	for k, v := range m.perEngine {
		perEngine[k] = v
	}
	usage := 0.0
	if m.limit > 0 {
		usage = float64(m.total) / float64(m.limit)
	}
	return Snapshot{
		TotalUsed:       m.total,
		Limit:           m.limit,
		UsagePercentage: usage,
		PerEngine:       perEngine,
		Pressure:        m.pressure,
	}
}

// EmergencyCleanup runs the reclaim cascade: each registered Cleaner's
// Cleanup in registration order (for cache.Manager: its engines, then
// the routing and serialization caches), returning the total bytes
// reclaimed. Bytes freed by a TrackedCleaner are also subtracted from
// this manager's own accounting via Report, so usage and pressure drop
// to reflect what was actually reclaimed instead of staying pinned at
// their pre-cleanup level.
func (m *Manager) EmergencyCleanup() int64 {
	m.mu.Lock()
	cleaners := make([]Cleaner, len(m.cleaners))
	copy(cleaners, m.cleaners)
	m.mu.Unlock()

	var reclaimed int64
	for _, c := range cleaners {
		freed := c.Cleanup()
		reclaimed += freed
		if freed <= 0 {
			continue
		}
		if tc, ok := c.(TrackedCleaner); ok {
			m.Report(tc.EngineName(), -freed)
		}
	}
	return reclaimed
}

func (m *Manager) broadcastLoop() {
	ticker := time.NewTicker(m.broadcastInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			level := m.pressure
			m.mu.Unlock()
			if m.onLevel != nil {
				m.onLevel(level)
			}
		case <-m.stop:
			return
		}
	}
}

// Close stops the periodic broadcast goroutine, if any.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.stopped = true
	close(m.stop)
}
