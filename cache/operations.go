package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/poly1603/ldesign-cache-sub004/cache/engine"
	"github.com/poly1603/ldesign-cache-sub004/cache/events"
	"github.com/poly1603/ldesign-cache-sub004/cache/memory"
	"github.com/poly1603/ldesign-cache-sub004/cache/util"
)

// Set stores value under key. Per-call Encrypt/ObfuscateKey
// requests only take effect when the Manager's Security layer was itself
// configured for that capability (a single secret and a single
// obfuscation tag back the whole Manager, so encryption/obfuscation is
// scoped to the instance, not to individual keys).
func (m *Manager) Set(ctx context.Context, key string, value interface{}, opts SetOptions) error {
	if err := m.checkDisposed(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}
	if opts.TTL < 0 {
		return ErrInvalidOptions
	}

	ttl := opts.TTL
	if ttl == 0 {
		ttl = m.cfg.DefaultTTL
	}

	text, dataType, err := m.ser.serialize(value)
	if err != nil {
		return err
	}
	if opts.DataType != "" {
		dataType = opts.DataType
	}

	stored := text
	encrypted := false
	if opts.Encrypt || m.cfg.Security.EncryptValues {
		enc, err := m.security.EncodeValue(text)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCryptoFail, err)
		}
		stored = enc
		encrypted = m.cfg.Security.EncryptValues
	}

	valueSize := int64(util.UTF8Size(stored))
	if !m.memory.RequestMemory(valueSize) {
		return ErrQuotaExceeded
	}

	eng, err := m.pickEngineForSet(key, valueSize, ttl, opts)
	if err != nil {
		return err
	}

	obfuscate := opts.ObfuscateKey || m.cfg.Security.ObfuscateKeys
	engineKey := m.effectiveKey(key, obfuscate)

	if err := eng.SetItem(ctx, engineKey, stored, ttl); err != nil {
		if errors.Is(err, engine.ErrQuota) {
			m.memory.EmergencyCleanup()
			if err := eng.SetItem(ctx, engineKey, stored, ttl); err != nil {
				return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
			}
		} else {
			return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
		}
	}

	now := time.Now()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = &entry{
		createdAt:      now,
		lastAccessedAt: now,
		expiresAt:      expiresAt,
		dataType:       dataType,
		size:           int(valueSize),
		engine:         eng.Name(),
		encrypted:      encrypted,
	}
	m.mu.Unlock()

	m.routing.record(key, eng.Name())
	m.memory.Report(eng.Name(), valueSize)
	m.recordEngineOutcome(eng.Name(), true)

	m.events.Emit(events.Event{
		Type:      events.TypeSet,
		Key:       key,
		Value:     stored,
		Engine:    eng.Name(),
		Timestamp: now,
		DataSize:  valueSize,
		DataType:  string(dataType),
		TTL:       ttl,
	})
	return nil
}

// Get retrieves key's value, returning (false, nil) when the key is
// absent or has expired; that is never treated as an error. out
// receives the deserialized value.
func (m *Manager) Get(ctx context.Context, key string, out interface{}) (bool, error) {
	if err := m.checkDisposed(); err != nil {
		return false, err
	}
	if err := validateKey(key); err != nil {
		return false, err
	}

	obfuscate := m.cfg.Security.ObfuscateKeys
	engineKey := m.effectiveKey(key, obfuscate)

	if engName, ok := m.routing.lookup(key); ok {
		if eng, ok := m.engines[engName]; ok && eng.Available() {
			if found, err := m.readFrom(ctx, eng, key, engineKey, out); err == nil && found {
				return true, nil
			}
		}
	}

	for _, name := range m.priority {
		eng, ok := m.engines[name]
		if !ok || !eng.Available() {
			continue
		}
		found, err := m.readFrom(ctx, eng, key, engineKey, out)
		if err != nil {
			continue // read failures fall through to the next engine
		}
		if found {
			m.routing.record(key, eng.Name())
			return true, nil
		}
	}

	m.recordMiss(key)
	return false, nil
}

// readFrom fetches key from eng, decrypts/deserializes into out, and
// handles lazy TTL expiry.
func (m *Manager) readFrom(ctx context.Context, eng engine.Engine, key, engineKey string, out interface{}) (bool, error) {
	raw, ok, err := eng.GetItem(ctx, engineKey)
	if err != nil {
		return false, err
	}
	if !ok {
		m.mu.RLock()
		ent, hasEntry := m.entries[key]
		m.mu.RUnlock()
		if hasEntry && ent.engine == eng.Name() && ent.expired(time.Now()) {
			m.expireKey(ctx, key, engineKey, eng)
		}
		m.engineHitMu.Lock()
		c, exists := m.engineHits[eng.Name()]
		if !exists {
			c = &perEngineCounters{}
			m.engineHits[eng.Name()] = c
		}
		m.engineHitMu.Unlock()
		c.misses.Add(1)
		return false, nil
	}

	m.mu.RLock()
	ent, hasEntry := m.entries[key]
	m.mu.RUnlock()

	now := time.Now()
	if hasEntry && ent.expired(now) {
		m.expireKey(ctx, key, engineKey, eng)
		return false, nil
	}

	text := raw
	if hasEntry && ent.encrypted {
		text, err = m.security.DecodeValue(raw)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrDeserializationFail, err)
		}
	}

	if out != nil {
		if err := util.Unmarshal([]byte(text), out); err != nil {
			return false, fmt.Errorf("%w: %v", ErrDeserializationFail, err)
		}
	}

	if hasEntry {
		m.mu.Lock()
		ent.recordAccess(now)
		m.mu.Unlock()
	}

	m.recordHit(key, eng.Name())
	m.events.Emit(events.Event{Type: events.TypeGet, Key: key, Engine: eng.Name(), Timestamp: now})
	return true, nil
}

func (m *Manager) expireKey(ctx context.Context, key, engineKey string, eng engine.Engine) {
	_ = eng.RemoveItem(ctx, engineKey)
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	m.routing.forget(key)
	m.counters.expired.Add(1)
	m.events.Emit(events.Event{Type: events.TypeExpired, Key: key, Engine: eng.Name(), Timestamp: time.Now()})
}

// Remove deletes key from whichever engine the routing cache or a full
// scan finds it in.
func (m *Manager) Remove(ctx context.Context, key string) error {
	if err := m.checkDisposed(); err != nil {
		return err
	}
	obfuscate := m.cfg.Security.ObfuscateKeys
	engineKey := m.effectiveKey(key, obfuscate)

	m.mu.Lock()
	ent, ok := m.entries[key]
	delete(m.entries, key)
	m.mu.Unlock()

	if ok {
		if eng, exists := m.engines[ent.engine]; exists {
			_ = eng.RemoveItem(ctx, engineKey)
		}
	} else {
		for _, eng := range m.engines {
			_ = eng.RemoveItem(ctx, engineKey)
		}
	}

	m.routing.forget(key)
	m.security.ForgetKey(m.cfg.KeyPrefix + key)
	m.events.Emit(events.Event{Type: events.TypeRemove, Key: key, Timestamp: time.Now()})
	return nil
}

// Clear empties one named engine, or every engine when engineName is "".
func (m *Manager) Clear(ctx context.Context, engineName string) error {
	if err := m.checkDisposed(); err != nil {
		return err
	}
	targets := m.engines
	if engineName != "" {
		eng, ok := m.engines[engineName]
		if !ok {
			return ErrEngineUnavailable
		}
		targets = map[string]engine.Engine{engineName: eng}
	}
	for name, eng := range targets {
		if err := eng.Clear(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
		}
		m.forgetEntriesFor(name)
	}
	m.events.Emit(events.Event{Type: events.TypeClear, Engine: engineName, Timestamp: time.Now()})
	return nil
}

func (m *Manager) forgetEntriesFor(engineName string) {
	m.mu.Lock()
	for key, ent := range m.entries {
		if ent.engine == engineName {
			delete(m.entries, key)
		}
	}
	m.mu.Unlock()
}

// Has reports whether key is present and unexpired, without deserializing
// its value.
func (m *Manager) Has(ctx context.Context, key string) (bool, error) {
	if err := m.checkDisposed(); err != nil {
		return false, err
	}
	return m.Get(ctx, key, nil)
}

// Keys lists every key known to engineName, or every key across every
// engine when engineName is "". Obfuscated keys are reversed through the
// security layer's side map before being returned.
func (m *Manager) Keys(ctx context.Context, engineName string) ([]string, error) {
	if err := m.checkDisposed(); err != nil {
		return nil, err
	}
	names := []string{engineName}
	if engineName == "" {
		names = m.sortedEngineNames()
	}

	seen := make(map[string]bool)
	var out []string
	for _, name := range names {
		eng, ok := m.engines[name]
		if !ok || !eng.Available() {
			continue
		}
		raw, err := eng.Keys(ctx)
		if err != nil {
			continue
		}
		for _, k := range raw {
			plain, ok := m.security.PlaintextKey(k)
			if !ok {
				continue
			}
			key := plain
			if m.cfg.KeyPrefix != "" && len(plain) >= len(m.cfg.KeyPrefix) && plain[:len(m.cfg.KeyPrefix)] == m.cfg.KeyPrefix {
				key = plain[len(m.cfg.KeyPrefix):]
			}
			if !seen[key] {
				seen[key] = true
				out = append(out, key)
			}
		}
	}
	return out, nil
}

// Remember returns key's cached value if present; otherwise it invokes
// fetcher, stores the result, and returns it. opts.Refresh forces a
// fetcher call even on a hit. When Config.SingleFlightRemember is set,
// concurrent Remember calls for the same key share one fetcher
// invocation; see DESIGN.md.
func (m *Manager) Remember(ctx context.Context, key string, fetcher Fetcher, opts RememberOptions, out interface{}) error {
	if err := m.checkDisposed(); err != nil {
		return err
	}

	if !opts.Refresh {
		if found, err := m.Get(ctx, key, out); err != nil {
			return err
		} else if found {
			return nil
		}
	}

	fetch := func() (interface{}, error) { return fetcher(ctx) }
	var value interface{}
	var err error
	if m.coalescer != nil {
		v, fetchErr, _ := m.coalescer.Do(key, fetch)
		value, err = v, fetchErr
	} else {
		value, err = fetch()
	}
	if err != nil {
		return err
	}

	if err := m.Set(ctx, key, value, opts.SetOptions); err != nil {
		return err
	}
	return util.Unmarshal(mustMarshal(value), out)
}

func mustMarshal(v interface{}) []byte {
	data, err := util.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return data
}

// GetMetadata returns key's Metadata, or (Metadata{}, false) when absent.
func (m *Manager) GetMetadata(key string) (Metadata, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ent, ok := m.entries[key]
	if !ok {
		return Metadata{}, false
	}
	return ent.toMetadata(), true
}

// GetStats reports cumulative usage and hit-rate statistics.
func (m *Manager) GetStats(ctx context.Context) Stats {
	perEngine := make(map[string]EngineStats, len(m.engines))
	totalItems := 0
	var totalBytes int64

	m.mu.RLock()
	counts := make(map[string]int)
	sizes := make(map[string]int64)
	for _, ent := range m.entries {
		counts[ent.engine]++
		sizes[ent.engine] += int64(ent.size)
		totalItems++
		totalBytes += int64(ent.size)
	}
	m.mu.RUnlock()

	for name, eng := range m.engines {
		m.engineHitMu.Lock()
		c := m.engineHits[name]
		m.engineHitMu.Unlock()
		var hits, misses uint64
		if c != nil {
			hits, misses = c.hits.Load(), c.misses.Load()
		}
		perEngine[name] = EngineStats{
			ItemCount: counts[name],
			Size:      sizes[name],
			Available: eng.Available(),
			Hits:      hits,
			Misses:    misses,
		}
	}

	return Stats{
		TotalItems:   totalItems,
		TotalBytes:   totalBytes,
		PerEngine:    perEngine,
		HitRate:      m.counters.hitRate(),
		ExpiredCount: m.counters.expired.Load(),
	}
}

// Cleanup sweeps every engine for expired entries.
func (m *Manager) Cleanup(ctx context.Context) error {
	for name, eng := range m.engines {
		if !eng.Available() {
			continue
		}
		if _, err := eng.Cleanup(ctx); err != nil {
			m.logger.Warn().Str("engine", name).Err(err).Msg("cleanup failed")
		}
	}
	return nil
}

// OptimizeMemory triggers the memory manager's emergency cleanup cascade
// on demand, independent of crossing a pressure threshold.
func (m *Manager) OptimizeMemory() int64 {
	return m.memory.EmergencyCleanup()
}

// MemoryUsage reports the Memory Manager's current accounting, exposed
// for consumers such as cache/monitoring that report on the manager
// from the outside without reaching into its internals.
func (m *Manager) MemoryUsage() memory.Snapshot {
	return m.memory.Snapshot()
}

func (m *Manager) recordHit(key, engineName string) {
	m.counters.hits.Add(1)
	m.engineHitMu.Lock()
	c, ok := m.engineHits[engineName]
	if !ok {
		c = &perEngineCounters{}
		m.engineHits[engineName] = c
	}
	m.engineHitMu.Unlock()
	c.hits.Add(1)
}

func (m *Manager) recordMiss(key string) {
	m.counters.misses.Add(1)
}

func (m *Manager) recordEngineOutcome(engineName string, success bool) {
	if !success {
		return
	}
	m.engineHitMu.Lock()
	if _, ok := m.engineHits[engineName]; !ok {
		m.engineHits[engineName] = &perEngineCounters{}
	}
	m.engineHitMu.Unlock()
}
