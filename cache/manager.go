package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
	"unicode"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/poly1603/ldesign-cache-sub004/cache/engine"
	"github.com/poly1603/ldesign-cache-sub004/cache/events"
	"github.com/poly1603/ldesign-cache-sub004/cache/eviction"
	"github.com/poly1603/ldesign-cache-sub004/cache/memory"
	"github.com/poly1603/ldesign-cache-sub004/cache/security"
	"github.com/poly1603/ldesign-cache-sub004/cache/strategy"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const maxKeyLength = 250

// SetOptions controls one set() call. Zero value uses the
// manager's configured defaults for every field.
type SetOptions struct {
	TTL          time.Duration
	Engine       string
	Encrypt      bool
	ObfuscateKey bool
	DataType     DataType
}

// RememberOptions controls one remember() call.
type RememberOptions struct {
	SetOptions
	Refresh bool
}

// Fetcher produces the value to cache on a remember() miss or refresh.
type Fetcher func(ctx context.Context) (interface{}, error)

// Manager is the single external contract for the cache. It
// is never a package-level singleton: callers construct as many isolated
// instances as they need via NewManager.
type Manager struct {
	cfg Config

	mu       sync.RWMutex
	engines  map[string]engine.Engine
	entries  map[string]*entry
	priority []string

	routing  *routingCache
	memory   *memory.Manager
	security *security.Layer
	strategy *strategy.Strategy
	events   *events.Bus
	ser      *serializer
	coalescer    *singleflight.Group
	batchLimiter *rate.Limiter

	counters    *statCounters
	engineHits  map[string]*perEngineCounters
	engineHitMu sync.Mutex

	cleanupStop chan struct{}
	disposed    bool
	logger      zerolog.Logger
}

// NewManager constructs a Manager, wiring every named engine enabled in
// cfg.Engines (defaulting to the memory engine alone if cfg.Engines is
// empty), the memory-pressure manager, the security layer, the storage
// strategy, and the event bus. Engines are constructed eagerly here;
// lazy initialization maps to each engine's own asynchronous Available()
// gate (session/local/indexed open their stores in the background)
// rather than a deferred manager construction step.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 10
	}
	if cfg.EventThrottleWindow <= 0 {
		cfg.EventThrottleWindow = 100 * time.Millisecond
	}
	priority := cfg.EnginePriority
	if len(priority) == 0 {
		priority = append([]string(nil), engine.DefaultPriority...)
	}

	logger := log.Logger
	if !cfg.Debug {
		logger = logger.Level(zerolog.Disabled)
	}

	m := &Manager{
		cfg:         cfg,
		engines:     make(map[string]engine.Engine),
		entries:     make(map[string]*entry),
		priority:    priority,
		routing:     newRoutingCache(defaultRoutingCacheCapacity),
		counters:    newStatCounters(),
		engineHits:  make(map[string]*perEngineCounters),
		cleanupStop: make(chan struct{}),
		logger:      logger,
	}

	m.memory = memory.NewManager(cfg.MaxMemory, 60*time.Second, m.onPressureLevel)
	m.security = security.New(security.Config{
		EncryptValues:  cfg.Security.EncryptValues,
		Secret:         cfg.Security.Secret,
		ObfuscateKeys:  cfg.Security.ObfuscateKeys,
		ObfuscationTag: cfg.Security.ObfuscationTag,
	}, func(msg string) { m.logger.Warn().Msg(msg) })
	m.strategy = strategy.New(strategy.Config{
		Enabled:       cfg.Strategy.Enabled,
		DefaultEngine: cfg.DefaultEngine,
	}, m.onStrategyDecision)
	m.events = events.NewBus(cfg.EventThrottleWindow)
	m.ser = newSerializer(func(msg string) { m.logger.Warn().Msg(msg) })

	if cfg.SingleFlightRemember {
		m.coalescer = &singleflight.Group{}
	}

	batchRPS := cfg.BatchConcurrency * 4
	m.batchLimiter = rate.NewLimiter(rate.Limit(batchRPS), batchRPS)

	if err := m.buildEngines(); err != nil {
		return nil, err
	}

	for name, eng := range m.engines {
		m.memory.RegisterCleaner(cleanerAdapter{name: name, eng: eng})
	}
	m.memory.RegisterCleaner(m.routing)
	m.memory.RegisterCleaner(m.ser.cache)

	if cfg.CleanupInterval > 0 {
		go m.cleanupLoop(cfg.CleanupInterval)
	}

	return m, nil
}

// cleanerAdapter lets a Storage Engine participate in the memory
// manager's cleanup cascade alongside the routing and
// serialization caches.
type cleanerAdapter struct {
	name string
	eng  engine.Engine
}

func (c cleanerAdapter) Name() string { return "engine:" + c.name }

// EngineName satisfies memory.TrackedCleaner: the key this engine's
// bytes were reported under via memory.Manager.Report.
func (c cleanerAdapter) EngineName() string { return c.name }

func (c cleanerAdapter) Cleanup() int64 {
	before := c.eng.UsedSize()
	_, _ = c.eng.Cleanup(context.Background())
	after := c.eng.UsedSize()
	if before > after {
		return before - after
	}
	return 0
}

func (m *Manager) buildEngines() error {
	memoryOnlyDefault := len(m.cfg.Engines) == 0
	enabled := func(name string) (EngineConfig, bool) {
		ec, ok := m.cfg.Engines[name]
		if !ok {
			return EngineConfig{}, memoryOnlyDefault && name == engine.NameMemory
		}
		return ec, ec.Enabled
	}

	if ec, ok := enabled(engine.NameMemory); ok {
		policy, _ := eviction.New(orDefault(ec.Policy, "lru"), 0, func(msg string) { m.logger.Warn().Msg(msg) })
		opts := []engine.MemoryOption{engine.WithPolicy(policy)}
		if ec.MaxSize > 0 {
			opts = append(opts, engine.WithMaxSize(ec.MaxSize))
		}
		if ec.MaxItems > 0 {
			opts = append(opts, engine.WithMaxItems(ec.MaxItems))
		}
		m.engines[engine.NameMemory] = engine.NewMemory(opts...)
	}
	if ec, ok := enabled(engine.NameLocal); ok {
		m.engines[engine.NameLocal] = engine.NewLocal(ec.Path, ec.MaxSize)
	}
	if ec, ok := enabled(engine.NameSession); ok {
		sess, err := engine.NewSession(ec.MaxSize)
		if err != nil {
			return fmt.Errorf("%w: session engine: %v", ErrEngineUnavailable, err)
		}
		m.engines[engine.NameSession] = sess
	}
	if ec, ok := enabled(engine.NameIndexed); ok {
		m.engines[engine.NameIndexed] = engine.NewIndexed(ec.Path, ec.MaxSize)
	}
	if ec, ok := enabled(engine.NameCookie); ok {
		path := ec.Path
		if path == "" {
			path = "ldesign_cache_cookie.jar"
		}
		m.engines[engine.NameCookie] = engine.NewCookie(path, ec.MaxSize)
	}
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func (m *Manager) onPressureLevel(level memory.PressureLevel) {
	if level >= memory.PressureHigh {
		m.logger.Warn().Str("level", level.String()).Msg("memory pressure elevated, running emergency cleanup")
		m.memory.EmergencyCleanup()
	}
}

func (m *Manager) onStrategyDecision(key string, d strategy.Decision) {
	m.events.Emit(events.Event{
		Type:       events.TypeStrategy,
		Key:        key,
		Engine:     d.Engine,
		Timestamp:  time.Now(),
		Reason:     d.Reason,
		Confidence: d.Confidence,
	})
}

func (m *Manager) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = m.Cleanup(context.Background())
		case <-m.cleanupStop:
			return
		}
	}
}

// validateKey enforces the key-processing rule: non-empty, length <=
// 250, no Unicode control characters.
func validateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > maxKeyLength {
		return ErrInvalidKey
	}
	for _, r := range key {
		if unicode.IsControl(r) {
			return ErrInvalidKey
		}
	}
	return nil
}

func (m *Manager) checkDisposed() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.disposed {
		return ErrDisposed
	}
	return nil
}

// effectiveKey applies the configured prefix and, when requested, key
// obfuscation, returning the form handed to engines.
func (m *Manager) effectiveKey(key string, obfuscate bool) string {
	prefixed := m.cfg.KeyPrefix + key
	if obfuscate {
		return m.security.ObfuscateKey(prefixed)
	}
	return prefixed
}

// pickEngineForSet chooses the engine a set() call should write to.
func (m *Manager) pickEngineForSet(key string, valueSize int64, ttl time.Duration, opts SetOptions) (engine.Engine, error) {
	if opts.Engine != "" {
		if eng, ok := m.engines[opts.Engine]; ok && eng.Available() {
			return eng, nil
		}
		return m.nextAvailable(opts.Engine)
	}

	if m.cfg.Strategy.Enabled {
		vt := strategyValueType(opts.DataType)
		decision := m.strategy.Consult(key, valueSize, ttl, vt)
		if eng, ok := m.engines[decision.Engine]; ok && eng.Available() {
			return eng, nil
		}
	}

	if eng, ok := m.engines[m.cfg.DefaultEngine]; ok && eng.Available() {
		return eng, nil
	}
	return m.nextAvailable(m.cfg.DefaultEngine)
}

func strategyValueType(dt DataType) strategy.ValueType {
	switch dt {
	case DataTypeBinary:
		return strategy.TypeBinary
	case DataTypeArray:
		return strategy.TypeArray
	case DataTypeObject:
		return strategy.TypeObject
	default:
		return strategy.TypeScalar
	}
}

// nextAvailable walks m.priority, skipping the already-tried engine,
// and returns the first available one.
func (m *Manager) nextAvailable(tried string) (engine.Engine, error) {
	for _, name := range m.priority {
		if name == tried {
			continue
		}
		if eng, ok := m.engines[name]; ok && eng.Available() {
			return eng, nil
		}
	}
	return nil, ErrEngineUnavailable
}

// Destroy disposes the manager: further operations return ErrDisposed.
// Background goroutines are stopped and every engine is closed where it
// supports it (session removes its temp directory).
func (m *Manager) Destroy(ctx context.Context) error {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return nil
	}
	m.disposed = true
	m.mu.Unlock()

	close(m.cleanupStop)
	m.memory.Close()

	for _, eng := range m.engines {
		switch closer := eng.(type) {
		case interface{ Close() error }:
			_ = closer.Close()
		case interface{ Close() }:
			closer.Close()
		case interface{ Destroy() error }:
			_ = closer.Destroy()
		}
	}
	return nil
}

// On subscribes listener to every event the bus dispatches, returning a
// subscription id that Off uses to remove it again. The manager does
// not filter by Type at subscription time; callers filter on
// events.Event.Type inside listener.
func (m *Manager) On(listener events.Listener) uint64 {
	return m.events.Subscribe(listener)
}

// Off removes a listener previously registered via On. A no-op if id
// was already removed or never issued by this manager.
func (m *Manager) Off(id uint64) {
	m.events.Unsubscribe(id)
}

// sortedEngineNames returns engine names in a stable order, used by
// GetStats and Keys(engine="") to produce deterministic output.
func (m *Manager) sortedEngineNames() []string {
	names := make([]string, 0, len(m.engines))
	for name := range m.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
