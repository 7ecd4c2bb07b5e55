package cache

import "time"

// EngineConfig configures one Storage Engine slot.
type EngineConfig struct {
	// Enabled reports whether the engine participates in routing at all.
	Enabled bool
	// MaxSize overrides the engine's default byte capacity; zero uses
	// the engine's own default.
	MaxSize int64
	// Path is the backing file/directory for file-based engines (local,
	// session, indexed, cookie). Ignored by the memory engine.
	Path string
	// Policy names the eviction policy for capacity-bounded engines
	// (lru, lfu, fifo, mru, random, ttl, arc). Empty uses lru.
	Policy string
	// MaxItems overrides the memory engine's default item-count bound.
	// Zero uses its own default. Ignored by every other engine.
	MaxItems int
}

// StrategyConfig controls the Storage Strategy.
type StrategyConfig struct {
	Enabled bool
}

// SecurityConfig controls the Security Layer.
type SecurityConfig struct {
	EncryptValues  bool
	Secret         string
	ObfuscateKeys  bool
	ObfuscationTag string
}

// Config is the Cache Manager's external configuration surface.
type Config struct {
	// DefaultEngine is used when neither opts.Engine nor the strategy
	// recommends one.
	DefaultEngine string
	// DefaultTTL applies when SetOptions.TTL is unset for set.
	DefaultTTL time.Duration
	// KeyPrefix is prepended to every key before it reaches an engine
	// (independent of, and applied before, key obfuscation).
	KeyPrefix string
	// MaxMemory is the byte ceiling the memory manager enforces across
	// all engines combined. Zero means unlimited.
	MaxMemory int64
	// CleanupInterval is how often the manager sweeps engines for
	// expired entries. Zero disables the periodic sweep (callers may
	// still invoke Cleanup manually).
	CleanupInterval time.Duration
	// Engines configures each named engine slot. An unlisted engine is
	// disabled, except that an empty map enables the memory engine alone
	// with its defaults.
	Engines map[string]EngineConfig
	// EnginePriority overrides engine.DefaultPriority for routing-cache
	// misses. Empty uses the default order.
	EnginePriority []string

	Strategy StrategyConfig
	Security SecurityConfig

	// SingleFlightRemember enables request coalescing for concurrent
	// Remember calls on the same key, backed by
	// golang.org/x/sync/singleflight.
	SingleFlightRemember bool

	// BatchConcurrency bounds how many items a batch operation (mset,
	// mget, mremove, mhas) processes concurrently. Zero uses a default
	// of 10.
	BatchConcurrency int

	// EventThrottleWindow bounds how often a given (type, key) event
	// pair is dispatched. Zero uses a default of 100ms.
	EventThrottleWindow time.Duration

	// Debug enables the manager's zerolog output: warnings about security
	// degradation, serialization, pressure-triggered cleanup and failed
	// cleanup. With Debug off the logger is disabled.
	Debug bool
}

// DefaultConfig returns a Config with every field set to its documented
// default.
func DefaultConfig() Config {
	return Config{
		DefaultEngine:        "memory",
		DefaultTTL:           0,
		KeyPrefix:            "",
		MaxMemory:            64 * 1024 * 1024,
		CleanupInterval:      60 * time.Second,
		Engines:              make(map[string]EngineConfig),
		Strategy:             StrategyConfig{Enabled: true},
		Security:             SecurityConfig{},
		SingleFlightRemember: false,
		BatchConcurrency:     10,
		EventThrottleWindow:  100 * time.Millisecond,
		Debug:                false,
	}
}
