// Package engine implements the Storage Engines: a family of key-value
// backends sharing one capability contract (memory-resident, local
// persistent, session persistent, cookie, indexed persistent). Each
// enforces its own capacity and, through a pluggable eviction.Policy,
// its own eviction behavior.
package engine

import (
	"context"
	"errors"
	"time"
)

// ErrQuota is wrapped by any engine's SetItem when the write would
// exceed its declared capacity; the manager matches it with errors.Is
// to trigger the emergency-cleanup-and-retry path.
var ErrQuota = errors.New("engine: quota exceeded")

// Engine is the contract every storage backend implements. Values are
// passed and returned as already-serialized text; the Cache Manager owns
// serialization, encryption, and key obfuscation above this layer.
type Engine interface {
	// Name identifies the engine, used as the discriminant in routing,
	// stats, and events.
	Name() string
	// Available reports whether the engine can currently accept
	// operations (false, for example, while an async backend is still
	// opening its store).
	Available() bool
	// MaxSize is the engine's declared capacity in bytes.
	MaxSize() int64
	// UsedSize is the engine's currently observed usage in bytes.
	UsedSize() int64
	// SupportsTTLNatively reports whether the engine enforces expiry
	// itself; the manager re-checks regardless.
	SupportsTTLNatively() bool

	SetItem(ctx context.Context, key, value string, ttl time.Duration) error
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	RemoveItem(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Keys(ctx context.Context) ([]string, error)
	HasItem(ctx context.Context, key string) (bool, error)
	Length(ctx context.Context) (int, error)
	// Cleanup purges expired items. Called periodically and from the
	// memory manager's pressure-cleanup cascade.
	Cleanup(ctx context.Context) (removed int, err error)
}

// BatchEngine is an optional capability for applying several keys in one
// call. The memory engine implements it, locking once per key; the
// manager's mset/mget/mremove/mhas do not use it and go through the
// per-key Set/Get/Remove/Has path.
type BatchEngine interface {
	BatchSet(ctx context.Context, items map[string]BatchItem) map[string]error
	BatchGet(ctx context.Context, keys []string) map[string]BatchGetResult
	BatchRemove(ctx context.Context, keys []string) map[string]error
	BatchHas(ctx context.Context, keys []string) map[string]bool
}

// BatchItem is one key's payload in a BatchSet call.
type BatchItem struct {
	Value string
	TTL   time.Duration
}

// BatchGetResult is one key's outcome in a BatchGet call.
type BatchGetResult struct {
	Value string
	Found bool
	Err   error
}

// Descriptor snapshots an engine's identity and capacity for external
// reporting.
type Descriptor struct {
	Name                string
	Available           bool
	MaxSize             int64
	UsedSize            int64
	SupportsTTLNatively bool
	SupportsEnumeration bool
}

// Describe builds a Descriptor snapshot from a live Engine.
func Describe(e Engine) Descriptor {
	return Descriptor{
		Name:                e.Name(),
		Available:           e.Available(),
		MaxSize:             e.MaxSize(),
		UsedSize:            e.UsedSize(),
		SupportsTTLNatively: e.SupportsTTLNatively(),
		SupportsEnumeration: true,
	}
}

// Names of the well-known engines, used as map keys and routing-cache
// values throughout the manager.
const (
	NameMemory  = "memory"
	NameLocal   = "local"
	NameSession = "session"
	NameCookie  = "cookie"
	NameIndexed = "indexed"
)

// DefaultPriority is the default, deterministic polling order for a
// routing-cache miss.
var DefaultPriority = []string{NameMemory, NameSession, NameLocal, NameIndexed, NameCookie}
