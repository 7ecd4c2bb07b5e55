package cache

import "time"

// DataType classifies a cache value's shape.
type DataType string

const (
	DataTypeString  DataType = "string"
	DataTypeNumber  DataType = "number"
	DataTypeBoolean DataType = "boolean"
	DataTypeObject  DataType = "object"
	DataTypeArray   DataType = "array"
	DataTypeBinary  DataType = "binary"
)

// Metadata is the externally visible view of a Cache Entry,
// returned by GetMetadata without the underlying value.
type Metadata struct {
	CreatedAt      time.Time
	LastAccessedAt time.Time
	ExpiresAt      time.Time // zero means no TTL
	DataType       DataType
	Size           int
	AccessCount    uint64
	Engine         string
	Encrypted      bool
}

// entry is the manager's internal bookkeeping for one key, independent
// of whatever engine currently stores its serialized value. Invariants
// enforced at construction and mutation: ExpiresAt, if set, is after
// CreatedAt; Size >= 0; AccessCount >= 0; LastAccessedAt >= CreatedAt.
type entry struct {
	createdAt      time.Time
	lastAccessedAt time.Time
	expiresAt      time.Time
	dataType       DataType
	size           int
	accessCount    uint64
	engine         string
	encrypted      bool
}

func (e *entry) toMetadata() Metadata {
	return Metadata{
		CreatedAt:      e.createdAt,
		LastAccessedAt: e.lastAccessedAt,
		ExpiresAt:      e.expiresAt,
		DataType:       e.dataType,
		Size:           e.size,
		AccessCount:    e.accessCount,
		Engine:         e.engine,
		Encrypted:      e.encrypted,
	}
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

func (e *entry) recordAccess(now time.Time) {
	e.lastAccessedAt = now
	e.accessCount++
}
