// Package events implements the Cache Manager's event bus: synchronous,
// registration-ordered listener dispatch with per-(type, key) throttling
// over a sliding window.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Type is one of the recognized event kinds.
type Type string

const (
	TypeSet      Type = "set"
	TypeGet      Type = "get"
	TypeRemove   Type = "remove"
	TypeClear    Type = "clear"
	TypeExpired  Type = "expired"
	TypeError    Type = "error"
	TypeStrategy Type = "strategy"
)

// Event is the payload dispatched to listeners. ID is a correlation
// identifier assigned by the Bus on dispatch, useful for consumers that
// log or forward events downstream and need to deduplicate or trace a
// single emission.
type Event struct {
	ID        uuid.UUID
	Type      Type
	Key       string
	Value     string // empty when the event carries no value
	Engine    string
	Timestamp time.Time
	Err       error

	// Strategy-only fields, populated when Type == TypeStrategy.
	Reason     string
	Confidence float64
	DataSize   int64
	DataType   string
	TTL        time.Duration
}

// Listener receives dispatched events. A listener panic or returned
// error (there is none to return; listeners are plain funcs) must never
// abort dispatch to the remaining listeners — the bus recovers around
// each call.
type Listener func(Event)
