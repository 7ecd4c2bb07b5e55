package cache

import "errors"

// Sentinel errors for the recognized failure kinds, wrapped
// with context via fmt.Errorf("...: %w", ...) at call sites so callers
// can errors.Is/errors.As.
var (
	ErrInvalidKey          = errors.New("cache: invalid key")
	ErrInvalidValue        = errors.New("cache: invalid value")
	ErrInvalidOptions      = errors.New("cache: invalid options")
	ErrEngineUnavailable   = errors.New("cache: engine unavailable")
	ErrQuotaExceeded       = errors.New("cache: quota exceeded")
	ErrSerializationFail   = errors.New("cache: serialization failed")
	ErrDeserializationFail = errors.New("cache: deserialization failed")
	ErrCryptoFail          = errors.New("cache: crypto operation failed")
	ErrDisposed            = errors.New("cache: manager disposed")
)
