// Package util provides small, dependency-light helpers shared across the
// cache packages: key fingerprinting and JSON encoding.
//
// This file implements key fingerprinting with FNV-1a: fast, stable,
// and good enough for a digest that only needs to avoid accidental
// collisions, not resist an adversary.
package util

import (
	"hash/fnv"
	"strconv"
)

// FingerprintKey returns a stable, compact digest of key, used (through
// FingerprintString) by the size cache, the serialization cache and key
// obfuscation. It is not a cryptographic hash.
func FingerprintKey(key string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return h.Sum64()
}

// FingerprintString renders FingerprintKey as a lowercase hex string
// without leading zeros (so up to 16 characters),
// suitable for use as an obfuscated key or a cache-entry file name.
func FingerprintString(key string) string {
	return strconv.FormatUint(FingerprintKey(key), 16)
}
