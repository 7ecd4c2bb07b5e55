package security

import (
	"sync"

	"github.com/poly1603/ldesign-cache-sub004/cache/util"
)

// obfuscator turns cache keys into an opaque, tag-prefixed digest before
// they reach a Storage Engine. A side map is always maintained so the
// plaintext key can be recovered for enumeration and events.
type obfuscator struct {
	tag string

	mu      sync.RWMutex
	reverse map[string]string // obfuscated -> plaintext
}

func newObfuscator(tag string) *obfuscator {
	return &obfuscator{tag: tag, reverse: make(map[string]string)}
}

func (o *obfuscator) obfuscate(key string) string {
	obfuscated := o.tag + util.FingerprintString(key)

	o.mu.Lock()
	o.reverse[obfuscated] = key
	o.mu.Unlock()

	return obfuscated
}

func (o *obfuscator) plaintext(obfuscated string) (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	key, ok := o.reverse[obfuscated]
	return key, ok
}

func (o *obfuscator) forget(plaintextKey string) {
	obfuscated := o.tag + util.FingerprintString(plaintextKey)
	o.mu.Lock()
	delete(o.reverse, obfuscated)
	o.mu.Unlock()
}
