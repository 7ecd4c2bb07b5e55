// Package security implements the Security Layer: optional value
// encryption, key obfuscation, and integrity verification sitting between
// the Cache Manager and a Storage Engine.
package security

// Config toggles the security layer's behavior.
type Config struct {
	// EncryptValues enables AES-256-GCM encryption of stored values.
	EncryptValues bool
	// Secret is the user-supplied secret the encryption key is derived
	// from via HKDF. Required when EncryptValues is true.
	Secret string
	// ObfuscateKeys enables FNV-1a key obfuscation before a key reaches
	// a Storage Engine.
	ObfuscateKeys bool
	// ObfuscationTag prefixes every obfuscated key, letting multiple
	// Managers share one engine without key collisions.
	ObfuscationTag string
}

// Layer applies the configured encryption and key obfuscation around a
// Storage Engine. A zero-value Layer (Config{}) is a no-op passthrough.
type Layer struct {
	cfg  Config
	aead *aeadCipher // nil when encryption is disabled or degraded

	obfuscator *obfuscator
}

// New constructs a Layer from cfg. If EncryptValues is set but cipher
// setup fails (for example because Secret is empty), the layer degrades
// to base64-only encoding and warn is invoked with the reason.
func New(cfg Config, warn func(string)) *Layer {
	l := &Layer{cfg: cfg}
	if cfg.EncryptValues {
		aead, err := newAEADCipher(cfg.Secret)
		if err != nil {
			if warn != nil {
				warn("encryption unavailable, degrading to base64 encoding: " + err.Error())
			}
		} else {
			l.aead = aead
		}
	}
	if cfg.ObfuscateKeys {
		l.obfuscator = newObfuscator(cfg.ObfuscationTag)
	}
	return l
}

// EncodeValue transforms a plaintext value into its stored form: AES-GCM
// ciphertext (base64) when encryption is configured and available,
// plain base64 when it degraded, or the value unchanged otherwise.
func (l *Layer) EncodeValue(plaintext string) (string, error) {
	if l.aead == nil {
		if l.cfg.EncryptValues {
			return encodeBase64Only(plaintext), nil
		}
		return plaintext, nil
	}
	return l.aead.encrypt(plaintext)
}

// DecodeValue reverses EncodeValue.
func (l *Layer) DecodeValue(stored string) (string, error) {
	if l.aead == nil {
		if l.cfg.EncryptValues {
			return decodeBase64Only(stored)
		}
		return stored, nil
	}
	return l.aead.decrypt(stored)
}

// VerifyIntegrity re-decrypts stored and compares it against plaintext.
// Both-empty is considered valid; any mismatch or crypto error counts
// as a failed verification rather than panicking or propagating.
func (l *Layer) VerifyIntegrity(plaintext, stored string) bool {
	if plaintext == "" && stored == "" {
		return true
	}
	decoded, err := l.DecodeValue(stored)
	if err != nil {
		return false
	}
	return decoded == plaintext
}

// ObfuscateKey transforms key into its engine-facing form, recording the
// mapping so PlaintextKey can recover it. A no-op when ObfuscateKeys is
// false.
func (l *Layer) ObfuscateKey(key string) string {
	if l.obfuscator == nil {
		return key
	}
	return l.obfuscator.obfuscate(key)
}

// PlaintextKey reverses ObfuscateKey via the layer's side map.
func (l *Layer) PlaintextKey(obfuscated string) (string, bool) {
	if l.obfuscator == nil {
		return obfuscated, true
	}
	return l.obfuscator.plaintext(obfuscated)
}

// ForgetKey drops an obfuscated key's side-map entry, called when a key
// is removed from every engine.
func (l *Layer) ForgetKey(key string) {
	if l.obfuscator != nil {
		l.obfuscator.forget(key)
	}
}
