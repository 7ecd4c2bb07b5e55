package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	aesKeySize = 32 // AES-256
	hkdfInfo   = "ldesign-cache-value-encryption"
)

// hkdfSalt is fixed rather than random: the key must be a pure function
// of the configured secret so a value encrypted by one process can be
// decrypted by any other process configured with the same secret.
var hkdfSalt = []byte("ldesign-cache-static-hkdf-salt")

// aeadCipher implements AES-256-GCM encryption with an HKDF-derived key.
type aeadCipher struct {
	gcm cipher.AEAD
}

func newAEADCipher(secret string) (*aeadCipher, error) {
	if secret == "" {
		return nil, fmt.Errorf("encryption secret must not be empty")
	}
	key, err := deriveKey([]byte(secret), aesKeySize)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("construct aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("construct gcm: %w", err)
	}
	return &aeadCipher{gcm: gcm}, nil
}

// deriveKey derives an AES key deterministically from secret via
// HKDF-SHA256 with a fixed salt, so the same secret always yields the
// same key regardless of which process derives it.
func deriveKey(secret []byte, keyLen int) ([]byte, error) {
	reader := hkdf.New(sha256.New, secret, hkdfSalt, []byte(hkdfInfo))
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// encrypt seals plaintext behind a random nonce and returns
// base64(nonce || ciphertext).
func (c *aeadCipher) encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *aeadCipher) decrypt(stored string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	nonceSize := c.gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

// encodeBase64Only is the degraded-mode fallback when AES-GCM setup
// fails.
func encodeBase64Only(plaintext string) string {
	return base64.StdEncoding.EncodeToString([]byte(plaintext))
}

func decodeBase64Only(stored string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("decode base64: %w", err)
	}
	return string(raw), nil
}
