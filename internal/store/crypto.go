package store

import (
	stdcipher "crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aristath/sentinel/internal/errkind"
	"golang.org/x/crypto/chacha20poly1305"
)

const encPrefix = "enc:v1:"

// fieldCipher wraps an AEAD keyed from the configured encryption key. A nil
// fieldCipher means encryption is disabled; Encrypt/Decrypt then pass values
// through unchanged.
type fieldCipher struct {
	aead stdcipher.AEAD
}

// newCipher derives an AEAD from a raw key string. The key is taken as raw
// bytes and must be exactly chacha20poly1305.KeySize (32) bytes once decoded
// from base64, or exactly 32 raw bytes if not valid base64.
func newCipher(rawKey string) (*fieldCipher, error) {
	if rawKey == "" {
		return nil, nil
	}
	key, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(rawKey, "="))
	if err != nil || len(key) != chacha20poly1305.KeySize {
		key = []byte(rawKey)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, errkind.Newf(errkind.Invalid, "encryption key must decode to %d bytes", chacha20poly1305.KeySize)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to build cipher: %w", err)
	}
	return &fieldCipher{aead: aead}, nil
}

// Encrypt seals plaintext and returns the "enc:v1:" prefixed, base64-encoded
// nonce||ciphertext. A nil fieldCipher returns plaintext unchanged.
func (c *fieldCipher) Encrypt(plaintext string) (string, error) {
	if c == nil {
		return plaintext, nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return encPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Values without the "enc:v1:" prefix pass through
// unchanged, matching values written before encryption was enabled.
func (c *fieldCipher) Decrypt(value string) (string, error) {
	if !strings.HasPrefix(value, encPrefix) {
		return value, nil
	}
	if c == nil {
		return "", errkind.New(errkind.Invalid, "encrypted value present but no encryption key configured")
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(value, encPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decode encrypted value: %w", err)
	}
	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", errkind.New(errkind.Invalid, "encrypted value too short")
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plain, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errkind.Wrap(errkind.Invalid, err, "failed to decrypt value")
	}
	return string(plain), nil
}
