// Package secretbox encrypts user-supplied API keys before they reach the
// database. Ciphertext is text-safe (base64url) so it can live in a plain
// varchar column and travel through JSON untouched.
package secretbox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	// ErrUnconfigured is returned when no encryption secret is configured.
	// Callers that store or read credentials must treat this as fatal.
	ErrUnconfigured = errors.New("encryption secret is not configured")
	// ErrDecrypt is returned when ciphertext fails to authenticate or decode.
	ErrDecrypt = errors.New("decrypt failed")
)

// Box performs symmetric encryption with XChaCha20-Poly1305.
// The zero value is unconfigured and fails every operation with ErrUnconfigured.
type Box struct {
	key []byte
}

// New derives a Box from a base64url-encoded 32-byte secret. An empty secret
// yields an unconfigured Box rather than an error so callers can defer the
// failure to the first code path that actually needs encryption.
func New(encodedSecret string) (*Box, error) {
	if encodedSecret == "" {
		return &Box{}, nil
	}
	key, err := base64.URLEncoding.DecodeString(encodedSecret)
	if err != nil {
		return nil, fmt.Errorf("decode encryption secret failed: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("encryption secret must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &Box{key: key}, nil
}

// Configured reports whether a secret is loaded.
func (b *Box) Configured() bool {
	return len(b.key) != 0
}

// Encrypt seals plaintext and returns base64url ciphertext with the random
// nonce prepended.
func (b *Box) Encrypt(plaintext string) (string, error) {
	if !b.Configured() {
		return "", ErrUnconfigured
	}
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return "", fmt.Errorf("init cipher failed: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce failed: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Any tampering or key mismatch yields ErrDecrypt;
// partially decrypted data is never returned.
func (b *Box) Decrypt(ciphertext string) (string, error) {
	if !b.Configured() {
		return "", ErrUnconfigured
	}
	raw, err := base64.URLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecrypt
	}
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return "", fmt.Errorf("init cipher failed: %w", err)
	}
	if len(raw) < aead.NonceSize() {
		return "", ErrDecrypt
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}
