// Package crypto implements the authenticated-encryption envelope used to
// seal session blobs and the credential vault.
package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

const nonceSize = chacha20poly1305.NonceSize // 12 bytes

var (
	ErrKeyMissing        = errors.New("crypto: master key not set")
	ErrKeyFormat         = errors.New("crypto: master key must be 32 hex-encoded bytes")
	ErrCiphertextTooShort = errors.New("crypto: sealed payload shorter than nonce")
	ErrDecryptFailed     = errors.New("crypto: decrypt failed (tamper or wrong key)")
)

// Envelope seals and opens plaintext with a single AEAD key. Stateless beyond
// the key itself — safe for concurrent use.
type Envelope struct {
	aead chacha20poly1305.AEAD
}

// NewEnvelope builds an Envelope from a raw 32-byte key.
func NewEnvelope(key []byte) (*Envelope, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: init aead: %w", err)
	}
	return &Envelope{aead: aead}, nil
}

// NewEnvelopeFromHex decodes a hex-encoded 32-byte key and builds an Envelope.
func NewEnvelopeFromHex(hexKey string) (*Envelope, error) {
	if hexKey == "" {
		return nil, ErrKeyMissing
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != chacha20poly1305.KeySize {
		return nil, ErrKeyFormat
	}
	return NewEnvelope(key)
}

// Seal encrypts plaintext and returns nonce‖ciphertext+tag. Empty plaintext
// maps to empty output without invoking the cipher.
func (e *Envelope) Seal(plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, nil
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: random nonce: %w", err)
	}
	return e.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a nonce‖ciphertext+tag payload produced by Seal.
func (e *Envelope) Open(sealed []byte) ([]byte, error) {
	if len(sealed) == 0 {
		return nil, nil
	}
	if len(sealed) < nonceSize {
		return nil, ErrCiphertextTooShort
	}
	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := e.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

var (
	globalOnce sync.Once
	global     *Envelope
	globalErr  error
)

// Init eagerly constructs the process-wide Envelope from LAZABOT_MASTER_KEY.
// Must be called once at startup; Global panics if called before Init
// succeeds.
func Init() error {
	globalOnce.Do(func() {
		global, globalErr = NewEnvelopeFromHex(os.Getenv("LAZABOT_MASTER_KEY"))
	})
	return globalErr
}

// Global returns the process-wide Envelope initialized by Init.
func Global() *Envelope {
	if global == nil {
		panic("crypto: Global() called before successful Init()")
	}
	return global
}
