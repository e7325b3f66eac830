package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// MessageCipher is the optional symmetric message encryption helper.
// When Enabled is false it passes payloads through untouched. The key
// is process-lifetime, matching the spec's "no persistence" posture.
type MessageCipher struct {
	Enabled bool
	gcm     cipher.AEAD
}

// NewMessageCipher generates a fresh AES-256-GCM key for the process
// lifetime. enabled selects pass-through mode when false.
func NewMessageCipher(enabled bool) (*MessageCipher, error) {
	if !enabled {
		return &MessageCipher{Enabled: false}, nil
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate message cipher key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm mode: %w", err)
	}
	return &MessageCipher{Enabled: true, gcm: gcm}, nil
}

// Encrypt seals plaintext with a random per-message nonce, returning
// the ciphertext and the nonce used. A disabled cipher passes the
// plaintext through and returns a nil nonce.
func (c *MessageCipher) Encrypt(plaintext []byte) (ciphertext, nonce []byte, err error) {
	if !c.Enabled {
		return plaintext, nil, nil
	}

	nonce = make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}
	return c.gcm.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Decrypt opens ciphertext using nonce, verifying the authentication
// tag. A disabled cipher passes ciphertext through unchanged.
func (c *MessageCipher) Decrypt(ciphertext, nonce []byte) ([]byte, error) {
	if !c.Enabled {
		return ciphertext, nil
	}
	plaintext, err := c.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt message: %w", err)
	}
	return plaintext, nil
}
