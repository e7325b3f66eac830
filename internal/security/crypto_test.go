package security

import "testing"

func TestMessageCipher_Disabled_PassesThrough(t *testing.T) {
	c, err := NewMessageCipher(false)
	if err != nil {
		t.Fatalf("NewMessageCipher() error = %v", err)
	}

	ciphertext, nonce, err := c.Encrypt([]byte("hello"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if string(ciphertext) != "hello" || nonce != nil {
		t.Errorf("disabled cipher should pass through unchanged, got %q, nonce=%v", ciphertext, nonce)
	}

	plaintext, err := c.Decrypt(ciphertext, nonce)
	if err != nil || string(plaintext) != "hello" {
		t.Errorf("Decrypt() = %q, %v, want %q, nil", plaintext, err, "hello")
	}
}

func TestMessageCipher_Enabled_RoundTrips(t *testing.T) {
	c, err := NewMessageCipher(true)
	if err != nil {
		t.Fatalf("NewMessageCipher() error = %v", err)
	}

	ciphertext, nonce, err := c.Encrypt([]byte("secret message"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if string(ciphertext) == "secret message" {
		t.Error("enabled cipher should not produce plaintext ciphertext")
	}

	plaintext, err := c.Decrypt(ciphertext, nonce)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if string(plaintext) != "secret message" {
		t.Errorf("plaintext = %q, want %q", plaintext, "secret message")
	}
}

func TestMessageCipher_Enabled_RejectsTamperedCiphertext(t *testing.T) {
	c, err := NewMessageCipher(true)
	if err != nil {
		t.Fatalf("NewMessageCipher() error = %v", err)
	}

	ciphertext, nonce, _ := c.Encrypt([]byte("secret"))
	ciphertext[0] ^= 0xFF

	if _, err := c.Decrypt(ciphertext, nonce); err == nil {
		t.Error("Decrypt() should fail on tampered ciphertext")
	}
}
