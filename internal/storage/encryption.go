package storage

import (
	"fmt"

	"crm-bridge/internal/crypto"
)

// TokenCipher encrypts token columns at rest. A nil encryptor means
// encryption is disabled and values pass through unchanged, which keeps
// local development and tests free of key management.
type TokenCipher struct {
	encryptor *crypto.ConfigEncryptor
}

// NewTokenCipher builds a cipher from the configured key. An empty key
// disables encryption.
func NewTokenCipher(key string) (*TokenCipher, error) {
	if key == "" {
		return &TokenCipher{}, nil
	}

	encryptor, err := crypto.NewConfigEncryptor(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create token cipher: %w", err)
	}

	return &TokenCipher{encryptor: encryptor}, nil
}

// Seal encrypts a token value for storage.
func (c *TokenCipher) Seal(plaintext string) (string, error) {
	if c.encryptor == nil || plaintext == "" {
		return plaintext, nil
	}
	return c.encryptor.Encrypt(plaintext)
}

// Open decrypts a stored token value.
func (c *TokenCipher) Open(ciphertext string) (string, error) {
	if c.encryptor == nil || ciphertext == "" {
		return ciphertext, nil
	}
	return c.encryptor.Decrypt(ciphertext)
}
