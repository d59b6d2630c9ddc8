// Package crypto provides the security-sensitive primitives of the bridge:
// AES-256-GCM encryption for tokens held at rest, and decoding of the
// provider's embedded SSO context payloads.
//
// The at-rest encryptor uses AES-256-GCM (Galois/Counter Mode) which provides
// both confidentiality and authenticity. Each encryption operation uses a
// unique random nonce so encrypting the same plaintext twice produces
// different ciphertexts.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"crm-bridge/internal/common/errors"
)

// ConfigEncryptor handles encryption and decryption of sensitive data stored
// by the credential store using AES-256-GCM. It is safe for concurrent use
// by multiple goroutines.
type ConfigEncryptor struct {
	key []byte // 32-byte AES-256 encryption key
}

// NewConfigEncryptor creates a new ConfigEncryptor with the provided
// encryption key. The key is processed with PBKDF2 so it is exactly 32 bytes
// for AES-256 regardless of input length. The key should come from the
// environment, never from source code.
func NewConfigEncryptor(key string) (*ConfigEncryptor, error) {
	if key == "" {
		return nil, errors.ValidationError("encryption key cannot be empty")
	}

	// Static salt keeps derivation deterministic across restarts
	salt := []byte("crm-bridge-salt")
	derivedKey := pbkdf2.Key([]byte(key), salt, 10000, 32, sha256.New)

	return &ConfigEncryptor{key: derivedKey}, nil
}

// Encrypt encrypts a plaintext string using AES-256-GCM and returns the
// result base64-encoded with the random nonce prepended. Empty strings pass
// through unencrypted.
func (e *ConfigEncryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", errors.InternalError("failed to create cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", errors.InternalError("failed to create GCM", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.InternalError("failed to create nonce", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts a base64-encoded ciphertext produced by Encrypt. GCM
// authenticates the payload, so tampered or corrupted ciphertexts fail.
// Empty strings pass through undecrypted.
func (e *ConfigEncryptor) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", errors.InternalError("failed to decode ciphertext", err)
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", errors.InternalError("failed to create cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", errors.InternalError("failed to create GCM", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.ValidationError("ciphertext too short")
	}

	nonce, ciphertextBytes := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertextBytes, nil)
	if err != nil {
		return "", errors.InternalError("failed to decrypt", err)
	}

	return string(plaintext), nil
}
