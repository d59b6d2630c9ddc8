package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"encoding/base64"
	"encoding/json"

	"crm-bridge/internal/common/errors"
)

// SSOStrategy is a pure decryption strategy for the provider's embedded SSO
// context payload. A strategy either yields the decoded JSON document or an
// error; it never has side effects.
type SSOStrategy struct {
	Name   string
	Decode func(key string, payload string) (map[string]interface{}, error)
}

// SSODecoder decrypts the base64 payload the provider embeds in its iframe
// context. Strategies are tried in order and the first successful JSON parse
// wins. Only the provider-certified scheme ships: AES-256-CBC in the OpenSSL
// salted envelope with EVP_BytesToKey (MD5) key derivation, the format
// produced by CryptoJS.AES.encrypt. This decoding is advisory identity
// context, not a security boundary.
type SSODecoder struct {
	key        string
	strategies []SSOStrategy
}

// NewSSODecoder creates a decoder bound to the shared SSO secret.
func NewSSODecoder(key string) (*SSODecoder, error) {
	if key == "" {
		return nil, errors.ConfigError("SSO key is required")
	}

	return &SSODecoder{
		key: key,
		strategies: []SSOStrategy{
			{Name: "aes-256-cbc-evp", Decode: decodeAESCBCEvp},
		},
	}, nil
}

// Decode tries each strategy in order and returns the first successful
// parse along with the strategy name that produced it.
func (d *SSODecoder) Decode(payload string) (map[string]interface{}, string, error) {
	var lastErr error
	for _, s := range d.strategies {
		doc, err := s.Decode(d.key, payload)
		if err == nil {
			return doc, s.Name, nil
		}
		lastErr = err
	}
	return nil, "", errors.ValidationError("unable to decode SSO payload").WithContext("cause", lastErr)
}

// decodeAESCBCEvp decrypts an OpenSSL-salted AES-256-CBC payload using
// EVP_BytesToKey with a single MD5 round, then parses the plaintext as JSON.
func decodeAESCBCEvp(key string, payload string) (map[string]interface{}, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errors.ValidationError("payload is not valid base64")
	}

	if len(raw) < 16 || !bytes.HasPrefix(raw, []byte("Salted__")) {
		return nil, errors.ValidationError("payload is not an OpenSSL salted envelope")
	}

	salt := raw[8:16]
	ciphertext := raw[16:]

	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.ValidationError("ciphertext length is not a multiple of the block size")
	}

	aesKey, iv := evpBytesToKey([]byte(key), salt, 32, aes.BlockSize)

	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, errors.InternalError("failed to create cipher", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	plaintext, err = stripPKCS7(plaintext)
	if err != nil {
		return nil, err
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(plaintext, &doc); err != nil {
		return nil, errors.ValidationError("decrypted payload is not valid JSON")
	}

	return doc, nil
}

// evpBytesToKey implements the OpenSSL EVP_BytesToKey derivation with MD5,
// producing keyLen key bytes followed by ivLen IV bytes.
func evpBytesToKey(secret, salt []byte, keyLen, ivLen int) (key, iv []byte) {
	var derived []byte
	var block []byte

	for len(derived) < keyLen+ivLen {
		h := md5.New()
		h.Write(block)
		h.Write(secret)
		h.Write(salt)
		block = h.Sum(nil)
		derived = append(derived, block...)
	}

	return derived[:keyLen], derived[keyLen : keyLen+ivLen]
}

// stripPKCS7 removes and validates PKCS#7 padding.
func stripPKCS7(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.ValidationError("empty plaintext")
	}

	pad := int(data[len(data)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(data) {
		return nil, errors.ValidationError("invalid padding")
	}

	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, errors.ValidationError("invalid padding")
		}
	}

	return data[:len(data)-pad], nil
}
