// Package cryptox implements the authenticated encryption used for message
// payloads: AES-256-GCM with a random 96-bit nonce prepended to the
// ciphertext.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/whispertag/whispertag/internal/common"
)

// NonceSize is the GCM nonce length in bytes, stored as the ciphertext prefix.
const NonceSize = 12

// Encrypt seals plaintext under key and returns nonce || ciphertext+tag.
//
// The key must be 32 bytes (AES-256). A new random 12-byte nonce is generated
// from crypto/rand for every call; reusing a nonce under the same key breaks
// GCM, so callers must never cache or replay the output prefix.
func Encrypt(plaintext, key []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce generation: %w", err)
	}

	// Seal appends to the nonce slice, producing nonce||ciphertext in one buffer.
	return aesgcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens data produced by Encrypt. A wrong key, a truncated input and
// corrupted ciphertext all return common.ErrDecryptionFailure; callers cannot
// and must not distinguish between them.
func Decrypt(data, key []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(data) < NonceSize {
		return nil, common.ErrDecryptionFailure
	}

	nonce, ciphertext := data[:NonceSize], data[NonceSize:]
	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, common.ErrDecryptionFailure
	}
	return plaintext, nil
}

// EncryptToString encrypts text and returns the result base64-encoded for
// embedding in a JSON document. Shares the cipher core with Encrypt; only the
// post-processing differs.
func EncryptToString(text string, key []byte) (string, error) {
	data, err := Encrypt([]byte(text), key)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecryptFromString reverses EncryptToString. Malformed base64 is reported as
// common.ErrMalformedPackage since it indicates transport corruption, not a
// key problem.
func DecryptFromString(encoded string, key []byte) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrMalformedPackage, err)
	}
	plaintext, err := Decrypt(data, key)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
