// Package common defines shared constants and sentinel errors used across
// WhisperTag components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Physical-key errors.
	ErrMissingPhysicalKey = errors.New("no physical key available")

	// Package-level errors.
	ErrPackageMismatch   = errors.New("package id mismatch")
	ErrMalformedPackage  = errors.New("malformed package")
	ErrSizeLimitExceeded = errors.New("size limit exceeded")

	// Crypto errors. Wrong key and corrupted ciphertext are intentionally
	// unified: a wrong-tag scan must look identical to corrupted storage.
	ErrDecryptionFailure = errors.New("decryption failure")

	// Storage errors.
	ErrGatewayExhausted = errors.New("all storage endpoints failed")

	// Tag transport errors.
	ErrWriteTimeout = errors.New("tag write timed out")

	// Relay handoff errors.
	ErrRelayExpired  = errors.New("relay record expired")
	ErrRelayMismatch = errors.New("relay locator mismatch")
)
