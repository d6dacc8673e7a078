// Package keyderive turns a physical tag serial and a message timestamp into
// a symmetric encryption key.
//
// The serial is the salt and the decimal form of the timestamp is the
// password. The ordering is intentional: the derivation is cheap to repeat for
// anyone holding both the serial and the timestamp, but the timestamp alone
// (which is stored in the clear inside every package) is useless without the
// physical tag.
package keyderive

import (
	"crypto/sha256"
	"strconv"

	"github.com/whispertag/whispertag/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// Iterations is the PBKDF2 iteration count. Changing it breaks
	// decryption of every already-published package.
	Iterations = 100_000

	// KeySize is the derived key length in bytes (AES-256).
	KeySize = 32
)

// Derive computes the symmetric key for a (serial, timestamp) pair.
// Equal inputs always yield bit-identical keys; encryption and decryption
// happen on different devices that never exchange key material directly.
//
// An empty serial is rejected with common.ErrMissingPhysicalKey rather than
// substituted with a placeholder, since a placeholder would silently void the
// physical-binding guarantee.
func Derive(tokenSerial string, timestampMillis int64) ([]byte, error) {
	if tokenSerial == "" {
		return nil, common.ErrMissingPhysicalKey
	}
	password := []byte(strconv.FormatInt(timestampMillis, 10))
	salt := []byte(tokenSerial)
	return pbkdf2.Key(password, salt, Iterations, KeySize, sha256.New), nil
}
