package common

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// Used to remove sensitive data such as serials and derived keys from memory
// after use. A nil slice is a no-op.
func WipeByteArray(b []byte) {
	if b == nil {
		return
	}
	for i := range b {
		b[i] = 0
	}
}
