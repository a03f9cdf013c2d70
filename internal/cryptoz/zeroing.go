// Package cryptoz provides the AES-256-CBC encryption layer that wraps the
// sink seen by the compression driver: PBKDF2-HMAC-SHA256 key derivation,
// PKCS#7 padding, and a 16-byte-block-aligned streaming cipher, plus the
// secure-zeroing idiom used throughout the key lifecycle.
package cryptoz

import "crypto/subtle"

// SecureZero overwrites b with zeros via a constant-time copy so the
// compiler cannot optimize the store away, reducing (without eliminating)
// the window during which key material is recoverable from a memory dump.
func SecureZero(b []byte) {
	if len(b) == 0 {
		return
	}
	zeros := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, zeros)
}

// SecureZeroMultiple zeros every slice given.
func SecureZeroMultiple(slices ...[]byte) {
	for _, s := range slices {
		SecureZero(s)
	}
}

// KeyMaterial owns a copy of sensitive key bytes and zeroes them on Close.
type KeyMaterial struct {
	data   []byte
	closed bool
}

// NewKeyMaterial copies data into a new KeyMaterial; the caller's slice is
// not retained.
func NewKeyMaterial(data []byte) *KeyMaterial {
	copied := make([]byte, len(data))
	copy(copied, data)
	return &KeyMaterial{data: copied}
}

// Bytes returns the key bytes, or nil if Close has already run.
func (km *KeyMaterial) Bytes() []byte {
	if km.closed {
		return nil
	}
	return km.data
}

// Close zeros the key data and marks the material closed. Idempotent.
func (km *KeyMaterial) Close() {
	if km.closed {
		return
	}
	SecureZero(km.data)
	km.data = nil
	km.closed = true
}
