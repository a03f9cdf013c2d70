package cryptoz

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

// Iterations is the fixed PBKDF2 round count the format mandates.
const Iterations = 262144

// KeyLen is the derived AES-256 key length in bytes.
const KeyLen = 32

// SaltLen and IVLen are the fixed random-value sizes recorded alongside the
// derived key in the archive's end header.
const (
	SaltLen = 16
	IVLen   = 16
)

// DeriveKey runs PBKDF2-HMAC-SHA256 over password and salt for Iterations
// rounds, producing a 32-byte AES-256 key.
func DeriveKey(password []byte, salt []byte) *KeyMaterial {
	key := pbkdf2.Key(password, salt, Iterations, KeyLen, sha256.New)
	km := NewKeyMaterial(key)
	SecureZero(key)
	return km
}
