package enforce

import (
	"crypto/sha256"
	"encoding/binary"
)

// KeyID is a 64-bit identifier derived from a key's opaque material.
// Equality of KeyID is the sole criterion for "same key" in the usage
// tables; collision probability is bounded by the digest strength.
type KeyID uint64

// CreateKeyID derives the identifier by truncating a SHA-256 digest of the
// key material. It is computed on demand and never persisted.
func CreateKeyID(keyMaterial []byte) KeyID {
	sum := sha256.Sum256(keyMaterial)
	return KeyID(binary.BigEndian.Uint64(sum[:8]))
}
