package hsm

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"os"

	"github.com/titaev-lv/keyguard-service/internal/enforce"
)

// SoftVerifier is the file-backed fallback for environments without an
// HSM: the same HMAC-SHA256 construction with the key held in process
// memory. Deployments that have a real HSM should prefer Verifier.
type SoftVerifier struct {
	key []byte
}

// NewSoftVerifier wraps a raw HMAC key.
func NewSoftVerifier(key []byte) *SoftVerifier {
	return &SoftVerifier{key: key}
}

// LoadSoftVerifier reads the HMAC key from a file. The file must hold at
// least 32 bytes of key material.
func LoadSoftVerifier(path string) (*SoftVerifier, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token MAC key file: %w", err)
	}
	if len(key) < sha256.Size {
		return nil, fmt.Errorf("token MAC key too short: %d bytes (min %d)", len(key), sha256.Size)
	}
	return &SoftVerifier{key: key}, nil
}

func (v *SoftVerifier) ValidateTokenAuthenticity(token []byte) bool {
	if len(token) != enforce.AuthTokenSize {
		return false
	}
	mac, _ := v.SignToken(token[:enforce.AuthTokenMACOffset])
	return hmac.Equal(mac, token[enforce.AuthTokenMACOffset:])
}

func (v *SoftVerifier) SignToken(prefix []byte) ([]byte, error) {
	mac := hmac.New(sha256.New, v.key)
	mac.Write(prefix)
	return mac.Sum(nil), nil
}

// Close zeroes the in-memory key.
func (v *SoftVerifier) Close() error {
	for i := range v.key {
		v.key[i] = 0
	}
	v.key = nil
	return nil
}
