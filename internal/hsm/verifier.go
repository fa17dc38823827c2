package hsm

import (
	"crypto/hmac"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ThalesGroup/crypto11"
	"github.com/miekg/pkcs11"

	"github.com/titaev-lv/keyguard-service/internal/config"
	"github.com/titaev-lv/keyguard-service/internal/enforce"
)

var (
	// ErrMACKeyNotFound is returned when the configured token-MAC key is
	// not present in the HSM slot.
	ErrMACKeyNotFound = errors.New("token MAC key not found in HSM")
)

// Verifier validates auth token MACs with an HSM-resident generic secret
// key. The key never leaves the token; each verification runs HMAC-SHA256
// inside the HSM via PKCS#11.
type Verifier struct {
	ctx *crypto11.Context
	key *crypto11.SecretKey
}

// InitVerifier opens the PKCS#11 slot and locates the token-MAC key by its
// configured label.
func InitVerifier(cfg *config.HSMConfig, pin string) (*Verifier, error) {
	c11Config := &crypto11.Config{
		Path:       cfg.PKCS11Lib,
		TokenLabel: cfg.SlotID,
		Pin:        pin,
	}

	ctx, err := crypto11.Configure(c11Config)
	if err != nil {
		return nil, fmt.Errorf("failed to configure crypto11: %w", err)
	}

	key, err := ctx.FindKey(nil, []byte(cfg.MACKeyLabel))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("failed to look up token MAC key %q: %w", cfg.MACKeyLabel, err)
	}
	if key == nil {
		ctx.Close()
		return nil, fmt.Errorf("%w: %s", ErrMACKeyNotFound, cfg.MACKeyLabel)
	}

	slog.Info("token MAC key loaded from HSM", "label", cfg.MACKeyLabel)

	return &Verifier{ctx: ctx, key: key}, nil
}

// ValidateTokenAuthenticity checks the token's MAC field against an
// HSM-computed HMAC of the signed prefix.
func (v *Verifier) ValidateTokenAuthenticity(token []byte) bool {
	if len(token) != enforce.AuthTokenSize {
		return false
	}

	mac, err := v.SignToken(token[:enforce.AuthTokenMACOffset])
	if err != nil {
		slog.Error("HSM HMAC computation failed", "error", err)
		return false
	}

	return hmac.Equal(mac, token[enforce.AuthTokenMACOffset:])
}

// SignToken computes HMAC-SHA256 over the signed prefix inside the HSM.
func (v *Verifier) SignToken(prefix []byte) ([]byte, error) {
	h, err := v.key.NewHMAC(pkcs11.CKM_SHA256_HMAC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize HSM HMAC: %w", err)
	}
	if _, err := h.Write(prefix); err != nil {
		return nil, fmt.Errorf("failed to feed HSM HMAC: %w", err)
	}
	return h.Sum(nil), nil
}

// Close closes the PKCS#11 session.
func (v *Verifier) Close() error {
	if v.ctx != nil {
		return v.ctx.Close()
	}
	return nil
}
