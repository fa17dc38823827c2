package enforce

import (
	"encoding/binary"
	"fmt"
	"log/slog"
)

// Hardware auth token wire format. All multi-byte fields are big-endian.
// The MAC covers every byte before it.
const (
	AuthTokenVersion = 0

	// AuthTokenSize is the exact length of a serialized token:
	// version(1) challenge(8) user_id(8) authenticator_id(8)
	// authenticator_type(4) timestamp(8) mac(32).
	AuthTokenSize = 1 + 8 + 8 + 8 + 4 + 8 + AuthTokenMACSize

	// AuthTokenMACOffset is where the authenticity tag starts; the signed
	// prefix is token[:AuthTokenMACOffset].
	AuthTokenMACOffset = AuthTokenSize - AuthTokenMACSize

	AuthTokenMACSize = 32
)

// AuthToken is the decoded form of an externally-presented authentication
// event: a secondary unlock (password, fingerprint) bound to a challenge,
// an identity pair, an authenticator type, and a timestamp, authenticated
// by a MAC computed with a platform-held secret.
type AuthToken struct {
	Version           uint8
	Challenge         uint64
	UserID            uint64
	AuthenticatorID   uint64
	AuthenticatorType uint32
	Timestamp         uint64
	MAC               [AuthTokenMACSize]byte
}

// DecodeAuthToken parses a serialized token. The length must match exactly;
// truncated or extended input is rejected before any field is read.
func DecodeAuthToken(b []byte) (*AuthToken, error) {
	if len(b) != AuthTokenSize {
		return nil, fmt.Errorf("auth token wrong size: want %d, got %d", AuthTokenSize, len(b))
	}
	t := &AuthToken{
		Version:           b[0],
		Challenge:         binary.BigEndian.Uint64(b[1:9]),
		UserID:            binary.BigEndian.Uint64(b[9:17]),
		AuthenticatorID:   binary.BigEndian.Uint64(b[17:25]),
		AuthenticatorType: binary.BigEndian.Uint32(b[25:29]),
		Timestamp:         binary.BigEndian.Uint64(b[29:37]),
	}
	copy(t.MAC[:], b[AuthTokenMACOffset:])
	return t, nil
}

// Encode serializes the token back to its wire form.
func (t *AuthToken) Encode() []byte {
	b := make([]byte, AuthTokenSize)
	b[0] = t.Version
	binary.BigEndian.PutUint64(b[1:9], t.Challenge)
	binary.BigEndian.PutUint64(b[9:17], t.UserID)
	binary.BigEndian.PutUint64(b[17:25], t.AuthenticatorID)
	binary.BigEndian.PutUint32(b[25:29], t.AuthenticatorType)
	binary.BigEndian.PutUint64(b[29:37], t.Timestamp)
	copy(b[AuthTokenMACOffset:], t.MAC[:])
	return b
}

// authTokenMatches runs the validation gauntlet against the token presented
// in the operation parameters. Every failure path logs a diagnostic and
// returns false; false means "does not satisfy the authentication
// requirement", never a hard error. The check order is fixed but only
// matters for diagnostics: any single failure denies authentication.
func (e *Enforcement) authTokenMatches(keyPolicy, opParams AuthorizationSet,
	userSecureID uint64, authTypeIndex, authTimeoutIndex int,
	opHandle uint64, isBegin bool, now uint64) bool {

	blob, ok := opParams.GetBlob(TagAuthToken)
	if !ok {
		slog.Error("authentication required but no auth token provided")
		return false
	}

	if len(blob) != AuthTokenSize {
		slog.Error("auth token has wrong size",
			"expected", AuthTokenSize,
			"found", len(blob))
		return false
	}

	token, err := DecodeAuthToken(blob)
	if err != nil {
		slog.Error("auth token decode failed", "error", err)
		return false
	}

	if token.Version != AuthTokenVersion {
		slog.Error("auth token has unexpected version (or is not an auth token)",
			"version", token.Version,
			"expected", AuthTokenVersion)
		return false
	}

	if !e.verifier.ValidateTokenAuthenticity(blob) {
		slog.Error("auth token authenticity tag invalid")
		return false
	}

	// Per-operation keys bind the token to the operation handle issued at
	// begin. Time-windowed keys do not bind to a specific handle.
	if authTimeoutIndex == -1 && opHandle != 0 && opHandle != token.Challenge {
		slog.Error("auth token challenge does not match operation handle",
			"challenge", token.Challenge,
			"handle", opHandle)
		return false
	}

	if userSecureID != token.UserID && userSecureID != token.AuthenticatorID {
		slog.Info("auth token identities do not match key secure ID",
			"token_user_id", token.UserID,
			"token_authenticator_id", token.AuthenticatorID)
		return false
	}

	if authTypeIndex < 0 || authTypeIndex >= len(keyPolicy) {
		slog.Error("auth required but key has no auth type tag")
		return false
	}
	if keyPolicy[authTypeIndex].Tag != TagUserAuthType {
		return false
	}
	keyAuthTypeMask := keyPolicy[authTypeIndex].Enum
	if keyAuthTypeMask&token.AuthenticatorType == 0 {
		slog.Error("auth token authenticator type not accepted by key",
			"key_mask", keyAuthTypeMask,
			"token_type", token.AuthenticatorType)
		return false
	}

	// Freshness only applies to time-windowed keys, and only at begin;
	// later steps of the same operation ride on the window opened there.
	if authTimeoutIndex != -1 && isBegin {
		if keyPolicy[authTimeoutIndex].Tag != TagAuthTimeout {
			return false
		}
		timeout := keyPolicy[authTimeoutIndex].Uint
		if token.Timestamp+uint64(timeout) < now {
			slog.Error("auth token has timed out",
				"token_timestamp", token.Timestamp,
				"timeout", timeout,
				"now", now)
			return false
		}
	}

	return true
}
