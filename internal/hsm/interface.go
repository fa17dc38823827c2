package hsm

// TokenAuthority both verifies and mints hardware auth token MACs. The
// enforcement engine only needs the verify half; the mint half exists for
// the admin tooling and for authenticator services that share the secret.
type TokenAuthority interface {
	// ValidateTokenAuthenticity checks the MAC of a serialized token
	// against its signed prefix. Returns false on any malformed input.
	ValidateTokenAuthenticity(token []byte) bool

	// SignToken computes the MAC over a token's signed prefix.
	SignToken(prefix []byte) ([]byte, error)

	// Close releases the underlying key material or session.
	Close() error
}
