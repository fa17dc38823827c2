package enforce

// ErrorCode is the closed set of admission failures. AuthorizeOperation
// returns nil on success and one of these values otherwise; they are plain
// errors, never panics.
type ErrorCode int32

const (
	// ErrInvalidKeyBlob reports a malformed or self-contradictory key
	// policy that should never occur for a validly-issued key.
	ErrInvalidKeyBlob ErrorCode = iota + 1

	// ErrIncompatiblePurpose reports a purpose the key's policy does not
	// grant.
	ErrIncompatiblePurpose

	// ErrUnsupportedPurpose reports a purpose value outside the known set.
	ErrUnsupportedPurpose

	// ErrKeyNotYetValid reports use before the key's activation time.
	ErrKeyNotYetValid

	// ErrKeyExpired reports use after the relevant expiry time.
	ErrKeyExpired

	// ErrKeyRateLimitExceeded reports an operation attempted before the
	// key's minimum interval between operations has elapsed.
	ErrKeyRateLimitExceeded

	// ErrKeyMaxOpsExceeded reports that the key's per-boot use budget is
	// exhausted.
	ErrKeyMaxOpsExceeded

	// ErrKeyUserNotAuthenticated reports that authentication was required
	// and no presented token satisfied it.
	ErrKeyUserNotAuthenticated

	// ErrCallerNonceProhibited reports a caller-supplied nonce on a key
	// whose policy does not allow one.
	ErrCallerNonceProhibited

	// ErrTooManyOperations reports exhaustion of a bounded usage table.
	// Unlike the policy violations above it is a host capacity condition,
	// recoverable once entries age out or the process restarts.
	ErrTooManyOperations
)

func (e ErrorCode) Error() string {
	switch e {
	case ErrInvalidKeyBlob:
		return "invalid key blob"
	case ErrIncompatiblePurpose:
		return "incompatible purpose"
	case ErrUnsupportedPurpose:
		return "unsupported purpose"
	case ErrKeyNotYetValid:
		return "key not yet valid"
	case ErrKeyExpired:
		return "key expired"
	case ErrKeyRateLimitExceeded:
		return "key rate limit exceeded"
	case ErrKeyMaxOpsExceeded:
		return "key max operations exceeded"
	case ErrKeyUserNotAuthenticated:
		return "key user not authenticated"
	case ErrCallerNonceProhibited:
		return "caller nonce prohibited"
	case ErrTooManyOperations:
		return "too many operations"
	}
	return "unknown enforcement error"
}

// Code returns a stable machine-readable identifier for metrics labels and
// API responses.
func (e ErrorCode) Code() string {
	switch e {
	case ErrInvalidKeyBlob:
		return "INVALID_KEY_BLOB"
	case ErrIncompatiblePurpose:
		return "INCOMPATIBLE_PURPOSE"
	case ErrUnsupportedPurpose:
		return "UNSUPPORTED_PURPOSE"
	case ErrKeyNotYetValid:
		return "KEY_NOT_YET_VALID"
	case ErrKeyExpired:
		return "KEY_EXPIRED"
	case ErrKeyRateLimitExceeded:
		return "KEY_RATE_LIMIT_EXCEEDED"
	case ErrKeyMaxOpsExceeded:
		return "KEY_MAX_OPS_EXCEEDED"
	case ErrKeyUserNotAuthenticated:
		return "KEY_USER_NOT_AUTHENTICATED"
	case ErrCallerNonceProhibited:
		return "CALLER_NONCE_PROHIBITED"
	case ErrTooManyOperations:
		return "TOO_MANY_OPERATIONS"
	}
	return "UNKNOWN"
}
