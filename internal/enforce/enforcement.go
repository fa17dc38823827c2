package enforce

import (
	"log/slog"
	"math"
	"sync"
	"time"
)

// Clock is the monotonic time source: seconds since boot, never stepping
// backwards. Platform-specific, injected at construction so the evaluator
// stays testable with a fake.
type Clock interface {
	CurrentTime() uint64
}

// TokenVerifier checks an auth token's authenticity tag using a
// platform-held secret (typically HSM-resident).
type TokenVerifier interface {
	ValidateTokenAuthenticity(token []byte) bool
}

// BootClock counts whole seconds since it was created, which for the
// service is process start: the boot session.
type BootClock struct {
	start time.Time
}

func NewBootClock() *BootClock {
	return &BootClock{start: time.Now()}
}

func (c *BootClock) CurrentTime() uint64 {
	return uint64(time.Since(c.start) / time.Second)
}

// Default capacities for the usage tables.
const (
	DefaultMaxRateLimitedKeys = 32
	DefaultMaxUseCountedKeys  = 32
)

// noMinOpsTimeout marks "no MIN_SECONDS_BETWEEN_OPS tag seen".
const noMinOpsTimeout = math.MaxUint32

// Enforcement is the admission engine: a pure decision procedure over a
// key's policy and an operation's parameters, plus the two bounded usage
// tables that are the only state outliving a single call. One instance is
// constructed per boot session; dropping it discards all usage state,
// which is the intended "per boot" scoping of the limits.
type Enforcement struct {
	clock    Clock
	verifier TokenVerifier

	// One lock covers the whole evaluate-then-commit sequence so
	// concurrent calls cannot double-admit under a rate or count limit.
	mu           sync.Mutex
	accessTimes  accessTimeTable
	accessCounts accessCountTable
}

// New builds an enforcement engine with the given capabilities and table
// capacities. Non-positive capacities fall back to the defaults.
func New(clock Clock, verifier TokenVerifier, maxRateLimitedKeys, maxUseCountedKeys int) *Enforcement {
	if maxRateLimitedKeys <= 0 {
		maxRateLimitedKeys = DefaultMaxRateLimitedKeys
	}
	if maxUseCountedKeys <= 0 {
		maxUseCountedKeys = DefaultMaxUseCountedKeys
	}
	return &Enforcement{
		clock:        clock,
		verifier:     verifier,
		accessTimes:  newAccessTimeTable(maxRateLimitedKeys),
		accessCounts: newAccessCountTable(maxUseCountedKeys),
	}
}

func isPublicKeyAlgorithm(keyPolicy AuthorizationSet) bool {
	alg, ok := keyPolicy.GetEnum(TagAlgorithm)
	return ok && (Algorithm(alg) == AlgorithmRSA || Algorithm(alg) == AlgorithmEC)
}

// authorizedPurpose gates the requested purpose. VERIFY and ENCRYPT use
// only public material, so public-key algorithms may always perform them;
// SIGN and DECRYPT touch private material and always need an explicit
// PURPOSE grant.
func authorizedPurpose(purpose Purpose, keyPolicy AuthorizationSet) error {
	switch purpose {
	case PurposeVerify, PurposeEncrypt:
		if isPublicKeyAlgorithm(keyPolicy) || keyPolicy.Contains(TagPurpose, uint32(purpose)) {
			return nil
		}
		return ErrIncompatiblePurpose

	case PurposeSign, PurposeDecrypt:
		if keyPolicy.Contains(TagPurpose, uint32(purpose)) {
			return nil
		}
		return ErrIncompatiblePurpose

	default:
		return ErrUnsupportedPurpose
	}
}

func isOriginationPurpose(purpose Purpose) bool {
	return purpose == PurposeEncrypt || purpose == PurposeSign
}

func isUsagePurpose(purpose Purpose) bool {
	return purpose == PurposeDecrypt || purpose == PurposeVerify
}

// canSkipAuthentication: during begin with an auth-per-operation key the
// challenge to authenticate against is only known after begin returns the
// operation handle, so authentication cannot happen yet.
func canSkipAuthentication(isBegin, isAuthPerOpKey bool) bool {
	return isBegin && isAuthPerOpKey
}

// AuthorizeOperation decides whether one operation step may proceed.
// It returns nil to admit, or an ErrorCode naming the first violated
// constraint. Side effects on the usage tables are committed only after
// every content check has passed, so an abort mid-evaluation never leaves
// partial state and a capacity failure never masks a policy violation.
func (e *Enforcement) AuthorizeOperation(purpose Purpose, keyID KeyID,
	keyPolicy, operationParams AuthorizationSet,
	opHandle uint64, isBegin bool) error {

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.CurrentTime()

	// Locate the entries needed to handle USER_SECURE_ID. Absence is
	// "not found", not an error.
	authTimeoutIndex := -1
	authTypeIndex := -1
	noAuthRequiredIndex := -1
	for i, p := range keyPolicy {
		switch p.Tag {
		case TagAuthTimeout:
			authTimeoutIndex = i
		case TagUserAuthType:
			authTypeIndex = i
		case TagNoAuthRequired:
			noAuthRequiredIndex = i
		}
	}

	if err := authorizedPurpose(purpose, keyPolicy); err != nil {
		return err
	}

	var minOpsTimeout uint32 = noMinOpsTimeout
	updateAccessCount := false
	callerNonceAllowed := false
	authenticationRequired := false
	authTokenMatched := false

	for _, param := range keyPolicy {
		switch param.Tag {

		case TagActiveDateTime:
			if now < param.Date {
				return ErrKeyNotYetValid
			}

		case TagOriginationExpireDateTime:
			if isOriginationPurpose(purpose) && now > param.Date {
				return ErrKeyExpired
			}

		case TagUsageExpireDateTime:
			if isUsagePurpose(purpose) && now > param.Date {
				return ErrKeyExpired
			}

		case TagMinSecondsBetweenOps:
			minOpsTimeout = param.Uint
			if !e.minTimeBetweenOpsPassed(now, minOpsTimeout, keyID) {
				return ErrKeyRateLimitExceeded
			}

		case TagMaxUsesPerBoot:
			updateAccessCount = true
			if !e.maxUsesPerBootNotExceeded(keyID, param.Uint) {
				return ErrKeyMaxOpsExceeded
			}

		case TagUserSecureID:
			if noAuthRequiredIndex != -1 {
				// USER_SECURE_ID and NO_AUTH_REQUIRED are mutually
				// exclusive; a key carrying both is malformed.
				return ErrInvalidKeyBlob
			}
			if !canSkipAuthentication(isBegin, authTimeoutIndex == -1) ||
				operationParams.IndexOf(TagAuthToken) != -1 {
				authenticationRequired = true
				if e.authTokenMatches(keyPolicy, operationParams, param.Long,
					authTypeIndex, authTimeoutIndex, opHandle, isBegin, now) {
					authTokenMatched = true
				}
			}

		case TagCallerNonce:
			callerNonceAllowed = true

		// Operation inputs that must never be baked into a key's policy.
		case TagInvalid, TagAuthToken, TagRootOfTrust, TagApplicationData:
			return ErrInvalidKeyBlob

		// This engine never runs in a bootloader-only context.
		case TagBootloaderOnly:
			return ErrInvalidKeyBlob

		// Cryptographic parameters.
		case TagPurpose, TagAlgorithm, TagKeySize, TagBlockMode,
			TagDigest, TagMACLength, TagPadding, TagNonce,
			TagRSAPublicExponent:

		// Informational tags.
		case TagCreationDateTime, TagOrigin, TagRollbackResistant,
			TagBlobUsageRequirements:

		// Handled alongside USER_SECURE_ID above.
		case TagNoAuthRequired, TagUserAuthType, TagAuthTimeout:

		// Data fed to operations, and legacy tags ignored pending removal.
		case TagAssociatedData, TagAllApplications, TagApplicationID,
			TagUserID, TagAllUsers:

		default:
			// A tag the engine does not know how to enforce is a latent
			// hole, not a pass-through.
			return ErrInvalidKeyBlob
		}
	}

	if authenticationRequired && !authTokenMatched {
		slog.Error("authentication required but no matching auth token found",
			"key_id", uint64(keyID))
		return ErrKeyUserNotAuthenticated
	}

	if !callerNonceAllowed && operationParams.IndexOf(TagNonce) != -1 {
		return ErrCallerNonceProhibited
	}

	// Commit phase: all content checks passed, record the use.
	if minOpsTimeout != noMinOpsTimeout {
		if !e.accessTimes.update(keyID, now, minOpsTimeout) {
			slog.Error("rate-limited key table full; entries will time out")
			return ErrTooManyOperations
		}
	}

	if updateAccessCount {
		if !e.accessCounts.increment(keyID) {
			slog.Error("use-count-limited key table full until restart")
			return ErrTooManyOperations
		}
	}

	return nil
}

func (e *Enforcement) minTimeBetweenOpsPassed(now uint64, minTimeBetween uint32, keyID KeyID) bool {
	last, ok := e.accessTimes.lastAccess(keyID)
	if !ok {
		return true
	}
	return now-last >= uint64(minTimeBetween)
}

func (e *Enforcement) maxUsesPerBootNotExceeded(keyID KeyID, maxUses uint32) bool {
	count, ok := e.accessCounts.count(keyID)
	if !ok {
		return true
	}
	return count < maxUses
}

// TableStats reports current occupancy of the usage tables, for the
// metrics gauges.
func (e *Enforcement) TableStats() (rateLimited, useCounted int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.accessTimes.size(), e.accessCounts.size()
}
