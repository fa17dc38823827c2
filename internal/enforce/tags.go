package enforce

// Tag identifies one typed field of a key's authorization list or an
// operation's parameter list. The set is closed: the evaluator dispatches
// over every value and treats anything else as a malformed key blob.
type Tag uint32

const (
	TagInvalid Tag = iota

	// Cryptographic parameters.
	TagPurpose
	TagAlgorithm
	TagKeySize
	TagBlockMode
	TagDigest
	TagPadding
	TagMACLength
	TagNonce
	TagRSAPublicExponent

	// Access control.
	TagCallerNonce
	TagActiveDateTime
	TagOriginationExpireDateTime
	TagUsageExpireDateTime
	TagMinSecondsBetweenOps
	TagMaxUsesPerBoot
	TagUserSecureID
	TagNoAuthRequired
	TagUserAuthType
	TagAuthTimeout
	TagBootloaderOnly

	// Operation inputs that must never appear in a key's own policy.
	TagAuthToken
	TagRootOfTrust
	TagApplicationData
	TagAssociatedData

	// Informational.
	TagCreationDateTime
	TagOrigin
	TagRollbackResistant
	TagBlobUsageRequirements

	// Legacy tags kept for wire compatibility, ignored by enforcement.
	TagAllUsers
	TagUserID
	TagAllApplications
	TagApplicationID
)

var tagNames = map[Tag]string{
	TagInvalid:                   "INVALID",
	TagPurpose:                   "PURPOSE",
	TagAlgorithm:                 "ALGORITHM",
	TagKeySize:                   "KEY_SIZE",
	TagBlockMode:                 "BLOCK_MODE",
	TagDigest:                    "DIGEST",
	TagPadding:                   "PADDING",
	TagMACLength:                 "MAC_LENGTH",
	TagNonce:                     "NONCE",
	TagRSAPublicExponent:         "RSA_PUBLIC_EXPONENT",
	TagCallerNonce:               "CALLER_NONCE",
	TagActiveDateTime:            "ACTIVE_DATETIME",
	TagOriginationExpireDateTime: "ORIGINATION_EXPIRE_DATETIME",
	TagUsageExpireDateTime:       "USAGE_EXPIRE_DATETIME",
	TagMinSecondsBetweenOps:      "MIN_SECONDS_BETWEEN_OPS",
	TagMaxUsesPerBoot:            "MAX_USES_PER_BOOT",
	TagUserSecureID:              "USER_SECURE_ID",
	TagNoAuthRequired:            "NO_AUTH_REQUIRED",
	TagUserAuthType:              "USER_AUTH_TYPE",
	TagAuthTimeout:               "AUTH_TIMEOUT",
	TagBootloaderOnly:            "BOOTLOADER_ONLY",
	TagAuthToken:                 "AUTH_TOKEN",
	TagRootOfTrust:               "ROOT_OF_TRUST",
	TagApplicationData:           "APPLICATION_DATA",
	TagAssociatedData:            "ASSOCIATED_DATA",
	TagCreationDateTime:          "CREATION_DATETIME",
	TagOrigin:                    "ORIGIN",
	TagRollbackResistant:         "ROLLBACK_RESISTANT",
	TagBlobUsageRequirements:     "BLOB_USAGE_REQUIREMENTS",
	TagAllUsers:                  "ALL_USERS",
	TagUserID:                    "USER_ID",
	TagAllApplications:           "ALL_APPLICATIONS",
	TagApplicationID:             "APPLICATION_ID",
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseTag resolves a tag name as used in configuration and API payloads.
func ParseTag(name string) (Tag, bool) {
	for t, n := range tagNames {
		if n == name {
			return t, true
		}
	}
	return TagInvalid, false
}

// Purpose is the cryptographic operation class being requested.
type Purpose uint32

const (
	PurposeEncrypt Purpose = iota
	PurposeDecrypt
	PurposeSign
	PurposeVerify
)

func (p Purpose) String() string {
	switch p {
	case PurposeEncrypt:
		return "ENCRYPT"
	case PurposeDecrypt:
		return "DECRYPT"
	case PurposeSign:
		return "SIGN"
	case PurposeVerify:
		return "VERIFY"
	}
	return "UNKNOWN"
}

// ParsePurpose resolves a purpose name as used in ACL mappings and requests.
func ParsePurpose(name string) (Purpose, bool) {
	switch name {
	case "ENCRYPT", "encrypt":
		return PurposeEncrypt, true
	case "DECRYPT", "decrypt":
		return PurposeDecrypt, true
	case "SIGN", "sign":
		return PurposeSign, true
	case "VERIFY", "verify":
		return PurposeVerify, true
	}
	return 0, false
}

// Algorithm identifies the key's algorithm family.
type Algorithm uint32

const (
	AlgorithmRSA  Algorithm = 1
	AlgorithmEC   Algorithm = 3
	AlgorithmAES  Algorithm = 32
	AlgorithmHMAC Algorithm = 128
)

// Authenticator type bits carried in the token's type field and in a key's
// USER_AUTH_TYPE mask.
const (
	AuthTypePassword    uint32 = 1 << 0
	AuthTypeFingerprint uint32 = 1 << 1
	AuthTypeAny         uint32 = 0xFFFFFFFF
)

// Param is one tag/value entry. Which value field is meaningful depends on
// the tag: Enum for enumerations and bitmasks, Uint for 32-bit integers,
// Long for 64-bit identifiers, Blob for byte strings, Date for timestamps
// (seconds, same timebase as the enforcement clock).
type Param struct {
	Tag  Tag
	Enum uint32
	Uint uint32
	Long uint64
	Blob []byte
	Date uint64
}

// AuthorizationSet is an ordered list of tag/value entries. Order is
// storage order; duplicates are legal and matching is always done by
// scanning.
type AuthorizationSet []Param

// IndexOf returns the position of the first entry with the given tag,
// or -1 if none is present.
func (s AuthorizationSet) IndexOf(tag Tag) int {
	for i, p := range s {
		if p.Tag == tag {
			return i
		}
	}
	return -1
}

// Contains reports whether an entry with the given tag carries the given
// enumeration value.
func (s AuthorizationSet) Contains(tag Tag, value uint32) bool {
	for _, p := range s {
		if p.Tag == tag && p.Enum == value {
			return true
		}
	}
	return false
}

// GetEnum returns the enumeration value of the first entry with the tag.
func (s AuthorizationSet) GetEnum(tag Tag) (uint32, bool) {
	if i := s.IndexOf(tag); i != -1 {
		return s[i].Enum, true
	}
	return 0, false
}

// GetUint returns the 32-bit integer value of the first entry with the tag.
func (s AuthorizationSet) GetUint(tag Tag) (uint32, bool) {
	if i := s.IndexOf(tag); i != -1 {
		return s[i].Uint, true
	}
	return 0, false
}

// GetBlob returns the byte-string value of the first entry with the tag.
func (s AuthorizationSet) GetBlob(tag Tag) ([]byte, bool) {
	if i := s.IndexOf(tag); i != -1 {
		return s[i].Blob, true
	}
	return nil, false
}
