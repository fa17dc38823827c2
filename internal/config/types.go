package config

// Config represents the complete application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	HSM         HSMConfig         `yaml:"hsm"`
	Enforcement EnforcementConfig `yaml:"enforcement"`
	ACL         ACLConfig         `yaml:"acl"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig defines HTTP server configuration
type ServerConfig struct {
	Port  string      `yaml:"port"`
	TLS   TLSConfig   `yaml:"tls"`
	HTTP2 HTTP2Config `yaml:"http2"`
}

// TLSConfig defines TLS certificate paths
type TLSConfig struct {
	CertPath string `yaml:"cert_path"`
	KeyPath  string `yaml:"key_path"`
	CAPath   string `yaml:"ca_path"`
}

// HSMConfig defines where the token-MAC secret lives. With a PKCS#11
// library configured the MAC is verified inside the HSM; otherwise
// soft_key_file names a raw HMAC key file used as a software fallback.
type HSMConfig struct {
	PKCS11Lib   string `yaml:"pkcs11_lib"`
	SlotID      string `yaml:"slot_id"`
	MACKeyLabel string `yaml:"mac_key_label"`
	SoftKeyFile string `yaml:"soft_key_file"`
}

// EnforcementConfig bounds the per-boot usage tables
type EnforcementConfig struct {
	MaxRateLimitedKeys int `yaml:"max_rate_limited_keys"`
	MaxUseCountedKeys  int `yaml:"max_use_counted_keys"`
}

// ACLConfig defines access control configuration
type ACLConfig struct {
	RevokedFile string              `yaml:"revoked_file"` // Path to revoked.yaml
	Mappings    map[string][]string `yaml:"mappings"`     // OU -> purposes the client may request
}

// RateLimitConfig defines transport rate limiting parameters
type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	Burst             int `yaml:"burst"`
}

// LoggingConfig defines logging configuration. When File is set, output is
// rotated by size/age; otherwise logs go to stdout.
type LoggingConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // json, text
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}
