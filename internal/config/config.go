package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Purposes a client may be granted in acl.mappings.
var validPurposes = map[string]bool{
	"ENCRYPT": true,
	"DECRYPT": true,
	"SIGN":    true,
	"VERIFY":  true,
}

// LoadConfig loads configuration from YAML file and applies environment overrides
func LoadConfig(path string) (*Config, error) {
	// Read YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(&cfg)

	// Validate configuration
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides to configuration
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if port := os.Getenv("KEYGUARD_SERVER_PORT"); port != "" {
		cfg.Server.Port = port
	}
	if certPath := os.Getenv("KEYGUARD_SERVER_CERT"); certPath != "" {
		cfg.Server.TLS.CertPath = certPath
	}
	if keyPath := os.Getenv("KEYGUARD_SERVER_KEY"); keyPath != "" {
		cfg.Server.TLS.KeyPath = keyPath
	}
	if caPath := os.Getenv("KEYGUARD_SERVER_CA"); caPath != "" {
		cfg.Server.TLS.CAPath = caPath
	}

	// HSM overrides
	if lib := os.Getenv("KEYGUARD_PKCS11_LIB"); lib != "" {
		cfg.HSM.PKCS11Lib = lib
	}
	if slot := os.Getenv("KEYGUARD_SLOT_ID"); slot != "" {
		cfg.HSM.SlotID = slot
	}
	if label := os.Getenv("KEYGUARD_MAC_KEY_LABEL"); label != "" {
		cfg.HSM.MACKeyLabel = label
	}

	// Logging overrides
	if level := os.Getenv("KEYGUARD_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("KEYGUARD_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	// Validate server config
	if cfg.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if cfg.Server.TLS.CertPath == "" {
		return fmt.Errorf("server.tls.cert_path is required")
	}
	if cfg.Server.TLS.KeyPath == "" {
		return fmt.Errorf("server.tls.key_path is required")
	}
	if cfg.Server.TLS.CAPath == "" {
		return fmt.Errorf("server.tls.ca_path is required")
	}

	// Validate HSM config: either a PKCS#11 slot or a software key file
	// must provide the token MAC secret
	if cfg.HSM.PKCS11Lib != "" {
		if cfg.HSM.SlotID == "" {
			return fmt.Errorf("hsm.slot_id is required when hsm.pkcs11_lib is set")
		}
		if cfg.HSM.MACKeyLabel == "" {
			return fmt.Errorf("hsm.mac_key_label is required when hsm.pkcs11_lib is set")
		}
		// PIN is provided via ENV variable HSM_PIN, not in config
	} else if cfg.HSM.SoftKeyFile == "" {
		return fmt.Errorf("either hsm.pkcs11_lib or hsm.soft_key_file is required")
	}

	// Validate enforcement config
	if cfg.Enforcement.MaxRateLimitedKeys < 0 {
		return fmt.Errorf("enforcement.max_rate_limited_keys cannot be negative")
	}
	if cfg.Enforcement.MaxUseCountedKeys < 0 {
		return fmt.Errorf("enforcement.max_use_counted_keys cannot be negative")
	}

	// Validate ACL config
	if len(cfg.ACL.Mappings) == 0 {
		return fmt.Errorf("acl.mappings cannot be empty")
	}
	for ou, purposes := range cfg.ACL.Mappings {
		if len(purposes) == 0 {
			return fmt.Errorf("acl.mappings.%s cannot be empty", ou)
		}
		for _, p := range purposes {
			if !validPurposes[p] {
				return fmt.Errorf("acl.mappings.%s: unknown purpose '%s'", ou, p)
			}
		}
	}

	// Validate logging config
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info" // default
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json" // default
	}

	return nil
}
