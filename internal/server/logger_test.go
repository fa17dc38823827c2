package server

import (
	"testing"

	"github.com/titaev-lv/keyguard-service/internal/config"
)

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LoggingConfig
	}{
		{"json format", config.LoggingConfig{Level: "info", Format: "json"}},
		{"text format", config.LoggingConfig{Level: "debug", Format: "text"}},
		{"unknown level falls back to info", config.LoggingConfig{Level: "verbose", Format: "json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := InitLogger(&tt.cfg); err != nil {
				t.Errorf("InitLogger() error = %v", err)
			}
		})
	}
}

func TestAuditLogger(t *testing.T) {
	if AuditLogger() == nil {
		t.Fatal("AuditLogger() returned nil")
	}
}

func TestSanitizeForLog(t *testing.T) {
	data := map[string]any{
		"client_cn":  "pay-svc",
		"purpose":    "SIGN",
		"auth_token": "c2VjcmV0",
		"key_blob":   "bWF0ZXJpYWw=",
		"key":        "raw",
		"mac":        "deadbeef",
		"hsm_secret": "1234",
		"password":   "hunter2",
	}

	sanitized := SanitizeForLog(data)

	for _, k := range []string{"auth_token", "key_blob", "key", "mac", "hsm_secret", "password"} {
		if sanitized[k] != "[REDACTED]" {
			t.Errorf("%s = %v, want [REDACTED]", k, sanitized[k])
		}
	}
	if sanitized["client_cn"] != "pay-svc" {
		t.Errorf("client_cn = %v, should pass through", sanitized["client_cn"])
	}
	if sanitized["purpose"] != "SIGN" {
		t.Errorf("purpose = %v, should pass through", sanitized["purpose"])
	}
}
