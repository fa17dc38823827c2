package server

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/titaev-lv/keyguard-service/internal/config"
)

// InitLogger initializes the global slog logger based on configuration.
// With logging.file set, output goes to a size/age-rotated file.
func InitLogger(cfg *config.LoggingConfig) error {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return nil
}

// AuditLogger returns a logger specifically for audit events
func AuditLogger() *slog.Logger {
	return slog.With("component", "audit")
}

// SanitizeForLog removes or redacts sensitive fields from log data
func SanitizeForLog(data map[string]any) map[string]any {
	sanitized := make(map[string]any)
	for k, v := range data {
		key := strings.ToLower(k)
		// Redact sensitive fields
		if strings.Contains(key, "secret") ||
			strings.Contains(key, "password") ||
			strings.Contains(key, "token") ||
			strings.Contains(key, "blob") ||
			key == "key" ||
			key == "mac" {
			sanitized[k] = "[REDACTED]"
		} else {
			sanitized[k] = v
		}
	}
	return sanitized
}
