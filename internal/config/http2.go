package config

import (
	"fmt"
	"strconv"
	"strings"
)

// maxHTTP2Setting caps every HTTP/2 tuning value at 100MB.
const maxHTTP2Setting = 100 * 1024 * 1024

// ParseSize parses human-readable size strings (e.g., "1M", "512k", "1024")
// Supports: k/K (kilobytes), m/M (megabytes), or plain bytes
// Returns size in bytes
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	var multiplier int64 = 1
	switch s[len(s)-1] {
	case 'k', 'K':
		multiplier = 1024
		s = s[:len(s)-1]
	case 'm', 'M':
		multiplier = 1024 * 1024
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size format: %w", err)
	}
	if value < 0 {
		return 0, fmt.Errorf("size cannot be negative")
	}

	result := value * multiplier
	if result > maxHTTP2Setting {
		return 0, fmt.Errorf("size too large: %d bytes (max 100M)", result)
	}

	return result, nil
}

// HTTP2Config defines HTTP/2 server configuration
// All size fields accept human-readable formats: "1M", "512k", "65536"
type HTTP2Config struct {
	MaxConcurrentStreams     string `yaml:"max_concurrent_streams"`       // e.g., "1000"
	InitialWindowSize        string `yaml:"initial_window_size"`          // e.g., "2M", "2097152"
	MaxFrameSize             string `yaml:"max_frame_size"`               // e.g., "1M", "1048576"
	MaxHeaderListSize        string `yaml:"max_header_list_size"`         // e.g., "1M"
	IdleTimeoutSeconds       int    `yaml:"idle_timeout_seconds"`         // e.g., 120
	MaxUploadBufferPerConn   string `yaml:"max_upload_buffer_per_conn"`   // e.g., "2M"
	MaxUploadBufferPerStream string `yaml:"max_upload_buffer_per_stream"` // e.g., "2M"
}

// ParsedHTTP2Config contains parsed integer values
type ParsedHTTP2Config struct {
	MaxConcurrentStreams     uint32
	InitialWindowSize        int32
	MaxFrameSize             uint32
	MaxHeaderListSize        uint32
	IdleTimeoutSeconds       int
	MaxUploadBufferPerConn   int32
	MaxUploadBufferPerStream int32
}

func parseSizeField(name, value string) (int64, error) {
	size, err := ParseSize(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return size, nil
}

// Parse converts string-based config to actual integers
func (h *HTTP2Config) Parse() (*ParsedHTTP2Config, error) {
	parsed := &ParsedHTTP2Config{
		IdleTimeoutSeconds: h.IdleTimeoutSeconds,
	}

	if h.MaxConcurrentStreams != "" {
		maxStreams, err := strconv.ParseUint(h.MaxConcurrentStreams, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid max_concurrent_streams: %w", err)
		}
		parsed.MaxConcurrentStreams = uint32(maxStreams)
	}

	if h.InitialWindowSize != "" {
		size, err := parseSizeField("initial_window_size", h.InitialWindowSize)
		if err != nil {
			return nil, err
		}
		parsed.InitialWindowSize = int32(size)
	}

	if h.MaxFrameSize != "" {
		size, err := parseSizeField("max_frame_size", h.MaxFrameSize)
		if err != nil {
			return nil, err
		}
		parsed.MaxFrameSize = uint32(size)
	}

	if h.MaxHeaderListSize != "" {
		size, err := parseSizeField("max_header_list_size", h.MaxHeaderListSize)
		if err != nil {
			return nil, err
		}
		parsed.MaxHeaderListSize = uint32(size)
	}

	if h.MaxUploadBufferPerConn != "" {
		size, err := parseSizeField("max_upload_buffer_per_conn", h.MaxUploadBufferPerConn)
		if err != nil {
			return nil, err
		}
		parsed.MaxUploadBufferPerConn = int32(size)
	}

	if h.MaxUploadBufferPerStream != "" {
		size, err := parseSizeField("max_upload_buffer_per_stream", h.MaxUploadBufferPerStream)
		if err != nil {
			return nil, err
		}
		parsed.MaxUploadBufferPerStream = int32(size)
	}

	return parsed, nil
}
