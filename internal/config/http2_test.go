package config

import "testing"

func TestParseSize(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"65536", 65536, false},
		{"0", 0, false},
		{"1k", 1024, false},
		{"64K", 64 * 1024, false},
		{"2m", 2 * 1024 * 1024, false},
		{"2M", 2 * 1024 * 1024, false},
		{"100M", 100 * 1024 * 1024, false},
		{" 1M ", 1024 * 1024, false},

		{"", 0, true},
		{"-1", 0, true},
		{"-4k", 0, true},
		{"101M", 0, true},
		{"8G", 0, true},
		{"abc", 0, true},
		{"4kM", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseSize(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseSize(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestHTTP2Config_Parse(t *testing.T) {
	cfg := &HTTP2Config{
		MaxConcurrentStreams:     "500",
		InitialWindowSize:        "2M",
		MaxFrameSize:             "1M",
		MaxHeaderListSize:        "64k",
		IdleTimeoutSeconds:       90,
		MaxUploadBufferPerConn:   "2M",
		MaxUploadBufferPerStream: "1M",
	}

	parsed, err := cfg.Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if parsed.MaxConcurrentStreams != 500 {
		t.Errorf("MaxConcurrentStreams = %d, want 500", parsed.MaxConcurrentStreams)
	}
	if parsed.InitialWindowSize != 2*1024*1024 {
		t.Errorf("InitialWindowSize = %d, want %d", parsed.InitialWindowSize, 2*1024*1024)
	}
	if parsed.MaxFrameSize != 1024*1024 {
		t.Errorf("MaxFrameSize = %d, want %d", parsed.MaxFrameSize, 1024*1024)
	}
	if parsed.MaxHeaderListSize != 64*1024 {
		t.Errorf("MaxHeaderListSize = %d, want %d", parsed.MaxHeaderListSize, 64*1024)
	}
	if parsed.IdleTimeoutSeconds != 90 {
		t.Errorf("IdleTimeoutSeconds = %d, want 90", parsed.IdleTimeoutSeconds)
	}
}

func TestHTTP2Config_ParseEmpty(t *testing.T) {
	// All fields are optional; an empty section parses to zero values and
	// the server applies its own defaults.
	parsed, err := (&HTTP2Config{}).Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsed.MaxConcurrentStreams != 0 || parsed.InitialWindowSize != 0 {
		t.Errorf("empty config parsed to non-zero values: %+v", parsed)
	}
}

func TestHTTP2Config_ParseErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  *HTTP2Config
	}{
		{"non-numeric stream count", &HTTP2Config{MaxConcurrentStreams: "many"}},
		{"window size over the cap", &HTTP2Config{InitialWindowSize: "101M"}},
		{"frame size over the cap", &HTTP2Config{MaxFrameSize: "1024M"}},
		{"negative window size", &HTTP2Config{InitialWindowSize: "-2M"}},
		{"garbage header list size", &HTTP2Config{MaxHeaderListSize: "lots"}},
		{"garbage upload buffer", &HTTP2Config{MaxUploadBufferPerStream: "??"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.cfg.Parse(); err == nil {
				t.Error("Parse() = nil, want error")
			}
		})
	}
}
