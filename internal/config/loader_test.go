package config

import (
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
uid: device-1
server: "http://companion.local:8000"
`

func TestLoadFromReader_Minimal(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.UID != "device-1" {
		t.Errorf("uid: got %q", cfg.UID)
	}
	if cfg.Server != "http://companion.local:8000" {
		t.Errorf("server: got %q", cfg.Server)
	}

	// Defaults.
	if cfg.LogLevel != LogInfo {
		t.Errorf("log_level default: got %q", cfg.LogLevel)
	}
	if cfg.Upload.Interval != 100*time.Millisecond {
		t.Errorf("upload.interval default: got %v", cfg.Upload.Interval)
	}
	if cfg.Stream.Backoff != time.Second {
		t.Errorf("stream.backoff default: got %v", cfg.Stream.Backoff)
	}
	if len(cfg.Hotword.Keywords) != 1 || cfg.Hotword.Keywords[0] != "ok" {
		t.Errorf("hotword.keywords default: got %v", cfg.Hotword.Keywords)
	}
	if cfg.ASR.RefreshMargin != 12*time.Hour {
		t.Errorf("asr.refresh_margin default: got %v", cfg.ASR.RefreshMargin)
	}
	if cfg.Capture.ImageWidth != 640 || cfg.Capture.ImageHeight != 480 {
		t.Errorf("capture image size default: got %dx%d", cfg.Capture.ImageWidth, cfg.Capture.ImageHeight)
	}
	if cfg.Capture.SampleRate != 16000 || cfg.Capture.Channels != 1 {
		t.Errorf("capture audio format default: got %d Hz x%d", cfg.Capture.SampleRate, cfg.Capture.Channels)
	}
}

func TestLoadFromReader_ServerFromList(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(`
uid: device-1
servers:
  - "https://a.example.com"
  - "https://b.example.com"
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server != "https://a.example.com" {
		t.Errorf("expected first list entry as active server, got %q", cfg.Server)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader(`
uid: device-1
server: "http://companion.local"
no_such_field: true
`))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantSub string
	}{
		{
			name:    "missing uid",
			yaml:    `server: "http://x.local"`,
			wantSub: "uid",
		},
		{
			name: "bad log level",
			yaml: `
uid: u
server: "http://x.local"
log_level: loud
`,
			wantSub: "log_level",
		},
		{
			name: "bad scheme",
			yaml: `
uid: u
server: "ftp://x.local"
`,
			wantSub: "scheme",
		},
		{
			name: "active server not listed",
			yaml: `
uid: u
server: "http://c.local"
servers:
  - "http://a.local"
  - "http://b.local"
`,
			wantSub: "not listed",
		},
		{
			name: "asr enabled without endpoint",
			yaml: `
uid: u
server: "http://x.local"
asr:
  enabled: true
`,
			wantSub: "asr.endpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestValidate_CollectsAllFailures(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader(`
log_level: loud
server: "ftp://x"
`))
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, sub := range []string{"uid", "log_level", "scheme"} {
		if !strings.Contains(err.Error(), sub) {
			t.Errorf("joined error missing %q: %v", sub, err)
		}
	}
}
