// Package config provides the configuration schema and loader for the Halo
// companion client.
package config

import "time"

// LogLevel controls log verbosity for the Halo client.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Halo.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// UID identifies this device/user to the companion server. Required.
	UID string `yaml:"uid"`

	// Servers lists candidate companion servers the client may talk to.
	Servers []string `yaml:"servers"`

	// Server is the initially active server base URL. Defaults to the first
	// entry of Servers. The active server can be switched at runtime, which
	// restarts the response stream.
	Server string `yaml:"server"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	Upload      UploadConfig      `yaml:"upload"`
	Stream      StreamConfig      `yaml:"stream"`
	Capture     CaptureConfig     `yaml:"capture"`
	Hotword     HotwordConfig     `yaml:"hotword"`
	ASR         ASRConfig         `yaml:"asr"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

// UploadConfig controls the heartbeat uploader.
type UploadConfig struct {
	// Interval is the heartbeat tick period. Defaults to 100ms.
	Interval time.Duration `yaml:"interval"`

	// StagingDir is where frames are staged on disk before upload.
	// Defaults to the OS temp directory. Staging files are deleted after
	// every upload attempt and the directory is swept at startup.
	StagingDir string `yaml:"staging_dir"`
}

// StreamConfig controls the response stream consumer.
type StreamConfig struct {
	// Backoff is the fixed delay between reconnection attempts after a read
	// failure or stream end. Defaults to 1s.
	Backoff time.Duration `yaml:"backoff"`
}

// CaptureConfig toggles the capture collaborators.
type CaptureConfig struct {
	// Audio enables microphone capture.
	Audio bool `yaml:"audio"`

	// Camera enables scene-image capture.
	Camera bool `yaml:"camera"`

	// SampleRate and Channels describe the PCM format the microphone
	// produces. Defaults: 16000 Hz mono. When this differs from the
	// recognizer's format, captured audio is converted on the way in.
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`

	// ImageWidth and ImageHeight set the requested scene-image size.
	// Defaults: 640×480.
	ImageWidth  int `yaml:"image_width"`
	ImageHeight int `yaml:"image_height"`
}

// HotwordConfig controls spoken-interrupt detection.
type HotwordConfig struct {
	// Keywords are the spoken words that trigger an interrupt.
	// Defaults to ["ok"].
	Keywords []string `yaml:"keywords"`

	// PhoneticThreshold is the minimum Jaro-Winkler score for a
	// phonetically-matched token to count as a keyword hit. Default: 0.70.
	PhoneticThreshold float64 `yaml:"phonetic_threshold"`

	// FuzzyThreshold is the minimum Jaro-Winkler score for the pure
	// string-similarity fallback. Default: 0.85.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
}

// ASRConfig controls the cloud speech-recognition client.
type ASRConfig struct {
	// Enabled turns the cloud recognizer on. When off, hot-word detection
	// still accepts transcripts from other sources but none are produced
	// by this client.
	Enabled bool `yaml:"enabled"`

	// Endpoint is the websocket URL of the streaming recognizer.
	Endpoint string `yaml:"endpoint"`

	// SampleRate is the PCM sample rate in Hz sent to the recognizer.
	// Defaults to 16000.
	SampleRate int `yaml:"sample_rate"`

	// RefreshMargin is how long before credential expiry a new token is
	// fetched. Defaults to 12h.
	RefreshMargin time.Duration `yaml:"refresh_margin"`
}

// DiagnosticsConfig controls the local diagnostics HTTP server.
type DiagnosticsConfig struct {
	// ListenAddr is the TCP address for /healthz, /readyz and /metrics
	// (e.g., "127.0.0.1:9464"). Empty disables the server.
	ListenAddr string `yaml:"listen_addr"`
}

// Default values applied by [applyDefaults].
const (
	defaultUploadInterval = 100 * time.Millisecond
	defaultStreamBackoff  = 1 * time.Second
	defaultImageWidth     = 640
	defaultImageHeight    = 480
	defaultSampleRate     = 16000
	defaultRefreshMargin  = 12 * time.Hour

	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// applyDefaults fills zero-valued fields with their documented defaults.
func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = LogInfo
	}
	if cfg.Server == "" && len(cfg.Servers) > 0 {
		cfg.Server = cfg.Servers[0]
	}
	if cfg.Upload.Interval <= 0 {
		cfg.Upload.Interval = defaultUploadInterval
	}
	if cfg.Stream.Backoff <= 0 {
		cfg.Stream.Backoff = defaultStreamBackoff
	}
	if cfg.Capture.SampleRate <= 0 {
		cfg.Capture.SampleRate = defaultSampleRate
	}
	if cfg.Capture.Channels <= 0 {
		cfg.Capture.Channels = 1
	}
	if cfg.Capture.ImageWidth <= 0 {
		cfg.Capture.ImageWidth = defaultImageWidth
	}
	if cfg.Capture.ImageHeight <= 0 {
		cfg.Capture.ImageHeight = defaultImageHeight
	}
	if len(cfg.Hotword.Keywords) == 0 {
		cfg.Hotword.Keywords = []string{"ok"}
	}
	if cfg.Hotword.PhoneticThreshold <= 0 {
		cfg.Hotword.PhoneticThreshold = defaultPhoneticThreshold
	}
	if cfg.Hotword.FuzzyThreshold <= 0 {
		cfg.Hotword.FuzzyThreshold = defaultFuzzyThreshold
	}
	if cfg.ASR.SampleRate <= 0 {
		cfg.ASR.SampleRate = defaultSampleRate
	}
	if cfg.ASR.RefreshMargin <= 0 {
		cfg.ASR.RefreshMargin = defaultRefreshMargin
	}
}
