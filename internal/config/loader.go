package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.UID == "" {
		errs = append(errs, errors.New("uid must not be empty"))
	}
	if !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if cfg.Server == "" {
		errs = append(errs, errors.New("server must be set (directly or via a non-empty servers list)"))
	} else if err := validateServerURL(cfg.Server); err != nil {
		errs = append(errs, fmt.Errorf("server %q: %w", cfg.Server, err))
	}
	for _, s := range cfg.Servers {
		if err := validateServerURL(s); err != nil {
			errs = append(errs, fmt.Errorf("servers entry %q: %w", s, err))
		}
	}
	if cfg.Server != "" && len(cfg.Servers) > 0 && !slices.Contains(cfg.Servers, cfg.Server) {
		errs = append(errs, fmt.Errorf("server %q is not listed in servers", cfg.Server))
	}

	if cfg.Hotword.PhoneticThreshold > 1 {
		errs = append(errs, fmt.Errorf("hotword.phonetic_threshold %v exceeds 1.0", cfg.Hotword.PhoneticThreshold))
	}
	if cfg.Hotword.FuzzyThreshold > 1 {
		errs = append(errs, fmt.Errorf("hotword.fuzzy_threshold %v exceeds 1.0", cfg.Hotword.FuzzyThreshold))
	}

	if cfg.ASR.Enabled && cfg.ASR.Endpoint == "" {
		errs = append(errs, errors.New("asr.endpoint must be set when asr.enabled is true"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// validateServerURL checks that s is an absolute http(s) URL.
func validateServerURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q is not http or https", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
