// Package config loads settings for the editor CLI (YAML file plus
// environment overrides) and for the reference API server (environment).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Client configures the editor.
type Client struct {
	URL         string          `yaml:"url"`
	Schema      string          `yaml:"schema"`
	Debounce    time.Duration   `yaml:"debounce"`
	Timeout     time.Duration   `yaml:"timeout"`
	Reconnect   ReconnectConfig `yaml:"reconnect"`
	SessionPoll time.Duration   `yaml:"session_poll"`
	MetricsAddr string          `yaml:"metrics_addr"`
}

// ReconnectConfig is the status channel backoff policy.
type ReconnectConfig struct {
	Initial     time.Duration `yaml:"initial"`
	Max         time.Duration `yaml:"max"`
	MaxAttempts uint64        `yaml:"max_attempts"`
	Jitter      uint64        `yaml:"jitter_percent"`
}

// LoadClient reads path (skipped when empty or missing), applies
// ACDC_URL and ACDC_SCHEMA, then fills defaults and validates.
func LoadClient(path string) (*Client, error) {
	var cfg Client
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		}
	}
	if v := os.Getenv("ACDC_URL"); v != "" {
		cfg.URL = v
	}
	if v := os.Getenv("ACDC_SCHEMA"); v != "" {
		cfg.Schema = v
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Client) applyDefaults() {
	if c.URL == "" {
		c.URL = "http://localhost:8080/acdc/api"
	}
	if c.Schema == "" {
		c.Schema = "FAST"
	}
	if c.Debounce == 0 {
		c.Debounce = time.Second
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Reconnect.Initial == 0 {
		c.Reconnect.Initial = 500 * time.Millisecond
	}
	if c.Reconnect.Max == 0 {
		c.Reconnect.Max = 30 * time.Second
	}
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = 10
	}
	if c.SessionPoll == 0 {
		c.SessionPoll = 2 * time.Second
	}
}

func (c *Client) validate() error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url: scheme must be http or https, got %q", u.Scheme)
	}
	if c.Debounce < 0 || c.Timeout < 0 || c.SessionPoll < 0 {
		return errors.New("durations must not be negative")
	}
	if c.Reconnect.Initial < 0 || c.Reconnect.Max < c.Reconnect.Initial {
		return errors.New("reconnect.max must be at least reconnect.initial")
	}
	if c.Reconnect.Jitter > 100 {
		return errors.New("reconnect.jitter_percent must be between 0 and 100")
	}
	return nil
}

// Server configures the reference API server.
type Server struct {
	Port      int
	Root      string
	SchemaDir string
	MaxUpload int64
	EvalStep  time.Duration
}

// ServerFromEnv reads PORT, ACDC_ROOT, ACDC_SCHEMA_DIR, ACDC_MAX_UPLOAD
// (bytes) and ACDC_EVAL_STEP (duration).
func ServerFromEnv() (Server, error) {
	cfg := Server{
		Port:      8080,
		Root:      ".",
		MaxUpload: 20 << 20,
		EvalStep:  200 * time.Millisecond,
	}
	if p := os.Getenv("PORT"); p != "" {
		v, err := strconv.Atoi(p)
		if err != nil || v <= 0 || v > 65535 {
			return cfg, fmt.Errorf("PORT: invalid port %q", p)
		}
		cfg.Port = v
	}
	if v := os.Getenv("ACDC_ROOT"); v != "" {
		cfg.Root = v
	}
	cfg.SchemaDir = os.Getenv("ACDC_SCHEMA_DIR")
	if v := os.Getenv("ACDC_MAX_UPLOAD"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("ACDC_MAX_UPLOAD: invalid size %q", v)
		}
		cfg.MaxUpload = n
	}
	if v := os.Getenv("ACDC_EVAL_STEP"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("ACDC_EVAL_STEP: invalid duration %q", v)
		}
		cfg.EvalStep = d
	}
	return cfg, nil
}
