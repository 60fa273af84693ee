package engine

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/germanamz/nanobanana/pkg/settings"
	"gopkg.in/yaml.v3"
)

// DefaultWebAddr is where the browser bridge listens when none is configured.
const DefaultWebAddr = "127.0.0.1:8787"

// Config is the top-level engine configuration.
type Config struct {
	Dir      string            `yaml:"-"` // Set by CLI, not from YAML.
	Provider string            `yaml:"provider"`
	APIKey   string            `yaml:"api_key"` //nolint:gosec // configuration field, not a hardcoded secret
	BaseURL  string            `yaml:"base_url"`
	Settings settings.Settings `yaml:"settings"`
	Retry    RetryConfig       `yaml:"retry"`
	Web      WebConfig         `yaml:"web"`
}

// RetryConfig controls rate-limit handling for the model endpoint.
type RetryConfig struct {
	MaxRetries int    `yaml:"max_retries"` // Max retries on 429 (default 3).
	BaseDelay  string `yaml:"base_delay"`  // Initial backoff delay as a duration string (e.g. "1s", "500ms").
	RPM        int    `yaml:"rpm"`         // Requests per minute (0 = no limit).
}

// Enabled reports whether any retry option is set.
func (r RetryConfig) Enabled() bool {
	return r.MaxRetries > 0 || r.BaseDelay != "" || r.RPM > 0
}

// Delay parses BaseDelay. An empty value yields zero.
func (r RetryConfig) Delay() (time.Duration, error) {
	if r.BaseDelay == "" {
		return 0, nil
	}
	return time.ParseDuration(r.BaseDelay)
}

// WebConfig holds browser bridge settings.
type WebConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		Provider: "gemini",
		Settings: settings.Default(),
		Web:      WebConfig{Addr: DefaultWebAddr},
	}
}

// LoadConfig reads a YAML file and returns a Config layered over
// DefaultConfig. Environment variables referenced as ${VAR} or $VAR in the
// YAML are expanded before parsing so the API key can live in the
// environment (e.g. loaded from a .env file) rather than in the file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
	if err != nil {
		return Config{}, fmt.Errorf("engine: load config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("engine: parse config: %w", err)
	}

	cfg.Settings = cfg.Settings.Normalize()

	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("engine: config: provider is required")
	}

	if err := c.Settings.Validate(); err != nil {
		return fmt.Errorf("engine: config: %w", err)
	}

	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("engine: config: retry: max_retries must not be negative")
	}
	if c.Retry.RPM < 0 {
		return fmt.Errorf("engine: config: retry: rpm must not be negative")
	}
	if _, err := c.Retry.Delay(); err != nil {
		return fmt.Errorf("engine: config: retry: invalid base_delay %q: %w", c.Retry.BaseDelay, err)
	}

	if c.Web.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Web.Addr); err != nil {
			return fmt.Errorf("engine: config: web: invalid addr %q: %w", c.Web.Addr, err)
		}
	}

	return nil
}

// Marshal renders c as YAML, used to write a starter config file.
func (c Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("engine: marshal config: %w", err)
	}
	return data, nil
}
