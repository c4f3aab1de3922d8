package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment variable prefix for all kubejit settings.
const Prefix = "KUBEJIT"

// Config holds all client configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"production"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"warn"`

	// Backend
	APIBaseURL  string        `envconfig:"API_BASE_URL" default:"http://localhost:8589"`
	APIPrefix   string        `envconfig:"API_PREFIX" default:"/kube-jit-api"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"` // 0 disables the client timeout

	// Local state (session markers + backend cookies)
	StatePath string `envconfig:"STATE_PATH" default:"~/.kubejit/state.db"`

	// Login
	CallbackTimeout time.Duration `envconfig:"CALLBACK_TIMEOUT" default:"5m"`

	// Reads of option lists and build metadata are retried; nothing else is.
	RetryAttempts int `envconfig:"RETRY_ATTEMPTS" default:"3"`

	// Console
	MetricsAddr string `envconfig:"METRICS_ADDR"` // e.g. 127.0.0.1:9464, empty disables
}

// Development reports whether human-readable console logging is wanted.
func (c *Config) Development() bool {
	return strings.EqualFold(c.Environment, "development")
}

// APIRoot returns the base URL joined with the API prefix, without a
// trailing slash.
func (c *Config) APIRoot() string {
	base := strings.TrimSuffix(c.APIBaseURL, "/")
	prefix := strings.Trim(c.APIPrefix, "/")
	if prefix == "" {
		return base
	}
	return base + "/" + prefix
}

// StateFile resolves StatePath, expanding a leading "~/".
func (c *Config) StateFile() (string, error) {
	p := c.StatePath
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p, nil
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid %s_API_BASE_URL %q", Prefix, c.APIBaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported %s_API_BASE_URL scheme %q", Prefix, u.Scheme)
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("%s_HTTP_TIMEOUT must not be negative", Prefix)
	}
	return nil
}

// Load reads configuration from KUBEJIT_* environment variables.
// Overrides run before validation, so command-line flags can replace
// environment values.
func Load(overrides ...func(*Config)) (*Config, error) {
	return LoadWithPrefix(Prefix, overrides...)
}

// LoadWithPrefix reads configuration with a prefix.
func LoadWithPrefix(prefix string, overrides ...func(*Config)) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("loading config with prefix %s: %w", prefix, err)
	}
	for _, o := range overrides {
		o(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}
