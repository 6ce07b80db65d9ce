// Package config handles CLI configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the config file.
const (
	EnvEndpoint   = "AZURE_OPENAI_ENDPOINT"
	EnvAPIKey     = "AZURE_OPENAI_API_KEY"
	EnvDeployment = "AZURE_OPENAI_DEPLOYMENT"
	EnvAPIVersion = "AZURE_OPENAI_API_VERSION"
)

// Config represents the CLI configuration.
type Config struct {
	Endpoint   string        `yaml:"endpoint"`
	Deployment string        `yaml:"deployment"`
	APIVersion string        `yaml:"api_version,omitempty"`
	APIKeyEnv  string        `yaml:"api_key_env,omitempty"`
	Auth       string        `yaml:"auth,omitempty"` // "api-key" (default) or "bearer"
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	Cache      CacheConfig   `yaml:"cache"`

	// APIKey is never read from YAML.
	APIKey string `yaml:"-"`
}

// CacheConfig enables the in-memory response cache.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	MaxEntries int           `yaml:"max_entries,omitempty"`
	TTL        time.Duration `yaml:"ttl,omitempty"`
}

// BearerAuth reports whether the key is sent as a bearer token.
func (c *Config) BearerAuth() bool {
	return c.Auth == "bearer"
}

// Validate checks the settings required to reach the service.
func (c *Config) Validate() error {
	switch c.Auth {
	case "", "api-key", "bearer":
	default:
		return fmt.Errorf("config: unknown auth mode %q (want api-key or bearer)", c.Auth)
	}
	if c.Endpoint == "" {
		return fmt.Errorf("config: endpoint required: set %s or endpoint in config", EnvEndpoint)
	}
	return nil
}

// DefaultConfigPath returns the default configuration file path for the current platform.
// - macOS/Linux: ~/.azresponses/config.yaml
// - Windows: %USERPROFILE%\.azresponses\config.yaml
func DefaultConfigPath() string {
	var homeDir string

	if runtime.GOOS == "windows" {
		homeDir = os.Getenv("USERPROFILE")
	} else {
		homeDir = os.Getenv("HOME")
	}

	if homeDir == "" {
		return "config.yaml"
	}

	return filepath.Join(homeDir, ".azresponses", "config.yaml")
}

// LoadConfig loads configuration from the specified path.
// If the file doesn't exist, returns an empty config without error.
// Returns an error only if the file exists but cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv reads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overlays environment variables on the file settings. The API key
// comes from APIKeyEnv when set, else AZURE_OPENAI_API_KEY.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvEndpoint); v != "" {
		c.Endpoint = v
	}
	if v := getenv(EnvDeployment); v != "" {
		c.Deployment = v
	}
	if v := getenv(EnvAPIVersion); v != "" {
		c.APIVersion = v
	}
	keyVar := c.APIKeyEnv
	if keyVar == "" {
		keyVar = EnvAPIKey
	}
	if v := getenv(keyVar); v != "" {
		c.APIKey = v
	}
}
