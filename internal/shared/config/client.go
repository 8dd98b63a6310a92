package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"gopkg.in/yaml.v3"
)

// ClientConfig configures the dashboard CLI.
type ClientConfig struct {
	APIURL      string        `yaml:"api_url"`
	AccessToken string        `yaml:"access_token"`
	CachePath   string        `yaml:"cache_path"`
	Timeout     time.Duration `yaml:"timeout"`
	LogLevel    string        `yaml:"log_level"`
}

// DefaultClientConfig returns the values used when the file omits a field.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		APIURL:    "http://localhost:8080",
		CachePath: "wealthdash-cache.db",
		Timeout:   30 * time.Second,
		LogLevel:  "warn",
	}
}

// Validate validates the client configuration.
func (c *ClientConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.APIURL, validation.Required, is.URL),
		validation.Field(&c.AccessToken, validation.Required),
		validation.Field(&c.CachePath, validation.Required),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
	)
}

// LoadClient reads a YAML file with ${ENV} expansion on top of the defaults.
// A missing file is not an error: the defaults plus the environment apply.
func LoadClient(path string) (*ClientConfig, error) {
	cfg := DefaultClientConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if v := os.Getenv("WEALTHDASH_ACCESS_TOKEN"); v != "" {
		cfg.AccessToken = v
	}
	if v := os.Getenv("WEALTHDASH_API_URL"); v != "" {
		cfg.APIURL = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}
