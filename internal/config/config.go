// Package config loads service configuration from an optional YAML file
// with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all service settings.
type Config struct {
	// Listen is the façade's listen address.
	Listen string `yaml:"listen"`

	Backend struct {
		// BaseURL is the campus REST backend.
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"backend"`

	Payments struct {
		// ProviderURL is the external card payment provider.
		ProviderURL string `yaml:"provider_url"`
		Currency    string `yaml:"currency"`
	} `yaml:"payments"`

	State struct {
		// Driver selects the persisted state backend: memory, file, or
		// postgres.
		Driver string `yaml:"driver"`
		// Path is the state file location for the file driver.
		Path string `yaml:"path"`
		// DSN is the connection string for the postgres driver.
		DSN string `yaml:"dsn"`
	} `yaml:"state"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the baseline configuration.
func Default() Config {
	var cfg Config
	cfg.Listen = ":8080"
	cfg.Backend.BaseURL = "http://localhost:3000/api"
	cfg.Backend.Timeout = 30 * time.Second
	cfg.Payments.Currency = "egp"
	cfg.State.Driver = "file"
	cfg.State.Path = "campus_state.json"
	cfg.LogLevel = "info"
	return cfg
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides, then validates.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.Listen = getEnv("LISTEN_ADDR", cfg.Listen)
	cfg.Backend.BaseURL = getEnv("BACKEND_URL", cfg.Backend.BaseURL)
	cfg.Payments.ProviderURL = getEnv("PAYMENT_PROVIDER_URL", cfg.Payments.ProviderURL)
	cfg.State.Driver = getEnv("STATE_DRIVER", cfg.State.Driver)
	cfg.State.Path = getEnv("STATE_PATH", cfg.State.Path)
	cfg.State.DSN = getEnv("STATE_DSN", cfg.State.DSN)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	switch c.State.Driver {
	case "memory", "file", "postgres":
	default:
		return fmt.Errorf("state.driver must be memory, file, or postgres (got %q)", c.State.Driver)
	}
	if c.State.Driver == "file" && c.State.Path == "" {
		return fmt.Errorf("state.path is required for the file driver")
	}
	if c.State.Driver == "postgres" && c.State.DSN == "" {
		return fmt.Errorf("state.dsn is required for the postgres driver")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
