// Package config loads and validates the TOML configuration file and
// applies the override chain: defaults -> file -> environment -> flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Valid log levels.
var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// Config is the full configuration file shape.
type Config struct {
	SiteURL      string `toml:"site_url"`
	TenantID     string `toml:"tenant_id"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	LogLevel     string `toml:"log_level"`
	DBPath       string `toml:"db_path"`
	OutputDir    string `toml:"output_dir"`

	Migrate MigrateConfig `toml:"migrate"`
}

// MigrateConfig holds settings for the move orchestrator.
type MigrateConfig struct {
	// ThrottleMS is the minimum wait between move operations, in
	// milliseconds. Zero means the built-in default.
	ThrottleMS int `toml:"throttle_ms"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		DBPath:    defaultDBPath(),
		OutputDir: ".",
		Migrate: MigrateConfig{
			ThrottleMS: 300,
		},
	}
}

// DefaultConfigPath returns the default config file location,
// ~/.config/spdoc/config.toml, falling back to the working directory
// when the home directory cannot be determined.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}

	return filepath.Join(home, ".config", "spdoc", "config.toml")
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "spdoc.db"
	}

	return filepath.Join(home, ".local", "share", "spdoc", "spdoc.db")
}

// Validate checks a fully resolved Config. Credential fields may still be
// empty here; commands that talk to the API enforce them via
// ValidateCredentials so that offline commands keep working.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.SiteURL != "" {
		u, err := url.Parse(cfg.SiteURL)
		if err != nil || u.Scheme != "https" || u.Host == "" {
			errs = append(errs, fmt.Errorf("site_url %q must be an https URL", cfg.SiteURL))
		}
	}

	if cfg.LogLevel != "" && !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q must be one of debug, info, warn, error", cfg.LogLevel))
	}

	if cfg.Migrate.ThrottleMS < 0 {
		errs = append(errs, fmt.Errorf("migrate.throttle_ms must not be negative, got %d", cfg.Migrate.ThrottleMS))
	}

	return errors.Join(errs...)
}

// ValidateCredentials checks the fields required to obtain a Graph token
// and resolve the site. Called by commands that go online.
func ValidateCredentials(cfg *Config) error {
	var missing []string

	if cfg.SiteURL == "" {
		missing = append(missing, "site_url")
	}

	if cfg.TenantID == "" {
		missing = append(missing, "tenant_id")
	}

	if cfg.ClientID == "" {
		missing = append(missing, "client_id")
	}

	if cfg.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s (set in config file or %s_* environment variables)",
			strings.Join(missing, ", "), envPrefix)
	}

	return nil
}
