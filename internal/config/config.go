// Package config provides configuration management for sfretrieve.
// It has no external dependencies to avoid circular imports with other internal packages.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	// DirName is the name of the configuration directory
	DirName = "sfretrieve"
	// ConfigFile is the name of the configuration file
	ConfigFile = "config.json"
)

// File and directory permission constants for consistent security settings.
const (
	// DirPerm is the permission for config directories (owner read/write/execute only)
	DirPerm = 0700
	// FilePerm is the permission for config files (owner read/write only)
	FilePerm = 0600
)

// Built-in defaults used when neither flags, environment nor the config file set a value.
const (
	DefaultSFPath      = "sf"
	DefaultAPIVersion  = "57.0"
	DefaultConcurrency = 4
)

// Config represents the CLI configuration.
type Config struct {
	// SFPath is the sf executable to invoke (name on PATH or absolute path)
	SFPath string `json:"sf_path,omitempty"`
	// APIVersion is passed to the metadata-types listing
	APIVersion string `json:"api_version,omitempty"`
	// Concurrency caps the number of sf retrieve processes running at once
	Concurrency int `json:"concurrency,omitempty"`
}

// WithDefaults returns a copy of cfg with unset fields filled from the built-in defaults.
func (c Config) WithDefaults() Config {
	if c.SFPath == "" {
		c.SFPath = DefaultSFPath
	}
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	return c
}

// GetConfigDir returns the configuration directory path, creating it if needed.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/sfretrieve
func GetConfigDir() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configHome = filepath.Join(home, ".config")
	}
	configDir := filepath.Join(configHome, DirName)

	if err := os.MkdirAll(configDir, DirPerm); err != nil {
		return "", err
	}

	return configDir, nil
}

// GetConfigPath returns the full path to config.json
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFile), nil
}

// ShortenPath replaces the home directory prefix with ~ for display purposes.
func ShortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if len(path) >= len(home) && path[:len(home)] == home {
		return "~" + path[len(home):]
	}
	return path
}

// Load loads the configuration from config.json with environment variable overrides.
// Environment variable precedence: SFRETRIEVE_* → SF_* → config file
func Load() (*Config, error) {
	cfg := &Config{}

	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		// File doesn't exist, continue with empty config
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", ShortenPath(path), err)
		}
	}

	if v := os.Getenv("SFRETRIEVE_SF_PATH"); v != "" {
		cfg.SFPath = v
	}
	if v := getEnvWithFallback("SFRETRIEVE_API_VERSION", "SF_API_VERSION"); v != "" {
		cfg.APIVersion = v
	}
	if v := os.Getenv("SFRETRIEVE_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid SFRETRIEVE_CONCURRENCY %q: must be a positive integer", v)
		}
		cfg.Concurrency = n
	}

	return cfg, nil
}

// Save saves the configuration to config.json
func Save(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, FilePerm)
}

// Clear removes the configuration file
func Clear() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Exists reports whether a config file is present.
func Exists() bool {
	path, err := GetConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// getEnvWithFallback returns the value of the primary environment variable,
// or the fallback if the primary is not set.
func getEnvWithFallback(primary, fallback string) string {
	if v := os.Getenv(primary); v != "" {
		return v
	}
	return os.Getenv(fallback)
}
