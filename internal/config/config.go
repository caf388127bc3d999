// Package config handles loading and managing legacymigrate configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/sessionvault/legacymigrate/internal/fileutil"
)

// Config represents the legacymigrate configuration.
type Config struct {
	Data      DataConfig      `toml:"data"`
	Migration MigrationConfig `toml:"migration"`
	Log       LogConfig       `toml:"log"`

	// Computed paths (not from config file)
	HomeDir    string `toml:"-"`
	configPath string
}

// DataConfig holds data storage configuration.
type DataConfig struct {
	DataDir         string `toml:"data_dir"`
	DatabasePath    string `toml:"database_path"`
	LegacyStorePath string `toml:"legacy_store_path"`
}

// MigrationConfig holds the host-supplied inputs of a legacy import.
type MigrationConfig struct {
	LocalUserPublicKey       string   `toml:"local_user_public_key"`
	HasHiddenMessageRequests bool     `toml:"has_hidden_message_requests"`
	OpenTimeout              Duration `toml:"open_timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration is a time.Duration that decodes from a TOML string like "5s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// DefaultHome returns the default legacymigrate home directory.
// Respects LEGACYMIGRATE_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("LEGACYMIGRATE_HOME"); h != "" {
		return expandPath(h)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".legacymigrate"
	}
	return filepath.Join(home, ".legacymigrate")
}

// Load reads the configuration from the specified file.
// If path is empty, uses config.toml inside the home directory. homeDir
// overrides LEGACYMIGRATE_HOME when non-empty.
func Load(path, homeDir string) (*Config, error) {
	if homeDir == "" {
		homeDir = DefaultHome()
	} else {
		homeDir = expandPath(homeDir)
	}

	explicit := path != ""
	if path == "" {
		path = filepath.Join(homeDir, "config.toml")
	}

	cfg := &Config{
		HomeDir:    homeDir,
		configPath: path,
		// Defaults
		Data: DataConfig{
			DataDir: homeDir,
		},
		Migration: MigrationConfig{
			OpenTimeout: Duration{5 * time.Second},
		},
		Log: LogConfig{
			Level: "info",
		},
	}

	// Config file is optional - use defaults if not present, unless the
	// caller named it explicitly.
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if explicit {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// Expand ~ in paths
	cfg.Data.DataDir = expandPath(cfg.Data.DataDir)
	cfg.Data.DatabasePath = expandPath(cfg.Data.DatabasePath)
	cfg.Data.LegacyStorePath = expandPath(cfg.Data.LegacyStorePath)

	return cfg, nil
}

// ConfigFilePath returns the path the configuration was (or would be) read from.
func (c *Config) ConfigFilePath() string {
	return c.configPath
}

// EnsureHomeDir creates the home directory if it does not exist.
func (c *Config) EnsureHomeDir() error {
	return fileutil.SecureMkdirAll(c.HomeDir, 0700)
}

// DatabasePath returns the path to the relational SQLite database.
func (c *Config) DatabasePath() string {
	if c.Data.DatabasePath != "" {
		return c.Data.DatabasePath
	}
	return filepath.Join(c.Data.DataDir, "legacymigrate.db")
}

// LegacyStorePath returns the path to the legacy key-value store, or "" if
// none is configured.
func (c *Config) LegacyStorePath() string {
	return c.Data.LegacyStorePath
}

// Validate checks the settings a legacy import cannot run without.
func (c *Config) Validate() error {
	var problems []string
	if c.Data.LegacyStorePath == "" {
		problems = append(problems, "data.legacy_store_path is not set")
	}
	if c.Migration.LocalUserPublicKey == "" {
		problems = append(problems, "migration.local_user_public_key is not set")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
