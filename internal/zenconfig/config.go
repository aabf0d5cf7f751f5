// Package zenconfig resolves Zen's on-disk locations from the environment,
// the way the teacher's config package resolves network endpoints from
// environment-variable overrides.
package zenconfig

import (
	"errors"
	"os"
	"path/filepath"
)

const (
	envConfigDirOverride = "ZEN_CONFIG_DIR"
	envHomeOverride      = "ZEN_ENV_HOME"
)

// Config is Zen's resolved filesystem configuration for one process.
type Config struct {
	ConfigDir string // holds zen.db and zen.log
	EnvHome   string // base directory environments are searched under, test-only override
}

func (c *Config) Validate() error {
	if c.ConfigDir == "" {
		return errors.New("config dir is required")
	}
	return nil
}

// Load resolves Config from the process environment: HOME (or
// ZEN_CONFIG_DIR/ZEN_ENV_HOME overrides, used by tests and alternate
// installs).
func Load() (*Config, error) {
	configDir := os.Getenv(envConfigDirOverride)
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		configDir = filepath.Join(home, ".config", "zen")
	}

	cfg := &Config{
		ConfigDir: configDir,
		EnvHome:   os.Getenv(envHomeOverride),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DBPath is the registry file's path.
func (c *Config) DBPath() string { return filepath.Join(c.ConfigDir, "zen.db") }

// LogPath is the activity log's path.
func (c *Config) LogPath() string { return filepath.Join(c.ConfigDir, "zen.log") }

// EnsureConfigDir creates ConfigDir if missing, owner-only (0700), and
// returns it.
func (c *Config) EnsureConfigDir() (string, error) {
	if err := os.MkdirAll(c.ConfigDir, 0o700); err != nil {
		return "", err
	}
	return c.ConfigDir, nil
}
