package config

import (
	"os"
	"path/filepath"
)

const (
	appName    = "hull"
	configFile = "config.toml"
	logFile    = "operations.db"
	lockFile   = ".hull.lock"
)

// ConfigDir returns the system configuration directory for hull.
// HULL_CONFIG_DIR overrides it.
func ConfigDir() string {
	if dir := os.Getenv("HULL_CONFIG_DIR"); dir != "" {
		return dir
	}
	return filepath.Join("/etc", appName)
}

// StateDir returns the default directory for hull's mutable state.
// HULL_STATE_DIR overrides it.
func StateDir() string {
	if dir := os.Getenv("HULL_STATE_DIR"); dir != "" {
		return dir
	}
	return filepath.Join("/var/lib", appName)
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), configFile)
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	return os.MkdirAll(ConfigDir(), 0755)
}

// LogPath returns the operation log location, adjacent to the graph.
func (c *Config) LogPath() string {
	return filepath.Join(filepath.Dir(c.Paths.DepGraph), logFile)
}

// LockPath returns the install-root lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.Root, lockFile)
}

// EnsureStateDirs creates every state directory the engine writes to.
func (c *Config) EnsureStateDirs() error {
	for _, dir := range []string{
		c.Paths.Available,
		c.Paths.Downloaded,
		c.Paths.Installed,
		filepath.Dir(c.Paths.DepGraph),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
