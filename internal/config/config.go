// Package config loads and writes the hull configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"hull/pkg/cache"
)

// Config represents the complete hull configuration.
type Config struct {
	// RepositoriesOrder lists the enabled repositories; earlier entries
	// win queries and ties.
	RepositoriesOrder []string `toml:"repositories_order"`

	// TrainingWheels restricts the command surface to the basic
	// front-end when true.
	TrainingWheels bool `toml:"training_wheels"`

	Paths        PathsConfig                 `toml:"paths"`
	Downloads    DownloadsConfig             `toml:"downloads"`
	Output       OutputConfig                `toml:"output"`
	Repositories map[string]RepositoryConfig `toml:"repositories"`
}

// PathsConfig locates everything hull reads and writes.
type PathsConfig struct {
	// Root is the install root; owned file paths are relative to it.
	Root string `toml:"root"`

	// Available holds the cached repository indexes.
	Available string `toml:"available"`

	// Downloaded holds per-plan staging directories.
	Downloaded string `toml:"downloaded"`

	// Installed holds the installed-package manifests.
	Installed string `toml:"installed"`

	// DepGraph is the persisted dependency graph; the operation log
	// lives next to it.
	DepGraph string `toml:"depgraph"`
}

// DownloadsConfig tunes archive retrieval.
type DownloadsConfig struct {
	// Parallel bounds the number of concurrent archive downloads.
	Parallel int `toml:"parallel"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	// Color enables colored output (respects NO_COLOR env var).
	Color bool `toml:"color"`

	// Unicode enables unicode symbols in output.
	Unicode bool `toml:"unicode"`

	// Verbose enables structured debug logging.
	Verbose bool `toml:"verbose"`
}

// RepositoryConfig contains per-repository settings.
type RepositoryConfig struct {
	// Mirrors are fully equivalent sources for this repository, tried
	// in order.
	Mirrors []string `toml:"mirrors"`
}

// Default returns the default configuration.
func Default() *Config {
	state := StateDir()
	return &Config{
		RepositoriesOrder: []string{"stable"},
		TrainingWheels:    true,
		Paths: PathsConfig{
			Root:       "/",
			Available:  filepath.Join(state, "available"),
			Downloaded: filepath.Join(state, "downloaded"),
			Installed:  filepath.Join(state, "installed"),
			DepGraph:   filepath.Join(state, "depgraph.json"),
		},
		Downloads: DownloadsConfig{Parallel: 4},
		Output: OutputConfig{
			Color:   true,
			Unicode: true,
		},
		Repositories: map[string]RepositoryConfig{
			"stable": {Mirrors: []string{}},
		},
	}
}

// Load loads the configuration from the default path.
// If the config file doesn't exist, it returns the default configuration.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom loads the configuration from a specific path.
// If the config file doesn't exist, it returns the default configuration.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to the default path.
func (c *Config) Save() error {
	return c.SaveTo(ConfigPath())
}

// SaveTo writes the configuration to a specific path.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}

// CacheRepositories maps the configured repositories, in order, onto the
// cache's repository type.
func (c *Config) CacheRepositories() []cache.Repository {
	repos := make([]cache.Repository, 0, len(c.RepositoriesOrder))
	for _, name := range c.RepositoriesOrder {
		repos = append(repos, cache.Repository{
			Name:    name,
			Mirrors: c.Repositories[name].Mirrors,
		})
	}
	return repos
}

// ShouldUseColor returns true if colored output should be used.
// Respects the NO_COLOR environment variable.
func (c *Config) ShouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return c.Output.Color
}

func (c *Config) validate() error {
	for _, name := range c.RepositoriesOrder {
		if _, ok := c.Repositories[name]; !ok {
			return fmt.Errorf("repository %q is in repositories_order but has no [repositories.%s] section", name, name)
		}
	}
	if c.Paths.Root == "" {
		return fmt.Errorf("paths.root must not be empty")
	}
	return nil
}
