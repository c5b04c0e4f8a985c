package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if !cfg.TrainingWheels {
		t.Error("default training_wheels should be true")
	}
	if cfg.Paths.Root != "/" {
		t.Errorf("default root = %q", cfg.Paths.Root)
	}
	if cfg.Downloads.Parallel != 4 {
		t.Errorf("default parallel = %d", cfg.Downloads.Parallel)
	}
}

func TestLoadFromParsesRepositories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
repositories_order = ["stable", "beta"]
training_wheels = false

[paths]
root = "/mnt/target"
available = "/var/lib/hull/available"
downloaded = "/var/lib/hull/downloaded"
installed = "/var/lib/hull/installed"
depgraph = "/var/lib/hull/depgraph.json"

[repositories.stable]
mirrors = ["https://stable.example.org", "https://mirror.example.net/stable"]

[repositories.beta]
mirrors = ["https://beta.example.org"]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.TrainingWheels {
		t.Error("training_wheels should be false")
	}
	if cfg.Paths.Root != "/mnt/target" {
		t.Errorf("root = %q", cfg.Paths.Root)
	}

	repos := cfg.CacheRepositories()
	if len(repos) != 2 || repos[0].Name != "stable" || repos[1].Name != "beta" {
		t.Fatalf("repositories = %+v", repos)
	}
	if len(repos[0].Mirrors) != 2 {
		t.Errorf("stable mirrors = %v", repos[0].Mirrors)
	}
}

func TestLoadFromRejectsUnknownRepositoryInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
repositories_order = ["nightly"]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("expected validation error for undeclared repository")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.TrainingWheels = false
	cfg.RepositoriesOrder = []string{"stable", "local"}
	cfg.Repositories["local"] = RepositoryConfig{Mirrors: []string{"file:///srv/local"}}

	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if loaded.TrainingWheels {
		t.Error("training_wheels lost in round-trip")
	}
	if len(loaded.RepositoriesOrder) != 2 || loaded.RepositoriesOrder[1] != "local" {
		t.Errorf("repositories_order = %v", loaded.RepositoriesOrder)
	}
}

func TestLogAndLockPaths(t *testing.T) {
	cfg := Default()
	cfg.Paths.DepGraph = "/var/lib/hull/depgraph.json"
	cfg.Paths.Root = "/"

	if got := cfg.LogPath(); got != "/var/lib/hull/operations.db" {
		t.Errorf("LogPath = %q", got)
	}
	if got := cfg.LockPath(); got != "/.hull.lock" {
		t.Errorf("LockPath = %q", got)
	}
}
