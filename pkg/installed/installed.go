// Package installed persists one manifest per installed package: the
// exact version on disk and the files it owns. The manifests are the
// ground truth the transaction engine checks conflicts against.
//
// Manifests are keyed by the full package identifier, version included.
// Mid-plan two versions of one package may briefly coexist (the new one
// installed before the old one is removed); the layout has to allow it.
package installed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"hull/pkg/ident"
)

const manifestFile = "manifest.json"

// Manifest records one installed package.
type Manifest struct {
	ID          ident.ID  `json:"id"`
	Files       []string  `json:"files"`
	SHA256      string    `json:"sha256"`
	InstalledAt time.Time `json:"installed_at"`
}

// Store reads and writes installed manifests under one directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// manifestDir keeps one directory per package id. The id's separators
// become `::` so the directory name stays flat and filesystem-safe.
func (s *Store) manifestDir(id ident.ID) string {
	name := strings.NewReplacer("/", "::", "#", "::").Replace(id.String())
	return filepath.Join(s.dir, name)
}

// Record writes the manifest for a package atomically.
func (s *Store) Record(m Manifest) error {
	dir := s.manifestDir(m.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	sort.Strings(m.Files)
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, manifestFile+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, filepath.Join(dir, manifestFile))
}

// Remove deletes the manifest of a package.
func (s *Store) Remove(id ident.ID) error {
	return os.RemoveAll(s.manifestDir(id))
}

// Get returns the manifest of the identified package, or nil when that
// exact version is not installed.
func (s *Store) Get(id ident.ID) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.manifestDir(id), manifestFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest of %s: %w", id, err)
	}
	return &m, nil
}

// GetByName returns the installed manifests matching a full name,
// normally zero or one.
func (s *Store) GetByName(name ident.FullName) ([]Manifest, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	var out []Manifest
	for _, m := range all {
		if m.ID.FullName() == name {
			out = append(out, m)
		}
	}
	return out, nil
}

// List returns every installed manifest, sorted by package id.
func (s *Store) List() ([]Manifest, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []Manifest
	for _, entry := range entries {
		if !entry.IsDir() || !strings.Contains(entry.Name(), "::") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name(), manifestFile))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("manifest %s: %w", entry.Name(), err)
		}
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

// OwnedPaths returns the union of every installed package's files,
// mapped to an owning package. When two manifests transiently share a
// path, which of them appears is unspecified; callers that care must
// consult List directly.
func (s *Store) OwnedPaths() (map[string]ident.ID, error) {
	manifests, err := s.List()
	if err != nil {
		return nil, err
	}

	owned := make(map[string]ident.ID)
	for _, m := range manifests {
		for _, path := range m.Files {
			owned[path] = m.ID
		}
	}
	return owned, nil
}
