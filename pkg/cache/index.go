package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hull/pkg/ident"
)

const indexFile = "index.json"

// Index is the cached content listing of one repository.
type Index struct {
	Repository string          `json:"repository"`
	FetchedAt  time.Time       `json:"fetched_at"`
	Packages   []PackageRecord `json:"packages"`
}

// PackageRecord describes one package and every version a repository offers.
type PackageRecord struct {
	Category string          `json:"category"`
	Name     string          `json:"name"`
	Versions []VersionRecord `json:"versions"`
}

// VersionRecord describes one concrete version of a package.
type VersionRecord struct {
	Version       string   `json:"version"`
	Dependencies  []string `json:"dependencies,omitempty"`
	Files         []string `json:"files,omitempty"`
	ArchiveSize   int64    `json:"archive_size"`
	InstalledSize int64    `json:"installed_size"`
	SHA256        string   `json:"sha256"`
	URL           string   `json:"url"`
}

// Metadata is the full cached description of one concrete package, as
// returned by Lookup.
type Metadata struct {
	ID            ident.ID
	Dependencies  []ident.Pattern
	Files         []string
	ArchiveSize   int64
	InstalledSize int64
	SHA256        string
	// URLs are the absolute download locations, one per mirror, in the
	// configured mirror order.
	URLs []string
}

// decodeIndex parses an index document and validates it enough for the
// rest of the cache to trust it blindly.
func decodeIndex(data []byte, repo string) (*Index, error) {
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedIndex, err)
	}

	for _, pkg := range idx.Packages {
		if pkg.Category == "" || pkg.Name == "" {
			return nil, fmt.Errorf("%w: package record missing category or name", ErrMalformedIndex)
		}
		for _, ver := range pkg.Versions {
			if _, err := ident.ParseVersion(ver.Version); err != nil {
				return nil, fmt.Errorf("%w: package %s/%s: %v", ErrMalformedIndex, pkg.Category, pkg.Name, err)
			}
			for _, dep := range ver.Dependencies {
				if _, err := ident.ParsePattern(dep); err != nil {
					return nil, fmt.Errorf("%w: package %s/%s#%s: %v", ErrMalformedIndex, pkg.Category, pkg.Name, ver.Version, err)
				}
			}
		}
	}

	idx.Repository = repo
	return &idx, nil
}

// indexPath returns the on-disk location of a repository's index.
func (c *Cache) indexPath(repo string) string {
	return filepath.Join(c.dir, repo, indexFile)
}

// writeIndex atomically replaces the on-disk index for a repository.
// Readers see either the old document or the new one, never a partial.
func (c *Cache) writeIndex(repo string, idx *Index) error {
	dir := filepath.Join(c.dir, repo)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, indexFile+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, c.indexPath(repo))
}

// readIndex loads a repository's index from disk. A missing index is not
// an error; it reads as an empty repository.
func (c *Cache) readIndex(repo string) (*Index, error) {
	data, err := os.ReadFile(c.indexPath(repo))
	if os.IsNotExist(err) {
		return &Index{Repository: repo}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeIndex(data, repo)
}
