package cache

import (
	"fmt"
	"sort"

	"hull/pkg/ident"
)

// Query returns every cached package matching the pattern, in descending
// version order. Repositories are consulted in the configured order (or
// in the order given, when non-nil); on equal versions the package from
// the earlier repository sorts first.
func (c *Cache) Query(pattern ident.Pattern, order []string) ([]ident.ID, error) {
	repos, err := c.visibleRepos(pattern, order)
	if err != nil {
		return nil, err
	}

	type match struct {
		id       ident.ID
		repoRank int
	}
	var matches []match

	for rank, repo := range repos {
		idx, err := c.index(repo)
		if err != nil {
			return nil, err
		}
		for _, pkg := range idx.Packages {
			for _, ver := range pkg.Versions {
				id := ident.ID{
					Repository: repo,
					Category:   pkg.Category,
					Name:       pkg.Name,
					Version:    ver.Version,
				}
				if pattern.Match(id) {
					matches = append(matches, match{id: id, repoRank: rank})
				}
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		cmp := ident.CompareVersions(matches[i].id.Version, matches[j].id.Version)
		if cmp != 0 {
			return cmp > 0
		}
		return matches[i].repoRank < matches[j].repoRank
	})

	ids := make([]ident.ID, len(matches))
	for i, m := range matches {
		ids[i] = m.id
	}
	return ids, nil
}

// Lookup returns the full metadata for one concrete package, or
// ErrNoSuchPackage / ErrNoSuchVersion when it is not cached.
func (c *Cache) Lookup(id ident.ID) (*Metadata, error) {
	repo, ok := c.repository(id.Repository)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRepository, id.Repository)
	}

	idx, err := c.index(id.Repository)
	if err != nil {
		return nil, err
	}

	for _, pkg := range idx.Packages {
		if pkg.Category != id.Category || pkg.Name != id.Name {
			continue
		}
		for _, ver := range pkg.Versions {
			if ver.Version != id.Version {
				continue
			}

			deps := make([]ident.Pattern, 0, len(ver.Dependencies))
			for _, dep := range ver.Dependencies {
				pat, err := ident.ParsePattern(dep)
				if err != nil {
					return nil, fmt.Errorf("%w: dependency %q of %s", ErrMalformedIndex, dep, id)
				}
				deps = append(deps, pat)
			}

			urls := make([]string, 0, len(repo.Mirrors))
			for _, mirror := range repo.Mirrors {
				urls = append(urls, mirrorURL(mirror, ver.URL))
			}

			return &Metadata{
				ID:            id,
				Dependencies:  deps,
				Files:         append([]string(nil), ver.Files...),
				ArchiveSize:   ver.ArchiveSize,
				InstalledSize: ver.InstalledSize,
				SHA256:        ver.SHA256,
				URLs:          urls,
			}, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrNoSuchVersion, id)
	}
	return nil, fmt.Errorf("%w: %s", ErrNoSuchPackage, id)
}

// visibleRepos resolves the repository consultation order for a query.
func (c *Cache) visibleRepos(pattern ident.Pattern, order []string) ([]string, error) {
	if pattern.Repository != "" {
		if _, ok := c.repository(pattern.Repository); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRepository, pattern.Repository)
		}
		return []string{pattern.Repository}, nil
	}

	if order != nil {
		for _, name := range order {
			if _, ok := c.repository(name); !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownRepository, name)
			}
		}
		return order, nil
	}

	names := make([]string, len(c.repos))
	for i, r := range c.repos {
		names[i] = r.Name
	}
	return names, nil
}
