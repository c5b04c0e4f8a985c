// Package cache maintains the local mirror of repository metadata: one
// index document per configured repository, replaced atomically on pull
// and queried by name and version requirement.
package cache

import (
	"sync"

	"go.uber.org/zap"

	"hull/pkg/fetch"
)

// Repository names a package source and its mirrors, in failover order.
type Repository struct {
	Name    string
	Mirrors []string
}

// Cache is the persistent index of available packages.
//
// Reads are served from the last committed index of each repository;
// pulls are serialized per repository and replace the index atomically.
type Cache struct {
	dir     string
	repos   []Repository
	fetcher fetch.Fetcher
	log     *zap.Logger

	mu     sync.RWMutex
	loaded map[string]*Index

	// pullMu serializes pulls per repository.
	pullMu sync.Map // repo name -> *sync.Mutex
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger attaches a logger. The default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Cache) { c.log = log }
}

// New creates a cache rooted at dir for the given repositories, which
// must be listed in the user's configured order.
func New(dir string, repos []Repository, fetcher fetch.Fetcher, opts ...Option) *Cache {
	c := &Cache{
		dir:     dir,
		repos:   repos,
		fetcher: fetcher,
		log:     zap.NewNop(),
		loaded:  make(map[string]*Index),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Repositories returns the configured repositories in order.
func (c *Cache) Repositories() []Repository {
	return c.repos
}

// repository looks up a configured repository by name.
func (c *Cache) repository(name string) (Repository, bool) {
	for _, r := range c.repos {
		if r.Name == name {
			return r, true
		}
	}
	return Repository{}, false
}

// index returns the in-memory index for a repository, loading it from
// disk on first use.
func (c *Cache) index(repo string) (*Index, error) {
	c.mu.RLock()
	idx, ok := c.loaded[repo]
	c.mu.RUnlock()
	if ok {
		return idx, nil
	}

	idx, err := c.readIndex(repo)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.loaded[repo] = idx
	c.mu.Unlock()
	return idx, nil
}

// invalidate drops the in-memory index for a repository so the next read
// sees the freshly committed document.
func (c *Cache) invalidate(repo string) {
	c.mu.Lock()
	delete(c.loaded, repo)
	c.mu.Unlock()
}

func (c *Cache) repoPullLock(repo string) *sync.Mutex {
	mu, _ := c.pullMu.LoadOrStore(repo, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
