package cache

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxIndexSize bounds how much of an index document is read from a
// mirror before giving up on it as malformed.
const maxIndexSize = 64 << 20

// PullResult reports the outcome of pulling one repository.
type PullResult struct {
	Repository string
	Err        error
}

// Pull refreshes the index of the named repositories, or of every
// configured repository when names is empty. Repositories are pulled in
// parallel; within one repository, mirrors are tried in listed order and
// the first success wins. A repository whose mirrors all fail keeps its
// previously committed index.
func (c *Cache) Pull(ctx context.Context, names ...string) ([]PullResult, error) {
	var targets []Repository
	if len(names) == 0 {
		targets = c.repos
	} else {
		for _, name := range names {
			repo, ok := c.repository(name)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownRepository, name)
			}
			targets = append(targets, repo)
		}
	}

	results := make([]PullResult, len(targets))
	g, ctx := errgroup.WithContext(ctx)

	for i, repo := range targets {
		g.Go(func() error {
			err := c.pullRepository(ctx, repo)
			results[i] = PullResult{Repository: repo.Name, Err: err}
			// One failed repository does not abort the others.
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// pullRepository fetches a repository's index from the first reachable
// mirror and commits it atomically.
func (c *Cache) pullRepository(ctx context.Context, repo Repository) error {
	mu := c.repoPullLock(repo.Name)
	mu.Lock()
	defer mu.Unlock()

	if len(repo.Mirrors) == 0 {
		return &MirrorExhaustedError{Repository: repo.Name, Mirrors: 0, Last: fmt.Errorf("no mirrors configured")}
	}

	var lastErr error
	for _, mirror := range repo.Mirrors {
		if err := ctx.Err(); err != nil {
			return err
		}

		url := mirrorURL(mirror, indexFile)
		data, err := c.fetchAll(ctx, url)
		if err != nil {
			c.log.Warn("mirror failed",
				zap.String("repository", repo.Name),
				zap.String("mirror", mirror),
				zap.Error(err))
			lastErr = err
			continue
		}

		idx, err := decodeIndex(data, repo.Name)
		if err != nil {
			// A mirror serving garbage is as dead as an unreachable one.
			c.log.Warn("mirror served malformed index",
				zap.String("repository", repo.Name),
				zap.String("mirror", mirror),
				zap.Error(err))
			lastErr = err
			continue
		}

		if err := c.writeIndex(repo.Name, idx); err != nil {
			return fmt.Errorf("commit index for %s: %w", repo.Name, err)
		}

		c.invalidate(repo.Name)
		c.log.Info("pulled repository",
			zap.String("repository", repo.Name),
			zap.String("mirror", mirror),
			zap.Int("packages", len(idx.Packages)))
		return nil
	}

	return &MirrorExhaustedError{Repository: repo.Name, Mirrors: len(repo.Mirrors), Last: lastErr}
}

func (c *Cache) fetchAll(ctx context.Context, url string) ([]byte, error) {
	body, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(io.LimitReader(body, maxIndexSize))
}

// mirrorURL joins a mirror base URL and a path suffix.
func mirrorURL(mirror, suffix string) string {
	return strings.TrimRight(mirror, "/") + "/" + strings.TrimLeft(suffix, "/")
}
