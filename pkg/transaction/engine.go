// Package transaction executes plans against the filesystem: staging
// downloads, preflight conflict detection, per-step application with
// undo, and the commit that promotes the scratch graph and writes the
// operation log.
//
// A plan moves through Staged, Preflighted, Applying and Committed; the
// only legal transitions are forward, and any failure before Committed
// unwinds whatever the apply phase already did.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"hull/internal/history"
	"hull/pkg/archive"
	"hull/pkg/cache"
	"hull/pkg/depgraph"
	"hull/pkg/fetch"
	"hull/pkg/installed"
)

// Paths are the filesystem locations the engine works against.
type Paths struct {
	// Root is the install root every owned file path is relative to.
	Root string

	// Downloaded holds per-plan staging directories.
	Downloaded string

	// Installed holds the installed-manifest store.
	Installed string

	// DepGraph is the persisted current graph.
	DepGraph string
}

// Engine turns plans into filesystem state.
type Engine struct {
	paths     Paths
	cache     *cache.Cache
	installed *installed.Store
	log       *history.Store
	fetcher   fetch.Fetcher
	archive   archive.Reader
	logger    *zap.Logger
	parallel  int64

	mu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger attaches a logger. The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithParallelDownloads bounds the archive download pool.
func WithParallelDownloads(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallel = int64(n)
		}
	}
}

// New creates an engine.
func New(paths Paths, c *cache.Cache, log *history.Store, fetcher fetch.Fetcher, reader archive.Reader, opts ...Option) *Engine {
	e := &Engine{
		paths:     paths,
		cache:     c,
		installed: installed.NewStore(paths.Installed),
		log:       log,
		fetcher:   fetcher,
		archive:   reader,
		logger:    zap.NewNop(),
		parallel:  4,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Installed exposes the manifest store for read-only views.
func (e *Engine) Installed() *installed.Store {
	return e.installed
}

// Run executes one plan and, on success, commits: the scratch graph
// becomes current, one entry is appended to the operation log, and the
// staging directory is deleted.
//
// Failures during Stage and Preflight abort with no mutation. A failure
// during Apply triggers the per-step undo chain. Cancellation is
// honored between phases and between steps, never during Commit.
func (e *Engine) Run(ctx context.Context, command string, plan depgraph.Plan, scratch *depgraph.Graph) (*history.Entry, error) {
	if err := e.sweepStaging(); err != nil {
		return nil, err
	}

	st, err := e.newStaging()
	if err != nil {
		return nil, err
	}

	if err := e.stage(ctx, st, plan); err != nil {
		st.remove() //nolint:errcheck
		return nil, err
	}
	e.logger.Info("plan staged", zap.Int("packages", len(st.packages)))

	if err := ctx.Err(); err != nil {
		st.remove() //nolint:errcheck
		return nil, err
	}

	if err := e.preflight(st, plan); err != nil {
		st.remove() //nolint:errcheck
		return nil, err
	}
	e.logger.Info("preflight passed", zap.Int("steps", len(plan.Steps)))

	if err := ctx.Err(); err != nil {
		st.remove() //nolint:errcheck
		return nil, err
	}

	if err := e.apply(ctx, st, plan); err != nil {
		// A clean rollback leaves nothing worth keeping; a partial one
		// pinned the staging directory itself.
		if !isPartial(err) {
			st.remove() //nolint:errcheck
		}
		return nil, err
	}

	entry, err := e.commit(command, plan, scratch)
	if err != nil {
		// The filesystem mutation succeeded but the bookkeeping did
		// not; this is operator territory, same as a failed undo.
		st.markPartial(fmt.Sprintf("commit failed: %v", err))
		return nil, fmt.Errorf("%w: commit failed: %v", ErrPartialApply, err)
	}

	st.remove() //nolint:errcheck
	e.logger.Info("plan committed", zap.Uint64("id", entry.ID), zap.String("command", command))
	return entry, nil
}

func (e *Engine) commit(command string, plan depgraph.Plan, scratch *depgraph.Graph) (*history.Entry, error) {
	if err := scratch.Save(e.paths.DepGraph); err != nil {
		return nil, fmt.Errorf("promote graph: %w", err)
	}

	entry, err := history.NewEntry(command, plan, scratch)
	if err != nil {
		return nil, err
	}
	if err := e.log.Append(entry); err != nil {
		return nil, fmt.Errorf("append operation log: %w", err)
	}
	return entry, nil
}

// Download stages a plan's archives without applying anything. The
// returned directory is marked so the crash-recovery sweep leaves it
// alone; it is the caller's to keep or discard.
func (e *Engine) Download(ctx context.Context, plan depgraph.Plan) (string, error) {
	st, err := e.newStaging()
	if err != nil {
		return "", err
	}
	st.markDetached()

	if err := e.stage(ctx, st, plan); err != nil {
		st.remove() //nolint:errcheck
		return "", err
	}
	return st.dir, nil
}

func isPartial(err error) bool {
	return errors.Is(err, ErrPartialApply)
}
