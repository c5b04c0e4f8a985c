package cli

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"hull/internal/config"
	"hull/internal/history"
	"hull/internal/ui"
	"hull/pkg/archive"
	"hull/pkg/cache"
	"hull/pkg/depgraph"
	"hull/pkg/fetch"
	"hull/pkg/ident"
	"hull/pkg/lock"
	"hull/pkg/transaction"
)

// app is the shared state every command runs against.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	cache  *cache.Cache
	fetch  fetch.Fetcher
	reader archive.Reader
}

// state is the locked, opened view of the install root. It exists for
// the duration of one read-then-write operation.
type state struct {
	lock    *lock.Lock
	hist    *history.Store
	engine  *transaction.Engine
	current *depgraph.Graph
}

// withState acquires the install-root lock, opens the operation log and
// the current graph, and runs fn. Everything is released afterwards.
func (a *app) withState(fn func(st *state) error) error {
	if err := a.cfg.EnsureStateDirs(); err != nil {
		return err
	}

	lk, err := lock.Acquire(a.cfg.LockPath())
	if err != nil {
		return err
	}
	defer lk.Release() //nolint:errcheck

	hist, err := history.Open(a.cfg.LogPath())
	if err != nil {
		return err
	}
	defer hist.Close()

	current, err := depgraph.Load(a.cfg.Paths.DepGraph)
	if err != nil {
		return err
	}

	engine := transaction.New(
		transaction.Paths{
			Root:       a.cfg.Paths.Root,
			Downloaded: a.cfg.Paths.Downloaded,
			Installed:  a.cfg.Paths.Installed,
			DepGraph:   a.cfg.Paths.DepGraph,
		},
		a.cache, hist, a.fetch, a.reader,
		transaction.WithLogger(a.logger),
		transaction.WithParallelDownloads(a.cfg.Downloads.Parallel),
	)

	return fn(&state{lock: lk, hist: hist, engine: engine, current: current})
}

// provider adapts the cache to the solver's view of the world.
type provider struct {
	cache *cache.Cache
	order []string
}

func (p provider) Query(pattern ident.Pattern) ([]ident.ID, error) {
	return p.cache.Query(pattern, p.order)
}

func (p provider) Dependencies(id ident.ID) ([]ident.Pattern, error) {
	meta, err := p.cache.Lookup(id)
	if err != nil {
		return nil, err
	}
	return meta.Dependencies, nil
}

func (a *app) solver() *depgraph.Solver {
	return depgraph.NewSolver(provider{cache: a.cache, order: a.cfg.RepositoriesOrder}, a.logger)
}

// scratchPath is where unmerged scratch changes persist between
// invocations of the advanced front-end.
func (a *app) scratchPath() string {
	return a.cfg.Paths.DepGraph + ".scratch"
}

// loadScratch returns the pending scratch graph if one exists, otherwise
// a fresh clone of current.
func (a *app) loadScratch(current *depgraph.Graph) (*depgraph.Graph, bool, error) {
	if _, err := os.Stat(a.scratchPath()); os.IsNotExist(err) {
		return current.Clone(), false, nil
	}
	g, err := depgraph.Load(a.scratchPath())
	if err != nil {
		return nil, false, err
	}
	return g, true, nil
}

func (a *app) saveScratch(g *depgraph.Graph) error {
	return g.Save(a.scratchPath())
}

func (a *app) discardScratch() error {
	err := os.Remove(a.scratchPath())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (a *app) hasPendingScratch() bool {
	_, err := os.Stat(a.scratchPath())
	return err == nil
}

// runMerge solves the scratch graph, shows the plan, asks for
// confirmation and hands the plan to the engine.
func (a *app) runMerge(ctx context.Context, st *state, command string, scratch *depgraph.Graph, dryRun bool) error {
	if err := a.solver().Solve(scratch); err != nil {
		return err
	}

	plan := depgraph.Diff(st.current, scratch)
	ui.PrintPlan(plan)

	if dryRun {
		return nil
	}

	if !plan.Empty() {
		ok, err := a.confirm("Apply these changes?")
		if err != nil {
			return err
		}
		if !ok {
			return ErrAborted
		}
	}

	entry, err := st.engine.Run(ctx, command, plan, scratch)
	if err != nil {
		return err
	}
	if err := a.discardScratch(); err != nil {
		return err
	}

	if plan.Empty() {
		ui.SuccessMsg("Committed operation %d (no filesystem changes)", entry.ID)
	} else {
		ui.SuccessMsg("Committed operation %d (%d steps)", entry.ID, len(plan.Steps))
	}
	return nil
}

// confirm asks the user unless --yes or --no decided already. An empty
// answer means yes.
func (a *app) confirm(prompt string) (bool, error) {
	if assumeYes {
		return true, nil
	}
	if assumeNo {
		return false, nil
	}
	return ui.Confirm(prompt, true)
}

// commandLine reconstructs the invocation for the operation log.
func commandLine(name string, args []string) string {
	line := name
	for _, arg := range args {
		line += " " + arg
	}
	return line
}

func parsePatterns(args []string) ([]ident.Pattern, error) {
	if len(args) == 0 {
		return nil, ErrNoPatterns
	}
	patterns := make([]ident.Pattern, 0, len(args))
	for _, arg := range args {
		p, err := ident.ParsePattern(arg)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", arg, err)
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}
