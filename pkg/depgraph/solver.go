package depgraph

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"hull/pkg/ident"
)

// Provider supplies the solver with knowledge about available packages.
// The repository cache is the production implementation; tests use an
// in-memory map.
type Provider interface {
	// Query returns the packages matching the pattern in descending
	// version order, repositories consulted in the configured order.
	Query(pattern ident.Pattern) ([]ident.ID, error)

	// Dependencies returns the declared dependencies of one concrete
	// package.
	Dependencies(id ident.ID) ([]ident.Pattern, error)
}

// Solver assigns a fulfiller to every unsolved requirement of a graph by
// recursively expanding the dependencies of chosen packages.
//
// The strategy is greedy latest-first with shared-package unification:
// once a version of a package is in the graph, every later requirement
// on that package must accept it or the solve fails with both
// constraints named. There is no backtracking, so a solve is
// deterministic for a given cache snapshot and starting graph.
type Solver struct {
	provider Provider
	log      *zap.Logger
}

// NewSolver creates a solver reading from the given provider.
func NewSolver(provider Provider, log *zap.Logger) *Solver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Solver{provider: provider, log: log}
}

// Solve fulfills every unsolved requirement of the graph, mutating it in
// place. On failure the graph is left partially solved and must be
// discarded by the caller (scratch graphs make that free).
func (s *Solver) Solve(g *Graph) error {
	queue := g.UnsolvedRequirements()

	for len(queue) > 0 {
		rid := queue[0]
		queue = queue[1:]

		req := g.Requirement(rid)
		if req == nil || req.Solved() {
			continue
		}

		added, err := s.solveOne(g, req)
		if err != nil {
			return err
		}
		queue = append(queue, added...)
	}
	return nil
}

// solveOne fulfills a single requirement, returning the ids of any
// automatic requirements it introduced.
func (s *Solver) solveOne(g *Graph, req *Requirement) ([]RequirementID, error) {
	// A package already chosen for this name must serve every
	// requirement on it.
	if nid, ok := s.existingNode(g, req.Target); ok {
		node := g.Node(nid)
		if !req.Target.Req.MatchString(node.Pkg.Version) {
			return nil, &ConflictError{
				Name:     node.Pkg.FullName().String(),
				Existing: node.Pkg,
				Req:      req.Target,
				Requirer: g.Node(req.Requirer).String(),
			}
		}
		s.log.Debug("unified requirement onto existing package",
			zap.String("target", req.Target.String()),
			zap.String("package", node.Pkg.String()))
		return nil, g.SetFulfiller(req.ID, nid)
	}

	candidates, err := s.provider.Query(req.Target)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", req.Target, err)
	}
	if len(candidates) == 0 {
		return nil, &UnresolvableError{
			Requirer: g.Node(req.Requirer).String(),
			Target:   req.Target,
		}
	}

	chosen := candidates[0]
	nid, err := g.AddPackage(chosen)
	if err != nil {
		return nil, err
	}
	if err := g.SetFulfiller(req.ID, nid); err != nil {
		return nil, err
	}

	deps, err := s.provider.Dependencies(chosen)
	if err != nil {
		return nil, fmt.Errorf("dependencies of %s: %w", chosen, err)
	}

	var added []RequirementID
	for _, dep := range deps {
		rid, err := g.addRequirementTo(nid, dep, KindAutomatic)
		if err != nil {
			return nil, fmt.Errorf("declare dependency %s of %s: %w", dep, chosen, err)
		}
		added = append(added, rid)
	}

	s.log.Debug("fulfilled requirement",
		zap.String("target", req.Target.String()),
		zap.String("package", chosen.String()),
		zap.Int("dependencies", len(deps)))
	return added, nil
}

// existingNode finds the package node the pattern's name parts select,
// if one is already in the graph. Matches are scanned in name order so
// the result does not depend on map iteration.
func (s *Solver) existingNode(g *Graph, target ident.Pattern) (NodeID, bool) {
	var names []ident.FullName
	for name := range g.packages {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i].String() < names[j].String() })

	var matched []NodeID
	for _, name := range names {
		nid := g.packages[name]
		if target.MatchName(g.nodes[nid].Pkg) {
			matched = append(matched, nid)
		}
	}
	if len(matched) == 0 {
		return NoNode, false
	}

	// Prefer a node that satisfies the predicate outright; otherwise
	// report the first so the conflict names a concrete package.
	for _, nid := range matched {
		if target.Req.MatchString(g.nodes[nid].Pkg.Version) {
			return nid, true
		}
	}
	return matched[0], true
}
