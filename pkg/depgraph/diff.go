package depgraph

import (
	"sort"

	"hull/pkg/ident"
)

// Diff computes the ordered transaction plan taking the system from the
// old (current) graph to the new (scratch) graph. Both graphs must be
// solved.
//
// Ordering:
//  1. Removals of packages whose former dependents are all removed too,
//     dependents first.
//  2. Installs, upgrades and downgrades in dependency order of the new
//     graph (dependencies before dependents).
//  3. Removals of packages orphaned by an upgrade, after the upgrade
//     that strands them.
//
// Ties within a phase break alphabetically on the fully qualified id, so
// the plan is deterministic.
//
// A version change is emitted as a single Upgrade/Downgrade step only
// when some surviving requirement carries the package across: the same
// requirer (a group, or a package that itself does not change) holding
// the same predicate fulfilled by the old version before and the new
// version after. Otherwise the two versions have independent lifetimes
// and the change splits into an Install of the new and a Remove of the
// old, letting both coexist while intermediate steps need them.
func Diff(oldGraph, newGraph *Graph) Plan {
	oldNodes := packageNodes(oldGraph)
	newNodes := packageNodes(newGraph)

	var removed []ident.ID // old versions leaving the system

	type forward struct {
		install bool // false: upgrade/downgrade
		from    ident.ID
		to      ident.ID
	}
	forwards := make(map[ident.FullName]forward)

	for name, oldNode := range oldNodes {
		newNode, ok := newNodes[name]
		if !ok {
			removed = append(removed, oldNode.Pkg)
			continue
		}
		if oldNode.Pkg.Version == newNode.Pkg.Version {
			continue
		}
		if carriedAcross(oldGraph, newGraph, oldNode, newNode) {
			forwards[name] = forward{from: oldNode.Pkg, to: newNode.Pkg}
		} else {
			forwards[name] = forward{install: true, to: newNode.Pkg}
			removed = append(removed, oldNode.Pkg)
		}
	}
	for name, newNode := range newNodes {
		if _, ok := oldNodes[name]; !ok {
			forwards[name] = forward{install: true, to: newNode.Pkg}
		}
	}

	plan := Plan{}

	// Removal phases. A removal is deferred past the forward phase when
	// any of its former dependents survives (upgraded or untouched); the
	// constraint propagates through chains of removals.
	removedSet := make(map[ident.FullName]bool, len(removed))
	for _, id := range removed {
		removedSet[id.FullName()] = true
	}
	deferred := make(map[ident.FullName]bool)
	for changedLate := true; changedLate; {
		changedLate = false
		for _, id := range removed {
			name := id.FullName()
			if deferred[name] {
				continue
			}
			for _, dep := range packageDependents(oldGraph, oldNodes[name]) {
				if !removedSet[dep] || deferred[dep] {
					deferred[name] = true
					changedLate = true
					break
				}
			}
		}
	}

	var early, late []ident.ID
	for _, id := range removed {
		if deferred[id.FullName()] {
			late = append(late, id)
		} else {
			early = append(early, id)
		}
	}

	plan.Steps = append(plan.Steps, orderRemovals(oldGraph, oldNodes, early)...)

	// Forward phase: dependencies before dependents in the new graph.
	names := make([]ident.FullName, 0, len(forwards))
	for name := range forwards {
		names = append(names, name)
	}
	inSet := func(name ident.FullName) bool { _, ok := forwards[name]; return ok }

	indegree := make(map[ident.FullName]int, len(names))
	for _, name := range names {
		indegree[name] = 0
		for _, dep := range packageDependencies(newGraph, newNodes[name]) {
			if inSet(dep) {
				indegree[name]++
			}
		}
	}

	ready := readyQueue(names, indegree, func(name ident.FullName) string {
		return forwards[name].to.String()
	})
	for len(ready.items) > 0 {
		name := ready.pop()
		fw := forwards[name]
		if fw.install {
			plan.Steps = append(plan.Steps, InstallStep(fw.to))
		} else {
			plan.Steps = append(plan.Steps, ReplaceStep(fw.from, fw.to))
		}
		for _, other := range names {
			for _, dep := range packageDependencies(newGraph, newNodes[other]) {
				if dep == name {
					indegree[other]--
					if indegree[other] == 0 {
						ready.push(other)
					}
				}
			}
		}
	}

	plan.Steps = append(plan.Steps, orderRemovals(oldGraph, oldNodes, late)...)
	return plan
}

// carriedAcross reports whether some requirement survives the version
// change intact: same requirer identity, same predicate, fulfilled by
// the old node before and the new node after.
func carriedAcross(oldGraph, newGraph *Graph, oldNode, newNode *Node) bool {
	for _, oldRID := range oldNode.Dependents {
		oldReq := oldGraph.Requirement(oldRID)
		if oldReq == nil {
			continue
		}
		oldKey, ok := requirerKey(oldGraph, oldReq)
		if !ok {
			continue
		}
		for _, newRID := range newNode.Dependents {
			newReq := newGraph.Requirement(newRID)
			if newReq == nil || !newReq.Target.Equal(oldReq.Target) {
				continue
			}
			newKey, ok := requirerKey(newGraph, newReq)
			if ok && newKey == oldKey {
				return true
			}
		}
	}
	return false
}

// requirerKey identifies a requirement's holder across graphs. Groups
// carry their name; packages carry their full id, so a requirer that
// changes version never matches itself.
func requirerKey(g *Graph, req *Requirement) (string, bool) {
	node := g.Node(req.Requirer)
	if node == nil {
		return "", false
	}
	if node.IsGroup() {
		return "group\x00" + node.Group, true
	}
	return "pkg\x00" + node.Pkg.String(), true
}

// orderRemovals orders one removal phase dependents-first.
func orderRemovals(g *Graph, nodes map[ident.FullName]*Node, ids []ident.ID) []Step {
	if len(ids) == 0 {
		return nil
	}

	inPhase := make(map[ident.FullName]bool, len(ids))
	names := make([]ident.FullName, 0, len(ids))
	for _, id := range ids {
		inPhase[id.FullName()] = true
		names = append(names, id.FullName())
	}

	// A package waits for its in-phase dependents.
	indegree := make(map[ident.FullName]int, len(names))
	for _, name := range names {
		indegree[name] = 0
	}
	for _, name := range names {
		for _, dep := range packageDependencies(g, nodes[name]) {
			if inPhase[dep] {
				indegree[dep]++
			}
		}
	}

	ready := readyQueue(names, indegree, func(name ident.FullName) string {
		return nodes[name].Pkg.String()
	})
	var steps []Step
	for len(ready.items) > 0 {
		name := ready.pop()
		steps = append(steps, RemoveStep(nodes[name].Pkg))
		for _, dep := range packageDependencies(g, nodes[name]) {
			if inPhase[dep] {
				indegree[dep]--
				if indegree[dep] == 0 {
					ready.push(dep)
				}
			}
		}
	}
	return steps
}

func packageNodes(g *Graph) map[ident.FullName]*Node {
	out := make(map[ident.FullName]*Node, len(g.packages))
	for name, nid := range g.packages {
		out[name] = g.nodes[nid]
	}
	return out
}

// packageDependencies returns the full names of the packages fulfilling
// the node's requirements, sorted.
func packageDependencies(g *Graph, node *Node) []ident.FullName {
	var deps []ident.FullName
	for _, rid := range node.Requirements {
		req := g.Requirement(rid)
		if req == nil || req.Fulfiller == NoNode {
			continue
		}
		if dep := g.Node(req.Fulfiller); dep != nil && !dep.IsGroup() {
			deps = append(deps, dep.Pkg.FullName())
		}
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].String() < deps[j].String() })
	return deps
}

// packageDependents returns the full names of the package nodes holding
// requirements fulfilled by this node. Group dependents do not appear.
func packageDependents(g *Graph, node *Node) []ident.FullName {
	var deps []ident.FullName
	for _, rid := range node.Dependents {
		req := g.Requirement(rid)
		if req == nil {
			continue
		}
		if holder := g.Node(req.Requirer); holder != nil && !holder.IsGroup() {
			deps = append(deps, holder.Pkg.FullName())
		}
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].String() < deps[j].String() })
	return deps
}

// sortedQueue is a ready list that always pops the alphabetically first
// element, keeping the diff deterministic.
type sortedQueue struct {
	items []ident.FullName
	key   func(ident.FullName) string
}

func readyQueue(names []ident.FullName, indegree map[ident.FullName]int, key func(ident.FullName) string) *sortedQueue {
	q := &sortedQueue{key: key}
	for _, name := range names {
		if indegree[name] == 0 {
			q.push(name)
		}
	}
	return q
}

func (q *sortedQueue) push(name ident.FullName) {
	q.items = append(q.items, name)
	sort.Slice(q.items, func(i, j int) bool { return q.key(q.items[i]) < q.key(q.items[j]) })
}

func (q *sortedQueue) pop() ident.FullName {
	name := q.items[0]
	q.items = q.items[1:]
	return name
}
