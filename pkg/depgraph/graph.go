// Package depgraph holds the in-memory dependency graph: groups and
// concrete packages linked by version-constrained requirements, each
// requirement fulfilled by at most one package node.
//
// Nodes and requirements live in arena maps keyed by stable integer ids;
// every edge is an id. The graph serializes to JSON and deep-copies
// cheaply, which is what makes the scratch-versus-current workflow and
// the diff straightforward.
package depgraph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"hull/pkg/ident"
)

// Graph is one dependency graph. The zero value is not usable; call New
// or Load.
type Graph struct {
	nextNode        NodeID
	nextRequirement RequirementID
	nodes           map[NodeID]*Node
	requirements    map[RequirementID]*Requirement

	// Derived indexes, rebuilt on load.
	groups   map[string]NodeID
	packages map[ident.FullName]NodeID
}

// New creates a graph containing only the root group.
func New() *Graph {
	g := &Graph{
		nodes:        make(map[NodeID]*Node),
		requirements: make(map[RequirementID]*Requirement),
		groups:       make(map[string]NodeID),
		packages:     make(map[ident.FullName]NodeID),
	}

	root := &Node{ID: g.nextNode, Group: ident.RootGroup, Parent: NoNode}
	g.nextNode++
	g.nodes[root.ID] = root
	g.groups[ident.RootGroup] = root.ID
	return g
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id NodeID) *Node {
	return g.nodes[id]
}

// Requirement returns the requirement with the given id, or nil.
func (g *Graph) Requirement(id RequirementID) *Requirement {
	return g.requirements[id]
}

// Root returns the id of the root group.
func (g *Graph) Root() NodeID {
	return g.groups[ident.RootGroup]
}

// GroupNode returns the node id of the named group.
func (g *Graph) GroupNode(name string) (NodeID, bool) {
	id, ok := g.groups[name]
	return id, ok
}

// PackageNode returns the node id of the package with the given full name.
func (g *Graph) PackageNode(name ident.FullName) (NodeID, bool) {
	id, ok := g.packages[name]
	return id, ok
}

// Groups returns every group name, sorted, root first.
func (g *Graph) Groups() []string {
	names := make([]string, 0, len(g.groups))
	for name := range g.groups {
		if name != ident.RootGroup {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return append([]string{ident.RootGroup}, names...)
}

// Packages returns the identifier of every package node, sorted.
func (g *Graph) Packages() []ident.ID {
	ids := make([]ident.ID, 0, len(g.packages))
	for _, nid := range g.packages {
		ids = append(ids, g.nodes[nid].Pkg)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// CreateGroup adds a new group under the named parent group.
func (g *Graph) CreateGroup(name, parent string) error {
	if err := ident.ValidateGroupName(name); err != nil {
		return err
	}
	if _, exists := g.groups[name]; exists {
		return fmt.Errorf("%w: %s", ErrGroupExists, name)
	}
	parentID, ok := g.groups[parent]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchGroup, parent)
	}

	node := &Node{ID: g.nextNode, Group: name, Parent: parentID}
	g.nextNode++
	g.nodes[node.ID] = node
	g.groups[name] = node.ID
	return nil
}

// DeleteGroup removes a group. A group holding requirements or child
// groups is refused unless force is set, in which case its content is
// removed recursively.
func (g *Graph) DeleteGroup(name string, force bool) error {
	if name == ident.RootGroup {
		return fmt.Errorf("cannot delete %s", ident.RootGroup)
	}
	gid, ok := g.groups[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchGroup, name)
	}
	node := g.nodes[gid]

	children := g.childGroups(gid)
	if !force && (len(node.Requirements) > 0 || len(children) > 0) {
		return fmt.Errorf("%w: %s", ErrGroupNotEmpty, name)
	}

	for _, child := range children {
		if err := g.DeleteGroup(g.nodes[child].Group, true); err != nil {
			return err
		}
	}
	for _, rid := range slices.Clone(node.Requirements) {
		g.deleteRequirement(rid)
	}

	delete(g.nodes, gid)
	delete(g.groups, name)
	return nil
}

// childGroups returns the node ids of the groups directly under gid,
// sorted by name for deterministic traversal.
func (g *Graph) childGroups(gid NodeID) []NodeID {
	var children []NodeID
	for _, node := range g.nodes {
		if node.IsGroup() && node.Parent == gid {
			children = append(children, node.ID)
		}
	}
	sort.Slice(children, func(i, j int) bool {
		return g.nodes[children[i]].Group < g.nodes[children[j]].Group
	})
	return children
}

// AddRequirement appends a requirement to the named group. An identical
// requirement (same target, same predicate, same kind) is rejected.
func (g *Graph) AddRequirement(group string, target ident.Pattern, kind Kind) (RequirementID, error) {
	gid, ok := g.groups[group]
	if !ok {
		return NoRequirement, fmt.Errorf("%w: %s", ErrNoSuchGroup, group)
	}
	return g.addRequirementTo(gid, target, kind)
}

func (g *Graph) addRequirementTo(requirer NodeID, target ident.Pattern, kind Kind) (RequirementID, error) {
	holder := g.nodes[requirer]
	for _, rid := range holder.Requirements {
		req := g.requirements[rid]
		if req.Kind == kind && req.Target.Equal(target) {
			return NoRequirement, fmt.Errorf("%w: %s on %s", ErrDuplicateRequirement, target, holder)
		}
	}

	req := &Requirement{
		ID:        g.nextRequirement,
		Requirer:  requirer,
		Target:    target,
		Kind:      kind,
		Fulfiller: NoNode,
	}
	g.nextRequirement++
	g.requirements[req.ID] = req
	holder.Requirements = append(holder.Requirements, req.ID)
	return req.ID, nil
}

// RemoveRequirement removes the requirement matching the pattern from the
// named group, detaching and garbage-collecting its fulfiller. When the
// pattern matches no requirement but does match an installed package that
// other packages depend on, the error names those dependents.
func (g *Graph) RemoveRequirement(group string, target ident.Pattern) error {
	gid, ok := g.groups[group]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchGroup, group)
	}

	rid, ok := g.findRequirement(gid, target)
	if !ok {
		// Distinguish "never required" from "required by something else".
		for _, nid := range g.packages {
			node := g.nodes[nid]
			if target.MatchName(node.Pkg) {
				var dependents []string
				for _, depRID := range node.Dependents {
					if req := g.requirements[depRID]; req != nil {
						dependents = append(dependents, g.nodes[req.Requirer].String())
					}
				}
				sort.Strings(dependents)
				return &DependentsError{Target: node.Pkg, Dependents: dependents}
			}
		}
		return fmt.Errorf("%w: %s on %s", ErrNoSuchRequirement, target, group)
	}

	g.deleteRequirement(rid)
	return nil
}

// findRequirement locates a requirement on the node by exact pattern
// equality first, then by unique name match.
func (g *Graph) findRequirement(holder NodeID, target ident.Pattern) (RequirementID, bool) {
	node := g.nodes[holder]

	for _, rid := range node.Requirements {
		if g.requirements[rid].Target.Equal(target) {
			return rid, true
		}
	}

	var byName []RequirementID
	for _, rid := range node.Requirements {
		t := g.requirements[rid].Target
		if t.Name == target.Name &&
			(target.Repository == "" || target.Repository == t.Repository) &&
			(target.Category == "" || target.Category == t.Category) {
			byName = append(byName, rid)
		}
	}
	if len(byName) == 1 {
		return byName[0], true
	}
	return NoRequirement, false
}

// StaticRequirements returns the id of every static requirement in the
// graph whose target name-parts match the pattern, sorted by id. With a
// zero pattern every static requirement is returned.
func (g *Graph) StaticRequirements(target ident.Pattern) []RequirementID {
	var rids []RequirementID
	for rid, req := range g.requirements {
		if req.Kind != KindStatic {
			continue
		}
		if target.Name != "" {
			t := req.Target
			if t.Name != target.Name ||
				(target.Repository != "" && target.Repository != t.Repository) ||
				(target.Category != "" && target.Category != t.Category) {
				continue
			}
		}
		rids = append(rids, rid)
	}
	sort.Slice(rids, func(i, j int) bool { return rids[i] < rids[j] })
	return rids
}

// AddPackage inserts a package node. The package must not already be in
// the graph under the same full name.
func (g *Graph) AddPackage(id ident.ID) (NodeID, error) {
	if _, exists := g.packages[id.FullName()]; exists {
		return NoNode, fmt.Errorf("package %s is already in the graph", id.FullName())
	}

	node := &Node{ID: g.nextNode, Pkg: id, Parent: NoNode}
	g.nextNode++
	g.nodes[node.ID] = node
	g.packages[id.FullName()] = node.ID
	return node.ID, nil
}

// SetFulfiller attaches the package node as the requirement's fulfiller.
// The node's identifier must satisfy the requirement's predicate.
func (g *Graph) SetFulfiller(rid RequirementID, nid NodeID) error {
	req := g.requirements[rid]
	if req == nil {
		return fmt.Errorf("%w: id %d", ErrNoSuchRequirement, rid)
	}
	node := g.nodes[nid]
	if node == nil || node.IsGroup() {
		return fmt.Errorf("fulfiller of %s must be a package node", req.Target)
	}
	if !req.Target.Match(node.Pkg) {
		return fmt.Errorf("%s does not satisfy %s", node.Pkg, req.Target)
	}

	if req.Fulfiller != NoNode {
		g.detachFulfiller(req)
	}
	req.Fulfiller = nid
	node.Dependents = append(node.Dependents, rid)
	return nil
}

// ClearFulfiller detaches the requirement's fulfiller, removing the
// fulfilling package recursively if nothing else depends on it.
func (g *Graph) ClearFulfiller(rid RequirementID) {
	if req := g.requirements[rid]; req != nil {
		g.detachFulfiller(req)
	}
}

func (g *Graph) detachFulfiller(req *Requirement) {
	if req.Fulfiller == NoNode {
		return
	}
	node := g.nodes[req.Fulfiller]
	req.Fulfiller = NoNode
	if node == nil {
		return
	}
	node.Dependents = removeID(node.Dependents, req.ID)
	if !node.IsGroup() && len(node.Dependents) == 0 {
		g.removePackageNode(node)
	}
}

func (g *Graph) removePackageNode(node *Node) {
	for _, rid := range slices.Clone(node.Requirements) {
		g.deleteRequirement(rid)
	}
	delete(g.nodes, node.ID)
	delete(g.packages, node.Pkg.FullName())
}

func (g *Graph) deleteRequirement(rid RequirementID) {
	req := g.requirements[rid]
	if req == nil {
		return
	}
	g.detachFulfiller(req)
	if holder := g.nodes[req.Requirer]; holder != nil {
		holder.Requirements = removeID(holder.Requirements, rid)
	}
	delete(g.requirements, rid)
}

// ResetGroup clears the fulfiller of every requirement held by the named
// group and, recursively, by its child groups. Orphaned packages and the
// automatic requirements they induced go away with the fulfillers; the
// static requirements themselves are kept so the solver can re-derive
// the subtree from fresh cache content.
func (g *Graph) ResetGroup(name string) error {
	gid, ok := g.groups[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchGroup, name)
	}
	g.resetGroupNode(gid)
	return nil
}

func (g *Graph) resetGroupNode(gid NodeID) {
	for _, child := range g.childGroups(gid) {
		g.resetGroupNode(child)
	}
	for _, rid := range slices.Clone(g.nodes[gid].Requirements) {
		g.ClearFulfiller(rid)
	}
}

// UnsolvedRequirements returns the id of every requirement without a
// fulfiller, sorted for deterministic solving.
func (g *Graph) UnsolvedRequirements() []RequirementID {
	var rids []RequirementID
	for rid, req := range g.requirements {
		if !req.Solved() {
			rids = append(rids, rid)
		}
	}
	sort.Slice(rids, func(i, j int) bool { return rids[i] < rids[j] })
	return rids
}

// Clone returns a deep copy sharing nothing with the receiver.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		nextNode:        g.nextNode,
		nextRequirement: g.nextRequirement,
		nodes:           make(map[NodeID]*Node, len(g.nodes)),
		requirements:    make(map[RequirementID]*Requirement, len(g.requirements)),
		groups:          make(map[string]NodeID, len(g.groups)),
		packages:        make(map[ident.FullName]NodeID, len(g.packages)),
	}
	for id, node := range g.nodes {
		copied := *node
		copied.Requirements = slices.Clone(node.Requirements)
		copied.Dependents = slices.Clone(node.Dependents)
		out.nodes[id] = &copied
	}
	for id, req := range g.requirements {
		copied := *req
		out.requirements[id] = &copied
	}
	for name, id := range g.groups {
		out.groups[name] = id
	}
	for name, id := range g.packages {
		out.packages[name] = id
	}
	return out
}

// graphFile is the persisted form: flat, sorted, self-describing.
type graphFile struct {
	NextNode        NodeID         `json:"next_node"`
	NextRequirement RequirementID  `json:"next_requirement"`
	Nodes           []*Node        `json:"nodes"`
	Requirements    []*Requirement `json:"requirements"`
}

// MarshalJSON implements json.Marshaler with a deterministic layout.
func (g *Graph) MarshalJSON() ([]byte, error) {
	file := graphFile{
		NextNode:        g.nextNode,
		NextRequirement: g.nextRequirement,
		Nodes:           make([]*Node, 0, len(g.nodes)),
		Requirements:    make([]*Requirement, 0, len(g.requirements)),
	}
	for _, node := range g.nodes {
		file.Nodes = append(file.Nodes, node)
	}
	for _, req := range g.requirements {
		file.Requirements = append(file.Requirements, req)
	}
	sort.Slice(file.Nodes, func(i, j int) bool { return file.Nodes[i].ID < file.Nodes[j].ID })
	sort.Slice(file.Requirements, func(i, j int) bool { return file.Requirements[i].ID < file.Requirements[j].ID })
	return json.Marshal(file)
}

// UnmarshalJSON implements json.Unmarshaler, rebuilding the derived
// indexes.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var file graphFile
	if err := json.Unmarshal(data, &file); err != nil {
		return err
	}

	g.nextNode = file.NextNode
	g.nextRequirement = file.NextRequirement
	g.nodes = make(map[NodeID]*Node, len(file.Nodes))
	g.requirements = make(map[RequirementID]*Requirement, len(file.Requirements))
	g.groups = make(map[string]NodeID)
	g.packages = make(map[ident.FullName]NodeID)

	for _, node := range file.Nodes {
		g.nodes[node.ID] = node
		if node.IsGroup() {
			g.groups[node.Group] = node.ID
		} else {
			g.packages[node.Pkg.FullName()] = node.ID
		}
	}
	for _, req := range file.Requirements {
		g.requirements[req.ID] = req
	}

	if _, ok := g.groups[ident.RootGroup]; !ok {
		return fmt.Errorf("persisted graph has no %s group", ident.RootGroup)
	}
	return nil
}

// Load reads a graph from disk. A missing file yields a fresh graph.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, err
	}

	g := New()
	if err := json.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("load graph %s: %w", path, err)
	}
	return g, nil
}

// Save writes the graph atomically: the previous file stays intact until
// the new content is fully on disk.
func (g *Graph) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
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

	return os.Rename(tmpName, path)
}
