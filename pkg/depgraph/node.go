package depgraph

import "hull/pkg/ident"

// NodeID identifies a node inside one graph. IDs are stable across
// serialization and never reused within a graph's lifetime.
type NodeID int64

// NoNode is the absent node id.
const NoNode NodeID = -1

// Node is a vertex of the dependency graph: either a group (a named,
// ordered list of requirements) or one concrete package.
type Node struct {
	ID NodeID `json:"id"`

	// Group is the group name (`@root`, `@proj`, ...); empty for
	// package nodes.
	Group string `json:"group,omitempty"`

	// Pkg is the concrete package identifier; zero for group nodes.
	Pkg ident.ID `json:"pkg,omitzero"`

	// Parent is the enclosing group for group nodes. NoNode for the
	// root group and for package nodes.
	Parent NodeID `json:"parent"`

	// Requirements are this node's outgoing requirements, in insertion
	// order. For groups the order is the user's; for packages it is the
	// declaration order of the version's dependencies.
	Requirements []RequirementID `json:"requirements"`

	// Dependents are the requirements this node currently fulfills.
	Dependents []RequirementID `json:"dependents"`
}

// IsGroup reports whether the node is a group.
func (n *Node) IsGroup() bool {
	return n.Group != ""
}

func (n *Node) String() string {
	if n.IsGroup() {
		return n.Group
	}
	return n.Pkg.String()
}

func removeID[T comparable](ids []T, id T) []T {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
