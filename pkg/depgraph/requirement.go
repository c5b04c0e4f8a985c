package depgraph

import "hull/pkg/ident"

// RequirementID identifies a requirement inside one graph.
type RequirementID int64

// NoRequirement is the absent requirement id.
const NoRequirement RequirementID = -1

// Kind distinguishes who owns a requirement.
type Kind string

const (
	// KindStatic marks a requirement authored by the user. Static
	// requirements are never removed implicitly.
	KindStatic Kind = "static"

	// KindAutomatic marks a requirement induced by a package's declared
	// dependencies. It is owned by its requirer and goes away with it.
	KindAutomatic Kind = "automatic"
)

// Requirement is an edge from a requirer node to a package pattern,
// optionally fulfilled by exactly one package node.
type Requirement struct {
	ID RequirementID `json:"id"`

	// Requirer is the node holding this requirement.
	Requirer NodeID `json:"requirer"`

	// Target selects the acceptable packages.
	Target ident.Pattern `json:"target"`

	Kind Kind `json:"kind"`

	// Fulfiller is the package node satisfying this requirement, or
	// NoNode while unsolved. Invariant: when set, the fulfiller's
	// identifier matches Target.
	Fulfiller NodeID `json:"fulfiller"`
}

// Solved reports whether the requirement has a fulfiller.
func (r *Requirement) Solved() bool {
	return r.Fulfiller != NoNode
}
