package depgraph

import (
	"errors"
	"fmt"
	"strings"

	"hull/pkg/ident"
)

var (
	// ErrNoSuchGroup is returned when a group name is not in the graph.
	ErrNoSuchGroup = errors.New("no such group")

	// ErrGroupExists is returned when creating a group that already exists.
	ErrGroupExists = errors.New("group already exists")

	// ErrGroupNotEmpty is returned when deleting a non-empty group
	// without force.
	ErrGroupNotEmpty = errors.New("group is not empty")

	// ErrDuplicateRequirement is returned when a node already holds an
	// identical requirement (same target, same predicate, same kind).
	ErrDuplicateRequirement = errors.New("duplicate requirement")

	// ErrNoSuchRequirement is returned when a requirement cannot be
	// found on the named group.
	ErrNoSuchRequirement = errors.New("no such requirement")
)

// UnresolvableError reports a requirement with no candidate in the cache.
type UnresolvableError struct {
	Requirer string
	Target   ident.Pattern
}

func (e *UnresolvableError) Error() string {
	return fmt.Sprintf("unresolvable requirement %s (required by %s)", e.Target, e.Requirer)
}

// ConflictError reports that a requirement cannot be satisfied by the
// version of the package already chosen elsewhere in the graph. The
// greedy solver does not backtrack; both constraints are named so the
// user can untangle them.
type ConflictError struct {
	Name     string
	Existing ident.ID
	Req      ident.Pattern
	Requirer string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting constraints on %s: %s is already selected, but %s requires %s",
		e.Name, e.Existing, e.Requirer, e.Req.Req)
}

// DependentsError reports an attempt to remove a package other installed
// packages still depend on.
type DependentsError struct {
	Target     ident.ID
	Dependents []string
}

func (e *DependentsError) Error() string {
	return fmt.Sprintf("%s is required by %s", e.Target, strings.Join(e.Dependents, ", "))
}
