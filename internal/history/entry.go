// Package history is the operation log: the append-only record of every
// committed transaction plan, keyed by a strictly increasing id. It is
// what `log` renders and what `reverse` walks.
package history

import (
	"encoding/json"
	"fmt"
	"time"

	"hull/pkg/depgraph"
)

// Entry is one committed operation.
type Entry struct {
	// ID is assigned by the store and strictly increases across the
	// life of the log, including across program runs.
	ID uint64 `json:"id"`

	Timestamp time.Time `json:"timestamp"`

	// Command is the user command that produced the plan, for display.
	Command string `json:"command"`

	Plan depgraph.Plan `json:"plan"`

	// Graph is the dependency graph as committed by this operation.
	// Reverse restores it when unwinding past the entry.
	Graph json.RawMessage `json:"graph,omitempty"`
}

// NewEntry creates an entry ready to be appended; the store assigns the id.
func NewEntry(command string, plan depgraph.Plan, graph *depgraph.Graph) (*Entry, error) {
	snapshot, err := json.Marshal(graph)
	if err != nil {
		return nil, fmt.Errorf("snapshot graph: %w", err)
	}
	return &Entry{
		Timestamp: time.Now(),
		Command:   command,
		Plan:      plan,
		Graph:     snapshot,
	}, nil
}

// FormatTime returns a human-readable timestamp.
func (e *Entry) FormatTime() string {
	return e.Timestamp.Format("2006-01-02 15:04:05")
}

// Summary returns a one-line description of the operation.
func (e *Entry) Summary() string {
	return fmt.Sprintf("%d  %s  %s  (%d steps)", e.ID, e.FormatTime(), e.Command, len(e.Plan.Steps))
}
