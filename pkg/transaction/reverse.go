package transaction

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"hull/pkg/depgraph"
)

// Reverse unwinds the operation log down to (but not past) id: every
// newer entry's plan is inverted and applied, newest first, and the log
// is truncated so id is the latest entry.
//
// Before any mutation, every archive the inverse plans would have to
// re-install is looked up in the cache; a missing one aborts the whole
// reverse with archive-unavailable.
func (e *Engine) Reverse(ctx context.Context, id uint64) error {
	if err := e.sweepStaging(); err != nil {
		return err
	}

	// The pivot must exist unless we are unwinding the entire log.
	if id != 0 {
		if _, err := e.log.Get(id); err != nil {
			return err
		}
	}

	entries, err := e.log.After(id)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("nothing to reverse: %d is already the latest operation", id)
	}

	// Precondition: every package a reversal re-installs is available.
	for _, entry := range entries {
		for _, target := range entry.Plan.Inverse().Targets() {
			if _, err := e.cache.Lookup(target); err != nil {
				return &ArchiveUnavailableError{Pkg: target, Err: err}
			}
		}
	}

	for i, entry := range entries {
		inverse := entry.Plan.Inverse()
		e.logger.Info("reversing operation",
			zap.Uint64("id", entry.ID),
			zap.String("command", entry.Command),
			zap.Int("steps", len(inverse.Steps)))

		// The graph to restore is the state before this entry: the next
		// older entry's snapshot, or an empty graph at the log's start.
		var restored *depgraph.Graph
		switch {
		case i+1 < len(entries):
			restored, err = graphFromSnapshot(entries[i+1].Graph)
		case id != 0:
			pivot, getErr := e.log.Get(id)
			if getErr != nil {
				return getErr
			}
			restored, err = graphFromSnapshot(pivot.Graph)
		default:
			restored = depgraph.New()
		}
		if err != nil {
			return fmt.Errorf("restore graph for operation %d: %w", entry.ID, err)
		}

		if err := e.reverseOne(ctx, inverse, restored, entry.ID); err != nil {
			return err
		}
	}
	return nil
}

// reverseOne applies one inverse plan and settles the bookkeeping: the
// restored graph becomes current and the reversed entry leaves the log.
// Progress is persisted per entry, so an interrupted multi-entry reverse
// leaves a consistent shorter log.
func (e *Engine) reverseOne(ctx context.Context, inverse depgraph.Plan, restored *depgraph.Graph, entryID uint64) error {
	st, err := e.newStaging()
	if err != nil {
		return err
	}

	if err := e.stage(ctx, st, inverse); err != nil {
		st.remove() //nolint:errcheck
		return err
	}
	if err := e.preflight(st, inverse); err != nil {
		st.remove() //nolint:errcheck
		return err
	}
	if err := e.apply(ctx, st, inverse); err != nil {
		if !isPartial(err) {
			st.remove() //nolint:errcheck
		}
		return err
	}

	if err := restored.Save(e.paths.DepGraph); err != nil {
		st.markPartial(fmt.Sprintf("graph restore failed: %v", err))
		return fmt.Errorf("%w: graph restore failed: %v", ErrPartialApply, err)
	}
	if err := e.log.TruncateAfter(entryID - 1); err != nil {
		st.markPartial(fmt.Sprintf("log truncation failed: %v", err))
		return fmt.Errorf("%w: log truncation failed: %v", ErrPartialApply, err)
	}

	st.remove() //nolint:errcheck
	return nil
}

func graphFromSnapshot(snapshot json.RawMessage) (*depgraph.Graph, error) {
	if len(snapshot) == 0 {
		return nil, fmt.Errorf("log entry carries no graph snapshot")
	}
	g := depgraph.New()
	if err := json.Unmarshal(snapshot, g); err != nil {
		return nil, err
	}
	return g, nil
}
