package transaction

import (
	"os"
	"path/filepath"

	"hull/pkg/depgraph"
	"hull/pkg/ident"
)

// preflight validates a staged plan against the filesystem before any
// mutation: no path may end up claimed by two packages, and no step may
// overwrite a file the package manager does not know about.
func (e *Engine) preflight(st *staging, plan depgraph.Plan) error {
	manifests, err := e.installed.List()
	if err != nil {
		return err
	}

	leaving := make(map[ident.ID]bool)
	for _, step := range plan.Steps {
		if id, ok := step.Removed(); ok {
			leaving[id] = true
		}
	}

	// Union of every file owned after the plan completes: surviving
	// installed packages plus the plan's targets.
	owner := make(map[string]ident.ID)
	for _, m := range manifests {
		if leaving[m.ID] {
			continue
		}
		for _, path := range m.Files {
			if prev, ok := owner[path]; ok && prev.FullName() != m.ID.FullName() {
				return &FileConflictError{Path: path, A: prev, B: m.ID}
			}
			owner[path] = m.ID
		}
	}
	for _, step := range plan.Steps {
		id, ok := step.Target()
		if !ok {
			continue
		}
		staged := st.packages[id]
		if staged == nil {
			continue
		}
		for _, path := range staged.files {
			if prev, ok := owner[path]; ok && prev.FullName() != id.FullName() {
				return &FileConflictError{Path: path, A: prev, B: id}
			}
			owner[path] = id
		}
	}

	// Every path a step writes must be fresh, or already accounted for
	// by the installed manifests (including a package this very plan
	// removes or replaces).
	known, err := e.installed.OwnedPaths()
	if err != nil {
		return err
	}
	for _, step := range plan.Steps {
		id, ok := step.Target()
		if !ok {
			continue
		}
		staged := st.packages[id]
		if staged == nil {
			continue
		}
		for _, path := range staged.files {
			if _, tracked := known[path]; tracked {
				continue
			}
			onDisk := filepath.Join(e.paths.Root, path)
			if info, err := os.Lstat(onDisk); err == nil && !info.IsDir() {
				return &UntrackedFileError{Path: path, Pkg: id}
			}
		}
	}
	return nil
}
