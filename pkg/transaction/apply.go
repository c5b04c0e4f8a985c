package transaction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"hull/pkg/depgraph"
	"hull/pkg/ident"
	"hull/pkg/installed"
)

// undoKind tags one entry of the per-plan undo journal.
type undoKind int

const (
	undoCreatedFile      undoKind = iota // delete the file we wrote
	undoReplacedFile                     // move the parked original back
	undoRecordedManifest                 // restore the previous manifest, or drop ours
	undoRemovedManifest                  // re-record the manifest we deleted
)

// undoRecord is the information needed to reverse one mutation.
type undoRecord struct {
	kind   undoKind
	target string // absolute path in the install root
	backup string // absolute path in the staging undo area
	id     ident.ID
	prev   *installed.Manifest
}

// apply executes the plan's steps in order. A failing step triggers the
// undo chain for everything already done; if the chain itself fails the
// staging directory is pinned and the engine reports a partial apply.
//
// Cancellation is honored between steps only: the in-flight step always
// completes so the filesystem stays consistent.
func (e *Engine) apply(ctx context.Context, st *staging, plan depgraph.Plan) error {
	var journal []undoRecord

	for k, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return e.failApply(st, journal, err)
		}

		e.logger.Info("applying step",
			zap.Int("step", k+1),
			zap.Int("of", len(plan.Steps)),
			zap.String("action", step.String()))

		if err := e.applyStep(st, step, &journal); err != nil {
			return e.failApply(st, journal, fmt.Errorf("step %q: %w", step, err))
		}
	}
	return nil
}

func (e *Engine) failApply(st *staging, journal []undoRecord, cause error) error {
	if undoErr := e.rollback(journal); undoErr != nil {
		st.markPartial(fmt.Sprintf("apply failed: %v; undo failed: %v", cause, undoErr))
		e.logger.Error("undo chain failed, staging pinned",
			zap.String("staging", st.dir),
			zap.Error(undoErr))
		return fmt.Errorf("%w: %v (undo also failed: %v)", ErrPartialApply, cause, undoErr)
	}
	return cause
}

func (e *Engine) applyStep(st *staging, step depgraph.Step, journal *[]undoRecord) error {
	switch step.Op {
	case depgraph.OpInstall:
		return e.installPackage(st, step.To, journal)
	case depgraph.OpRemove:
		return e.removePackage(st, step.From, journal)
	case depgraph.OpUpgrade, depgraph.OpDowngrade:
		return e.replacePackage(st, step.From, step.To, journal)
	}
	return fmt.Errorf("unknown step op %q", step.Op)
}

// installPackage links every staged file into the install root and
// records the manifest once all files are in place.
func (e *Engine) installPackage(st *staging, id ident.ID, journal *[]undoRecord) error {
	staged := st.packages[id]
	if staged == nil {
		return fmt.Errorf("%s was not staged", id)
	}

	if err := e.installFiles(st, staged, journal); err != nil {
		return err
	}
	return e.recordManifest(staged, journal)
}

// removePackage parks the package's files in the undo area and deletes
// its manifest. Paths another installed package has taken over (a new
// version installed earlier in the same plan) are left alone.
func (e *Engine) removePackage(st *staging, id ident.ID, journal *[]undoRecord) error {
	m, err := e.installed.Get(id)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("%s is not installed", id)
	}

	claimed, err := e.pathsClaimedByOthers(id)
	if err != nil {
		return err
	}

	if err := e.removeFiles(st, m.Files, claimed, journal); err != nil {
		return err
	}

	*journal = append(*journal, undoRecord{kind: undoRemovedManifest, prev: m})
	return e.installed.Remove(id)
}

// replacePackage upgrades or downgrades in place: new files first (the
// originals are parked, so shared paths never go absent), then the old
// version's leftover files, then the manifests.
func (e *Engine) replacePackage(st *staging, from, to ident.ID, journal *[]undoRecord) error {
	staged := st.packages[to]
	if staged == nil {
		return fmt.Errorf("%s was not staged", to)
	}
	oldManifest, err := e.installed.Get(from)
	if err != nil {
		return err
	}
	if oldManifest == nil {
		return fmt.Errorf("%s is not installed", from)
	}

	if err := e.installFiles(st, staged, journal); err != nil {
		return err
	}

	newFiles := make(map[string]bool, len(staged.files))
	for _, f := range staged.files {
		newFiles[f] = true
	}
	var leftover []string
	for _, f := range oldManifest.Files {
		if !newFiles[f] {
			leftover = append(leftover, f)
		}
	}

	claimed, err := e.pathsClaimedByOthers(from)
	if err != nil {
		return err
	}
	if err := e.removeFiles(st, leftover, claimed, journal); err != nil {
		return err
	}

	if err := e.recordManifest(staged, journal); err != nil {
		return err
	}
	if from == to {
		// Reinstall: the freshly recorded manifest is the old one.
		return nil
	}
	*journal = append(*journal, undoRecord{kind: undoRemovedManifest, prev: oldManifest})
	return e.installed.Remove(from)
}

func (e *Engine) installFiles(st *staging, staged *stagedPackage, journal *[]undoRecord) error {
	for _, rel := range staged.files {
		target := filepath.Join(e.paths.Root, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}

		if _, err := os.Lstat(target); err == nil {
			backup := st.backupPath(rel)
			if err := os.MkdirAll(filepath.Dir(backup), 0755); err != nil {
				return err
			}
			if err := os.Rename(target, backup); err != nil {
				return err
			}
			*journal = append(*journal, undoRecord{kind: undoReplacedFile, target: target, backup: backup})
		}

		if err := moveFile(filepath.Join(staged.tree, rel), target); err != nil {
			return err
		}
		*journal = append(*journal, undoRecord{kind: undoCreatedFile, target: target})
	}
	return nil
}

func (e *Engine) removeFiles(st *staging, files []string, claimed map[string]bool, journal *[]undoRecord) error {
	for _, rel := range files {
		if claimed[rel] {
			continue
		}
		target := filepath.Join(e.paths.Root, rel)
		if _, err := os.Lstat(target); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}

		backup := st.backupPath(rel)
		if err := os.MkdirAll(filepath.Dir(backup), 0755); err != nil {
			return err
		}
		if err := os.Rename(target, backup); err != nil {
			return err
		}
		*journal = append(*journal, undoRecord{kind: undoReplacedFile, target: target, backup: backup})

		e.pruneEmptyDirs(filepath.Dir(target))
	}
	return nil
}

func (e *Engine) recordManifest(staged *stagedPackage, journal *[]undoRecord) error {
	prev, err := e.installed.Get(staged.id)
	if err != nil {
		return err
	}

	sum, err := sha256File(staged.archive)
	if err != nil {
		return err
	}

	m := installed.Manifest{
		ID:          staged.id,
		Files:       append([]string(nil), staged.files...),
		SHA256:      sum,
		InstalledAt: time.Now(),
	}
	if err := e.installed.Record(m); err != nil {
		return err
	}
	*journal = append(*journal, undoRecord{kind: undoRecordedManifest, id: staged.id, prev: prev})
	return nil
}

// pathsClaimedByOthers returns the paths listed by any installed
// manifest other than id's own.
func (e *Engine) pathsClaimedByOthers(id ident.ID) (map[string]bool, error) {
	manifests, err := e.installed.List()
	if err != nil {
		return nil, err
	}
	claimed := make(map[string]bool)
	for _, m := range manifests {
		if m.ID == id {
			continue
		}
		for _, path := range m.Files {
			claimed[path] = true
		}
	}
	return claimed, nil
}

// pruneEmptyDirs removes now-empty directories from dir up to the
// install root. os.Remove refuses non-empty directories, which is the
// stopping condition.
func (e *Engine) pruneEmptyDirs(dir string) {
	root := filepath.Clean(e.paths.Root)
	for filepath.Clean(dir) != root && len(filepath.Clean(dir)) > len(root) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// rollback unwinds the journal newest-first.
func (e *Engine) rollback(journal []undoRecord) error {
	var errs []error
	for i := len(journal) - 1; i >= 0; i-- {
		rec := journal[i]
		var err error
		switch rec.kind {
		case undoCreatedFile:
			err = os.Remove(rec.target)
		case undoReplacedFile:
			if mkErr := os.MkdirAll(filepath.Dir(rec.target), 0755); mkErr != nil {
				err = mkErr
				break
			}
			err = os.Rename(rec.backup, rec.target)
		case undoRecordedManifest:
			if rec.prev != nil {
				err = e.installed.Record(*rec.prev)
			} else {
				err = e.installed.Remove(rec.id)
			}
		case undoRemovedManifest:
			err = e.installed.Record(*rec.prev)
		}
		if err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// moveFile renames src to dst, falling back to a copy-then-rename in
// dst's directory when staging and install root live on different
// filesystems. Either way the file appears at dst atomically.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	info, err := os.Lstat(src)
	if err != nil {
		return err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		link, err := os.Readlink(src)
		if err != nil {
			return err
		}
		os.Remove(dst) //nolint:errcheck
		return os.Symlink(link, dst)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".hull-tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(info.Mode() & os.ModePerm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, dst)
}
