package transaction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"hull/pkg/depgraph"
	"hull/pkg/ident"
)

// partialMarker flags a staging directory left behind by a failed undo
// chain. Its presence poisons the engine until the operator intervenes.
const partialMarker = "partial-apply"

// stagedPackage is one archive downloaded, verified and unpacked, ready
// to be linked into the install root.
type stagedPackage struct {
	id      ident.ID
	files   []string
	archive string
	tree    string
}

// staging is the per-plan working directory.
type staging struct {
	dir      string
	packages map[ident.ID]*stagedPackage
}

func (e *Engine) newStaging() (*staging, error) {
	dir := filepath.Join(e.paths.Downloaded, uuid.NewString())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &staging{dir: dir, packages: make(map[ident.ID]*stagedPackage)}, nil
}

// undoDir is where apply parks original file contents before replacing
// them, so a failed step can be rolled back.
func (s *staging) undoDir() string {
	return filepath.Join(s.dir, "undo")
}

// backupPath maps an install-root-relative path into the undo area.
func (s *staging) backupPath(rel string) string {
	return filepath.Join(s.undoDir(), rel)
}

func (s *staging) remove() error {
	return os.RemoveAll(s.dir)
}

// markPartial pins the staging directory as evidence of a partial apply.
func (s *staging) markPartial(reason string) {
	_ = os.WriteFile(filepath.Join(s.dir, partialMarker), []byte(reason+"\n"), 0644) //nolint:errcheck
}

// detachedMarker flags a staging directory produced by the standalone
// download command; the crash-recovery sweep leaves those alone.
const detachedMarker = "detached"

func (s *staging) markDetached() {
	_ = os.WriteFile(filepath.Join(s.dir, detachedMarker), nil, 0644) //nolint:errcheck
}

// sweepStaging discards staging directories of plans that never
// committed. A directory carrying the partial marker is left alone and
// reported instead: it holds the only copy of replaced file contents.
func (e *Engine) sweepStaging() error {
	entries, err := os.ReadDir(e.paths.Downloaded)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(e.paths.Downloaded, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, partialMarker)); err == nil {
			return fmt.Errorf("%w (staging kept at %s)", ErrPartialApply, dir)
		}
		if _, err := os.Stat(filepath.Join(dir, detachedMarker)); err == nil {
			continue
		}
		e.logger.Info("discarding staging directory of incomplete plan", zap.String("dir", dir))
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}
	return nil
}

// stage downloads, verifies and unpacks the archive of every package the
// plan installs. Downloads run in parallel, bounded by the engine's pool.
func (e *Engine) stage(ctx context.Context, st *staging, plan depgraph.Plan) error {
	var targets []ident.ID
	for _, step := range plan.Steps {
		if id, ok := step.Target(); ok {
			targets = append(targets, id)
		}
	}

	sem := semaphore.NewWeighted(e.parallel)
	g, ctx := errgroup.WithContext(ctx)

	for _, id := range targets {
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			staged, err := e.stageOne(ctx, st, id)
			if err != nil {
				return err
			}
			e.mu.Lock()
			st.packages[id] = staged
			e.mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// stageOne fetches one archive from the first reachable mirror, checks
// its hash against the cache's record and unpacks it.
func (e *Engine) stageOne(ctx context.Context, st *staging, id ident.ID) (*stagedPackage, error) {
	meta, err := e.cache.Lookup(id)
	if err != nil {
		return nil, err
	}

	pkgDir := filepath.Join(st.dir, safeName(id))
	if err := os.MkdirAll(pkgDir, 0755); err != nil {
		return nil, err
	}
	archivePath := filepath.Join(pkgDir, "archive.tar.gz")

	var lastErr error
	downloaded := false
	for _, url := range meta.URLs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.download(ctx, url, archivePath); err != nil {
			e.logger.Warn("download failed", zap.String("url", url), zap.Error(err))
			lastErr = err
			continue
		}
		downloaded = true
		break
	}
	if !downloaded {
		return nil, &ArchiveUnavailableError{Pkg: id, Err: lastErr}
	}

	sum, err := sha256File(archivePath)
	if err != nil {
		return nil, err
	}
	if meta.SHA256 != "" && sum != meta.SHA256 {
		return nil, &CorruptArchiveError{Pkg: id, Expected: meta.SHA256, Actual: sum}
	}

	tree := filepath.Join(pkgDir, "tree")
	if err := os.MkdirAll(tree, 0755); err != nil {
		return nil, err
	}
	if err := e.archive.Unpack(ctx, archivePath, tree); err != nil {
		return nil, fmt.Errorf("unpack %s: %w", id, err)
	}

	e.logger.Debug("staged package",
		zap.String("package", id.String()),
		zap.String("sha256", sum),
		zap.Int("files", len(meta.Files)))

	return &stagedPackage{
		id:      id,
		files:   append([]string(nil), meta.Files...),
		archive: archivePath,
		tree:    tree,
	}, nil
}

func (e *Engine) download(ctx context.Context, url, dst string) error {
	body, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, body); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// safeName flattens a package id into a directory name.
func safeName(id ident.ID) string {
	return strings.NewReplacer("::", "_", "/", "_", "#", "_").Replace(id.String())
}
