package staleness

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/franalgaba/alexandria/internal/logging"
	"github.com/franalgaba/alexandria/internal/memory"
)

// debounce coalesces bursts of filesystem events (editors frequently write
// a file multiple times per save) before triggering a recheck.
const debounce = 300 * time.Millisecond

// Watcher opportunistically re-checks memories whose code refs live under
// changed files, instead of waiting for the next full AutoVerifyUnchanged
// pass. This is optional infrastructure (spec §9 Open Question: a
// file-watch mode is not required but improves staleness latency) — it
// degrades to no-op if fsnotify fails to initialise on the platform.
type Watcher struct {
	root    string
	applier *Applier
	store   *memory.Store
	watcher *fsnotify.Watcher
}

// NewWatcher constructs a Watcher rooted at projectRoot. Returns an error
// only if the underlying OS file-watch primitive could not be created;
// callers should treat that as "staleness falls back to periodic
// AutoVerifyUnchanged", not a fatal condition.
func NewWatcher(projectRoot string, store *memory.Store, applier *Applier) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("staleness: watcher init failed: %w", err)
	}
	return &Watcher{root: projectRoot, applier: applier, store: store, watcher: w}, nil
}

// Watch adds every directory under root recursively (skipping .git and
// other_examples-style vendor dumps is left to callers via ignoreDirs) and
// blocks, reacting to changes until ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context, ignoreDirs []string) error {
	if err := w.addTree(w.root, ignoreDirs); err != nil {
		return fmt.Errorf("staleness: failed to register watch tree: %w", err)
	}
	defer w.watcher.Close()

	pending := map[string]time.Time{}
	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pending[event.Name] = time.Now()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logging.Get(logging.CategoryStaleness).Warn("watcher error: %v", err)
		case <-ticker.C:
			if len(pending) == 0 {
				continue
			}
			w.recheckChanged(ctx, pending)
			pending = map[string]time.Time{}
		}
	}
}

func (w *Watcher) addTree(root string, ignoreDirs []string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		for _, ignored := range ignoreDirs {
			if filepath.Base(path) == ignored {
				return filepath.SkipDir
			}
		}
		return w.watcher.Add(path)
	})
}

// recheckChanged re-verifies any active memory whose code refs touch one
// of the changed relative paths.
func (w *Watcher) recheckChanged(ctx context.Context, changed map[string]time.Time) {
	memories, err := w.store.List(ctx, memory.ListFilter{Status: []memory.Status{memory.StatusActive}})
	if err != nil {
		logging.Get(logging.CategoryStaleness).Warn("recheck list failed: %v", err)
		return
	}
	for _, m := range memories {
		if len(m.CodeRefs) == 0 || !touchesAny(m, changed, w.root) {
			continue
		}
		result := w.applier.check.CheckMemory(ctx, m)
		switch result.Status {
		case RefStale:
			_ = w.applier.markStale(ctx, result)
		case RefVerified:
			_ = w.applier.markVerified(ctx, result, "")
		}
	}
}

func touchesAny(m memory.MemoryObject, changed map[string]time.Time, root string) bool {
	for _, ref := range m.CodeRefs {
		absRef := filepath.Join(root, ref.Path)
		for changedPath := range changed {
			if absRef == changedPath || strings.HasPrefix(changedPath, absRef+string(filepath.Separator)) {
				return true
			}
		}
	}
	return false
}
