package indexing

import (
	"context"
	"io/fs"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bombeindex/bombe/internal/config"
	"github.com/bombeindex/bombe/internal/types"
)

// DefaultWatchDebounce is how long the watcher waits after the last event
// in a burst before triggering a re-index, coalescing editor saves that
// fire multiple fs events per write.
const DefaultWatchDebounce = 300 * time.Millisecond

// Watcher drives incremental re-indexing from filesystem change events,
// adapting the teacher's fsnotify-driven debounced watcher
// (internal/indexing/watcher.go) to Bombe's FileChange/IncrementalIndex
// shape instead of the teacher's own FileEventType callbacks.
type Watcher struct {
	pipeline *Pipeline
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]types.FileChangeStatus
	timer   *time.Timer
}

// NewWatcher builds a Watcher bound to pipeline, using debounce (or
// DefaultWatchDebounce if zero).
func NewWatcher(pipeline *Pipeline, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	return &Watcher{pipeline: pipeline, debounce: debounce, pending: map[string]types.FileChangeStatus{}}
}

// Run watches pipeline.Root for changes until ctx is cancelled, calling
// onRun after each debounced incremental index completes.
func (w *Watcher) Run(ctx context.Context, onRun func(types.IndexStats, error)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addRecursive(fw, w.pipeline.Root, w.pipeline.Rules); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.recordEvent(ctx, event, onRun)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Printf("indexing: watch error: %v", err)
		}
	}
}

func (w *Watcher) recordEvent(ctx context.Context, event fsnotify.Event, onRun func(types.IndexStats, error)) {
	rel, err := filepath.Rel(w.pipeline.Root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if w.pipeline.Rules.ShouldIgnore(rel, false) {
		return
	}

	status := types.ChangeModified
	if event.Op.Has(fsnotify.Remove) {
		status = types.ChangeDeleted
	} else if event.Op.Has(fsnotify.Create) {
		status = types.ChangeAdded
	}

	w.mu.Lock()
	w.pending[rel] = status
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() { w.flush(ctx, onRun) })
	w.mu.Unlock()
}

func (w *Watcher) flush(ctx context.Context, onRun func(types.IndexStats, error)) {
	w.mu.Lock()
	changes := make([]types.FileChange, 0, len(w.pending))
	for path, status := range w.pending {
		changes = append(changes, types.FileChange{Status: status, Path: path})
	}
	w.pending = map[string]types.FileChangeStatus{}
	w.mu.Unlock()

	if len(changes) == 0 {
		return
	}
	stats, err := w.pipeline.IncrementalIndex(ctx, changes)
	if onRun != nil {
		onRun(stats, err)
	}
}

// addRecursive registers every non-ignored directory under root with fw,
// since fsnotify watches are not recursive by default.
func addRecursive(fw *fsnotify.Watcher, root string, rules *config.IgnoreRules) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path == root {
			return fw.Add(path)
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rules.ShouldIgnore(rel, true) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}
