// Package watch keeps the item store in step with edits made to the vault
// outside the application.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/incremental/internal/scheduler"
)

// DefaultDebounce delays the reconcile pass that follows renames and new
// directories.
const DefaultDebounce = 200 * time.Millisecond

// Syncer rebuilds stored items from notes.
type Syncer interface {
	Resync(ctx context.Context, id string) (scheduler.Change, error)
	Reconcile(ctx context.Context) (scheduler.ReconcileStats, error)
}

// Watcher translates filesystem events under a vault root into resyncs.
type Watcher struct {
	root     string
	sync     Syncer
	logger   *slog.Logger
	debounce time.Duration
}

// New creates a Watcher for root.
func New(root string, s Syncer, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{root: root, sync: s, logger: logger, debounce: DefaultDebounce}
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addTree(fw, w.root); err != nil {
		return err
	}
	w.logger.Info("watch: started", slog.String("root", w.root))

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	reconcileSoon := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
			pending = timer.C
			return
		}
		timer.Reset(w.debounce)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			w.logger.Info("watch: stopped")
			return nil

		case <-pending:
			if _, err := w.sync.Reconcile(ctx); err != nil {
				w.logger.Warn("watch: reconcile failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.ignored(ev.Name) {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addTree(fw, ev.Name); err != nil {
						w.logger.Warn("watch: add dir failed", slog.String("path", ev.Name), slog.String("error", err.Error()))
					}
					reconcileSoon()
					continue
				}
			}
			if !strings.HasSuffix(ev.Name, ".md") {
				continue
			}
			if ev.Op&fsnotify.Rename != 0 {
				reconcileSoon()
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.resync(ctx, ev.Name)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch: error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) resync(ctx context.Context, abs string) {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil {
		return
	}
	id := filepath.ToSlash(rel)
	change, err := w.sync.Resync(ctx, id)
	if err != nil {
		w.logger.Warn("watch: resync failed", slog.String("id", id), slog.String("error", err.Error()))
		return
	}
	if change != scheduler.Unchanged {
		w.logger.Debug("watch: resynced", slog.String("id", id), slog.String("change", change.String()))
	}
}

// ignored reports whether any path element below root is hidden, which
// covers editor swap files and the vault's own temp files.
func (w *Watcher) ignored(abs string) bool {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil {
		return true
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." {
			return true
		}
	}
	return false
}

func addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.Add(p)
	})
}
