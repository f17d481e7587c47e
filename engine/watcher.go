package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher observes the project tree and triggers engine rebuilds. Filesystem
// events are debounced: a burst of changes produces one rebuild after the
// tree has been quiet for the debounce delay.
type Watcher struct {
	engine    *Engine
	root      string
	configDir string
	debounce  time.Duration
	logger    *slog.Logger
	watcher   *fsnotify.Watcher
	excludes  map[string]bool

	pendingMu sync.Mutex
	pending   bool
}

// NewWatcher creates a watcher over the engine's project root. A zero
// debounce selects the default delay.
func NewWatcher(e *Engine, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		engine:    e,
		root:      e.ProjectRoot(),
		configDir: filepath.Dir(e.ConfigPath()),
		debounce:  debounce,
		logger:    logger,
		watcher:   fsw,
		excludes: map[string]bool{
			".git":         true,
			"node_modules": true,
			"vendor":       true,
			"target":       true,
		},
	}, nil
}

// Start adds recursive watches and begins processing events until the context
// is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addWatchesRecursive(w.root); err != nil {
		return err
	}

	// The config dir is hidden (.config/...) and skipped by the recursive
	// walk, but config and local rules edits must still trigger rebuilds.
	if err := w.watcher.Add(w.configDir); err != nil {
		w.logger.Warn("Failed to watch config directory",
			slog.String("path", w.configDir),
			slog.String("error", err.Error()))
	}

	go w.processEvents(ctx)

	w.logger.Info("File watcher started",
		slog.String("root", w.root),
		slog.Duration("debounce", w.debounce))
	return nil
}

// Stop closes the underlying filesystem watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}

		base := filepath.Base(path)
		if path != root && (w.excludes[base] || strings.HasPrefix(base, ".")) {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return nil
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", slog.String("error", err.Error()))

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	path := event.Name

	if filepath.Dir(path) == w.configDir {
		w.pendingMu.Lock()
		w.pending = true
		w.pendingMu.Unlock()
		w.logger.Debug("Config change detected", slog.String("path", path))
		return
	}

	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if w.excludes[part] || (strings.HasPrefix(part, ".") && part != ".") {
			return
		}
	}

	// New directories need their own watch for events beneath them.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				w.logger.Warn("Failed to watch new directory",
					slog.String("path", path),
					slog.String("error", err.Error()))
			}
			return
		}
	}

	w.pendingMu.Lock()
	w.pending = true
	w.pendingMu.Unlock()

	w.logger.Debug("Change detected",
		slog.String("path", rel),
		slog.String("op", event.Op.String()))
}

// flushPending triggers one rebuild covering all changes seen since the last
// flush. Which files changed does not matter; the rebuild rescans everything.
func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	dirty := w.pending
	w.pending = false
	w.pendingMu.Unlock()

	if !dirty {
		return
	}

	if _, _, err := w.engine.Rebuild(ctx); err != nil {
		w.logger.Error("Rebuild after file change failed", slog.String("error", err.Error()))
	}
}
