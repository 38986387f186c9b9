package preset

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherConfig configures the preset file watcher
type WatcherConfig struct {
	// Debounce is how long to wait for more changes before reloading
	Debounce time.Duration

	// Logger for logging events
	Logger *slog.Logger
}

// Watcher reloads a preset store when files under its patterns change.
// Rapid bursts of events (editor saves, file copies) collapse into a
// single reload.
type Watcher struct {
	store    *Store
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration

	// Debouncing: collect changes before reloading
	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op
}

// NewWatcher creates a watcher for the store's configured patterns.
func NewWatcher(store *Store, config WatcherConfig) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	debounce := config.Debounce
	if debounce == 0 {
		debounce = 500 * time.Millisecond
	}

	return &Watcher{
		store:    store,
		watcher:  fsw,
		logger:   logger,
		debounce: debounce,
		pending:  make(map[string]fsnotify.Op),
	}, nil
}

// Start begins watching the directories derived from the store's glob
// patterns. It returns an error when there is nothing to watch.
func (w *Watcher) Start(ctx context.Context) error {
	dirs := watchDirs(w.store.patterns)
	if len(dirs) == 0 {
		return fmt.Errorf("no preset directories to watch")
	}

	for _, dir := range dirs {
		if err := w.addWatchesRecursive(dir); err != nil {
			w.logger.Warn("Failed to watch preset directory",
				"dir", dir,
				"error", err)
		}
	}

	go w.processEvents(ctx)

	w.logger.Info("Preset watcher started",
		"dirs", len(dirs),
		"debounce", w.debounce)

	return nil
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// addWatchesRecursive adds watches to all directories under root
func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Only watch directories
		if !info.IsDir() {
			return nil
		}

		// Skip hidden directories, but never the watch root itself
		if path != root {
			if base := filepath.Base(path); strings.HasPrefix(base, ".") {
				return filepath.SkipDir
			}
		}

		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory",
				"path", path,
				"error", err)
		} else {
			w.logger.Debug("Watching directory", "path", path)
		}

		return nil
	})
}

// processEvents handles fsnotify events with debouncing
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
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flushPending()
		}
	}
}

// handleFSEvent processes a single fsnotify event
func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	path := event.Name

	// Only care about YAML files
	if ext := filepath.Ext(path); ext != ".yaml" && ext != ".yml" {
		// But handle directory creation (for new watches)
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				w.handleNewDirectory(path)
			}
		}
		return
	}

	// Accumulate pending changes
	w.pendingMu.Lock()
	w.pending[path] = event.Op
	w.pendingMu.Unlock()

	w.logger.Debug("Preset change detected",
		"path", path,
		"op", event.Op.String())
}

// handleNewDirectory adds a watch to a newly created directory
func (w *Watcher) handleNewDirectory(path string) {
	if base := filepath.Base(path); strings.HasPrefix(base, ".") {
		return
	}

	if err := w.watcher.Add(path); err != nil {
		w.logger.Warn("Failed to watch new directory",
			"path", path,
			"error", err)
	} else {
		w.logger.Debug("Added watch for new directory", "path", path)
	}
}

// flushPending reloads the store once for all accumulated changes
func (w *Watcher) flushPending() {
	w.pendingMu.Lock()
	changes := len(w.pending)
	if changes == 0 {
		w.pendingMu.Unlock()
		return
	}
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	if err := w.store.Load(); err != nil {
		w.logger.Error("Preset reload failed", "error", err)
		return
	}

	w.logger.Info("Presets reloaded",
		"changes", changes,
		"presets", w.store.Count())
}

// watchDirs derives the directories to watch from glob patterns,
// deduplicated.
func watchDirs(patterns []string) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, pattern := range patterns {
		base := patternBase(pattern)
		if !seen[base] {
			seen[base] = true
			dirs = append(dirs, base)
		}
	}
	return dirs
}

// patternBase returns the directory prefix of a glob pattern, the part
// before the first glob character. For a literal file path it returns
// the containing directory.
func patternBase(pattern string) string {
	globIdx := strings.IndexAny(pattern, "*?[")
	if globIdx == -1 {
		return filepath.Dir(pattern)
	}

	dir := pattern[:globIdx]
	if lastSep := strings.LastIndex(dir, "/"); lastSep > 0 {
		return pattern[:lastSep]
	} else if lastSep == 0 {
		return "/"
	}
	return "."
}
