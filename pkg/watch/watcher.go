// Package watch re-runs analysis when C/C++ sources change on disk.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/panbanda/c3ms/pkg/config"
	"github.com/panbanda/c3ms/pkg/parser"
)

// DefaultDebounce is how long a file must stay quiet before it is reported.
const DefaultDebounce = 500 * time.Millisecond

// Watcher monitors inputs for changes and reports them in debounced batches.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	config    *config.Config
	debounce  time.Duration
	logger    *slog.Logger

	// files are explicitly named inputs; trees are directories whose
	// sources are all of interest.
	files map[string]bool
	trees []string

	mu      sync.Mutex
	pending map[string]time.Time
}

// NewWatcher creates a watcher. A non-positive debounce uses DefaultDebounce.
func NewWatcher(cfg *config.Config, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{
		fsWatcher: fsWatcher,
		config:    cfg,
		debounce:  debounce,
		logger:    logger,
		files:     make(map[string]bool),
		pending:   make(map[string]time.Time),
	}, nil
}

// Add registers inputs. A file is watched through its directory. A
// directory is watched with all its subdirectories when recursive is set.
// Directories without recursive are ignored, as the analyzer does not
// expand them either.
func (w *Watcher) Add(inputs []string, recursive bool) error {
	for _, in := range inputs {
		path, err := filepath.Abs(in)
		if err != nil {
			return err
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			w.files[path] = true
			if err := w.fsWatcher.Add(filepath.Dir(path)); err != nil {
				return err
			}
			continue
		}
		if !recursive {
			continue
		}
		w.trees = append(w.trees, path)
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return nil
			}
			if p != path && slices.Contains(w.config.Exclude.Dirs, d.Name()) {
				return filepath.SkipDir
			}
			return w.fsWatcher.Add(p)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Run delivers changed paths to onChange until ctx is done. Batches are
// sorted and delivered one at a time; onChange is never called concurrently.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, changed []string)) error {
	ticker := time.NewTicker(w.debounce / 5)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-ticker.C:
			if ready := w.takeReady(time.Now()); len(ready) > 0 {
				onChange(ctx, ready)
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return
	}
	path := event.Name

	// New directories inside a watched tree are watched too.
	if event.Op&fsnotify.Create != 0 && w.inTree(path) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !slices.Contains(w.config.Exclude.Dirs, info.Name()) {
				if err := w.fsWatcher.Add(path); err != nil {
					w.logger.Warn("watch directory", "path", path, "error", err)
				}
			}
			return
		}
	}

	if !w.relevant(path) {
		return
	}
	w.logger.Debug("source changed", "path", path, "op", event.Op.String())

	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

// relevant reports whether a change to path affects the analysis.
func (w *Watcher) relevant(path string) bool {
	if w.files[path] {
		return true
	}
	if !w.inTree(path) || !parser.IsSourceFile(path) {
		return false
	}
	for _, root := range w.trees {
		if rel, err := filepath.Rel(root, path); err == nil && w.config.ShouldExclude(rel) {
			return false
		}
	}
	return true
}

func (w *Watcher) inTree(path string) bool {
	for _, root := range w.trees {
		if path == root || (len(path) > len(root) && path[:len(root)] == root && path[len(root)] == filepath.Separator) {
			return true
		}
	}
	return false
}

// takeReady removes and returns the paths quiet for at least the debounce
// period as of now.
func (w *Watcher) takeReady(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	slices.Sort(ready)
	return ready
}

// Stop releases the underlying watcher.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// WatchedDirs returns the directories currently watched.
func (w *Watcher) WatchedDirs() []string {
	return w.fsWatcher.WatchList()
}
