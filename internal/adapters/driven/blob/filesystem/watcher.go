package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// DefaultDebounce coalesces bursts of events for the same file.
const DefaultDebounce = 500 * time.Millisecond

// ChangeType classifies a file change.
type ChangeType int

// Change types.
const (
	ChangeCreated ChangeType = iota + 1
	ChangeUpdated
	ChangeDeleted
)

func (c ChangeType) String() string {
	switch c {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Change is a settled change to one file. Ref is relative to the root.
type Change struct {
	Ref  string
	Type ChangeType
}

// Watcher reports changes to regular, non-hidden files below a root.
// Subdirectories are watched as they appear.
type Watcher struct {
	root     string
	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]ChangeType
	timer   *time.Timer
}

// NewWatcher creates a watcher for every non-hidden directory below root.
func NewWatcher(root string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving watch root: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	w := &Watcher{
		root:     abs,
		debounce: debounce,
		watcher:  fw,
		pending:  make(map[string]ChangeType),
	}
	if err := w.addTree(abs); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Run delivers settled changes to fn until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, fn func(Change)) error {
	flush := make(chan struct{}, 1)
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event, flush)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error: %v", err)

		case <-flush:
			for _, change := range w.drain() {
				fn(change)
			}
		}
	}
}

// handle records an event and arms the debounce timer.
func (w *Watcher) handle(event fsnotify.Event, flush chan<- struct{}) {
	change, ok := w.classify(event)
	if !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	// A file created then written within one window is still a creation.
	if prev, seen := w.pending[change.Ref]; seen && prev == ChangeCreated && change.Type == ChangeUpdated {
		change.Type = ChangeCreated
	}
	w.pending[change.Ref] = change.Type

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case flush <- struct{}{}:
		default:
		}
	})
}

// classify maps an fsnotify event to a change. Directories, hidden paths
// and chmod events are skipped; new directories are added to the watch.
func (w *Watcher) classify(event fsnotify.Event) (Change, bool) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || isHidden(rel) {
		return Change{}, false
	}
	ref := filepath.ToSlash(rel)

	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err != nil {
			return Change{}, false
		}
		if info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				logger.Warn("Failed to watch %s: %v", event.Name, err)
			}
			return Change{}, false
		}
		return Change{Ref: ref, Type: ChangeCreated}, true

	case event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil || info.IsDir() {
			return Change{}, false
		}
		return Change{Ref: ref, Type: ChangeUpdated}, true

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return Change{Ref: ref, Type: ChangeDeleted}, true

	default:
		return Change{}, false
	}
}

func (w *Watcher) drain() []Change {
	w.mu.Lock()
	defer w.mu.Unlock()

	changes := make([]Change, 0, len(w.pending))
	for ref, typ := range w.pending {
		changes = append(changes, Change{Ref: ref, Type: typ})
	}
	w.pending = make(map[string]ChangeType)
	return changes
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// addTree watches dir and every non-hidden directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root {
			if rel, _ := filepath.Rel(w.root, path); isHidden(rel) {
				return filepath.SkipDir
			}
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// isHidden reports whether any element of a relative path starts with a dot.
func isHidden(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}
