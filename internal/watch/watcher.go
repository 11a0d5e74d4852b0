// Package watch re-runs verification when documents change on disk.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceDelay coalesces the burst of events an editor save produces.
const DefaultDebounceDelay = 200 * time.Millisecond

// ChangeFunc is called with the sorted paths changed since the last call.
type ChangeFunc func(ctx context.Context, changed []string) error

// Watcher watches documents and directories of documents. Explicit files are
// watched through their parent directory so that editors replacing the file
// on save are still seen.
type Watcher struct {
	watcher       *fsnotify.Watcher
	files         map[string]bool
	roots         []string
	extensions    map[string]bool
	debounceDelay time.Duration
}

// New creates a Watcher for targets. A target is either a document file or a
// directory whose files with one of extensions are watched recursively.
func New(targets []string, extensions []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	w := &Watcher{
		watcher:       fsw,
		files:         make(map[string]bool),
		extensions:    make(map[string]bool),
		debounceDelay: DefaultDebounceDelay,
	}
	for _, ext := range extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		w.extensions[strings.ToLower(ext)] = true
	}

	for _, target := range targets {
		abs, err := filepath.Abs(target)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("resolve %s: %w", target, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", target, err)
		}
		if info.IsDir() {
			w.roots = append(w.roots, abs)
			err = w.addRecursive(abs)
		} else {
			w.files[abs] = true
			err = fsw.Add(filepath.Dir(abs))
		}
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", target, err)
		}
	}

	return w, nil
}

// SetDebounceDelay sets the quiet period before ChangeFunc runs.
// This should only be called before Run.
func (w *Watcher) SetDebounceDelay(delay time.Duration) {
	w.debounceDelay = delay
}

// addRecursive adds the directory and all its subdirectories to the watcher
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			// Ignore permission errors for directories we can't access
			if os.IsPermission(err) {
				return nil
			}
			return err
		}
		return nil
	})
}

// relevant reports whether an event on path concerns a watched document.
func (w *Watcher) relevant(path string) bool {
	if w.files[path] {
		return true
	}
	if !w.extensions[strings.ToLower(filepath.Ext(path))] {
		return false
	}
	for _, root := range w.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Run delivers debounced change batches to fn until ctx is done. An error
// returned by fn stops the loop and is returned.
func (w *Watcher) Run(ctx context.Context, fn ChangeFunc) error {
	pending := make(map[string]bool)
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && w.underRoot(event.Name) {
					if err := w.addRecursive(event.Name); err != nil {
						return fmt.Errorf("watch %s: %w", event.Name, err)
					}
					continue
				}
			}
			// removals are picked up by the Create that follows an editor's rename
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.relevant(event.Name) {
				continue
			}
			pending[event.Name] = true
			if timer == nil {
				timer = time.NewTimer(w.debounceDelay)
			} else {
				timer.Reset(w.debounceDelay)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			changed := make([]string, 0, len(pending))
			for path := range pending {
				changed = append(changed, path)
			}
			sort.Strings(changed)
			pending = make(map[string]bool)
			if err := fn(ctx, changed); err != nil {
				return err
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("file watcher: %w", err)
		}
	}
}

func (w *Watcher) underRoot(path string) bool {
	for _, root := range w.roots {
		if strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Close stops the watcher and releases resources
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
