package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"k8s.io/klog/v2"
)

// DefaultInterval bounds how often actions run while files keep changing.
const DefaultInterval = 5 * time.Second

// Action receives the watched files that changed since it last ran.
type Action func(changed []string) error

// Watcher is an opinionated fsnotify.Watcher for a fixed set of files. It
// watches their directories rather than the files themselves, so files
// that are replaced on save, deleted or not created yet are still seen.
type Watcher struct {
	actions []Action
	notify  chan struct{}
	files   map[string]struct{}
}

// Notify manually runs all actions for every watched file.
func (w *Watcher) Notify() {
	go func(w *Watcher) {
		w.notify <- struct{}{}
	}(w)
}

// Files lists the watched files.
func (w *Watcher) Files() []string {
	files := make([]string, 0, len(w.files))
	for f := range w.files {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

func New(ctx context.Context, interval time.Duration, files []string, actions ...Action) (*Watcher, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	w := &Watcher{
		actions: actions,
		notify:  make(chan struct{}),
		files:   map[string]struct{}{},
	}

	dirs := map[string]struct{}{}
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", f, err)
		}
		w.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	go w.run(ctx, watcher, interval)
	return w, nil
}

func (w *Watcher) run(ctx context.Context, watcher *fsnotify.Watcher, interval time.Duration) {
	defer watcher.Close()

	// only perform actions once per interval at most
	t := time.NewTicker(interval)
	defer t.Stop()

	pending := map[string]struct{}{}
	runAll := func(changed []string) []error {
		var allErrors []error
		for _, a := range w.actions {
			if err := a(changed); err != nil {
				allErrors = append(allErrors, err)
			}
		}
		return allErrors
	}

	for {
		select {
		case <-w.notify:
			for _, e := range runAll(w.Files()) {
				klog.ErrorS(e, "error while running watch actions")
			}
		case <-t.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for f := range pending {
				changed = append(changed, f)
			}
			sort.Strings(changed)

			allErrors := runAll(changed)
			for _, e := range allErrors {
				klog.ErrorS(e, "error while handling file changes", "files", changed)
			}
			// if no errors, forget the changes; otherwise retry on the next tick.
			if len(allErrors) == 0 {
				pending = map[string]struct{}{}
			}
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			name := filepath.Clean(event.Name)
			if _, watched := w.files[name]; !watched {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				klog.V(4).InfoS("file changed", "file", name, "op", event.Op.String())
				pending[name] = struct{}{}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			klog.ErrorS(err, "file watcher error")
		case <-ctx.Done():
			return
		}
	}
}
