// Package filewatch reports debounced changes to a set of files.
package filewatch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeType represents the type of file change.
type ChangeType int

const (
	ChangeWrite ChangeType = iota
	ChangeCreate
	ChangeRemove
)

func (t ChangeType) String() string {
	switch t {
	case ChangeCreate:
		return "create"
	case ChangeRemove:
		return "remove"
	default:
		return "write"
	}
}

// Change represents a detected file change.
type Change struct {
	Path string
	Type ChangeType
}

// Config configures the file watcher.
type Config struct {
	// Paths are the files to watch.
	Paths []string

	// Debounce is the quiet period after the last event before a change is
	// reported. Editors often write a file in several steps.
	Debounce time.Duration
}

// Watcher monitors files for changes. It watches the parent directories so
// files replaced by rename (as many editors save) keep being watched.
type Watcher struct {
	config   Config
	files    map[string]struct{}
	onChange func(Change)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// New creates a file watcher.
func New(config Config) *Watcher {
	if config.Debounce == 0 {
		config.Debounce = 100 * time.Millisecond
	}
	files := make(map[string]struct{}, len(config.Paths))
	for _, p := range config.Paths {
		if abs, err := filepath.Abs(p); err == nil {
			files[abs] = struct{}{}
		}
	}
	return &Watcher{config: config, files: files}
}

// OnChange sets the callback for file changes.
func (w *Watcher) OnChange(fn func(Change)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

// Start watches until ctx is done or Stop is called. It blocks.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	stopCh := w.stopCh
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	dirs := make(map[string]struct{})
	for f := range w.files {
		dirs[filepath.Dir(f)] = struct{}{}
	}
	for d := range dirs {
		if err := fw.Add(d); err != nil {
			return err
		}
	}

	timer := time.NewTimer(w.config.Debounce)
	timer.Stop()
	defer timer.Stop()
	pending := make(map[string]ChangeType)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			name, err := filepath.Abs(ev.Name)
			if err != nil {
				continue
			}
			if _, watched := w.files[name]; !watched {
				continue
			}
			pending[name] = classify(ev.Op)
			timer.Reset(w.config.Debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			return err
		case <-timer.C:
			w.mu.Lock()
			callback := w.onChange
			w.mu.Unlock()
			for p, t := range pending {
				if callback != nil {
					callback(Change{Path: p, Type: t})
				}
			}
			clear(pending)
		}
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		close(w.stopCh)
		w.running = false
	}
}

// IsRunning reports whether the watcher is running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func classify(op fsnotify.Op) ChangeType {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return ChangeRemove
	case op.Has(fsnotify.Create):
		return ChangeCreate
	default:
		return ChangeWrite
	}
}
