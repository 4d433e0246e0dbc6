// Package watch reports settled file changes under a directory tree.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Handler is called once for every changed file after changes settle.
type Handler func(ctx context.Context, path string) error

// Filter selects files Handler is interested in.
type Filter func(path string) bool

// Stats tracks watcher activity.
type Stats struct {
	Events    int
	Processed int
	Errors    int
	LastPath  string
	LastEvent time.Time
}

// Watcher watches directory tree recursively, new subdirectories are picked
// up as they appear. Rapid changes to the same file are collapsed: handler
// runs when file was left alone for debounce interval.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	root     string
	handle   Handler
	accept   Filter
	pending  map[string]time.Time
	debounce time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
	stats    Stats
	log      *zap.Logger
}

// New creates watcher for directory tree under root. Nil accept lets every
// file through. Watching does not begin until Start is called.
func New(root string, debounce time.Duration, handle Handler, accept Filter, log *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if accept == nil {
		accept = func(string) bool { return true }
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		watcher:  fw,
		root:     root,
		handle:   handle,
		accept:   accept,
		pending:  make(map[string]time.Time),
		debounce: debounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		log:      log.Named("watch"),
	}, nil
}

// Start adds the whole tree to the watch list and begins processing events
// in background.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addTree(w.root, false); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	w.log.Info("Watching directory", zap.String("dir", w.root), zap.Duration("debounce", w.debounce))

	go w.run(ctx)
	return nil
}

// Stop stops event processing and releases watcher resources. Changes still
// waiting for debounce interval are dropped.
func (w *Watcher) Stop() {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}
	if err := w.watcher.Close(); err != nil {
		w.log.Error("Unable to close watcher", zap.Error(err))
	}
}

// Done is closed when event processing ends, either because Stop was called,
// context was cancelled or underlying watcher failed.
func (w *Watcher) Done() <-chan struct{} {
	return w.doneCh
}

// Stats returns snapshot of activity counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(min(max(w.debounce/2, 10*time.Millisecond), 100*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("Watcher error", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			w.processSettled(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		// removal and renaming leave nothing to process
		return
	}

	if event.Has(fsnotify.Create) {
		if isDir(event.Name) {
			// files may already be there when we start watching
			if err := w.addTree(event.Name, true); err != nil {
				w.log.Warn("Unable to watch directory", zap.String("dir", event.Name), zap.Error(err))
			}
			return
		}
	}
	w.record(event.Name)
}

// record puts file into pending set or moves its deadline.
func (w *Watcher) record(path string) {
	if !w.accept(path) {
		return
	}
	w.log.Debug("Change detected", zap.String("file", path))

	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.stats.Events++
	w.stats.LastPath = path
	w.stats.LastEvent = now
	w.pending[path] = now
}

func (w *Watcher) processSettled(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			settled = append(settled, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range settled {
		if ctx.Err() != nil {
			return
		}
		err := w.handle(ctx, path)

		w.mu.Lock()
		w.stats.Processed++
		if err != nil {
			w.stats.Errors++
		}
		w.mu.Unlock()

		if err != nil {
			w.log.Error("Unable to process change", zap.String("file", path), zap.Error(err))
		}
	}
}

// addTree watches dir and all directories below it. With "existing" set files
// found along the way are treated as changed.
func (w *Watcher) addTree(dir string, existing bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			w.log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		if existing && d.Type().IsRegular() {
			w.record(path)
		}
		return nil
	})
}

func isDir(path string) bool {
	fi, err := os.Lstat(path)
	return err == nil && fi.IsDir()
}
