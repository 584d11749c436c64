// Package watch re-runs a callback when tracked manifests change on disk.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Handler receives the manifests whose changes have settled, spelled as they
// were passed to New.
type Handler func(ctx context.Context, paths []string)

// Watcher watches the parent directories of a fixed set of manifests.
// Directories are watched rather than files so editors that save by
// rename-and-replace keep being tracked.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	logger      *zap.Logger
	handler     Handler
	tracked     map[string]string // cleaned absolute path -> path as given
	debounceMap map[string]time.Time
	debounceDur time.Duration
	tick        time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	closeOnce   sync.Once

	stats Stats
}

// Stats tracks watcher activity.
type Stats struct {
	Events        int
	Ignored       int
	Triggered     int
	Errors        int
	LastEventTime time.Time
	LastEventPath string
}

// New creates a watcher for paths. debounce is how long a path must stay
// quiet before handler sees it.
func New(paths []string, debounce time.Duration, handler Handler, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		watcher:     fw,
		logger:      logger,
		handler:     handler,
		tracked:     make(map[string]string),
		debounceMap: make(map[string]time.Time),
		debounceDur: debounce,
		tick:        100 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		w.tracked[filepath.Clean(abs)] = p
	}
	return w, nil
}

// Start registers the watched directories and starts the event loop. It does
// not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	dirs := make(map[string]struct{})
	for p := range w.tracked {
		dirs[filepath.Dir(p)] = struct{}{}
	}
	for d := range dirs {
		if err := w.watcher.Add(d); err != nil {
			// A missing directory is not fatal; other manifests are still watched.
			w.logger.Warn("cannot watch directory", zap.String("dir", d), zap.Error(err))
			continue
		}
		w.logger.Debug("watching directory", zap.String("dir", d))
	}

	go w.run(ctx)
	return nil
}

// Stop stops the event loop, waits for it to exit and releases the
// underlying watcher. It is safe to call more than once, and without Start.
func (w *Watcher) Stop() {
	w.mu.Lock()
	wasRunning := w.running
	w.running = false
	w.mu.Unlock()

	w.closeOnce.Do(func() {
		close(w.stopCh)
		if wasRunning {
			<-w.doneCh
		}
		if err := w.watcher.Close(); err != nil {
			w.logger.Error("error closing watcher", zap.Error(err))
		}
		w.logger.Debug("watcher stopped")
	})
}

// Done is closed once the event loop has exited.
func (w *Watcher) Done() <-chan struct{} { return w.doneCh }

// Stats returns a snapshot of the counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("watcher context cancelled")
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
			w.logger.Error("watcher error", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			w.flush(ctx, time.Now())
		}
	}
}

// handleEvent records a change to a tracked manifest for later delivery.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	name := filepath.Clean(event.Name)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.tracked[name]; !ok {
		w.stats.Ignored++
		return
	}
	w.stats.Events++
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = name
	w.debounceMap[name] = time.Now()
}

// flush hands every path that has been quiet for the debounce window to the
// handler, sorted for deterministic ordering.
func (w *Watcher) flush(ctx context.Context, now time.Time) {
	w.mu.Lock()
	var settled []string
	for p, at := range w.debounceMap {
		if now.Sub(at) >= w.debounceDur {
			settled = append(settled, w.tracked[p])
			delete(w.debounceMap, p)
		}
	}
	if len(settled) > 0 {
		w.stats.Triggered++
	}
	w.mu.Unlock()

	if len(settled) == 0 || w.handler == nil {
		return
	}
	sort.Strings(settled)
	w.logger.Debug("manifests changed", zap.Strings("paths", settled))
	w.handler(ctx, settled)
}
