package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatchDebounce sets the debounce duration for file change events.
func WithWatchDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithWatchLogger sets the logger for the watcher.
func WithWatchLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// Watcher monitors a configuration file and invokes a callback on content
// changes. It watches the containing directory so atomic saves and symlink
// swaps are caught.
type Watcher struct {
	source   *FileSource
	debounce time.Duration
	logger   *slog.Logger
	onChange func(ChangeEvent)

	fsWatcher *fsnotify.Watcher
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	lastHash  string

	mu      sync.Mutex
	pending map[string]time.Time
}

// NewWatcher creates a Watcher over source. onChange is called with a
// ChangeEvent whenever the configuration content changes.
func NewWatcher(source *FileSource, onChange func(ChangeEvent), opts ...WatcherOption) *Watcher {
	w := &Watcher{
		source:   source,
		debounce: 500 * time.Millisecond,
		logger:   slog.Default(),
		onChange: onChange,
		done:     make(chan struct{}),
		pending:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching the configuration file's directory.
func (w *Watcher) Start() error {
	ctx := context.Background()
	hash, err := w.source.Hash(ctx)
	if err != nil {
		return fmt.Errorf("config watcher: initial hash: %w", err)
	}
	w.lastHash = hash

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: create fsnotify: %w", err)
	}
	w.fsWatcher = fsw

	dir := filepath.Dir(w.source.Path())
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("config watcher: watch %s: %w", dir, err)
	}

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop terminates the watcher and waits for the background goroutine to
// exit. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() { close(w.done) })
	w.wg.Wait()
	if w.fsWatcher != nil {
		return w.fsWatcher.Close()
	}
	return nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				// Any write, create, or rename in the directory enqueues a
				// hash check; the hash comparison filters spurious events.
				w.mu.Lock()
				w.pending[w.source.Path()] = time.Now()
				w.mu.Unlock()
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", "err", err)

		case <-ticker.C:
			w.processPending()
		}
	}
}

func (w *Watcher) processPending() {
	w.mu.Lock()
	now := time.Now()
	var ready []string
	for path, t := range w.pending {
		if now.Sub(t) >= w.debounce {
			ready = append(ready, path)
		}
	}
	for _, path := range ready {
		delete(w.pending, path)
	}
	w.mu.Unlock()

	for _, path := range ready {
		w.processChange(path)
	}
}

// processChange loads the configuration, hashes it, and calls onChange when
// the content actually changed.
func (w *Watcher) processChange(path string) {
	if filepath.Clean(path) != filepath.Clean(w.source.Path()) {
		return
	}

	ctx := context.Background()

	cfg, err := w.source.Load(ctx)
	if err != nil {
		w.logger.Error("config watcher: failed to load config", "path", path, "err", err)
		return
	}

	newHash, err := w.source.Hash(ctx)
	if err != nil {
		w.logger.Error("config watcher: failed to hash config", "path", path, "err", err)
		return
	}

	if newHash == w.lastHash {
		w.logger.Debug("config watcher: content unchanged, skipping", "path", path)
		return
	}

	oldHash := w.lastHash
	w.lastHash = newHash

	w.logger.Info("config changed", "path", path, "old_hash", oldHash[:8], "new_hash", newHash[:8])

	w.onChange(ChangeEvent{
		Source:  w.source.Name(),
		OldHash: oldHash,
		NewHash: newHash,
		Config:  cfg,
		Time:    time.Now(),
	})
}
