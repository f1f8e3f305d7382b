// Package watch reports changed SQL files using fsnotify.
//
// Events are debounced: every change restarts the timer, and when it fires the
// handler receives all paths touched since the previous batch, sorted. The
// handler runs on the Run goroutine, so batches never overlap.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/electwix/tsql2snow/internal/logging"
)

// DefaultDebounce is the quiet period before a batch is delivered.
const DefaultDebounce = 100 * time.Millisecond

// Handler receives a batch of changed paths.
type Handler func(ctx context.Context, paths []string)

// Watcher monitors directories and reports changed files.
type Watcher struct {
	fsw      *fsnotify.Watcher
	logger   logging.Logger
	handler  Handler
	debounce time.Duration
	filter   func(path string) bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the debounce delay. Non-positive values keep the default.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithFilter replaces the default filter, which accepts files ending in .sql.
func WithFilter(fn func(path string) bool) Option {
	return func(w *Watcher) {
		if fn != nil {
			w.filter = fn
		}
	}
}

// New creates a Watcher. Call Add for each directory, then Run.
func New(logger logging.Logger, handler Handler, opts ...Option) (*Watcher, error) {
	if handler == nil {
		return nil, errors.New("watch: nil handler")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	w := &Watcher{
		fsw:      fsw,
		logger:   logger,
		handler:  handler,
		debounce: DefaultDebounce,
		filter:   IsSQLFile,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// IsSQLFile reports whether path has a .sql extension.
func IsSQLFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".sql")
}

// Add watches each directory. Duplicates are ignored.
func (w *Watcher) Add(dirs ...string) error {
	for _, dir := range dirs {
		if slices.Contains(w.fsw.WatchList(), dir) {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.logger.Debug("watching directory", "path", dir)
	}
	return nil
}

// Run delivers batches until ctx is done, then closes the underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fsw.Close() }()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.accept(event) {
				continue
			}
			pending[filepath.Clean(event.Name)] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for path := range pending {
				paths = append(paths, path)
			}
			clear(pending)
			slices.Sort(paths)
			w.logger.Debug("files changed", "count", len(paths))
			w.handler(ctx, paths)
		}
	}
}

// Close stops watching without waiting for Run.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) accept(event fsnotify.Event) bool {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.fsw.Add(event.Name); err != nil {
				w.logger.Warn("failed to watch directory", "path", event.Name, "error", err)
			} else {
				w.logger.Debug("added watch for new directory", "path", event.Name)
			}
			return false
		}
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return false
	}
	return w.filter(event.Name)
}
