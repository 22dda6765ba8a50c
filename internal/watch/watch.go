// Package watch observes a filesystem subtree and produces a stream of raw
// change events for the tracker to coalesce.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
)

// Watcher monitors file system changes under one or more roots.
//
// The watcher selects the best backend for the current platform:
//   - Linux: raw inotify, which distinguishes rename halves by cookie and
//     reports kernel queue overflow as a degraded signal.
//   - Others: fsnotify, which folds renames into their from-half only.
type Watcher struct {
	backend Backend
	logger  *slog.Logger
}

// New creates a new file watcher.
func New(logger *slog.Logger, opts Options) (*Watcher, error) {
	var backend Backend
	var err error

	if runtime.GOOS == "linux" {
		backend, err = newLinuxBackend(logger, opts)
		logger.Debug("using Linux inotify backend")
	} else {
		backend, err = newFallbackBackend(logger, opts)
		logger.Debug("using fsnotify fallback backend", "platform", runtime.GOOS)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create backend: %w", err)
	}

	return &Watcher{
		backend: backend,
		logger:  logger,
	}, nil
}

// Watch adds a path to be monitored. Directories are watched recursively.
func (w *Watcher) Watch(path string) error {
	return w.backend.Watch(path)
}

// Start begins watching for events. This method blocks until the context
// is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	return w.backend.Start(ctx)
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() error {
	return w.backend.Stop()
}

// Events returns the channel for receiving file system events.
func (w *Watcher) Events() <-chan Event {
	return w.backend.Events()
}
