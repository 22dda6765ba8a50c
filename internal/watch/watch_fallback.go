//go:build !linux

package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// fallbackBackend implements Backend using fsnotify.
//
// fsnotify reports a rename only as the old path, so renames surface as
// KindRenameFrom plus a KindCreate for the destination when it lands
// inside the watched tree. The tracker ends up with the same sets as a
// paired rename.
type fallbackBackend struct {
	logger  *slog.Logger
	opts    Options
	watcher *fsnotify.Watcher

	events chan Event
	done   chan struct{}
	wg     sync.WaitGroup

	// degradedPending is set while a dropped-event degraded signal is
	// waiting to be delivered.
	degradedPending atomic.Bool
}

// newFallbackBackend creates a fallback backend using fsnotify.
func newFallbackBackend(logger *slog.Logger, opts Options) (*fallbackBackend, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &fallbackBackend{
		logger:  logger,
		opts:    opts,
		watcher: watcher,
		events:  make(chan Event, 1024),
		done:    make(chan struct{}),
	}, nil
}

// Watch adds a path to be monitored.
func (b *fallbackBackend) Watch(path string) error {
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}

	if info.IsDir() {
		return b.watchDir(path, true)
	}
	return b.watcher.Add(filepath.Dir(path))
}

// watchDir recursively watches a directory. When strict is true a failure
// on the top-level directory is returned; deeper failures are logged.
func (b *fallbackBackend) watchDir(path string, strict bool) error {
	return filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if strict && p == path {
				return fmt.Errorf("failed to access watch root: %w", err)
			}
			b.logger.Warn("failed to access path", "path", p, "error", err)
			return nil
		}

		if b.opts.shouldIgnore(p) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !info.IsDir() {
			return nil
		}

		if err := b.watcher.Add(p); err != nil {
			if strict && p == path {
				return fmt.Errorf("failed to add watch: %w", err)
			}
			b.logger.Error("failed to add watch", "path", p, "error", err)
		}

		return nil
	})
}

// Start begins watching for events.
func (b *fallbackBackend) Start(ctx context.Context) error {
	b.wg.Add(1)
	go b.processEvents(ctx)

	<-ctx.Done()
	return nil
}

// processEvents translates fsnotify events.
func (b *fallbackBackend) processEvents(ctx context.Context) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case event, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			b.handleFsnotifyEvent(event)
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			b.emit(Event{Err: err})
		}
	}
}

// handleFsnotifyEvent maps one fsnotify event onto the raw event model.
func (b *fallbackBackend) handleFsnotifyEvent(event fsnotify.Event) {
	path := event.Name

	if b.opts.shouldIgnore(path) {
		return
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		b.emit(Event{Kind: KindCreate, Paths: []string{path}})
		// New directories need their own watches.
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			if err := b.watchDir(path, false); err != nil {
				b.logger.Warn("failed to watch new directory", "path", path, "error", err)
			}
		}

	case event.Op&fsnotify.Remove != 0:
		b.emit(Event{Kind: KindRemove, Paths: []string{path}})

	case event.Op&fsnotify.Rename != 0:
		// Only the old path is known here. The destination, if watched,
		// arrives separately as a Create.
		b.emit(Event{Kind: KindRenameFrom, Paths: []string{path}})

	case event.Op&(fsnotify.Write|fsnotify.Chmod) != 0:
		b.emit(Event{Kind: KindModify, Paths: []string{path}})
	}
}

// emit sends an event without blocking indefinitely. If the consumer is
// not keeping up the event is dropped and a degraded signal is raised
// instead.
func (b *fallbackBackend) emit(event Event) {
	select {
	case b.events <- event:
	case <-b.done:
	default:
		b.logger.Warn("event channel full, dropping event and requesting rescan")
		b.raiseDegraded()
	}
}

// raiseDegraded delivers one degraded signal to the consumer. The send
// must not depend on further filesystem activity, so it blocks in its
// own goroutine until the consumer drains a slot or the backend stops.
// At most one delivery is in flight at a time.
func (b *fallbackBackend) raiseDegraded() {
	if !b.degradedPending.CompareAndSwap(false, true) {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		select {
		case b.events <- Event{Degraded: true}:
			b.degradedPending.Store(false)
		case <-b.done:
		}
	}()
}

// Events returns the events channel.
func (b *fallbackBackend) Events() <-chan Event {
	return b.events
}

// Stop stops the watcher.
func (b *fallbackBackend) Stop() error {
	close(b.done)

	b.watcher.Close()

	b.wg.Wait()

	close(b.events)

	return nil
}

// newLinuxBackend is a stub that should never be called off Linux.
// It exists only to satisfy the compiler when watch.go references it.
func newLinuxBackend(_ *slog.Logger, _ Options) (Backend, error) {
	return nil, fmt.Errorf("Linux backend not available on this platform")
}
