//go:build linux

package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// pollTimeoutMs bounds how long the read loop waits for inotify data
// before re-checking for shutdown.
const pollTimeoutMs = 250

// linuxBackend implements Backend using raw inotify.
type linuxBackend struct {
	logger  *slog.Logger
	watches map[string]int
	wdPaths map[int]string
	events  chan Event
	done    chan struct{}
	opts    Options
	wg      sync.WaitGroup
	fd      int
	mu      sync.RWMutex

	// degradedPending is set while a dropped-event degraded signal is
	// waiting to be delivered.
	degradedPending atomic.Bool
}

// newLinuxBackend creates a new Linux-specific file watcher backend.
func newLinuxBackend(logger *slog.Logger, opts Options) (*linuxBackend, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize inotify: %w", err)
	}

	return &linuxBackend{
		logger:  logger,
		opts:    opts,
		fd:      fd,
		watches: make(map[string]int),
		wdPaths: make(map[int]string),
		events:  make(chan Event, 1024),
		done:    make(chan struct{}),
	}, nil
}

// Watch adds a path to be monitored.
func (b *linuxBackend) Watch(path string) error {
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}

	if info.IsDir() {
		return b.watchDir(path, true)
	}
	return b.addWatch(filepath.Dir(path))
}

// watchDir recursively watches a directory. When strict is true a failure
// to register the top-level directory is returned to the caller; failures
// deeper in the tree are logged and skipped.
func (b *linuxBackend) watchDir(path string, strict bool) error {
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

		if err := b.addWatch(p); err != nil {
			if strict && p == path {
				return err
			}
			b.logger.Error("failed to add watch", "path", p, "error", err)
		}

		return nil
	})
}

// addWatch adds an inotify watch for a directory.
func (b *linuxBackend) addWatch(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.watches[path]; exists {
		return nil
	}

	// IN_CLOSE_WRITE: file closed after writing.
	// IN_ATTRIB: metadata change.
	// IN_CREATE: file/directory created in watched directory.
	// IN_DELETE / IN_DELETE_SELF: deletions.
	// IN_MOVED_FROM / IN_MOVED_TO: rename halves, paired by cookie.
	mask := unix.IN_CLOSE_WRITE | unix.IN_ATTRIB | unix.IN_CREATE |
		unix.IN_DELETE | unix.IN_DELETE_SELF | unix.IN_MOVED_FROM | unix.IN_MOVED_TO

	wd, err := unix.InotifyAddWatch(b.fd, path, uint32(mask))
	if err != nil {
		return fmt.Errorf("inotify_add_watch failed: %w", err)
	}

	b.watches[path] = wd
	b.wdPaths[wd] = path
	b.logger.Debug("added watch", "path", path, "wd", wd)

	return nil
}

// removeWatch removes an inotify watch for a path.
func (b *linuxBackend) removeWatch(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wd, exists := b.watches[path]
	if !exists {
		return
	}

	// Ignore errors, the directory may already be gone.
	_, _ = unix.InotifyRmWatch(b.fd, uint32(wd))

	delete(b.watches, path)
	delete(b.wdPaths, wd)
	b.logger.Debug("removed watch", "path", path, "wd", wd)
}

// Start begins watching for events.
func (b *linuxBackend) Start(ctx context.Context) error {
	b.wg.Add(1)
	go b.readEvents(ctx)

	<-ctx.Done()
	return nil
}

// readEvents reads events from inotify until shutdown.
func (b *linuxBackend) readEvents(ctx context.Context) {
	defer b.wg.Done()

	buf := make([]byte, 64*(unix.SizeofInotifyEvent+unix.NAME_MAX+1))
	fds := []unix.PollFd{{Fd: int32(b.fd), Events: unix.POLLIN}}

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		default:
		}

		n, err := unix.Poll(fds, pollTimeoutMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			b.emit(Event{Err: fmt.Errorf("failed to poll inotify: %w", err)})
			return
		}
		if n == 0 {
			continue
		}

		n, err = unix.Read(b.fd, buf)
		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN {
				continue
			}
			b.emit(Event{Err: fmt.Errorf("failed to read inotify events: %w", err)})
			return
		}

		if n < unix.SizeofInotifyEvent {
			continue
		}

		b.parseEvents(buf[:n])
	}
}

// parseEvents parses one batch of raw inotify events.
//
// Rename halves within the batch are paired by cookie into a single
// KindRenameBoth event. A half left unpaired at the end of the batch is
// emitted as KindRenameFrom or KindRenameTo on its own; the tracker
// applies the same per-path rule either way, so a pair split across two
// read batches loses nothing.
func (b *linuxBackend) parseEvents(buf []byte) {
	// cookie -> from path for IN_MOVED_FROM awaiting its IN_MOVED_TO.
	var pendingMoves map[uint32]string

	offset := 0
	for offset < len(buf) {
		event := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
		offset += unix.SizeofInotifyEvent + int(event.Len)

		if event.Mask&unix.IN_Q_OVERFLOW != 0 {
			// The kernel dropped events; the tracker must signal a rescan.
			b.logger.Error("inotify event queue overflow")
			b.emit(Event{Degraded: true})
			continue
		}

		b.mu.RLock()
		dir, ok := b.wdPaths[int(event.Wd)]
		b.mu.RUnlock()

		if !ok {
			continue
		}

		name := ""
		if event.Len > 0 {
			nameBytes := buf[offset-int(event.Len) : offset]
			name = string(nameBytes[:clen(nameBytes)])
		}

		path := filepath.Join(dir, name)

		if b.opts.shouldIgnore(path) {
			continue
		}

		switch {
		case event.Mask&unix.IN_MOVED_FROM != 0:
			if pendingMoves == nil {
				pendingMoves = make(map[uint32]string)
			}
			pendingMoves[event.Cookie] = path

		case event.Mask&unix.IN_MOVED_TO != 0:
			if from, found := pendingMoves[event.Cookie]; found {
				delete(pendingMoves, event.Cookie)
				b.remapWatches(from, path)
				b.emit(Event{Kind: KindRenameBoth, Paths: []string{from, path}})
			} else {
				b.emit(Event{Kind: KindRenameTo, Paths: []string{path}})
			}
			b.watchIfDir(path)

		default:
			b.processEvent(path, event.Mask)
		}
	}

	// Unpaired halves: the destination is outside the watched tree or in
	// a later batch.
	for _, from := range pendingMoves {
		b.emit(Event{Kind: KindRenameFrom, Paths: []string{from}})
	}
}

// remapWatches rewrites the registered paths under from after the
// directory was renamed to to. The kernel keeps a watch bound to its
// inode across a rename, so later events keep arriving on the same
// descriptors; only the path bookkeeping has to move.
func (b *linuxBackend) remapWatches(from, to string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	prefix := from + string(filepath.Separator)
	for path, wd := range b.watches {
		if path != from && !strings.HasPrefix(path, prefix) {
			continue
		}
		moved := to + path[len(from):]
		delete(b.watches, path)
		b.watches[moved] = wd
		b.wdPaths[wd] = moved
	}
}

// processEvent handles a single non-rename inotify event.
func (b *linuxBackend) processEvent(path string, mask uint32) {
	switch {
	case mask&unix.IN_CREATE != 0:
		b.emit(Event{Kind: KindCreate, Paths: []string{path}})
		b.watchIfDir(path)

	case mask&unix.IN_DELETE != 0:
		b.emit(Event{Kind: KindRemove, Paths: []string{path}})

	case mask&unix.IN_DELETE_SELF != 0:
		// The watched directory itself is gone; its parent already
		// reported IN_DELETE for it, so only clean up the watch.
		b.removeWatch(path)

	case mask&unix.IN_CLOSE_WRITE != 0, mask&unix.IN_ATTRIB != 0:
		b.emit(Event{Kind: KindModify, Paths: []string{path}})
	}
}

// watchIfDir starts watching path if it is a directory that appeared
// inside the watched tree.
func (b *linuxBackend) watchIfDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := b.watchDir(path, false); err != nil {
		b.logger.Warn("failed to watch new directory", "path", path, "error", err)
	}
}

// emit sends an event without ever blocking the read loop. If the
// consumer is not keeping up the event is dropped and a degraded signal
// is raised instead.
func (b *linuxBackend) emit(event Event) {
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
func (b *linuxBackend) raiseDegraded() {
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
func (b *linuxBackend) Events() <-chan Event {
	return b.events
}

// Stop stops the watcher.
func (b *linuxBackend) Stop() error {
	close(b.done)

	b.wg.Wait()

	var closeErr error
	if b.fd >= 0 {
		closeErr = unix.Close(b.fd)
	}

	close(b.events)

	return closeErr
}

// clen returns the length of a null-terminated byte slice.
func clen(n []byte) int {
	for i := 0; i < len(n); i++ {
		if n[i] == 0 {
			return i
		}
	}
	return len(n)
}

// newFallbackBackend is a stub that should never be called on Linux.
// It exists only to satisfy the compiler when watch.go references it.
func newFallbackBackend(_ *slog.Logger, _ Options) (Backend, error) {
	return nil, fmt.Errorf("fallback backend not available on Linux")
}
