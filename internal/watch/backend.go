package watch

import "context"

// Backend defines the platform-specific file watching implementation.
type Backend interface {
	// Watch adds a path to be monitored. Directories are watched
	// recursively.
	Watch(path string) error

	// Start begins delivering events. It blocks until the context is
	// cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop stops the watcher and releases all resources.
	Stop() error

	// Events returns the channel for receiving file system events.
	// Out-of-band degradation and transport faults are delivered on the
	// same channel as events with Degraded or Err set.
	Events() <-chan Event
}
