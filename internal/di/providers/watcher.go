package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/deltascan/deltascan-agent/internal/config"
	"github.com/deltascan/deltascan-agent/internal/logger"
	"github.com/deltascan/deltascan-agent/internal/tracker"
	"github.com/deltascan/deltascan-agent/internal/watch"
)

// WatcherHandle wraps the file watcher with shutdown capability.
type WatcherHandle struct {
	*watch.Watcher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *WatcherHandle) Shutdown() error {
	h.cancel()
	return h.Watcher.Stop()
}

// ProvideWatcher provides the file system watcher with its event pump
// already running: every event the backend delivers is applied to the
// tracker in order.
func ProvideWatcher(i do.Injector) (*WatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	trk := do.MustInvoke[*tracker.Tracker](i)

	w, err := watch.New(log.Logger, watch.Options{
		IgnorePatterns: cfg.Watch.IgnorePatterns,
	})
	if err != nil {
		return nil, err
	}

	// Initial registration failure of the root is fatal.
	if err := w.Watch(cfg.Watch.Root); err != nil {
		_ = w.Stop()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		if err := w.Start(ctx); err != nil {
			log.Error("file watcher error", "error", err)
		}
	}()

	// Apply events in delivery order. The tracker holds its lock per
	// event, so HTTP operations interleave at lock-boundary granularity.
	go func() {
		for {
			select {
			case event, ok := <-w.Events():
				if !ok {
					return
				}
				trk.Apply(event)
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("Watching path", "path", cfg.Watch.Root)

	return &WatcherHandle{
		Watcher: w,
		cancel:  cancel,
	}, nil
}
