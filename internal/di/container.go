// Package di provides dependency injection configuration for the agent.
package di

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/deltascan/deltascan-agent/internal/config"
	"github.com/deltascan/deltascan-agent/internal/di/providers"
	"github.com/deltascan/deltascan-agent/internal/logger"
	"github.com/deltascan/deltascan-agent/internal/tracker"
)

// NewContainer creates and configures the DI container with all
// providers. args are the raw command-line arguments (without the
// program name).
func NewContainer(args []string) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, func(do.Injector) (*config.Config, error) {
		return config.Load(args)
	})
	do.Provide(injector, providers.ProvideLogger)

	// Tracking state
	do.Provide(injector, providers.ProvideTracker)

	// Event source
	do.Provide(injector, providers.ProvideWatcher)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services in dependency order. Any failure
// (bad arguments, watch registration, listener bind) is returned so the
// caller can exit non-zero before serving.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := do.Invoke[*logger.Logger](injector); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	if _, err := do.Invoke[*tracker.Tracker](injector); err != nil {
		return fmt.Errorf("tracker: %w", err)
	}
	if _, err := do.Invoke[*providers.WatcherHandle](injector); err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	return nil
}
