package providers

import (
	"github.com/samber/do/v2"

	"github.com/deltascan/deltascan-agent/internal/config"
	"github.com/deltascan/deltascan-agent/internal/logger"
	"github.com/deltascan/deltascan-agent/internal/tracker"
)

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting change-tracking agent",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"watch_path", cfg.Watch.Root,
		"change_limit", cfg.Tracker.ChangeLimit,
	)

	return log, nil
}

// ProvideTracker provides the change tracker.
func ProvideTracker(i do.Injector) (*tracker.Tracker, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return tracker.New(cfg.Tracker.ChangeLimit, log.Logger), nil
}
