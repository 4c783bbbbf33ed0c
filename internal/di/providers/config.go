// Package providers contains dependency injection providers for the rank agent.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/readmarkapp/readmark-agent/internal/config"
	"github.com/readmarkapp/readmark-agent/internal/logger"
)

// ProvideConfig provides the agent configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	overrides := do.MustInvoke[config.Overrides](i)
	return config.Load(overrides)
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Environment: cfg.App.Environment,
	})

	log.Info("Starting ReadMark rank agent",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_dir", cfg.Data.Dir,
		"store_driver", cfg.Data.StoreDriver,
	)

	return log, nil
}
