// Package di provides dependency injection configuration for the rank agent.
package di

import (
	"github.com/samber/do/v2"

	"github.com/readmarkapp/readmark-agent/internal/config"
	"github.com/readmarkapp/readmark-agent/internal/di/providers"
	"github.com/readmarkapp/readmark-agent/internal/engine"
	"github.com/readmarkapp/readmark-agent/internal/logger"
	"github.com/readmarkapp/readmark-agent/internal/ratelimit"
	"github.com/readmarkapp/readmark-agent/internal/remote"
	"github.com/readmarkapp/readmark-agent/internal/session"
	"github.com/readmarkapp/readmark-agent/internal/visibility"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer(overrides config.Overrides) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, overrides)
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)

	// Remote layer
	do.Provide(injector, providers.ProvideRateLimiter)
	do.Provide(injector, providers.ProvideFetcher)

	// Session layer
	do.Provide(injector, providers.ProvideSessionManager)

	// Engine layer
	do.Provide(injector, providers.ProvideVisibilityTracker)
	do.Provide(injector, providers.ProvideRevealScheduler)
	do.Provide(injector, providers.ProvideEngine)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns nil once the container is
// fully wired. This triggers lazy initialization of every provider.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*ratelimit.KeyedRateLimiter](injector)
	_ = do.MustInvoke[*remote.Fetcher](injector)
	_ = do.MustInvoke[*session.Manager](injector)
	_ = do.MustInvoke[*visibility.Tracker](injector)
	_ = do.MustInvoke[*providers.SchedulerHandle](injector)
	_ = do.MustInvoke[*engine.Engine](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
