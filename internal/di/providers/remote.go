package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/readmarkapp/readmark-agent/internal/config"
	"github.com/readmarkapp/readmark-agent/internal/logger"
	"github.com/readmarkapp/readmark-agent/internal/ratelimit"
	"github.com/readmarkapp/readmark-agent/internal/remote"
)

// ProvideRateLimiter provides the per-key fetch rate limiter.
func ProvideRateLimiter(i do.Injector) (*ratelimit.KeyedRateLimiter, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return ratelimit.New(cfg.Remote.FetchRPS, cfg.Remote.FetchBurst), nil
}

// ProvideFetcher provides the authoritative snapshot fetcher. The device ID
// is minted on first use and persists for the lifetime of the data dir.
func ProvideFetcher(i do.Injector) (*remote.Fetcher, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	limiter := do.MustInvoke[*ratelimit.KeyedRateLimiter](i)

	deviceID, err := storeHandle.DeviceID(context.Background())
	if err != nil {
		return nil, err
	}

	return remote.NewFetcher(cfg.Remote.BaseURL, deviceID, cfg.Remote.Timeout, limiter, log.Logger), nil
}
