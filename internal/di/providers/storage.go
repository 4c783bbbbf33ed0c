package providers

import (
	"os"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/readmarkapp/readmark-agent/internal/config"
	"github.com/readmarkapp/readmark-agent/internal/logger"
	"github.com/readmarkapp/readmark-agent/internal/store"
	"github.com/readmarkapp/readmark-agent/internal/store/sqlite"
)

// StoreHandle wraps the snapshot store with shutdown capability.
type StoreHandle struct {
	store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the snapshot store selected by the configured
// driver.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		return nil, err
	}

	var (
		st  store.Store
		err error
	)
	switch cfg.Data.StoreDriver {
	case "sqlite":
		st, err = sqlite.Open(filepath.Join(cfg.Data.Dir, "agent.db"), log.Logger)
	default:
		st, err = store.Open(filepath.Join(cfg.Data.Dir, "db"), log.Logger)
	}
	if err != nil {
		return nil, err
	}

	log.Info("Snapshot store initialized", "driver", cfg.Data.StoreDriver, "dir", cfg.Data.Dir)

	return &StoreHandle{Store: st}, nil
}
