package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/readmarkapp/readmark-agent/internal/config"
	"github.com/readmarkapp/readmark-agent/internal/domain"
	"github.com/readmarkapp/readmark-agent/internal/engine"
	"github.com/readmarkapp/readmark-agent/internal/logger"
	"github.com/readmarkapp/readmark-agent/internal/remote"
	"github.com/readmarkapp/readmark-agent/internal/session"
	"github.com/readmarkapp/readmark-agent/internal/visibility"
)

// ProvideVisibilityTracker provides the shell visibility tracker.
func ProvideVisibilityTracker(i do.Injector) (*visibility.Tracker, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return visibility.NewTracker(log.Logger), nil
}

// SchedulerHandle wraps the reveal scheduler so pending reveals are
// cancelled on shutdown.
type SchedulerHandle struct {
	*visibility.Scheduler
}

// Shutdown implements do.Shutdownable.
func (h *SchedulerHandle) Shutdown() error {
	h.Cancel()
	return nil
}

// ProvideRevealScheduler provides the visibility-gated reveal scheduler.
func ProvideRevealScheduler(i do.Injector) (*SchedulerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	tracker := do.MustInvoke[*visibility.Tracker](i)

	scheduler := visibility.NewScheduler(tracker, cfg.Reveal.VisibleDelay, cfg.Reveal.HiddenDelay, log.Logger)
	return &SchedulerHandle{Scheduler: scheduler}, nil
}

// ProvideEngine provides the reconciliation engine, started and wired to
// session changes.
func ProvideEngine(i do.Injector) (*engine.Engine, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	fetcher := do.MustInvoke[*remote.Fetcher](i)
	sessions := do.MustInvoke[*session.Manager](i)
	schedulerHandle := do.MustInvoke[*SchedulerHandle](i)

	eng := engine.New(storeHandle.Store, fetcher, sessions, schedulerHandle.Scheduler, domain.DefaultThresholds, log.Logger)

	sessions.OnChange(func() {
		eng.OnSessionChanged(context.Background())
	})

	eng.Start(context.Background())
	log.Info("Reconciliation engine started")

	return eng, nil
}
