package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/readmarkapp/readmark-agent/internal/api"
	"github.com/readmarkapp/readmark-agent/internal/config"
	"github.com/readmarkapp/readmark-agent/internal/engine"
	"github.com/readmarkapp/readmark-agent/internal/logger"
	"github.com/readmarkapp/readmark-agent/internal/session"
	"github.com/readmarkapp/readmark-agent/internal/visibility"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the localhost HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	eng := do.MustInvoke[*engine.Engine](i)
	sessions := do.MustInvoke[*session.Manager](i)
	tracker := do.MustInvoke[*visibility.Tracker](i)

	handler := api.NewServer(cfg, eng, sessions, tracker, storeHandle.Store, log.Logger)

	srv := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}
