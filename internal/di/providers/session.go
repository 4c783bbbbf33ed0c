package providers

import (
	"github.com/samber/do/v2"

	"github.com/readmarkapp/readmark-agent/internal/config"
	"github.com/readmarkapp/readmark-agent/internal/logger"
	"github.com/readmarkapp/readmark-agent/internal/session"
)

// ProvideSessionManager provides the session manager. Without a configured
// token key the agent runs anonymous-only and rejects handovers.
func ProvideSessionManager(i do.Injector) (*session.Manager, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	var verifier *session.TokenVerifier
	if cfg.Session.TokenKeyHex != "" {
		v, err := session.NewTokenVerifier(cfg.Session.TokenKeyHex)
		if err != nil {
			return nil, err
		}
		verifier = v
	} else {
		log.Warn("no session token key configured, running anonymous-only")
	}

	return session.NewManager(verifier, log.Logger), nil
}
