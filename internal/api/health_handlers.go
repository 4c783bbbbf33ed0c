package api

import (
	"net/http"
	"time"

	"github.com/readmarkapp/readmark-agent/internal/http/response"
)

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthResponse contains health check data.
type HealthResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version"`
	Components map[string]ComponentHealth `json:"components"`
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	components := make(map[string]ComponentHealth)
	overall := "healthy"

	dbHealth := s.checkDatabase(r)
	components["database"] = dbHealth
	if dbHealth.Status != "healthy" {
		overall = "unhealthy"
	}

	engineHealth := s.checkEngine()
	components["engine"] = engineHealth
	if engineHealth.Status == "degraded" && overall == "healthy" {
		overall = "degraded"
	}

	body := HealthResponse{
		Status:     overall,
		Version:    Version,
		Components: components,
	}
	if overall == "unhealthy" {
		response.JSON(w, http.StatusServiceUnavailable, body, s.logger)
		return
	}
	response.Success(w, body, s.logger)
}

// checkDatabase verifies the snapshot store is readable.
func (s *Server) checkDatabase(r *http.Request) ComponentHealth {
	if s.store == nil {
		return ComponentHealth{
			Status:  "degraded",
			Message: "store not configured",
		}
	}

	start := time.Now()

	// A missing snapshot is fine, the store is still reachable.
	_, err := s.store.LoadSnapshot(r.Context())
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  "unhealthy",
			Latency: latency.String(),
			Message: "snapshot read failed",
		}
	}

	return ComponentHealth{
		Status:  "healthy",
		Latency: latency.String(),
	}
}

// checkEngine reports whether reconciliation has produced a usable state.
func (s *Server) checkEngine() ComponentHealth {
	if s.engine == nil {
		return ComponentHealth{
			Status:  "degraded",
			Message: "engine not configured",
		}
	}

	if s.engine.Output().IsLoading {
		return ComponentHealth{
			Status:  "degraded",
			Message: "reconciliation in progress",
		}
	}

	return ComponentHealth{Status: "healthy"}
}
