package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/profilequest/pkg/logger"
	"github.com/okian/profilequest/pkg/metrics"
)

// MetricsHandler serves the service's Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}

type healthResponse struct {
	Status string `json:"status"`
}

// handleHealth reports 503 when the store is unreachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Health(r.Context()); err != nil {
		s.logger.Warn(r.Context(), "health check failed", logger.Error(err))
		writeError(w, http.StatusServiceUnavailable, "unavailable", nil)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
