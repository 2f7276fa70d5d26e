// Package http wires the route tree and the server lifecycle for the
// analytics API.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/citescope/citescope/internal/infrastructure/monitoring/logging"
	"github.com/citescope/citescope/internal/infrastructure/monitoring/prometheus"
	"github.com/citescope/citescope/internal/interfaces/http/handlers"
	"github.com/citescope/citescope/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and infrastructure the route tree
// needs.
type RouterConfig struct {
	CitationHandler *handlers.CitationHandler
	HealthHandler   *handlers.HealthHandler

	CORSOrigins []string
	Logger      logging.Logger
	Metrics     *prometheus.AppMetrics
	Collector   prometheus.MetricsCollector
}

// NewRouter builds the complete route tree.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	if cfg.Logger != nil {
		r.Use(middleware.RequestLogging(cfg.Logger, middleware.DefaultLoggingConfig()))
	}
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.Collector != nil {
		r.Handle("/metrics", cfg.Collector.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		registerCitationRoutes(api, cfg.CitationHandler)
	})

	return r
}

// registerCitationRoutes mounts the analytics endpoints under /citation.
func registerCitationRoutes(r chi.Router, h *handlers.CitationHandler) {
	if h == nil {
		return
	}
	r.Route("/citation", func(cr chi.Router) {
		cr.Post("/impact", h.Impact)
		cr.Post("/risk-radar", h.RiskRadar)
		cr.Post("/risk-radar/export", h.ExportRiskRadar)
		cr.Post("/dependency-matrix", h.DependencyMatrix)
		cr.Post("/encroachment", h.Encroachment)
		cr.Post("/portfolio", h.Portfolio)
		cr.Post("/cache/invalidate", h.InvalidateCache)
	})
}
