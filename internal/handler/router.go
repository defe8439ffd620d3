package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andres10976/certwatch/internal/middleware"
)

// NewRouter mounts the query API under /api/v1 and the Prometheus
// exposition at /metrics.
func NewRouter(corsOrigin string, gatherer prometheus.Gatherer, certs *CertificateHandler, mon *MonitorHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.CORS(corsOrigin))
	r.Use(middleware.Logger)
	r.Use(middleware.Recovery)

	r.Route("/api/v1", func(r chi.Router) {
		certs.RegisterRoutes(r)
		mon.RegisterRoutes(r)
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return r
}
