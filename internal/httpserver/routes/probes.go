package routes

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/oneOoneData/TaxProExchange-sub003/internal/httpserver/deps"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/httpserver/handlers"
)

func init() { Register("probes", registerProbes, middleware.Timeout(5*time.Second)) }

func registerProbes(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))
	r.Get("/readyz", handlers.Readyz(d))
	if d.MetricsHandler != nil {
		r.Method("GET", "/metrics", d.MetricsHandler)
	}
}
