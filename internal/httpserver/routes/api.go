package routes

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/oneOoneData/TaxProExchange-sub003/internal/httpserver/deps"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/httpserver/handlers"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/httpserver/mw"
)

// A single validation may follow a heal attempt: up to four fetches.
const validateTimeout = 60 * time.Second

func init() { Register("api", registerAPI) }

func registerAPI(r chi.Router, d deps.Deps) {
	r.Route("/api", func(api chi.Router) {
		api.Use(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
		api.Use(mw.RateLimit(d.RateLimiter, mw.RateLimitConfig{
			Scope:      "api",
			PerMinute:  d.RateLimitPerMin,
			TrustProxy: d.TrustProxy,
		}, d.Logger))

		api.With(middleware.Timeout(validateTimeout)).Post("/events/{id}/validate", handlers.ValidateEvent(d))
		api.With(middleware.Timeout(5*time.Second)).Post("/validate/trigger", handlers.TriggerBatch(d))
		api.With(middleware.Timeout(5*time.Second)).Get("/status", handlers.Status(d))
	})
}
