package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/oneOoneData/TaxProExchange-sub003/internal/httpserver/deps"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/logger"
)

const readinessTimeout = 2 * time.Second

type readyzResponse struct {
	Ready  bool              `json:"ready"`
	Checks map[string]string `json:"checks"`
}

// Readyz probes every dependency and answers 503 if any of them fails.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := readyzResponse{Ready: true, Checks: make(map[string]string, len(d.Readiness))}

		for _, c := range d.Readiness {
			ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
			err := c.Check(ctx)
			cancel()

			if err != nil {
				resp.Ready = false
				resp.Checks[c.Name] = err.Error()
				d.Logger.Warn("readiness check failed",
					logger.String("check", c.Name),
					logger.Error(err))
				continue
			}
			resp.Checks[c.Name] = "ok"
		}

		status := http.StatusOK
		if !resp.Ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}
