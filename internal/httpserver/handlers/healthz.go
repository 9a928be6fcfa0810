package handlers

import (
	"net/http"

	"github.com/oneOoneData/TaxProExchange-sub003/internal/httpserver/deps"
)

type healthzResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Version       string  `json:"version,omitempty"`
	Commit        string  `json:"commit,omitempty"`
	BuildDate     string  `json:"build_date,omitempty"`
	GoVersion     string  `json:"go_version,omitempty"`
}

// Healthz is the liveness probe. It never touches Postgres or Redis; see Readyz.
func Healthz(d deps.Deps) http.HandlerFunc {
	build := d.Build
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthzResponse{
			Status:        "ok",
			UptimeSeconds: d.Now().Sub(d.StartTime).Seconds(),
			Version:       build.Version,
			Commit:        build.Commit,
			BuildDate:     build.BuildDate,
			GoVersion:     build.GoVersion,
		})
	}
}
