package handlers

import (
	"net/http"

	"github.com/oneOoneData/TaxProExchange-sub003/internal/domain"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/httpserver/deps"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/logger"
)

type triggerResponse struct {
	Status string `json:"status"`
}

// TriggerBatch queues a manual batch run.
func TriggerBatch(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !d.Batches.Trigger() {
			d.Logger.Warn("batch already pending",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusTooManyRequests, triggerResponse{Status: "pending"})
			return
		}

		d.Logger.Info("manual batch triggered via endpoint",
			logger.String("remote_ip", r.RemoteAddr))
		writeJSON(w, http.StatusAccepted, triggerResponse{Status: "queued"})
	}
}

type statusResponse struct {
	Schedule      string           `json:"schedule"`
	TombstoneTTL  string           `json:"tombstone_ttl"`
	Tombstones    *int64           `json:"tombstones,omitempty"`
	UptimeSeconds float64          `json:"uptime_seconds"`
	LastBatch     *domain.BatchRun `json:"last_batch"`
}

// Status reports the schedule, the tombstone count and the most recent batch
// run. A failed count is logged and left out rather than failing the request.
func Status(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		last, err := d.BatchStatus.GetLastBatch(r.Context())
		if err != nil {
			d.Logger.Error("failed to read last batch", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to read batch status")
			return
		}

		ttl := "permanent"
		if d.TombstoneTTL > 0 {
			ttl = d.TombstoneTTL.String()
		}

		var tombstones *int64
		if d.Tombstones != nil {
			if n, err := d.Tombstones.Count(r.Context()); err != nil {
				d.Logger.Warn("failed to count tombstones", logger.Error(err))
			} else {
				tombstones = &n
			}
		}

		writeJSON(w, http.StatusOK, statusResponse{
			Schedule:      d.Batches.Schedule(),
			TombstoneTTL:  ttl,
			Tombstones:    tombstones,
			UptimeSeconds: d.Now().Sub(d.StartTime).Seconds(),
			LastBatch:     last,
		})
	}
}
