package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oneOoneData/TaxProExchange-sub003/internal/domain"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/httpserver/deps"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/logger"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/validation"
)

// ValidateEvent runs a single-event validation and returns its result.
func ValidateEvent(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, http.StatusBadRequest, "missing event id")
			return
		}

		res := d.Validator.ValidateEventByID(r.Context(), id)
		status := resultStatus(res)
		if status >= http.StatusInternalServerError {
			d.Logger.Error("single event validation failed",
				logger.EventID(id),
				logger.String("error", res.Error))
		}
		writeJSON(w, status, res)
	}
}

func resultStatus(res validation.SingleResult) int {
	switch {
	case res.Success:
		return http.StatusOK
	case errors.Is(res.Err, domain.ErrEventNotFound):
		return http.StatusNotFound
	case errors.Is(res.Err, validation.ErrNoURL):
		return http.StatusUnprocessableEntity
	case errors.Is(res.Err, validation.ErrLocked):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
