package handler

import (
	"net/http"

	"github.com/medflow/medpredict-backend/pkg/httputil"
)

// Health reports liveness, whether a snapshot is loaded and the state of
// registered dependencies.
func (h *PredictionHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := h.svc.Status()

	body := map[string]interface{}{
		"status":      "healthy",
		"service":     "prediction-service",
		"data_loaded": status.Loaded,
		"version":     status.Version,
	}
	for name, check := range h.checks {
		body[name] = check(r.Context())
	}

	httputil.JSON(w, http.StatusOK, body)
}

// Status returns the active snapshot and the last reload attempt
func (h *PredictionHandler) Status(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, h.svc.Status())
}

// Reload rebuilds the snapshot from the data source
func (h *PredictionHandler) Reload(w http.ResponseWriter, r *http.Request) {
	log := h.logger.WithRequestID(httputil.GetRequestID(r.Context()))

	status, err := h.svc.Reload(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("manual reload failed")
		httputil.Error(w, err)
		return
	}

	log.Info().
		Uint64("version", status.Version).
		Int64("duration_ms", status.DurationMS).
		Msg("manual reload completed")

	httputil.JSON(w, http.StatusOK, status)
}
