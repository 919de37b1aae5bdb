package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Priya8975/payment-notification-core/internal/notify"
	"github.com/go-chi/chi/v5"
)

const defaultDeliveryLimit = 50

type DeliveryHandler struct {
	core   *notify.Core
	logger *slog.Logger
}

func NewDeliveryHandler(core *notify.Core, logger *slog.Logger) *DeliveryHandler {
	return &DeliveryHandler{core: core, logger: logger}
}

// List returns recent delivery outcomes, newest first.
func (h *DeliveryHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultDeliveryLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	outcomes, err := h.core.ListDeliveries(r.Context(), chi.URLParam(r, "merchantID"), limit)
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, outcomes)
}

func (h *DeliveryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.core.Stats(r.Context(), chi.URLParam(r, "merchantID"))
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// Health reports the merchant endpoint's recent delivery health.
func (h *DeliveryHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.core.EndpointHealth(r.Context(), chi.URLParam(r, "merchantID")))
}
