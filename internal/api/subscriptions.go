package api

import (
	"log/slog"
	"net/http"

	"github.com/Priya8975/payment-notification-core/internal/domain"
	"github.com/Priya8975/payment-notification-core/internal/notify"
	"github.com/go-chi/chi/v5"
)

type SubscriptionHandler struct {
	core   *notify.Core
	logger *slog.Logger
}

func NewSubscriptionHandler(core *notify.Core, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{core: core, logger: logger}
}

// Subscribe registers (or replaces) the merchant's webhook endpoint. The
// response carries the signing secret, which is never shown again.
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req domain.SubscribeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.core.Subscribe(r.Context(), req)
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, resp)
}

func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sub, err := h.core.GetSubscription(r.Context(), chi.URLParam(r, "merchantID"))
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, sub)
}

// Update toggles delivery for the merchant.
func (h *SubscriptionHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateSubscriptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Active == nil {
		respondError(w, http.StatusBadRequest, "active is required")
		return
	}

	sub, err := h.core.SetActive(r.Context(), chi.URLParam(r, "merchantID"), *req.Active)
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, sub)
}
