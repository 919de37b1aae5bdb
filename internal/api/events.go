package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Priya8975/payment-notification-core/internal/domain"
	"github.com/Priya8975/payment-notification-core/internal/engine"
	"github.com/Priya8975/payment-notification-core/internal/notify"
	"github.com/go-chi/chi/v5"
)

// TriggerLimiter caps trigger calls per merchant. limit <= 0 disables it.
type TriggerLimiter interface {
	Reserve(ctx context.Context, merchantID string, limit int) engine.RateDecision
}

type EventHandler struct {
	core    *notify.Core
	limiter TriggerLimiter
	limit   int
	logger  *slog.Logger
}

func NewEventHandler(core *notify.Core, limiter TriggerLimiter, limit int, logger *slog.Logger) *EventHandler {
	return &EventHandler{core: core, limiter: limiter, limit: limit, logger: logger}
}

// Trigger records a payment state change and delivers its webhook. Delivery
// failures still answer 201; the receipt says whether the webhook went out.
func (h *EventHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req domain.TriggerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if h.limiter != nil && req.MerchantID != "" {
		d := h.limiter.Reserve(r.Context(), req.MerchantID, h.limit)
		setRateLimitHeaders(w, d)
		if !d.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(ceilSeconds(d.ResetAfter)))
			respondError(w, http.StatusTooManyRequests, "trigger rate limit exceeded")
			return
		}
	}

	receipt, err := h.core.Trigger(r.Context(), req)
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, receipt)
}

// List returns the merchant's event log, oldest first.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	resp, err := h.core.ListEvents(r.Context(), chi.URLParam(r, "merchantID"))
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func setRateLimitHeaders(w http.ResponseWriter, d engine.RateDecision) {
	if d.Limit <= 0 {
		return
	}
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.Itoa(ceilSeconds(d.ResetAfter)))
}

// ceilSeconds rounds up to whole seconds, never below one.
func ceilSeconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	return max(s, 1)
}
