package api

import (
	"net/http"

	"github.com/Priya8975/payment-notification-core/internal/domain"
	"github.com/Priya8975/payment-notification-core/internal/notify"
	ws "github.com/Priya8975/payment-notification-core/internal/websocket"
)

type DashboardHandler struct {
	core *notify.Core
	hub  *ws.Hub
}

func NewDashboardHandler(core *notify.Core, hub *ws.Hub) *DashboardHandler {
	return &DashboardHandler{core: core, hub: hub}
}

type statusResponse struct {
	SupportedEvents  []domain.EventKind `json:"supported_events"`
	WebSocketClients int                `json:"websocket_clients"`
}

// Status lists the subscribable event kinds and the live dashboard count.
func (h *DashboardHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{SupportedEvents: h.core.SupportedEvents()}
	if h.hub != nil {
		resp.WebSocketClients = h.hub.ClientCount()
	}
	respondJSON(w, http.StatusOK, resp)
}
