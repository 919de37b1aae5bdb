package api

import (
	"log/slog"
	"net/http"

	"github.com/Priya8975/payment-notification-core/internal/notify"
	ws "github.com/Priya8975/payment-notification-core/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterOptions carries the optional parts of the HTTP surface.
type RouterOptions struct {
	Hub          *ws.Hub
	Limiter      TriggerLimiter
	TriggerLimit int
}

// NewRouter creates and configures the HTTP router.
func NewRouter(core *notify.Core, logger *slog.Logger, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// CORS for dashboard
	r.Use(corsMiddleware)

	subHandler := NewSubscriptionHandler(core, logger)
	eventHandler := NewEventHandler(core, opts.Limiter, opts.TriggerLimit, logger)
	deliveryHandler := NewDeliveryHandler(core, logger)
	verifyHandler := NewVerifyHandler(core, logger)
	dashHandler := NewDashboardHandler(core, opts.Hub)

	if opts.Hub != nil {
		r.Get("/ws", opts.Hub.HandleWebSocket)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler())

		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/subscribe", subHandler.Subscribe)
			r.Get("/subscriptions/{merchantID}", subHandler.Get)
			r.Patch("/subscriptions/{merchantID}", subHandler.Update)

			r.Post("/trigger", eventHandler.Trigger)
			r.Get("/events/{merchantID}", eventHandler.List)

			r.Get("/deliveries/{merchantID}", deliveryHandler.List)
			r.Get("/stats/{merchantID}", deliveryHandler.Stats)
			r.Get("/health/{merchantID}", deliveryHandler.Health)

			r.Post("/verify", verifyHandler.Verify)
			r.Get("/status", dashHandler.Status)
		})
	})

	return r
}

// corsMiddleware adds CORS headers for dashboard development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Webhook-Signature, X-Webhook-Secret")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
