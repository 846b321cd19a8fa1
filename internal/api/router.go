package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pixeltracker/capi-relay/internal/capi"
	"github.com/pixeltracker/capi-relay/internal/queue"
	"github.com/pixeltracker/capi-relay/internal/webhook"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(sink *capi.Client, q *queue.Queue, registry *webhook.Registry, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// CORS for the settings/dashboard frontend
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))

	trackHandler := NewTrackHandler(q, logger)
	webhookHandler := NewWebhookHandler(registry, q, logger)
	diagHandler := NewDiagnosticsHandler(sink)
	statsHandler := NewStatsHandler(q)

	r.Get("/healthz", HealthHandler())
	r.Post("/track", trackHandler.Track)
	r.Post("/webhooks/shopify", webhookHandler.Receive)
	r.Post("/diagnostics/connection", diagHandler.TestConnection)
	r.Get("/stats", statsHandler.Stats)

	return r
}
