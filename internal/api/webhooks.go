package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/pixeltracker/capi-relay/internal/queue"
	"github.com/pixeltracker/capi-relay/internal/webhook"
)

const maxWebhookBody = 1 << 20 // 1MB

// WebhookHandler receives commerce-platform webhooks, runs them through the
// mapper registry, and enqueues any resulting tracking event on the same
// pipeline the /track endpoint feeds.
type WebhookHandler struct {
	registry *webhook.Registry
	queue    *queue.Queue
	logger   *slog.Logger
}

func NewWebhookHandler(registry *webhook.Registry, q *queue.Queue, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{registry: registry, queue: q, logger: logger}
}

type webhookResponse struct {
	Received bool   `json:"received"`
	Tracked  bool   `json:"tracked"`
	EventID  string `json:"event_id,omitempty"`
}

// Receive handles a Shopify webhook. The topic and shop domain come from the
// standard Shopify headers. A webhook that maps to no event is still
// acknowledged with 200 so the platform does not redeliver it.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	topic := r.Header.Get("X-Shopify-Topic")
	shopDomain := r.Header.Get("X-Shopify-Shop-Domain")

	if topic == "" {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "missing X-Shopify-Topic header",
		})
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil || !json.Valid(payload) {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "body must be valid JSON",
		})
		return
	}

	handled := h.registry.ProcessWebhook(topic, payload, shopDomain)
	resp := webhookResponse{Received: handled}

	if event := h.registry.Map(topic, payload, shopDomain); event != nil {
		// Stable event ids let the remote API dedupe redeliveries. Mappers
		// derive one from the resource where they can; otherwise Shopify's
		// delivery id keeps retries of the same webhook deduplicable.
		if event.EventID == "" {
			if deliveryID := r.Header.Get("X-Shopify-Webhook-Id"); deliveryID != "" {
				event.EventID = "wh_" + deliveryID
			} else {
				event.EventID = uuid.NewString()
			}
		}

		jobID, err := h.queue.Enqueue(r.Context(), *event)
		if err != nil {
			h.logger.Error("failed to enqueue webhook event",
				"error", err, "topic", topic, "event_id", event.EventID)
			respondJSON(w, http.StatusInternalServerError, map[string]any{
				"success": false,
				"message": "failed to queue event for processing",
				"error":   err.Error(),
			})
			return
		}

		h.logger.Info("webhook mapped to event",
			"topic", topic,
			"shop_domain", shopDomain,
			"event_name", event.EventName,
			"event_id", event.EventID,
			"job_id", jobID,
		)

		resp.Tracked = true
		resp.EventID = event.EventID
	}

	respondJSON(w, http.StatusOK, resp)
}
