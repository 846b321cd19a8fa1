// Package webhook translates commerce-platform webhook payloads into
// tracking events. Mappers are pure: given the same payload they produce the
// same event, and a payload that yields nothing returns nil rather than an
// error, so malformed webhooks are acknowledged and dropped.
package webhook

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pixeltracker/capi-relay/internal/domain"
)

// MapperFunc converts a webhook event into zero or one tracking event.
type MapperFunc func(domain.WebhookEvent) *domain.TrackingEvent

// HandlerFunc is a side-effecting webhook handler, independent of event
// mapping. Returns whether the webhook was handled.
type HandlerFunc func(domain.WebhookEvent) bool

// Registry looks up mappers and handlers by webhook topic.
type Registry struct {
	mappers  map[string]MapperFunc
	handlers map[string]HandlerFunc
	logger   *slog.Logger
}

// NewRegistry creates a registry preloaded with the Shopify topic mappings.
func NewRegistry(logger *slog.Logger) *Registry {
	r := &Registry{
		mappers:  make(map[string]MapperFunc),
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}
	r.registerShopifyMappers()
	return r
}

// RegisterMapper associates a topic with a mapper, replacing any existing one.
func (r *Registry) RegisterMapper(topic string, fn MapperFunc) {
	r.mappers[topic] = fn
}

// RegisterHandler associates a topic with a side-effecting handler.
func (r *Registry) RegisterHandler(topic string, fn HandlerFunc) {
	r.handlers[topic] = fn
}

// Map runs the mapper registered for topic. Returns nil when no mapper is
// registered or the payload yields no tracked event.
func (r *Registry) Map(topic string, payload json.RawMessage, shopDomain string) *domain.TrackingEvent {
	fn, ok := r.mappers[topic]
	if !ok {
		return nil
	}
	return fn(r.newWebhookEvent(topic, payload, shopDomain))
}

// ProcessWebhook runs the handler registered for topic, falling back to
// log-and-acknowledge. Used for webhooks that need acknowledgement but not
// necessarily pixel delivery.
func (r *Registry) ProcessWebhook(topic string, payload json.RawMessage, shopDomain string) bool {
	ev := r.newWebhookEvent(topic, payload, shopDomain)

	fn, ok := r.handlers[topic]
	if !ok {
		fn = r.defaultHandler
	}
	return fn(ev)
}

func (r *Registry) newWebhookEvent(topic string, payload json.RawMessage, shopDomain string) domain.WebhookEvent {
	return domain.WebhookEvent{
		ID:         fmt.Sprintf("wh_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8]),
		Topic:      topic,
		Payload:    payload,
		ShopDomain: shopDomain,
		Timestamp:  time.Now().Unix(),
	}
}

func (r *Registry) defaultHandler(ev domain.WebhookEvent) bool {
	r.logger.Info("webhook received",
		"webhook_id", ev.ID,
		"topic", ev.Topic,
		"shop_domain", ev.ShopDomain,
	)
	return true
}
