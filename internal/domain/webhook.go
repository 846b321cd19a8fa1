package domain

import "encoding/json"

// WebhookEvent is the ephemeral input handed to the mapper registry. It is
// not persisted beyond the mapping call.
type WebhookEvent struct {
	ID         string          `json:"id"`
	Topic      string          `json:"topic"`
	Payload    json.RawMessage `json:"payload"`
	ShopDomain string          `json:"shop_domain,omitempty"`
	Timestamp  int64           `json:"timestamp"`
}
