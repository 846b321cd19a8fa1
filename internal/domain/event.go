package domain

// Standard event names from the Conversions API vocabulary. Custom names
// are also accepted; these are the ones the webhook mappers produce.
const (
	EventViewContent      = "ViewContent"
	EventAddToCart        = "AddToCart"
	EventInitiateCheckout = "InitiateCheckout"
	EventPurchase         = "Purchase"
)

// Action sources accepted by the Conversions API.
const (
	ActionSourceWebsite   = "website"
	ActionSourceMobileApp = "mobile_app"
	ActionSourceEmail     = "email"
	ActionSourceOther     = "other"
)

// ValidActionSource reports whether s is one of the accepted action sources.
func ValidActionSource(s string) bool {
	switch s {
	case ActionSourceWebsite, ActionSourceMobileApp, ActionSourceEmail, ActionSourceOther:
		return true
	}
	return false
}

// UserData carries the identity fields the Conversions API matches on.
// Hashable fields (em, ph, fn, ...) are expected to arrive pre-hashed from
// the caller. Empty fields are omitted from the wire payload.
type UserData struct {
	Em              string `json:"em,omitempty"`
	Ph              string `json:"ph,omitempty"`
	Fn              string `json:"fn,omitempty"`
	Ln              string `json:"ln,omitempty"`
	Ct              string `json:"ct,omitempty"`
	St              string `json:"st,omitempty"`
	Zp              string `json:"zp,omitempty"`
	Country         string `json:"country,omitempty"`
	ExternalID      string `json:"external_id,omitempty"`
	ClientIPAddress string `json:"client_ip_address,omitempty"`
	ClientUserAgent string `json:"client_user_agent,omitempty"`
	Fbp             string `json:"fbp,omitempty"`
	Fbc             string `json:"fbc,omitempty"`
}

// IsEmpty reports whether every identity field is blank.
func (u UserData) IsEmpty() bool {
	return u == UserData{}
}

// Content is one line item inside an event's custom data.
type Content struct {
	ID        string  `json:"id"`
	Quantity  int     `json:"quantity"`
	ItemPrice float64 `json:"item_price"`
}

// TrackingEvent is the unit of work flowing through the pipeline: created at
// ingestion or by a webhook mapper, enqueued, and delivered to the remote
// Conversions API. Immutable once enqueued; a retry resends the same content.
type TrackingEvent struct {
	EventName      string         `json:"event_name"`
	EventTime      int64          `json:"event_time,omitempty"`
	EventID        string         `json:"event_id,omitempty"`
	ActionSource   string         `json:"action_source,omitempty"`
	EventSourceURL string         `json:"event_source_url,omitempty"`
	Value          *float64       `json:"value,omitempty"`
	Currency       string         `json:"currency,omitempty"`
	UserData       *UserData      `json:"user_data,omitempty"`
	CustomData     map[string]any `json:"custom_data,omitempty"`
}

// DeliveryResult is the outcome of one delivery attempt, reported by the
// sink adapter to the worker and, for connection tests, to the caller.
type DeliveryResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
