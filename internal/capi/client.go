// Package capi is the only component that talks to the remote Conversions
// API. Delivery outcomes are values, never errors: network failures, remote
// rejections, and malformed responses all come back as an unsuccessful
// DeliveryResult so the worker's retry path stays reachable.
package capi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/pixeltracker/capi-relay/internal/domain"
)

const defaultBaseURL = "https://graph.facebook.com"

// Config holds the credentials and endpoint settings for the remote API,
// supplied by the settings layer outside this pipeline.
type Config struct {
	PixelID       string
	AccessToken   string
	APIVersion    string
	TestEventCode string
	// BaseURL overrides the Graph API host, mainly for tests.
	BaseURL string
}

// Client sends events to the Conversions API. Construct once at startup and
// share across workers; it is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a client. A missing pixel id or access token is logged loudly
// but not fatal: the server still runs so the operator can fix configuration
// through the settings layer.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v19.0"
	}
	if cfg.PixelID == "" || cfg.AccessToken == "" {
		logger.Warn("PIXEL_ID or ACCESS_TOKEN not configured, deliveries will fail until set")
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

type eventsRequest struct {
	Data          []domain.TrackingEvent `json:"data"`
	TestEventCode string                 `json:"test_event_code,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	Type    string `json:"type"`
}

type eventsResponse struct {
	EventsReceived int       `json:"events_received"`
	Messages       []string  `json:"messages,omitempty"`
	Error          *apiError `json:"error,omitempty"`
}

// Deliver sanitizes the event, POSTs it to the events endpoint, and
// interprets the response. Success means an HTTP 2xx response confirming
// exactly one event received; anything else is a failure with a message
// derived from the remote error payload when present.
func (c *Client) Deliver(ctx context.Context, event domain.TrackingEvent) domain.DeliveryResult {
	if c.cfg.PixelID == "" || c.cfg.AccessToken == "" {
		return domain.DeliveryResult{Success: false, Message: "pixel id or access token not configured"}
	}

	sanitized := Sanitize(event)

	endpoint := fmt.Sprintf("%s/%s/%s/events?access_token=%s",
		c.cfg.BaseURL, c.cfg.APIVersion, c.cfg.PixelID, url.QueryEscape(c.cfg.AccessToken))

	body, err := json.Marshal(eventsRequest{
		Data:          []domain.TrackingEvent{sanitized},
		TestEventCode: c.cfg.TestEventCode,
	})
	if err != nil {
		return domain.DeliveryResult{Success: false, Message: fmt.Sprintf("encoding payload: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.DeliveryResult{Success: false, Message: fmt.Sprintf("building request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Info("sending event to conversions api",
		"event_name", sanitized.EventName,
		"event_id", sanitized.EventID,
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts, DNS failures, refused connections: the worker retries these
		return domain.DeliveryResult{Success: false, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var parsed eventsResponse
	parseErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if parseErr == nil && parsed.Error != nil && parsed.Error.Message != "" {
			return domain.DeliveryResult{Success: false, Message: parsed.Error.Message}
		}
		return domain.DeliveryResult{Success: false, Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	if parseErr != nil {
		return domain.DeliveryResult{Success: false, Message: fmt.Sprintf("malformed response body: %v", parseErr)}
	}

	if parsed.EventsReceived == 1 {
		return domain.DeliveryResult{Success: true, Message: "event processed successfully"}
	}
	return domain.DeliveryResult{Success: false, Message: "event sent but not confirmed by the remote API"}
}

// TestConnection sends a synthetic diagnostic event through the same Deliver
// path as real traffic, so operator tooling validates the exact
// configuration production events will use.
func (c *Client) TestConnection(ctx context.Context) domain.DeliveryResult {
	if c.cfg.PixelID == "" || c.cfg.AccessToken == "" {
		return domain.DeliveryResult{Success: false, Message: "pixel id or access token not configured"}
	}

	event := domain.TrackingEvent{
		EventName:    "DiagnosticsTest",
		EventTime:    time.Now().Unix(),
		EventID:      fmt.Sprintf("test_%d", time.Now().UnixMilli()),
		ActionSource: domain.ActionSourceWebsite,
		UserData: &domain.UserData{
			ClientIPAddress: "127.0.0.1",
			ClientUserAgent: "capi-relay-diagnostics",
		},
	}

	return c.Deliver(ctx, event)
}
