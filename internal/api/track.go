package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pixeltracker/capi-relay/internal/domain"
	"github.com/pixeltracker/capi-relay/internal/queue"
)

// TrackHandler accepts tracking events and enqueues them for asynchronous
// delivery. It never blocks on the remote API.
type TrackHandler struct {
	queue  *queue.Queue
	logger *slog.Logger
}

func NewTrackHandler(q *queue.Queue, logger *slog.Logger) *TrackHandler {
	return &TrackHandler{queue: q, logger: logger}
}

type trackRequest struct {
	EventName    string           `json:"event_name"`
	EventTime    int64            `json:"event_time,omitempty"`
	EventID      string           `json:"event_id,omitempty"`
	ActionSource string           `json:"action_source,omitempty"`
	Value        *float64         `json:"value,omitempty"`
	Currency     string           `json:"currency,omitempty"`
	UserData     *domain.UserData `json:"user_data,omitempty"`
	CustomData   map[string]any   `json:"custom_data,omitempty"`
	// Browser pixel cookie, accepted at the top level for clients that do
	// not build a full user_data object
	Fbp string `json:"fbp,omitempty"`
}

type fieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type trackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	EventID string `json:"event_id"`
}

// Track validates the request, fills defaults (event id, event time, action
// source), and enqueues one job. The acknowledgement carries the resolved
// event id; delivery happens asynchronously.
func (h *TrackHandler) Track(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   []fieldViolation{{Field: "body", Message: "invalid JSON"}},
		})
		return
	}

	if violations := validateTrackRequest(req); len(violations) > 0 {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   violations,
		})
		return
	}

	event := domain.TrackingEvent{
		EventName:    req.EventName,
		EventTime:    req.EventTime,
		EventID:      req.EventID,
		ActionSource: req.ActionSource,
		Value:        req.Value,
		Currency:     req.Currency,
		UserData:     req.UserData,
		CustomData:   req.CustomData,
	}
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.EventTime == 0 {
		event.EventTime = time.Now().Unix()
	}
	if event.ActionSource == "" {
		event.ActionSource = domain.ActionSourceWebsite
	}
	if req.Fbp != "" {
		if event.UserData == nil {
			event.UserData = &domain.UserData{}
		}
		// An explicit user_data.fbp wins over the shorthand
		if event.UserData.Fbp == "" {
			event.UserData.Fbp = req.Fbp
		}
	}

	jobID, err := h.queue.Enqueue(r.Context(), event)
	if err != nil {
		h.logger.Error("failed to enqueue event", "error", err, "event_id", event.EventID)
		respondJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "failed to queue event for processing",
			"error":   err.Error(),
		})
		return
	}

	h.logger.Info("event enqueued",
		"event_name", event.EventName,
		"event_id", event.EventID,
		"job_id", jobID,
	)

	respondJSON(w, http.StatusOK, trackResponse{
		Success: true,
		Message: "event queued for delivery",
		EventID: event.EventID,
	})
}

func validateTrackRequest(req trackRequest) []fieldViolation {
	var violations []fieldViolation

	if req.EventName == "" {
		violations = append(violations, fieldViolation{
			Field:   "event_name",
			Message: "event_name is required",
		})
	}
	if req.ActionSource != "" && !domain.ValidActionSource(req.ActionSource) {
		violations = append(violations, fieldViolation{
			Field:   "action_source",
			Message: "action_source must be one of website, mobile_app, email, other",
		})
	}
	if req.EventTime < 0 {
		violations = append(violations, fieldViolation{
			Field:   "event_time",
			Message: "event_time must be a positive Unix timestamp",
		})
	}
	if req.Value != nil && *req.Value < 0 {
		violations = append(violations, fieldViolation{
			Field:   "value",
			Message: "value must not be negative",
		})
	}

	return violations
}
