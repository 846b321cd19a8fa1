package queue

import (
	"github.com/pixeltracker/capi-relay/internal/domain"
)

// Job statuses. Waiting and active are transient; completed and failed are
// terminal. A failed job is never retried again.
const (
	StatusWaiting   = "waiting"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// DefaultMaxAttempts is the fixed retry budget for delivery jobs.
const DefaultMaxAttempts = 3

// Job wraps a TrackingEvent with queue bookkeeping. The serialized form is
// what lives in the Redis sorted set.
type Job struct {
	ID           string               `json:"id"`
	Event        domain.TrackingEvent `json:"event"`
	AttemptsMade int                  `json:"attempts_made"`
	MaxAttempts  int                  `json:"max_attempts"`
	EnqueuedAt   int64                `json:"enqueued_at"`
}
