package api

import (
	"net/http"

	"github.com/pixeltracker/capi-relay/internal/queue"
)

// StatsHandler exposes the queue's own counters: depth of the waiting set,
// completed deliveries, and terminal failures.
type StatsHandler struct {
	queue *queue.Queue
}

func NewStatsHandler(q *queue.Queue) *StatsHandler {
	return &StatsHandler{queue: q}
}

type statsResponse struct {
	QueueDepth int64 `json:"queue_depth"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}

func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	depth, err := h.queue.Depth(ctx)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "failed to read queue stats",
			"error":   err.Error(),
		})
		return
	}

	completed, _ := h.queue.CompletedCount(ctx)
	failed, _ := h.queue.FailedCount(ctx)

	respondJSON(w, http.StatusOK, statsResponse{
		QueueDepth: depth,
		Completed:  completed,
		Failed:     failed,
	})
}
