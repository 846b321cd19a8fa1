package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pixeltracker/capi-relay/internal/domain"
	"github.com/pixeltracker/capi-relay/internal/queue"
)

// Sink delivers a single event to the remote API.
type Sink interface {
	Deliver(ctx context.Context, event domain.TrackingEvent) domain.DeliveryResult
}

// Processor executes one delivery job: it invokes the sink and reports the
// outcome back to the queue. The worker never retries locally; all retry
// decisions belong to the queue.
type Processor struct {
	queue  *queue.Queue
	sink   Sink
	logger *slog.Logger
}

func NewProcessor(q *queue.Queue, sink Sink, logger *slog.Logger) *Processor {
	return &Processor{queue: q, sink: sink, logger: logger}
}

// Process runs a single job. A panic inside one job is contained here so a
// bad payload never takes down sibling workers; the job consumes a retry
// like any other failure.
func (p *Processor) Process(ctx context.Context, job queue.Job) {
	// Bookkeeping must outlive ctx: the job was already claimed out of the
	// scheduled set, and an unrecorded outcome would strand it in active
	// state. A delivery aborted by cancellation still records its failure
	// and gets retried.
	record := context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic while processing job", "job_id", job.ID, "panic", r)
			if err := p.queue.Fail(record, job, fmt.Sprintf("panic: %v", r)); err != nil {
				p.logger.Error("failed to record job failure", "error", err, "job_id", job.ID)
			}
		}
	}()

	start := time.Now()
	result := p.sink.Deliver(ctx, job.Event)
	elapsed := time.Since(start)

	if result.Success {
		if err := p.queue.Complete(record, job, elapsed); err != nil {
			p.logger.Error("failed to mark job completed", "error", err, "job_id", job.ID)
		}
		return
	}

	if err := p.queue.Fail(record, job, result.Message); err != nil {
		p.logger.Error("failed to record job failure", "error", err, "job_id", job.ID)
	}
}
