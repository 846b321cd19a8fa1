package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pixeltracker/capi-relay/internal/queue"
)

// Pool manages a fixed number of worker goroutines that process delivery
// jobs. Each slot handles one job fully before accepting another.
type Pool struct {
	numWorkers int
	jobs       chan queue.Job
	processor  *Processor
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// NewPool creates a worker pool with the given number of workers.
func NewPool(numWorkers int, processor *Processor, logger *slog.Logger) *Pool {
	return &Pool{
		numWorkers: numWorkers,
		jobs:       make(chan queue.Job, numWorkers*2),
		processor:  processor,
		logger:     logger,
	}
}

// Start launches all worker goroutines. They read from the jobs channel
// until it is closed or the context is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.logger.Info("worker pool started", "num_workers", p.numWorkers)
}

// Submit sends a job to the worker pool via the jobs channel.
func (p *Pool) Submit(job queue.Job) {
	p.jobs <- job
}

// Stop closes the jobs channel and waits for all workers to finish. Every
// job already submitted is processed before workers exit: a submitted job
// was claimed out of the scheduled set, so abandoning it here would lose it.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// worker is a single goroutine that processes jobs from the channel until it
// is closed. It deliberately ignores context cancellation between jobs;
// draining is bounded by the sink's HTTP timeout per job.
func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for job := range p.jobs {
		p.processor.Process(ctx, job)
	}
}
