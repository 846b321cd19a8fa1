package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pixeltracker/capi-relay/internal/domain"
)

// Redis keys. The sorted set holds serialized jobs scored by the time they
// become eligible for dispatch; the per-job hash tracks status and attempts.
const (
	scheduledKey        = "capi:scheduled"
	failedKey           = "capi:failed"
	completedCounterKey = "capi:stats:completed"
	jobKeyPrefix        = "capi:job:"
)

// Queue is a durable, Redis-backed job queue with exponential retry backoff.
// Jobs survive process restarts; retry scheduling is expressed as the sorted
// set score, so a retried job only becomes claimable after its delay elapses.
type Queue struct {
	client      *redis.Client
	logger      *slog.Logger
	maxAttempts int
	backoffBase time.Duration
}

// Option adjusts queue policy.
type Option func(*Queue)

// WithBackoffBase overrides the base retry delay. Tests use this to shrink
// the schedule; production keeps the 1000ms default.
func WithBackoffBase(d time.Duration) Option {
	return func(q *Queue) {
		q.backoffBase = d
	}
}

// New creates a queue with the fixed delivery retry policy: 3 attempts,
// exponential backoff from a 1000ms base.
func New(client *redis.Client, logger *slog.Logger, opts ...Option) *Queue {
	q := &Queue{
		client:      client,
		logger:      logger,
		maxAttempts: DefaultMaxAttempts,
		backoffBase: time.Second,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}

// Enqueue stores the event as a new waiting job, immediately eligible for
// dispatch. Returns the job id. No deduplication happens here; repeated
// calls with the same event id produce separate jobs.
func (q *Queue) Enqueue(ctx context.Context, event domain.TrackingEvent) (string, error) {
	job := Job{
		ID:           uuid.NewString(),
		Event:        event,
		AttemptsMade: 0,
		MaxAttempts:  q.maxAttempts,
		EnqueuedAt:   time.Now().Unix(),
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshaling job: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.ZAdd(ctx, scheduledKey, redis.Z{
		Score:  float64(time.Now().UnixMicro()),
		Member: string(payload),
	})
	pipe.HSet(ctx, jobKey(job.ID),
		"status", StatusWaiting,
		"attempts", job.AttemptsMade,
	)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("queuing job: %w", err)
	}

	return job.ID, nil
}

// Claim fetches up to batch ready jobs (score <= now), removes them from the
// sorted set, and marks them active. The ZRem acts as the claim: if another
// dispatcher already removed the member, the job is skipped, so each job is
// handed to exactly one worker.
func (q *Queue) Claim(ctx context.Context, batch int64) ([]Job, error) {
	now := float64(time.Now().UnixMicro())

	results, err := q.client.ZRangeByScoreWithScores(ctx, scheduledKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   formatFloat(now),
		Count: batch,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("reading scheduled jobs: %w", err)
	}

	var claimed []Job
	for _, z := range results {
		member := z.Member.(string)

		removed, err := q.client.ZRem(ctx, scheduledKey, member).Result()
		if err != nil {
			q.logger.Error("failed to claim job", "error", err)
			continue
		}
		if removed == 0 {
			// Another dispatcher instance already claimed this job
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			q.logger.Error("failed to unmarshal job", "error", err)
			continue
		}

		// The serialized job is kept in the hash while active so a claim
		// that never records an outcome (crash, kill -9) can be requeued
		// by RecoverStale on the next start
		if err := q.client.HSet(ctx, jobKey(job.ID),
			"status", StatusActive,
			"payload", member,
		).Err(); err != nil {
			q.logger.Error("failed to mark job active", "error", err, "job_id", job.ID)
		}

		claimed = append(claimed, job)
	}

	return claimed, nil
}

// Complete transitions the job to completed and prunes its state. Delivery
// history beyond the completion counter is not retained.
func (q *Queue) Complete(ctx context.Context, job Job, elapsed time.Duration) error {
	pipe := q.client.TxPipeline()
	pipe.Del(ctx, jobKey(job.ID))
	pipe.Incr(ctx, completedCounterKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("completing job: %w", err)
	}

	q.logger.Info("job completed",
		"job_id", job.ID,
		"event_name", job.Event.EventName,
		"event_id", job.Event.EventID,
		"attempt", job.AttemptsMade+1,
		"duration_ms", elapsed.Milliseconds(),
	)
	return nil
}

// Fail records a failed delivery attempt. While the retry budget lasts the
// job is rescheduled after the backoff delay; once attempts reach the
// maximum it transitions to the terminal failed state, retaining the last
// error message.
func (q *Queue) Fail(ctx context.Context, job Job, message string) error {
	job.AttemptsMade++

	if job.AttemptsMade >= job.MaxAttempts {
		pipe := q.client.TxPipeline()
		pipe.HSet(ctx, jobKey(job.ID),
			"status", StatusFailed,
			"attempts", job.AttemptsMade,
			"last_error", message,
			"failed_at", time.Now().Unix(),
		)
		pipe.SAdd(ctx, failedKey, job.ID)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("marking job failed: %w", err)
		}

		q.logger.Warn("job failed permanently",
			"job_id", job.ID,
			"event_id", job.Event.EventID,
			"attempts", job.AttemptsMade,
			"error", message,
		)
		return nil
	}

	delay := q.backoffDelay(job.AttemptsMade)

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling job for retry: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.ZAdd(ctx, scheduledKey, redis.Z{
		Score:  float64(time.Now().Add(delay).UnixMicro()),
		Member: string(payload),
	})
	pipe.HSet(ctx, jobKey(job.ID),
		"status", StatusWaiting,
		"attempts", job.AttemptsMade,
		"last_error", message,
	)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rescheduling job: %w", err)
	}

	q.logger.Warn("delivery failed, retry scheduled",
		"job_id", job.ID,
		"event_id", job.Event.EventID,
		"attempt", job.AttemptsMade,
		"retry_in_ms", delay.Milliseconds(),
		"error", message,
	)
	return nil
}

// backoffDelay computes the delay before the next attempt: base * 2^(n-1),
// so with the 1000ms base the schedule is 1s, 2s.
func (q *Queue) backoffDelay(attemptsMade int) time.Duration {
	return q.backoffBase * time.Duration(1<<uint(attemptsMade-1))
}

// RecoverStale returns claimed-but-unfinished jobs to the waiting set. A job
// left in active state means a previous process stopped between claiming it
// and recording an outcome; requeuing it preserves at-least-once delivery.
// Run at startup, before the dispatcher starts claiming.
func (q *Queue) RecoverStale(ctx context.Context) (int, error) {
	recovered := 0

	iter := q.client.Scan(ctx, 0, jobKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		state, err := q.client.HGetAll(ctx, key).Result()
		if err != nil {
			return recovered, fmt.Errorf("reading job state: %w", err)
		}
		if state["status"] != StatusActive || state["payload"] == "" {
			continue
		}

		pipe := q.client.TxPipeline()
		pipe.ZAdd(ctx, scheduledKey, redis.Z{
			Score:  float64(time.Now().UnixMicro()),
			Member: state["payload"],
		})
		pipe.HSet(ctx, key, "status", StatusWaiting)
		if _, err := pipe.Exec(ctx); err != nil {
			return recovered, fmt.Errorf("requeuing stale job: %w", err)
		}
		recovered++
	}
	if err := iter.Err(); err != nil {
		return recovered, fmt.Errorf("scanning job state: %w", err)
	}

	return recovered, nil
}

// Depth returns the number of jobs currently waiting for dispatch.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, scheduledKey).Result()
}

// FailedCount returns the number of jobs in the terminal failed state.
func (q *Queue) FailedCount(ctx context.Context) (int64, error) {
	return q.client.SCard(ctx, failedKey).Result()
}

// CompletedCount returns the number of successfully delivered jobs.
func (q *Queue) CompletedCount(ctx context.Context) (int64, error) {
	n, err := q.client.Get(ctx, completedCounterKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// JobState returns the bookkeeping hash for a job (status, attempts,
// last_error). Empty map when the job is unknown or already pruned.
func (q *Queue) JobState(ctx context.Context, id string) (map[string]string, error) {
	return q.client.HGetAll(ctx, jobKey(id)).Result()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
