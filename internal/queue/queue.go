package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Queue errors.
var (
	ErrJobNotFound = errors.New("job not found")
	ErrWaitTimeout = errors.New("timed out waiting for job result")
)

// Status enumerates job lifecycle states.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

const (
	// DefaultMaxAttempts bounds retries before a job lands in failed.
	DefaultMaxAttempts = 3

	baseBackoff = 2 * time.Second
	maxBackoff  = time.Minute

	// Completed and failed jobs stay visible for polling this long,
	// then Redis discards them.
	resultRetention = 30 * time.Minute
	// Pending job state expires eventually even if a worker never picks
	// it up, so abandoned jobs cannot leak keys forever.
	pendingRetention = 24 * time.Hour

	pollTimeout  = time.Second // BLPop block, must be >= 1s for Redis
	waitInterval = 200 * time.Millisecond
)

// Job is the envelope pushed through a queue. Payloads must be
// self-sufficient and order-independent: execution order across a worker
// pool is not guaranteed.
type Job struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
}

// JobState is the pollable status record for a job.
type JobState struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Status    Status          `json:"status"`
	Attempts  int             `json:"attempts"`
	Result    json.RawMessage `json:"result,omitempty"`
	LastError string          `json:"last_error,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Queue is a durable, retryable job queue on Redis lists. Ready jobs live
// in a list consumed with BLPop; retries wait in a sorted set scored by
// their due time until the mover loop pushes them back.
type Queue struct {
	rdb  *redis.Client
	name string
	log  zerolog.Logger
}

// New creates a queue with the given name.
func New(rdb *redis.Client, name string, log zerolog.Logger) *Queue {
	return &Queue{
		rdb:  rdb,
		name: name,
		log:  log.With().Str("component", "queue").Str("queue", name).Logger(),
	}
}

func (q *Queue) listKey() string    { return fmt.Sprintf("queue:%s", q.name) }
func (q *Queue) delayedKey() string { return fmt.Sprintf("queue:%s:delayed", q.name) }
func jobKey(jobID string) string    { return fmt.Sprintf("job:%s", jobID) }

// Enqueue pushes a job onto the ready list and returns its ID.
func (q *Queue) Enqueue(ctx context.Context, name string, payload interface{}) (string, error) {
	return q.enqueue(ctx, name, payload, 0)
}

// EnqueueIn schedules a job to become ready after the given delay. Used for
// timer-driven work such as test expiry.
func (q *Queue) EnqueueIn(ctx context.Context, name string, payload interface{}, delay time.Duration) (string, error) {
	return q.enqueue(ctx, name, payload, delay)
}

func (q *Queue) enqueue(ctx context.Context, name string, payload interface{}, delay time.Duration) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	job := Job{
		ID:          uuid.New().String(),
		Name:        name,
		Payload:     raw,
		MaxAttempts: DefaultMaxAttempts,
		EnqueuedAt:  time.Now(),
	}
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}

	if err := q.writeState(ctx, &JobState{
		ID:        job.ID,
		Name:      job.Name,
		Status:    StatusQueued,
		UpdatedAt: time.Now(),
	}, pendingRetention); err != nil {
		return "", err
	}

	if delay > 0 {
		err = q.rdb.ZAdd(ctx, q.delayedKey(), redis.Z{
			Score:  float64(time.Now().Add(delay).UnixMilli()),
			Member: data,
		}).Err()
	} else {
		err = q.rdb.RPush(ctx, q.listKey(), data).Err()
	}
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", name, err)
	}

	q.log.Debug().Str("job_id", job.ID).Str("job", name).Dur("delay", delay).Msg("Job enqueued")
	return job.ID, nil
}

// GetJob returns the pollable state for a job ID.
func (q *Queue) GetJob(ctx context.Context, jobID string) (*JobState, error) {
	data, err := q.rdb.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var state JobState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal job state: %w", err)
	}
	return &state, nil
}

// WaitForResult polls a job until it reaches a terminal state or the
// timeout expires. On timeout the job keeps running; the caller fetches
// the result later by ID.
func (q *Queue) WaitForResult(ctx context.Context, jobID string, timeout time.Duration) (*JobState, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(waitInterval)
	defer ticker.Stop()

	for {
		state, err := q.GetJob(ctx, jobID)
		if err != nil && !errors.Is(err, ErrJobNotFound) {
			return nil, err
		}
		if state != nil && (state.Status == StatusCompleted || state.Status == StatusFailed) {
			return state, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, ErrWaitTimeout
		case <-ticker.C:
		}
	}
}

func (q *Queue) writeState(ctx context.Context, state *JobState, ttl time.Duration) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal job state: %w", err)
	}
	return q.rdb.Set(ctx, jobKey(state.ID), data, ttl).Err()
}

// Backoff returns the delay before retry number attempt (1-based):
// exponential from baseBackoff, capped at maxBackoff.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := baseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
